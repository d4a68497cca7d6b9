package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/helmsmanhq/helmsman/pkg/access"
	"github.com/helmsmanhq/helmsman/pkg/api"
	"github.com/helmsmanhq/helmsman/pkg/config"
	"github.com/helmsmanhq/helmsman/pkg/license"
	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/observability"
	"github.com/helmsmanhq/helmsman/pkg/rbac"
	"github.com/helmsmanhq/helmsman/pkg/sso"
)

// version is stamped by the build
var version = "dev"

// decisionMetrics bridges access-layer decision callbacks onto the
// Prometheus collectors.
type decisionMetrics struct {
	m *observability.Metrics
}

func (d decisionMetrics) RecordDecision(objType objects.Type, action access.Action, allowed bool) {
	d.m.RecordAccessDecision(string(objType), string(action), allowed)
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "Externally visible base URL for SSO redirects")
	providersFile := flag.String("providers", "", "Authentication providers YAML (overrides HELMSMAN_PROVIDERS_FILE)")
	migrate := flag.Bool("migrate", false, "Run database migrations and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if *providersFile != "" {
		cfg.Providers = *providersFile
	}

	log := observability.NewLogger(cfg.LogLevel, os.Stdout)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	roleStore := rbac.NewStore(db)
	if *migrate {
		if err := roleStore.Migrate(context.Background()); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		logrus.Info("Migrations applied")
		return
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logrus.Fatalf("Failed to connect to redis: %v", err)
		}
	}

	gate := license.NewStaticGate(nil)
	if cfg.License.Path != "" {
		l, err := license.Load(cfg.License.Path)
		if err != nil {
			logrus.Fatalf("Failed to load license: %v", err)
		}
		gate.Apply(l)
		log.WithField("tier", l.Tier).Info("license installed")
	} else {
		log.Warn("no license installed, licensed features disabled")
	}

	metrics := observability.NewMetrics(nil)

	cacheOpts := []rbac.CacheOption{rbac.WithCacheMetrics(metrics)}
	if redisClient != nil {
		cacheOpts = append(cacheOpts, rbac.WithRedis(redisClient))
	}
	membership, err := rbac.NewCachedMembership(roleStore, cfg.Cache.Size, cfg.Cache.TTL, cacheOpts...)
	if err != nil {
		logrus.Fatalf("Failed to initialize membership cache: %v", err)
	}

	resolver := objects.NewSQLStore(db)

	dispatcher := access.NewDispatcher(access.Collaborators{
		Membership: membership,
		Resolver:   resolver,
		Gate:       gate,
	}, access.WithLogger(log), access.WithMetrics(decisionMetrics{metrics}))

	server := api.NewServer(dispatcher, resolver, gate, log, metrics,
		api.WithRoleStore(roleStore))

	var watcher *config.ProvidersWatcher
	var sessions *sso.SessionStore
	if cfg.Providers != "" {
		registry := sso.NewRegistry(*baseURL, gate, log)
		provisioner := sso.NewProvisioner(db, roleStore, sso.NewSQLNameResolver(db), log)

		watcher, err = config.WatchProviders(cfg.Providers, log, func(p *config.Providers) {
			registry.Rebuild(context.Background(), p)
			if err := provisioner.Configure(p); err != nil {
				log.WithError(err).Error("failed to apply login mappings")
			}
		})
		if err != nil {
			logrus.Fatalf("Failed to load authentication providers: %v", err)
		}

		sessions = sso.NewSessionStore(db, 0)
		sso.NewHandlers(registry, provisioner, sessions, log).Register(server.Router())
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Probes and metrics bind a separate port so they stay reachable
	// when the API listener is saturated.
	health := observability.NewHealthChecker(db, redisClient, version)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	healthMux.Handle("/metrics", metrics.Handler())
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	sm := observability.NewShutdownManager(log, apiServer, cfg.Server.ShutdownTimeout)
	sm.OnShutdown(func(ctx context.Context) error { return db.Close() })
	if redisClient != nil {
		sm.OnShutdown(func(ctx context.Context) error { return redisClient.Close() })
	}
	sm.OnShutdown(func(ctx context.Context) error {
		membership.Close()
		return nil
	})
	if watcher != nil {
		sm.OnShutdown(func(ctx context.Context) error { return watcher.Close() })
	}
	sm.OnShutdown(func(ctx context.Context) error { return healthServer.Shutdown(ctx) })

	if sessions != nil {
		go sweepSessions(sessions, log)
	}

	// Either listener failing cancels the group context, which tears
	// the whole process down instead of limping along half-served.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.WithFields(map[string]any{
			"addr":    apiServer.Addr,
			"version": version,
		}).Info("helmsman listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		timeout := cfg.Server.ShutdownTimeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		sdCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return sm.Shutdown(sdCtx)
	})

	if err := g.Wait(); err != nil {
		logrus.Fatalf("Server failed: %v", err)
	}
}

// sweepSessions deletes expired login sessions every ten minutes
func sweepSessions(sessions *sso.SessionStore, log *observability.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := sessions.Sweep(ctx)
		cancel()
		if err != nil {
			log.WithError(err).Warn("session sweep failed")
		} else if n > 0 {
			log.WithField("deleted", n).Debug("session sweep")
		}
	}
}
