package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker serves liveness and readiness probes over the
// service's backing stores. Either dependency may be nil when the
// deployment does not use it.
type HealthChecker struct {
	db      *sql.DB
	redis   *redis.Client
	version string
}

// NewHealthChecker creates a health checker
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, version string) *HealthChecker {
	return &HealthChecker{db: db, redis: redisClient, version: version}
}

// HealthStatus is the readiness probe response body
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus reports the health of one backing store
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	LatencyMS time.Duration `json:"latency_ms,omitempty"`
}

// Liveness always answers 200 while the process is serving
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": StatusHealthy})
}

// Readiness pings each dependency with a short timeout and answers
// 503 when any is unreachable.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now().UTC(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus),
	}

	if h.db != nil {
		status.Dependencies["database"] = h.checkDB(ctx)
	}
	if h.redis != nil {
		status.Dependencies["redis"] = h.checkRedis(ctx)
	}

	code := http.StatusOK
	for _, dep := range status.Dependencies {
		if dep.Status == StatusUnhealthy {
			status.Status = StatusUnhealthy
			code = http.StatusServiceUnavailable
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

func (h *HealthChecker) checkDB(ctx context.Context) DependencyStatus {
	start := time.Now()
	if err := h.db.PingContext(ctx); err != nil {
		return DependencyStatus{Status: StatusUnhealthy, Message: err.Error()}
	}
	return DependencyStatus{Status: StatusHealthy, LatencyMS: time.Since(start) / time.Millisecond}
}

func (h *HealthChecker) checkRedis(ctx context.Context) DependencyStatus {
	start := time.Now()
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return DependencyStatus{Status: StatusUnhealthy, Message: err.Error()}
	}
	return DependencyStatus{Status: StatusHealthy, LatencyMS: time.Since(start) / time.Millisecond}
}
