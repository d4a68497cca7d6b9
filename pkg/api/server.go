package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/helmsmanhq/helmsman/pkg/access"
	"github.com/helmsmanhq/helmsman/pkg/license"
	"github.com/helmsmanhq/helmsman/pkg/middleware"
	"github.com/helmsmanhq/helmsman/pkg/objects"
	"github.com/helmsmanhq/helmsman/pkg/observability"
	"github.com/helmsmanhq/helmsman/pkg/rbac"
)

// Server is the Helmsman HTTP API
type Server struct {
	router     *mux.Router
	dispatcher *access.Dispatcher
	resolver   objects.Resolver
	roles      *rbac.Store
	gate       license.Gate
	log        *observability.Logger
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithRoleStore enables the role-grant endpoints
func WithRoleStore(store *rbac.Store) ServerOption {
	return func(s *Server) { s.roles = store }
}

// NewServer builds the router with the standard middleware chain
func NewServer(dispatcher *access.Dispatcher, resolver objects.Resolver, gate license.Gate,
	log *observability.Logger, metrics *observability.Metrics, opts ...ServerOption) *Server {

	s := &Server{
		router:     mux.NewRouter(),
		dispatcher: dispatcher,
		resolver:   resolver,
		gate:       gate,
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recover(log))
	s.router.Use(middleware.Logging(log))
	if metrics != nil {
		s.router.Use(middleware.Metrics(metrics))
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/access/{type}/add", s.handleCanAdd).Methods(http.MethodPost)
	v1.HandleFunc("/access/{type}/{id:[0-9]+}/change", s.handleCanChange).Methods(http.MethodPost)
	v1.HandleFunc("/access/{type}/{id:[0-9]+}/read", s.handleCanRead).Methods(http.MethodPost)
	v1.HandleFunc("/access/{type}/{id:[0-9]+}/delete", s.handleCanDelete).Methods(http.MethodPost)

	v1.HandleFunc("/providers/validate", s.handleValidateProviders).Methods(http.MethodPost)

	if s.roles != nil {
		v1.HandleFunc("/roles/grants", s.handleGrantRole).Methods(http.MethodPost)
		v1.HandleFunc("/roles/grants", s.handleRevokeRole).Methods(http.MethodDelete)
	}
}

// Router returns the configured router for mounting extra handlers
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Error("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
