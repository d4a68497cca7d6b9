// Package observability provides the operational plumbing shared by
// every Helmsman service: structured logging, Prometheus metrics,
// health probes and coordinated shutdown.
//
// # Logging
//
// Logger wraps log/slog with a JSON handler. Request-scoped loggers
// are carried through context so handlers and the access layer emit
// records tagged with the request id.
//
// # Metrics
//
// Metrics registers the Prometheus collectors for the HTTP surface,
// the access decision layer and the role membership cache. The
// /metrics endpoint is served by Handler.
//
// # Health
//
// HealthChecker exposes liveness and readiness probes. Readiness
// pings the database and Redis with short timeouts and reports
// per-dependency status.
package observability
