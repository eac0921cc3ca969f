package http

import (
	"context"
	nethttp "net/http"

	"realty_leads_backend/platform/config"
	"realty_leads_backend/platform/logger"
)

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the HTTP settings (address, CORS, submission rate).
	Config config.HTTPConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness/health checks (e.g., DB ping).
	Health HealthChecker
	// Metrics serves the Prometheus exposition endpoint. Nil disables /metrics.
	Metrics nethttp.Handler
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
