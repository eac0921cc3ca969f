package markets

import (
	"realty_leads_backend/internal/events"
	apphttp "realty_leads_backend/internal/http"
	"realty_leads_backend/internal/leads/scoring"
	"realty_leads_backend/platform/logger"
	"realty_leads_backend/platform/metrics"
	"realty_leads_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the markets bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule wires the markets repository, service and handler.
func NewModule(pool *pgxpool.Pool, weights scoring.Weights, bus events.Bus, reg *metrics.Registry, val *validator.Validator, log *logger.Logger) *Module {
	svc := NewService(NewRepository(pool), weights, bus, reg, log)
	return &Module{handler: NewHandler(svc, val), service: svc}
}

func (m *Module) Name() string {
	return "markets"
}

// Service returns the service layer for other modules.
func (m *Module) Service() *Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.V1.Group("/markets")
	g.GET("", m.handler.List)
	g.POST("/recompute", m.handler.Recompute)
	g.GET("/properties/:id", m.handler.Property)
	g.POST("/properties/:id/events", m.handler.RecordEvent)
}

var _ apphttp.Module = (*Module)(nil)
