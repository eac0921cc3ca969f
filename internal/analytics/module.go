package analytics

import (
	apphttp "realty_leads_backend/internal/http"
)

// Module is the analytics bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

func NewModule(svc *Service) *Module {
	return &Module{handler: NewHandler(svc), service: svc}
}

func (m *Module) Name() string {
	return "analytics"
}

func (m *Module) Service() *Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.V1.Group("/analytics")
	g.GET("/summary", m.handler.Summary)
	g.GET("/snapshots", m.handler.Snapshots)
}

var _ apphttp.Module = (*Module)(nil)
