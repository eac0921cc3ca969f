package alerts

import (
	apphttp "realty_leads_backend/internal/http"
	"realty_leads_backend/platform/validator"
)

// Module is the alerts bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

func NewModule(svc *Service, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(svc, val), service: svc}
}

func (m *Module) Name() string {
	return "alerts"
}

func (m *Module) Service() *Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/alerts", m.handler.List)
	ctx.V1.PATCH("/alerts/:id", m.handler.Transition)
}

var _ apphttp.Module = (*Module)(nil)
