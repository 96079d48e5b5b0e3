package whatsapp

import (
	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/platform/validator"
)

// Module is the WhatsApp pool bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule wraps the WhatsApp service for HTTP exposure.
func NewModule(svc *Service, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "whatsapp"
}

// RegisterRoutes mounts connection pool routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/connections"))
}

var _ apphttp.Module = (*Module)(nil)
