// Package leads provides the lead lifecycle bounded context module.
package leads

import (
	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/internal/leads/handler"
	"leadfunnel_backend/internal/leads/service"
	"leadfunnel_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule wraps the lead service for HTTP exposure.
func NewModule(svc *service.Service, val *validator.Validator) *Module {
	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/leads"))
}

var _ apphttp.Module = (*Module)(nil)
