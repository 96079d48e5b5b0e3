package templates

import (
	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/platform/validator"
)

// Module is the message-template bounded context module implementing
// http.Module.
type Module struct {
	handler *Handler
}

// NewModule wraps the template store for HTTP exposure.
func NewModule(store Store, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(store, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "templates"
}

// RegisterRoutes mounts template routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/templates"))
}

var _ apphttp.Module = (*Module)(nil)
