package webhook

import (
	apphttp "leadfunnel_backend/internal/http"
)

// Module is the inbound webhook module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule wraps the webhook handler for route registration.
func NewModule(h *Handler) *Module {
	return &Module{handler: h}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhooks"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Webhooks)
}

var _ apphttp.Module = (*Module)(nil)
