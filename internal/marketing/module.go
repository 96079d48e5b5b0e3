package marketing

import (
	apphttp "leadfunnel_backend/internal/http"
	leadstore "leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/validator"
)

// Module is the marketing bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule wraps campaign dispatching for HTTP exposure.
func NewModule(leads leadstore.Store, enqueuer DispatchEnqueuer, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(leads, enqueuer, val, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "marketing"
}

// RegisterRoutes mounts marketing routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/marketing"))
}

var _ apphttp.Module = (*Module)(nil)
