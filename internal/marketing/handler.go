package marketing

import (
	"context"
	"net/http"

	"leadfunnel_backend/internal/leads/domain"
	leadstore "leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/platform/httpkit"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DispatchEnqueuer queues outreach sends.
type DispatchEnqueuer interface {
	EnqueueMarketingDispatch(ctx context.Context, leadID uuid.UUID, channel string) error
}

// Handler exposes campaign dispatching over HTTP.
type Handler struct {
	leads    leadstore.Store
	enqueuer DispatchEnqueuer
	val      *validator.Validator
	log      *logger.Logger
}

func NewHandler(leads leadstore.Store, enqueuer DispatchEnqueuer, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{leads: leads, enqueuer: enqueuer, val: val, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/dispatch", h.Dispatch)
	rg.POST("/campaigns", h.Campaign)
}

type dispatchRequest struct {
	LeadID  string `json:"lead_id" validate:"required,uuid"`
	Channel string `json:"channel" validate:"required,oneof=rcs sms email"`
}

// Dispatch queues one outreach send for one lead.
func (h *Handler) Dispatch(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	if err := h.enqueuer.EnqueueMarketingDispatch(c.Request.Context(), uuid.MustParse(req.LeadID), req.Channel); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"queued": 1})
}

type campaignRequest struct {
	Channel string `json:"channel" validate:"required,oneof=rcs sms email"`
	Status  string `json:"status" validate:"required,oneof=ORANGE GREEN BLUE"`
}

// Campaign queues one send per lead currently in the given status. Paused
// leads are filtered again at execution time, so a stale listing cannot
// message someone who converted meanwhile.
func (h *Handler) Campaign(c *gin.Context) {
	var req campaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	status := domain.Status(req.Status)
	queued := 0
	page := 1
	for {
		leads, total, err := h.leads.List(c.Request.Context(), leadstore.ListFilter{
			Status: &status,
			Page:   page,
			Limit:  200,
		})
		if httpkit.HandleError(c, err) {
			return
		}

		for _, lead := range leads {
			if lead.AutomationPaused {
				continue
			}
			if err := h.enqueuer.EnqueueMarketingDispatch(c.Request.Context(), lead.ID, req.Channel); err != nil {
				h.log.Error("campaign enqueue failed", "lead_id", lead.ID, "error", err)
				continue
			}
			queued++
		}

		if page*200 >= total || len(leads) == 0 {
			break
		}
		page++
	}

	httpkit.JSON(c, http.StatusAccepted, gin.H{"queued": queued})
}
