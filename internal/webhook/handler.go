// Package webhook receives callbacks from the outside world: conversion
// triggers, channel delivery events, proposal status changes from the bank,
// and connection health reports from the WhatsApp gateway.
package webhook

import (
	"context"
	"net/http"

	"leadfunnel_backend/internal/leads/domain"
	leadsvc "leadfunnel_backend/internal/leads/service"
	"leadfunnel_backend/internal/marketing"
	"leadfunnel_backend/internal/whatsapp"
	"leadfunnel_backend/platform/httpkit"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Enqueuer queues asynchronous follow-up work for webhook events.
type Enqueuer interface {
	EnqueueWhatsAppTrigger(ctx context.Context, leadID uuid.UUID, source string) error
	EnqueuePaidCongrats(ctx context.Context, leadID uuid.UUID) error
}

type Handler struct {
	leads     *leadsvc.Service
	marketing *marketing.Service
	whatsapp  *whatsapp.Service
	enqueuer  Enqueuer
	val       *validator.Validator
	log       *logger.Logger
}

func New(leads *leadsvc.Service, mkt *marketing.Service, wa *whatsapp.Service, enqueuer Enqueuer, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{
		leads:     leads,
		marketing: mkt,
		whatsapp:  wa,
		enqueuer:  enqueuer,
		val:       val,
		log:       log,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/conversion", h.Conversion)
	rg.POST("/channel-events", h.ChannelEvent)
	rg.POST("/proposal-status", h.ProposalStatus)
	rg.POST("/connections/:id/status", h.ConnectionStatus)
}

type conversionRequest struct {
	LeadID string `json:"lead_id" validate:"required,uuid"`
	Source string `json:"source" validate:"required"`
}

// Conversion accepts an external engagement signal and hands the lead to the
// WhatsApp flow asynchronously. The webhook answers as soon as the task is
// queued.
func (h *Handler) Conversion(c *gin.Context) {
	var req conversionRequest
	if !h.bind(c, &req) {
		return
	}
	leadID := uuid.MustParse(req.LeadID)

	if err := h.enqueuer.EnqueueWhatsAppTrigger(c.Request.Context(), leadID, req.Source); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.JSON(c, http.StatusAccepted, gin.H{"queued": true})
}

type channelEventRequest struct {
	LeadID  string `json:"lead_id" validate:"required,uuid"`
	Channel string `json:"channel" validate:"required,oneof=rcs sms email"`
	Event   string `json:"event" validate:"required,oneof=SENT DELIVERED OPENED CLICKED FAILED"`
}

// ChannelEvent records a delivery event; a click engages the lead.
func (h *Handler) ChannelEvent(c *gin.Context) {
	var req channelEventRequest
	if !h.bind(c, &req) {
		return
	}
	leadID := uuid.MustParse(req.LeadID)

	if err := h.marketing.ProcessChannelEvent(c.Request.Context(), leadID, req.Channel, req.Event); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, gin.H{"processed": true})
}

type proposalStatusRequest struct {
	LeadID string `json:"lead_id" validate:"required,uuid"`
	Status string `json:"status" validate:"required,oneof=PENDING PAID DELINQUENT EXPIRED CANCELED"`
}

// ProposalStatus applies a bank-side proposal transition to the funnel. A
// paid proposal additionally queues the congratulations email.
func (h *Handler) ProposalStatus(c *gin.Context) {
	var req proposalStatusRequest
	if !h.bind(c, &req) {
		return
	}
	leadID := uuid.MustParse(req.LeadID)
	status := domain.ProposalStatus(req.Status)

	lead, err := h.leads.ApplyProposalStatus(c.Request.Context(), leadID, status)
	if httpkit.HandleError(c, err) {
		return
	}

	if status == domain.ProposalPaid {
		if err := h.enqueuer.EnqueuePaidCongrats(c.Request.Context(), leadID); err != nil {
			h.log.Error("enqueue paid congrats failed", "lead_id", leadID, "error", err)
		}
	}

	httpkit.OK(c, lead)
}

type connectionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE BANNED OFFLINE MAINTENANCE"`
}

// ConnectionStatus updates a WhatsApp connection's health from the gateway.
func (h *Handler) ConnectionStatus(c *gin.Context) {
	var req connectionStatusRequest
	if !h.bind(c, &req) {
		return
	}

	conn, err := h.whatsapp.UpdateConnectionStatus(c.Request.Context(), c.Param("id"), domain.ConnectionStatus(req.Status))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, conn)
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return false
	}
	return true
}
