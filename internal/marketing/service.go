package marketing

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"leadfunnel_backend/internal/email"
	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/internal/leads/domain"
	leadstore "leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/templates"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
)

// Outreach channels.
const (
	ChannelRCS   = "rcs"
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// Channel delivery events reported back by the gateways.
const (
	EventSent      = "SENT"
	EventDelivered = "DELIVERED"
	EventOpened    = "OPENED"
	EventClicked   = "CLICKED"
	EventFailed    = "FAILED"
)

// Enqueuer hands engaged leads over to the WhatsApp flow.
type Enqueuer interface {
	EnqueueWhatsAppTrigger(ctx context.Context, leadID uuid.UUID, source string) error
}

// ServiceConfig narrows the engine settings the dispatcher needs.
type ServiceConfig interface {
	GetCostRCS() int64
	GetCostSMS() int64
	GetCostEmail() int64
}

// Service dispatches outreach messages and processes channel webhooks.
type Service struct {
	leads    leadstore.Store
	rcs      MessageSender
	sms      MessageSender
	email    email.Sender
	selector *templates.Selector
	enqueuer Enqueuer
	bus      events.Bus
	cfg      ServiceConfig
	log      *logger.Logger
}

// NewService wires the marketing dispatcher.
func NewService(leads leadstore.Store, rcs, sms MessageSender, emailSender email.Sender, selector *templates.Selector, enqueuer Enqueuer, bus events.Bus, cfg ServiceConfig, log *logger.Logger) *Service {
	return &Service{
		leads:    leads,
		rcs:      rcs,
		sms:      sms,
		email:    emailSender,
		selector: selector,
		enqueuer: enqueuer,
		bus:      bus,
		cfg:      cfg,
		log:      log,
	}
}

// TrackingLink appends channel attribution to the signing link so a click
// webhook can be tied back to the lead and the channel that earned it.
func TrackingLink(signingLink, channel string, leadID uuid.UUID) string {
	u, err := url.Parse(signingLink)
	if err != nil {
		return signingLink
	}
	q := u.Query()
	q.Set("utm_source", channel)
	q.Set("lead_id", leadID.String())
	u.RawQuery = q.Encode()
	return u.String()
}

// Dispatch sends one outreach message on the given channel. Paused leads are
// skipped silently; a missing contact point for the channel is an error.
func (s *Service) Dispatch(ctx context.Context, leadID uuid.UUID, channel string) error {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return err
	}

	if lead.AutomationPaused {
		s.log.Info("dispatch skipped, automation paused", "lead_id", leadID, "channel", channel)
		return nil
	}

	now := time.Now().UTC()
	vars := lead.TemplateVars()
	vars["signing_link"] = TrackingLink(lead.Proposal.SigningLink, channel, lead.ID)

	switch channel {
	case ChannelRCS:
		err = s.dispatchMessage(ctx, lead, s.rcs, templates.ContextRCSInitial,
			domain.InteractionRCSEvent, s.cfg.GetCostRCS(), vars, now)
	case ChannelSMS:
		err = s.dispatchMessage(ctx, lead, s.sms, templates.ContextSMSInitial,
			domain.InteractionSMSEvent, s.cfg.GetCostSMS(), vars, now)
	case ChannelEmail:
		err = s.dispatchEmail(ctx, lead, templates.ContextEmailInitial,
			s.cfg.GetCostEmail(), vars, now)
	default:
		return apperr.BadRequest(fmt.Sprintf("unknown channel %q", channel))
	}
	if err != nil {
		return err
	}

	if err := s.leads.Update(ctx, lead); err != nil {
		return err
	}

	s.log.EngineEvent(channel, "dispatched", lead.ID.String())
	return nil
}

func (s *Service) dispatchMessage(ctx context.Context, lead *domain.Lead, sender MessageSender, templateContext, interactionKind string, cost int64, vars map[string]string, now time.Time) error {
	if sender == nil {
		return apperr.Internal(fmt.Sprintf("no gateway configured for %s", templateContext))
	}

	phone, ok := lead.PrimaryPhone()
	if !ok {
		return apperr.Validation("lead has no dialable phone")
	}

	tpl, message, err := s.selector.PickRendered(ctx, templateContext, vars)
	if err != nil {
		return err
	}

	if err := sender.Send(ctx, phone.Number, message); err != nil {
		return err
	}

	lead.AddInteraction(interactionKind, map[string]interface{}{
		"event":       EventSent,
		"number":      phone.Number,
		"template_id": tpl.ID.String(),
	}, cost, now)
	return nil
}

func (s *Service) dispatchEmail(ctx context.Context, lead *domain.Lead, templateContext string, cost int64, vars map[string]string, now time.Time) error {
	address, ok := lead.PrimaryEmail()
	if !ok {
		return apperr.Validation("lead has no email address")
	}

	tpl, body, err := s.selector.PickRendered(ctx, templateContext, vars)
	if err != nil {
		return err
	}

	subject := templates.Render(tpl.Subject, vars)
	if err := s.email.Send(ctx, address.Address, subject, body); err != nil {
		return err
	}

	lead.AddInteraction(domain.InteractionEmailEvent, map[string]interface{}{
		"event":       EventSent,
		"address":     address.Address,
		"template_id": tpl.ID.String(),
	}, cost, now)
	return nil
}

// SendPaidCongrats emails the congratulations message after a proposal is
// paid. It runs after the PURPLE transition, so it deliberately ignores the
// automation pause.
func (s *Service) SendPaidCongrats(ctx context.Context, leadID uuid.UUID) error {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return err
	}

	address, ok := lead.PrimaryEmail()
	if !ok {
		s.log.Info("paid congrats skipped, lead has no email", "lead_id", leadID)
		return nil
	}

	vars := lead.TemplateVars()
	tpl, body, err := s.selector.PickRendered(ctx, templates.ContextEmailPaidCongrats, vars)
	if err != nil {
		return err
	}

	subject := templates.Render(tpl.Subject, vars)
	if err := s.email.Send(ctx, address.Address, subject, body); err != nil {
		return err
	}

	now := time.Now().UTC()
	lead.AddInteraction(domain.InteractionEmailEvent, map[string]interface{}{
		"event":       EventSent,
		"address":     address.Address,
		"template_id": tpl.ID.String(),
		"kind":        "paid_congrats",
	}, s.cfg.GetCostEmail(), now)

	if err := s.leads.Update(ctx, lead); err != nil {
		return err
	}

	s.log.EngineEvent(ChannelEmail, "paid_congrats_sent", lead.ID.String())
	return nil
}

// ProcessChannelEvent records a delivery webhook on the lead. A click is an
// engagement signal: the lead turns GREEN (unless a financial status
// outranks it) and is handed to the WhatsApp flow.
func (s *Service) ProcessChannelEvent(ctx context.Context, leadID uuid.UUID, channel, event string) error {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return err
	}

	var kind string
	switch channel {
	case ChannelRCS:
		kind = domain.InteractionRCSEvent
	case ChannelSMS:
		kind = domain.InteractionSMSEvent
	case ChannelEmail:
		kind = domain.InteractionEmailEvent
	default:
		return apperr.BadRequest(fmt.Sprintf("unknown channel %q", channel))
	}

	now := time.Now().UTC()
	lead.AddInteraction(kind, map[string]interface{}{"event": event}, 0, now)

	engaged := event == EventClicked
	if engaged && !lead.Status.OutranksEngagement() && lead.Status != domain.StatusGreen {
		old := lead.Status
		lead.ChangeStatus(domain.StatusGreen, fmt.Sprintf("clicked %s link", channel), now)
		s.bus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			OldStatus: old,
			NewStatus: domain.StatusGreen,
			Reason:    channel + "_clicked",
		})
	}

	if err := s.leads.Update(ctx, lead); err != nil {
		return err
	}

	if engaged {
		s.bus.Publish(ctx, events.ConversionTriggered{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			Source:    channel + "_clicked",
		})
		if err := s.enqueuer.EnqueueWhatsAppTrigger(ctx, lead.ID, channel+"_clicked"); err != nil {
			return fmt.Errorf("enqueue whatsapp hand-off: %w", err)
		}
	}

	return nil
}
