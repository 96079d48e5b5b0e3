package whatsapp

import (
	"context"
	"fmt"
	"time"

	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/internal/leads/domain"
	leadstore "leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/templates"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
)

// ServiceConfig narrows the engine settings the service needs.
type ServiceConfig interface {
	GetCostWhatsAppMessage() int64
	GetLinkRenewalDays() int
}

// Service runs the allocation decision table and the WhatsApp nudge flow.
type Service struct {
	conns    Store
	leads    leadstore.Store
	sender   Sender
	selector *templates.Selector
	bus      events.Bus
	cfg      ServiceConfig
	log      *logger.Logger
}

// NewService wires the WhatsApp service.
func NewService(conns Store, leads leadstore.Store, sender Sender, selector *templates.Selector, bus events.Bus, cfg ServiceConfig, log *logger.Logger) *Service {
	return &Service{
		conns:    conns,
		leads:    leads,
		sender:   sender,
		selector: selector,
		bus:      bus,
		cfg:      cfg,
		log:      log,
	}
}

// Assign resolves the lead's channel binding. Retention keeps the existing
// conversation without spending pool quota; reassignment claims the least
// loaded ACTIVE connection and counts as a new conversation. The allocation
// is recorded on the lead but not persisted; the caller owns the write.
func (s *Service) Assign(ctx context.Context, lead *domain.Lead, now time.Time) (*Connection, string, error) {
	var current *Connection
	if lead.WhatsApp != nil {
		conn, err := s.conns.Get(ctx, lead.WhatsApp.ConnectionID)
		if err != nil && apperr.GetKind(err) != apperr.KindNotFound {
			return nil, "", err
		}
		current = conn
	}

	decision := Decide(lead.WhatsApp, current)

	if decision.Retained {
		lead.WhatsApp.ConnectionStatus = current.Status
		lead.WhatsApp.NewConversationsToday = current.ConversationsToday
		lead.AddInteraction(domain.InteractionWhatsAppAllocation, map[string]interface{}{
			"connection_id": current.ID,
			"kind":          domain.AllocationRetention,
		}, 0, now)
		return current, domain.AllocationRetention, nil
	}

	conn, err := s.conns.ClaimLeastLoaded(ctx)
	if err != nil {
		return nil, "", err
	}

	kind := domain.AllocationNew
	if decision.Failover {
		kind = domain.AllocationFailover
		s.log.Warn("whatsapp failover reassignment",
			"lead_id", lead.ID,
			"from_connection", lead.WhatsApp.ConnectionID,
			"to_connection", conn.ID)
	}

	lead.WhatsApp = &domain.Attribution{
		ConnectionID:          conn.ID,
		Number:                conn.Number,
		ConnectionStatus:      conn.Status,
		NewConversationsToday: conn.ConversationsToday,
		AssignedAt:            now,
	}
	lead.AddInteraction(domain.InteractionWhatsAppAllocation, map[string]interface{}{
		"connection_id": conn.ID,
		"kind":          kind,
	}, 0, now)

	return conn, kind, nil
}

// ProcessTrigger handles a conversion signal for the lead: bind a connection
// and send one nudge picked by signing-link age. Status changes belong to the
// site that raised the trigger (pressed 1, link click), not here.
func (s *Service) ProcessTrigger(ctx context.Context, leadID uuid.UUID, source string) error {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return err
	}

	// No pause check here: the trigger usually IS the follow-up to the event
	// that paused the lead (pressed 1, clicked link).
	phone, ok := lead.PrimaryPhone()
	if !ok {
		return apperr.Validation("lead has no dialable phone")
	}

	now := time.Now().UTC()

	conn, kind, err := s.Assign(ctx, lead, now)
	if err != nil {
		return err
	}

	templateContext := templates.ContextWhatsAppNudgeUnder3Days
	if lead.NeedsLinkRenewal(now, s.cfg.GetLinkRenewalDays()) {
		templateContext = templates.ContextWhatsAppNudgeOver3Days
	}

	tpl, message, err := s.selector.PickRendered(ctx, templateContext, lead.TemplateVars())
	if err != nil {
		return err
	}

	if err := s.sender.SendMessage(ctx, conn.ID, phone.Number, message); err != nil {
		return fmt.Errorf("send whatsapp nudge: %w", err)
	}

	if err := s.conns.TouchLastMessage(ctx, conn.ID); err != nil {
		s.log.Error("touch connection failed", "connection_id", conn.ID, "error", err)
	}

	lead.WhatsApp.LastSentAt = now
	lead.AddInteraction(domain.InteractionWhatsAppMessage, map[string]interface{}{
		"connection_id": conn.ID,
		"template_id":   tpl.ID.String(),
		"context":       templateContext,
		"allocation":    kind,
		"source":        source,
	}, s.cfg.GetCostWhatsAppMessage(), now)

	if err := s.leads.Update(ctx, lead); err != nil {
		return err
	}

	s.log.EngineEvent("whatsapp", "nudge_sent", lead.ID.String())
	return nil
}

// UpdateConnectionStatus changes a connection's health. Leaving ACTIVE
// immediately rebinds every lead attributed to it so the next nudge does not
// hit a dead number.
func (s *Service) UpdateConnectionStatus(ctx context.Context, connectionID string, status domain.ConnectionStatus) (*Connection, error) {
	before, err := s.conns.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	conn, err := s.conns.UpdateStatus(ctx, connectionID, status)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.ConnectionStatusChanged{
		BaseEvent:    events.NewBaseEvent(),
		ConnectionID: connectionID,
		OldStatus:    before.Status,
		NewStatus:    status,
	})

	if before.Status == domain.ConnectionActive && status != domain.ConnectionActive {
		if err := s.reallocateBoundLeads(ctx, connectionID); err != nil {
			s.log.Error("reallocation after status change failed",
				"connection_id", connectionID, "error", err)
		}
	}

	return conn, nil
}

func (s *Service) reallocateBoundLeads(ctx context.Context, connectionID string) error {
	bound, err := s.leads.ListBoundToConnection(ctx, connectionID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for i := range bound {
		lead := &bound[i]

		// Paused leads are rebound too. They hold the live conversations and
		// would otherwise stay stranded on the dead connection.
		if _, _, err := s.Assign(ctx, lead, now); err != nil {
			s.log.Error("failover assignment failed", "lead_id", lead.ID, "error", err)
			continue
		}
		if err := s.leads.Update(ctx, lead); err != nil {
			s.log.Error("persist failover failed", "lead_id", lead.ID, "error", err)
		}
	}

	s.log.Info("connection leads reallocated",
		"connection_id", connectionID, "count", len(bound))
	return nil
}

// ListConnections returns the pool ordered by load.
func (s *Service) ListConnections(ctx context.Context) ([]Connection, error) {
	return s.conns.List(ctx)
}

// ResetDailyCounters zeroes the pool counters for a new calendar day.
func (s *Service) ResetDailyCounters(ctx context.Context) (int, error) {
	return s.conns.ResetDailyCounters(ctx)
}
