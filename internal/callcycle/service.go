package callcycle

import (
	"context"
	"errors"
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

// Enqueuer schedules follow-up tasks produced by a call attempt. Implemented
// by the scheduler client; the indirection keeps this package free of queue
// wiring.
type Enqueuer interface {
	ScheduleRedial(ctx context.Context, leadID uuid.UUID, redialCount int, delay time.Duration) error
	EnqueueWhatsAppTrigger(ctx context.Context, leadID uuid.UUID, source string) error
}

// ServiceConfig narrows the engine settings the cycle needs.
type ServiceConfig interface {
	GetCostVoiceCall() int64
}

// Service executes call-cycle attempts.
type Service struct {
	leads    leadstore.Store
	dialer   Dialer
	selector *templates.Selector
	enqueuer Enqueuer
	bus      events.Bus
	cfg      ServiceConfig
	log      *logger.Logger
}

// NewService wires the call-cycle service.
func NewService(leads leadstore.Store, dialer Dialer, selector *templates.Selector, enqueuer Enqueuer, bus events.Bus, cfg ServiceConfig, log *logger.Logger) *Service {
	return &Service{
		leads:    leads,
		dialer:   dialer,
		selector: selector,
		enqueuer: enqueuer,
		bus:      bus,
		cfg:      cfg,
		log:      log,
	}
}

var windowContexts = [3]string{
	templates.ContextVoiceWindow1,
	templates.ContextVoiceWindow2,
	templates.ContextVoiceWindow3,
}

// RunAttempt executes one call attempt for the lead. redialCount is zero for
// regular attempts and counts up along a redial chain. The attempt itself is
// derived from the interaction log, so replaying a duplicate task is
// harmless: the fold sees the recorded call and the guards below skip it.
func (s *Service) RunAttempt(ctx context.Context, leadID uuid.UUID, redialCount int) error {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return err
	}

	if !lead.EligibleForCalls() {
		s.log.Info("call attempt skipped, lead not eligible", "lead_id", leadID)
		return nil
	}

	phones := lead.DialablePhones()
	progress := FoldProgress(lead.Interactions, len(phones))

	if progress.Stopped {
		s.log.Info("call cycle already stopped", "lead_id", leadID, "outcome", progress.StopOutcome)
		return nil
	}
	if progress.Exhausted {
		s.log.Info("call cycle exhausted", "lead_id", leadID, "attempts", progress.Attempts)
		return nil
	}

	target := phones[progress.PhoneIndex]

	templateContext := windowContexts[progress.Window]
	if redialCount > 0 {
		templateContext = templates.ContextVoiceRedial
		// A redial retries the number that just missed, not the next one in
		// the rotation.
		for _, p := range phones {
			if p.Number == progress.LastNumber {
				target = p
				break
			}
		}
	}

	tpl, script, err := s.selector.PickRendered(ctx, templateContext, lead.TemplateVars())
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	payload := map[string]interface{}{
		"number":      target.Number,
		"window":      progress.Window + 1,
		"attempt":     progress.Attempts + 1,
		"redial":      redialCount,
		"template_id": tpl.ID.String(),
	}

	outcome, err := s.dialer.PlaceCall(ctx, target.Number, script)
	if err != nil {
		if !errors.Is(err, apperr.ErrTransport) {
			return err
		}
		// The carrier was never reached but the dial was initiated and
		// billed. Record it as a near miss so the redial ladder applies.
		outcome = domain.OutcomeNoAnswer
		payload["transport_error"] = err.Error()
		s.log.EngineError("voice", "place_call", leadID.String(), err)
	}

	payload["outcome"] = string(outcome)
	lead.AddInteraction(domain.InteractionVoiceCall, payload, s.cfg.GetCostVoiceCall(), now)

	switch {
	case outcome.MarksPhoneInapt():
		lead.MarkPhoneInapt(target.Number, string(outcome), now)
		s.bus.Publish(ctx, events.PhoneMarkedInapt{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			Number:    target.Number,
			Reason:    string(outcome),
		})

	case outcome == domain.OutcomePressed1:
		// The voice cycle is done; the conversation moves to WhatsApp.
		lead.AutomationPaused = true
		if !lead.Status.OutranksEngagement() && lead.Status != domain.StatusGreen {
			old := lead.Status
			lead.ChangeStatus(domain.StatusGreen, "pressed 1 during voice call", now)
			s.bus.Publish(ctx, events.LeadStatusChanged{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    lead.ID,
				OldStatus: old,
				NewStatus: domain.StatusGreen,
				Reason:    "voice_pressed_1",
			})
		}

	case outcome == domain.OutcomeAskedOperator:
		lead.HumanRequired = true
		lead.AutomationPaused = true
		lead.AddInteraction(domain.InteractionHumanRequired, map[string]interface{}{
			"source": "voice_asked_operator",
		}, 0, now)
	}

	if err := s.leads.Update(ctx, lead); err != nil {
		return err
	}

	s.log.EngineEvent("voice", "call_attempt", lead.ID.String())

	return s.scheduleFollowUp(ctx, lead, outcome, redialCount)
}

func (s *Service) scheduleFollowUp(ctx context.Context, lead *domain.Lead, outcome domain.CallOutcome, redialCount int) error {
	if outcome == domain.OutcomePressed1 {
		if err := s.enqueuer.EnqueueWhatsAppTrigger(ctx, lead.ID, "voice_pressed_1"); err != nil {
			return fmt.Errorf("enqueue whatsapp hand-off: %w", err)
		}
		return nil
	}

	if !outcome.TriggersRedial() {
		return nil
	}
	if lead.VoiceAttempts() >= MaxAttempts {
		return nil
	}

	minutes, ok := RedialDelayMinutes(redialCount)
	if !ok {
		return nil
	}

	delay := time.Duration(minutes) * time.Minute
	if err := s.enqueuer.ScheduleRedial(ctx, lead.ID, redialCount+1, delay); err != nil {
		return fmt.Errorf("schedule redial: %w", err)
	}

	s.log.Info("redial scheduled",
		"lead_id", lead.ID, "redial", redialCount+1, "delay_minutes", minutes)
	return nil
}
