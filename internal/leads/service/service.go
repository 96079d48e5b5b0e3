// Package service implements the lead lifecycle operations: import from the
// signature stage, status management, proposal transitions, and the staleness
// sweep.
package service

import (
	"context"
	"fmt"
	"time"

	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/phone"

	"github.com/google/uuid"
)

// Config narrows the engine settings the lead service needs.
type Config interface {
	GetProposalExpirationDays() int
}

// Service implements lead lifecycle operations.
type Service struct {
	store repository.Store
	bus   events.Bus
	cfg   Config
	log   *logger.Logger
}

// New wires the lead service.
func New(store repository.Store, bus events.Bus, cfg Config, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, cfg: cfg, log: log}
}

// PhoneInput is one phone number on an import request.
type PhoneInput struct {
	Number   string `json:"number" validate:"required"`
	Priority int    `json:"priority" validate:"min=1"`
	Origin   string `json:"origin"`
}

// ProposalInput carries the proposal attached to an import.
type ProposalInput struct {
	ID          string `json:"id" validate:"required"`
	Amount      int64  `json:"amount" validate:"min=0"`
	TermMonths  int    `json:"term_months" validate:"min=0"`
	Installment int64  `json:"installment" validate:"min=0"`
	Bank        string `json:"bank"`
	SigningLink string `json:"signing_link" validate:"required,url"`
}

// ImportInput is a signature-stage drop-off handed to the engine.
type ImportInput struct {
	CPF             string        `json:"cpf" validate:"required,len=11"`
	FullName        string        `json:"full_name" validate:"required"`
	Phones          []PhoneInput  `json:"phones" validate:"required,min=1,dive"`
	Emails          []string      `json:"emails" validate:"dive,email"`
	Origin          string        `json:"origin"`
	AcquisitionCost int64         `json:"acquisition_cost" validate:"min=0"`
	Proposal        ProposalInput `json:"proposal" validate:"required"`
}

// Import creates a lead from a signature-stage drop-off, or merges the
// import into the existing lead with the same CPF: new contact points are
// added, the proposal and its signing link are refreshed, and the
// acquisition spend accumulates.
func (s *Service) Import(ctx context.Context, input ImportInput) (*domain.Lead, bool, error) {
	now := time.Now().UTC()

	existing, err := s.store.GetByCPF(ctx, input.CPF)
	if err != nil && apperr.GetKind(err) != apperr.KindNotFound {
		return nil, false, err
	}

	if existing != nil {
		if err := s.merge(ctx, existing, input, now); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	lead := &domain.Lead{
		ID:               uuid.New(),
		CPF:              input.CPF,
		FullName:         input.FullName,
		Status:           domain.StatusOrange,
		Origin:           input.Origin,
		SignatureStageAt: now,
		Phones:           normalizePhones(input.Phones),
		Emails:           emailsFromInput(input.Emails, input.Origin),
		Proposal:         proposalFromInput(input.Proposal, now),
		Costs: domain.Costs{
			Acquisition: input.AcquisitionCost,
			Total:       input.AcquisitionCost,
		},
	}
	lead.AddInteraction(domain.InteractionLeadImported, map[string]interface{}{
		"origin":      input.Origin,
		"proposal_id": input.Proposal.ID,
	}, 0, now)

	if err := s.store.Create(ctx, lead); err != nil {
		return nil, false, err
	}

	s.bus.Publish(ctx, events.LeadImported{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		CPF:       lead.CPF,
		Created:   true,
	})
	s.log.EngineEvent("leads", "imported", lead.ID.String())
	return lead, true, nil
}

func (s *Service) merge(ctx context.Context, lead *domain.Lead, input ImportInput, now time.Time) error {
	known := make(map[string]bool, len(lead.Phones))
	for _, p := range lead.Phones {
		known[p.Number] = true
	}
	for _, p := range normalizePhones(input.Phones) {
		if !known[p.Number] {
			lead.Phones = append(lead.Phones, p)
			known[p.Number] = true
		}
	}

	knownEmails := make(map[string]bool, len(lead.Emails))
	for _, e := range lead.Emails {
		knownEmails[e.Address] = true
	}
	for _, e := range emailsFromInput(input.Emails, input.Origin) {
		if !knownEmails[e.Address] {
			lead.Emails = append(lead.Emails, e)
			knownEmails[e.Address] = true
		}
	}

	lead.Proposal = proposalFromInput(input.Proposal, now)
	lead.SignatureStageAt = now
	if input.AcquisitionCost > 0 {
		lead.Costs.Acquisition += input.AcquisitionCost
		lead.Costs.Total = lead.Costs.Acquisition + lead.Costs.Engines
	}
	lead.AddInteraction(domain.InteractionLeadImported, map[string]interface{}{
		"origin":      input.Origin,
		"proposal_id": input.Proposal.ID,
		"merged":      true,
	}, 0, now)

	if err := s.store.Update(ctx, lead); err != nil {
		return err
	}

	s.bus.Publish(ctx, events.LeadImported{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		CPF:       lead.CPF,
		Created:   false,
	})
	s.log.EngineEvent("leads", "merged", lead.ID.String())
	return nil
}

// Get loads one lead.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	return s.store.GetByID(ctx, id)
}

// List returns a filtered page of leads and the total count.
func (s *Service) List(ctx context.Context, filter repository.ListFilter) ([]domain.Lead, int, error) {
	return s.store.List(ctx, filter)
}

// Stats aggregates the funnel per status.
func (s *Service) Stats(ctx context.Context) ([]repository.StatusStat, error) {
	return s.store.StatusStats(ctx)
}

// ListHumanRequired returns leads waiting for an operator.
func (s *Service) ListHumanRequired(ctx context.Context, limit int) ([]domain.Lead, error) {
	return s.store.ListHumanRequired(ctx, limit)
}

// UpdateStatus performs a manual status transition.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status, reason string) (*domain.Lead, error) {
	lead, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	old := lead.Status
	lead.ChangeStatus(status, reason, now)

	if err := s.store.Update(ctx, lead); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		OldStatus: old,
		NewStatus: status,
		Reason:    reason,
	})
	return lead, nil
}

// MarkHumanRequired flags the lead for manual follow-up without touching its
// status or pausing automation.
func (s *Service) MarkHumanRequired(ctx context.Context, id uuid.UUID, source string) (*domain.Lead, error) {
	lead, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	lead.HumanRequired = true
	lead.AddInteraction(domain.InteractionHumanRequired, map[string]interface{}{
		"source": source,
	}, 0, now)

	if err := s.store.Update(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// ApplyProposalStatus processes a proposal webhook. Financial outcomes map
// onto the funnel: PAID turns the lead PURPLE, DELINQUENT turns it BLUE,
// EXPIRED turns it WHITE, CANCELED turns it REJECTED.
func (s *Service) ApplyProposalStatus(ctx context.Context, id uuid.UUID, status domain.ProposalStatus) (*domain.Lead, error) {
	lead, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	lead.Proposal.Status = status
	lead.AddInteraction(domain.InteractionProposalStatus, map[string]interface{}{
		"status": string(status),
	}, 0, now)

	var target domain.Status
	switch status {
	case domain.ProposalPaid:
		target = domain.StatusPurple
	case domain.ProposalDelinquent:
		target = domain.StatusBlue
	case domain.ProposalExpired:
		target = domain.StatusWhite
	case domain.ProposalCanceled:
		target = domain.StatusRejected
	case domain.ProposalPending:
		// Nothing to transition.
	default:
		return nil, apperr.BadRequest(fmt.Sprintf("unknown proposal status %q", status))
	}

	old := lead.Status
	if target != "" && target != old {
		lead.ChangeStatus(target, fmt.Sprintf("proposal %s", status), now)
	}

	if err := s.store.Update(ctx, lead); err != nil {
		return nil, err
	}

	if target != "" && target != old {
		s.bus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			OldStatus: old,
			NewStatus: target,
			Reason:    fmt.Sprintf("proposal %s", status),
		})
	}

	s.log.EngineEvent("leads", "proposal_"+string(status), lead.ID.String())
	return lead, nil
}

func normalizePhones(inputs []PhoneInput) []domain.Phone {
	phones := make([]domain.Phone, 0, len(inputs))
	for _, in := range inputs {
		priority := in.Priority
		if priority < 1 {
			priority = 1
		}
		phones = append(phones, domain.Phone{
			Number:   phone.NormalizeE164(in.Number),
			Priority: priority,
			Origin:   in.Origin,
		})
	}
	return phones
}

func emailsFromInput(addresses []string, origin string) []domain.Email {
	emails := make([]domain.Email, 0, len(addresses))
	for _, addr := range addresses {
		emails = append(emails, domain.Email{Address: addr, Origin: origin})
	}
	return emails
}

func proposalFromInput(in ProposalInput, now time.Time) domain.Proposal {
	return domain.Proposal{
		ID:              in.ID,
		CreatedAt:       now,
		Amount:          in.Amount,
		TermMonths:      in.TermMonths,
		Installment:     in.Installment,
		Bank:            in.Bank,
		SigningLink:     in.SigningLink,
		LinkGeneratedAt: now,
		Status:          domain.ProposalPending,
	}
}
