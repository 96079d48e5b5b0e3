package service

import (
	"context"
	"time"

	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/platform/apperr"

	"github.com/google/uuid"
)

// AppointmentInput schedules a manual follow-up.
type AppointmentInput struct {
	At       time.Time `json:"at" validate:"required"`
	Reason   string    `json:"reason" validate:"required"`
	Operator string    `json:"operator" validate:"required"`
}

// NoteInput is one operator annotation.
type NoteInput struct {
	Text     string `json:"text" validate:"required"`
	Operator string `json:"operator" validate:"required"`
}

// AddAppointment schedules a follow-up on the lead.
func (s *Service) AddAppointment(ctx context.Context, id uuid.UUID, input AppointmentInput) (*domain.Lead, error) {
	lead, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	lead.Appointments = append(lead.Appointments, domain.Appointment{
		At:        input.At,
		Reason:    input.Reason,
		Operator:  input.Operator,
		CreatedAt: time.Now().UTC(),
	})

	if err := s.store.Update(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// CompleteAppointment marks the appointment at the given index done.
func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID, index int) (*domain.Lead, error) {
	lead, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(lead.Appointments) {
		return nil, apperr.NotFound("appointment not found")
	}
	lead.Appointments[index].Done = true

	if err := s.store.Update(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// AddNote appends a free-text note to the lead.
func (s *Service) AddNote(ctx context.Context, id uuid.UUID, input NoteInput) (*domain.Lead, error) {
	lead, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	lead.Notes = append(lead.Notes, domain.Note{
		Text:      input.Text,
		Operator:  input.Operator,
		Timestamp: time.Now().UTC(),
	})

	if err := s.store.Update(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}
