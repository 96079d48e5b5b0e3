// Package events defines the domain events exchanged between modules and
// re-exports the platform event bus.
package events

import (
	"leadfunnel_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// LeadImported fires when a lead is created or merged from the signature stage.
type LeadImported struct {
	BaseEvent
	LeadID  uuid.UUID
	CPF     string
	Created bool // false when an existing lead was merged
}

// EventName returns the unique event identifier.
func (LeadImported) EventName() string { return "leads.imported" }

// LeadStatusChanged fires on every status transition.
type LeadStatusChanged struct {
	BaseEvent
	LeadID    uuid.UUID
	OldStatus domain.Status
	NewStatus domain.Status
	Reason    string
}

// EventName returns the unique event identifier.
func (LeadStatusChanged) EventName() string { return "leads.status_changed" }

// ConversionTriggered fires when an engagement signal (pressed 1, channel
// click, inbound trigger webhook) asks for a WhatsApp hand-off.
type ConversionTriggered struct {
	BaseEvent
	LeadID uuid.UUID
	Source string
}

// EventName returns the unique event identifier.
func (ConversionTriggered) EventName() string { return "engagement.conversion_triggered" }

// ConnectionStatusChanged fires when a WhatsApp pool connection changes
// health; leaving ACTIVE triggers reallocation of its bound leads.
type ConnectionStatusChanged struct {
	BaseEvent
	ConnectionID string
	OldStatus    domain.ConnectionStatus
	NewStatus    domain.ConnectionStatus
}

// EventName returns the unique event identifier.
func (ConnectionStatusChanged) EventName() string { return "whatsapp.connection_status_changed" }

// PhoneMarkedInapt fires when a call outcome disqualifies a number.
type PhoneMarkedInapt struct {
	BaseEvent
	LeadID uuid.UUID
	Number string
	Reason string
}

// EventName returns the unique event identifier.
func (PhoneMarkedInapt) EventName() string { return "leads.phone_marked_inapt" }
