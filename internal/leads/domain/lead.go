// Package domain holds the Lead aggregate and the pure state-transition rules
// of the engagement engine. Nothing in this package touches storage or
// transport; document mutations return the recorded change so callers can
// persist and publish it.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Interaction kinds recorded in the lead's append-only audit log.
const (
	InteractionLeadImported       = "LEAD_IMPORTED"
	InteractionVoiceCall          = "VOICE_CALL"
	InteractionPhoneMarkedInapt   = "PHONE_MARKED_INAPT"
	InteractionWhatsAppAllocation = "WHATSAPP_ALLOCATION"
	InteractionWhatsAppMessage    = "WHATSAPP_MESSAGE"
	InteractionRCSEvent           = "RCS_EVENT"
	InteractionSMSEvent           = "SMS_EVENT"
	InteractionEmailEvent         = "EMAIL_EVENT"
	InteractionProposalStatus     = "PROPOSAL_STATUS"
	InteractionHumanRequired      = "HUMAN_REQUIRED"
)

// Allocation kinds logged by the channel allocator.
const (
	AllocationRetention = "RETENTION"
	AllocationNew       = "NEW"
	AllocationFailover  = "FAILOVER"
)

// Phone is one dialable number. Priority 1 numbers form List A (the numbers
// the lead gave on the landing page); higher priorities form List B (enriched
// numbers). An inapt number is permanently excluded from dialing.
type Phone struct {
	Number      string `json:"number"`
	Priority    int    `json:"priority"`
	Origin      string `json:"origin"`
	Inapt       bool   `json:"inapt,omitempty"`
	InaptReason string `json:"inapt_reason,omitempty"`
}

// Email is one contact address.
type Email struct {
	Address string `json:"address"`
	Origin  string `json:"origin"`
}

// Proposal is the loan proposal attached to the lead. Amounts are integer
// cents.
type Proposal struct {
	ID              string         `json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	Amount          int64          `json:"amount"`
	TermMonths      int            `json:"term_months"`
	Installment     int64          `json:"installment"`
	Bank            string         `json:"bank"`
	SigningLink     string         `json:"signing_link"`
	LinkGeneratedAt time.Time      `json:"link_generated_at"`
	Status          ProposalStatus `json:"status"`
}

// StatusChange is one entry of the append-only transition log. Status holds
// the status in effect immediately before the transition.
type StatusChange struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// Interaction is one entry of the append-only automation audit log.
type Interaction struct {
	Kind      string                 `json:"kind"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
	Cost      int64                  `json:"cost,omitempty"`
}

// CostEntry itemizes one charged automation action.
type CostEntry struct {
	Engine    string    `json:"engine"`
	Action    string    `json:"action"`
	Cost      int64     `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
}

// Costs tracks acquisition and engine spend in integer cents.
// Total is derived: Total == Acquisition + Engines, always.
type Costs struct {
	Acquisition int64       `json:"acquisition"`
	Engines     int64       `json:"engines"`
	Total       int64       `json:"total"`
	Breakdown   []CostEntry `json:"breakdown"`
}

// Attribution is the lead's current WhatsApp channel binding.
type Attribution struct {
	ConnectionID          string           `json:"connection_id"`
	Number                string           `json:"number"`
	ConnectionStatus      ConnectionStatus `json:"connection_status"`
	NewConversationsToday int              `json:"new_conversations_today"`
	AssignedAt            time.Time        `json:"assigned_at"`
	LastSentAt            time.Time        `json:"last_sent_at"`
}

// Appointment is a manual follow-up scheduled by an operator.
type Appointment struct {
	At        time.Time `json:"at"`
	Reason    string    `json:"reason"`
	Operator  string    `json:"operator"`
	CreatedAt time.Time `json:"created_at"`
	Done      bool      `json:"done"`
}

// Note is a free-text operator annotation.
type Note struct {
	Text      string    `json:"text"`
	Operator  string    `json:"operator"`
	Timestamp time.Time `json:"timestamp"`
}

// Lead is the aggregate root of the engagement engine. Every automation task
// re-reads the lead before mutating it; the Version column gives the store
// optimistic-concurrency semantics so concurrent tasks for the same lead are
// serialized there.
type Lead struct {
	ID               uuid.UUID      `json:"id"`
	CPF              string         `json:"cpf"`
	FullName         string         `json:"full_name"`
	Phones           []Phone        `json:"phones"`
	Emails           []Email        `json:"emails"`
	Proposal         Proposal       `json:"proposal"`
	Status           Status         `json:"status"`
	StatusHistory    []StatusChange `json:"status_history"`
	Interactions     []Interaction  `json:"interactions"`
	Costs            Costs          `json:"costs"`
	WhatsApp         *Attribution   `json:"whatsapp,omitempty"`
	Appointments     []Appointment  `json:"appointments"`
	Notes            []Note         `json:"notes"`
	HumanRequired    bool           `json:"human_required"`
	AutomationPaused bool           `json:"automation_paused"`
	Origin           string         `json:"origin"`
	SignatureStageAt time.Time      `json:"signature_stage_at"`
	Version          int64          `json:"version"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// AddInteraction appends one audit entry and, when the action carries a cost,
// updates the engine spend keeping Total = Acquisition + Engines.
func (l *Lead) AddInteraction(kind string, payload map[string]interface{}, cost int64, now time.Time) {
	l.Interactions = append(l.Interactions, Interaction{
		Kind:      kind,
		Payload:   payload,
		Timestamp: now,
		Cost:      cost,
	})

	if cost > 0 {
		l.Costs.Engines += cost
		l.Costs.Total = l.Costs.Acquisition + l.Costs.Engines
		l.Costs.Breakdown = append(l.Costs.Breakdown, CostEntry{
			Engine:    engineFromKind(kind),
			Action:    kind,
			Cost:      cost,
			Timestamp: now,
		})
	}
}

// ChangeStatus appends the outgoing status to the transition log, applies the
// new status and the automation-pause rule, and returns the recorded change.
func (l *Lead) ChangeStatus(newStatus Status, reason string, now time.Time) StatusChange {
	change := StatusChange{
		Status:    l.Status,
		Timestamp: now,
		Reason:    fmt.Sprintf("transition from %s to %s: %s", l.Status, newStatus, reason),
	}
	l.StatusHistory = append(l.StatusHistory, change)
	l.Status = newStatus

	if newStatus.PausesAutomation() {
		l.AutomationPaused = true
	}

	return change
}

// MarkPhoneInapt permanently disqualifies the number and logs the reason.
// Returns false if the number is not on the lead.
func (l *Lead) MarkPhoneInapt(number, reason string, now time.Time) bool {
	for i := range l.Phones {
		if l.Phones[i].Number != number {
			continue
		}
		l.Phones[i].Inapt = true
		l.Phones[i].InaptReason = reason
		l.AddInteraction(InteractionPhoneMarkedInapt, map[string]interface{}{
			"number": number,
			"reason": reason,
		}, 0, now)
		return true
	}
	return false
}

// ListA returns the dialable landing-page numbers (priority 1, not inapt).
func (l *Lead) ListA() []Phone {
	return l.filterPhones(func(p Phone) bool { return p.Priority == 1 && !p.Inapt })
}

// ListB returns the dialable enriched numbers (priority > 1, not inapt).
func (l *Lead) ListB() []Phone {
	return l.filterPhones(func(p Phone) bool { return p.Priority > 1 && !p.Inapt })
}

func (l *Lead) filterPhones(keep func(Phone) bool) []Phone {
	out := make([]Phone, 0, len(l.Phones))
	for _, p := range l.Phones {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// DialablePhones returns every non-inapt number, List A first.
func (l *Lead) DialablePhones() []Phone {
	return append(l.ListA(), l.ListB()...)
}

// EligibleForCalls reports whether a call cycle may start: automation not
// paused, at least one dialable phone, and a signing link to offer.
func (l *Lead) EligibleForCalls() bool {
	return !l.AutomationPaused &&
		len(l.DialablePhones()) > 0 &&
		l.Proposal.SigningLink != ""
}

// PrimaryPhone returns the first non-inapt number, preferring List A.
func (l *Lead) PrimaryPhone() (Phone, bool) {
	phones := l.DialablePhones()
	if len(phones) == 0 {
		return Phone{}, false
	}
	return phones[0], true
}

// PrimaryEmail returns the first contact address.
func (l *Lead) PrimaryEmail() (Email, bool) {
	if len(l.Emails) == 0 {
		return Email{}, false
	}
	return l.Emails[0], true
}

// LinkAgeDays returns whole days since the signing link was generated.
func (l *Lead) LinkAgeDays(now time.Time) int {
	if l.Proposal.LinkGeneratedAt.IsZero() {
		return 0
	}
	return int(now.Sub(l.Proposal.LinkGeneratedAt).Hours() / 24)
}

// NeedsLinkRenewal reports whether the signing link is older than the renewal
// threshold, in which case outreach sends a fresh link.
func (l *Lead) NeedsLinkRenewal(now time.Time, renewalDays int) bool {
	return l.LinkAgeDays(now) > renewalDays
}

// LinkExpired reports whether the signing link is past the expiration window.
func (l *Lead) LinkExpired(now time.Time, expirationDays int) bool {
	return l.LinkAgeDays(now) > expirationDays
}

// VoiceAttempts counts recorded voice-call interactions. The attempt cap is
// enforced against this count, not a separate counter, so it stays correct
// across restarts.
func (l *Lead) VoiceAttempts() int {
	n := 0
	for _, it := range l.Interactions {
		if it.Kind == InteractionVoiceCall {
			n++
		}
	}
	return n
}

// TemplateVars exposes lead and proposal fields for message rendering.
func (l *Lead) TemplateVars() map[string]string {
	return map[string]string{
		"full_name":    l.FullName,
		"amount":       FormatBRL(l.Proposal.Amount),
		"installment":  FormatBRL(l.Proposal.Installment),
		"term_months":  fmt.Sprintf("%d", l.Proposal.TermMonths),
		"bank":         l.Proposal.Bank,
		"signing_link": l.Proposal.SigningLink,
	}
}

// FormatBRL renders integer cents as a Brazilian currency string,
// e.g. 1234567 -> "R$ 12.345,67".
func FormatBRL(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}

	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)

	out := fmt.Sprintf("R$ %s,%02d", strings.Join(groups, "."), frac)
	if neg {
		return "-" + out
	}
	return out
}

func engineFromKind(kind string) string {
	if idx := strings.Index(kind, "_"); idx > 0 {
		return strings.ToLower(kind[:idx])
	}
	return strings.ToLower(kind)
}
