// Package callcycle runs the outbound voice-AI retry cycle: up to six
// attempts per lead, rotating over the dialable numbers, with short redials
// after near-miss outcomes. Cycle progress is never stored as a counter; it
// is folded from the lead's interaction log on every attempt, so a crashed
// or duplicated task can never double-count.
package callcycle

import (
	"leadfunnel_backend/internal/leads/domain"
)

// MaxAttempts caps the voice attempts per lead across the whole cycle.
const MaxAttempts = 6

// Progress is the derived state of a lead's call cycle.
type Progress struct {
	// Attempts is the number of voice calls already made.
	Attempts int
	// PhoneIndex selects the next number out of the dialable list.
	PhoneIndex int
	// Window is the messaging window of the next attempt, 0-based over three
	// windows. It advances once per full rotation over the dialable numbers.
	Window int
	// Exhausted is set once the attempt cap is reached.
	Exhausted bool
	// Stopped is set when a previous outcome ended the cycle early.
	Stopped bool
	// StopOutcome carries the outcome that stopped the cycle.
	StopOutcome domain.CallOutcome
	// LastNumber is the number dialed on the most recent attempt. Redials
	// retry it instead of advancing the rotation.
	LastNumber string
}

// FoldProgress derives cycle progress from the interaction log and the
// current dialable phone count. dialable must be the length of the list the
// caller will index with PhoneIndex.
func FoldProgress(interactions []domain.Interaction, dialable int) Progress {
	var p Progress

	for _, it := range interactions {
		if it.Kind != domain.InteractionVoiceCall {
			continue
		}
		p.Attempts++

		if number, ok := it.Payload["number"].(string); ok {
			p.LastNumber = number
		}

		outcome, _ := it.Payload["outcome"].(string)
		if domain.CallOutcome(outcome).StopsCycle() {
			p.Stopped = true
			p.StopOutcome = domain.CallOutcome(outcome)
		}
	}

	if p.Attempts >= MaxAttempts {
		p.Exhausted = true
	}
	if dialable > 0 {
		p.PhoneIndex = p.Attempts % dialable
		p.Window = (p.Attempts / dialable) % 3
	}

	return p
}

// RedialDelayMinutes maps the redial ordinal within an attempt to its delay.
// First redial after 5 minutes, then 10, then 20; further near-misses wait
// for the next regular attempt instead of redialing again.
func RedialDelayMinutes(redialCount int) (int, bool) {
	switch redialCount {
	case 0:
		return 5, true
	case 1:
		return 10, true
	case 2:
		return 20, true
	default:
		return 0, false
	}
}
