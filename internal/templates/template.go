// Package templates stores message templates and picks one per send using
// weighted random rotation, so repeated nudges to the same lead do not read
// identically.
package templates

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Template contexts. Each send site asks the selector for one context; the
// draw happens over the active templates of that context only.
const (
	ContextWhatsAppNudgeUnder3Days = "WHATSAPP_NUDGE_UNDER_3_DAYS"
	ContextWhatsAppNudgeOver3Days  = "WHATSAPP_NUDGE_OVER_3_DAYS"
	ContextVoiceWindow1            = "VOICE_WINDOW_1"
	ContextVoiceWindow2            = "VOICE_WINDOW_2"
	ContextVoiceWindow3            = "VOICE_WINDOW_3"
	ContextVoiceRedial             = "VOICE_REDIAL"
	ContextRCSInitial              = "RCS_INITIAL"
	ContextSMSInitial              = "SMS_INITIAL"
	ContextEmailInitial            = "EMAIL_INITIAL"
	ContextEmailPaidCongrats       = "EMAIL_PAID_CONGRATS"
)

// Template is one message variant. Weight biases the random draw; a weight of
// zero means the template never wins unless it is the only active one.
type Template struct {
	ID        uuid.UUID `json:"id"`
	Context   string    `json:"context"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	Subject   string    `json:"subject,omitempty"`
	Weight    int       `json:"weight"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Render substitutes {{var}} placeholders from vars. Unknown placeholders
// render as the empty string rather than leaking the raw marker.
func Render(body string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(body, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		return vars[key]
	})
}
