// Package whatsapp manages the pool of WhatsApp connections and the channel
// attribution of leads: retention on the known connection, failover when that
// connection is unhealthy, and least-loaded assignment for newcomers.
package whatsapp

import (
	"time"

	"leadfunnel_backend/internal/leads/domain"
)

// Connection is one number of the WhatsApp pool.
type Connection struct {
	ID                 string                  `json:"id"`
	Number             string                  `json:"number"`
	Status             domain.ConnectionStatus `json:"status"`
	ConversationsToday int                     `json:"conversations_today"`
	DailyLimit         int                     `json:"daily_limit"`
	LastMessageAt      time.Time               `json:"last_message_at"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// AcceptsNewConversation reports whether the connection may open one more
// conversation today.
func (c Connection) AcceptsNewConversation() bool {
	return c.Status == domain.ConnectionActive && c.ConversationsToday < c.DailyLimit
}

// Decision is the outcome of the allocation decision table.
type Decision struct {
	Retained bool
	Reassign bool
	// Failover is set on reassignment when the lead had a binding whose
	// connection is no longer usable.
	Failover bool
}

// Decide evaluates the allocation decision table for a lead.
//
// The lead keeps its existing binding when the bound connection is still
// ACTIVE (retention: the person already has a chat history with that number).
// A binding to a non-ACTIVE connection forces a failover reassignment. A lead
// without a binding gets a fresh assignment.
//
// Current holds the bound connection's present state, nil when the lead has no
// binding or the connection no longer exists.
func Decide(attribution *domain.Attribution, current *Connection) Decision {
	if attribution == nil {
		return Decision{Reassign: true}
	}
	if current == nil || current.Status != domain.ConnectionActive {
		return Decision{Reassign: true, Failover: true}
	}
	return Decision{Retained: true}
}
