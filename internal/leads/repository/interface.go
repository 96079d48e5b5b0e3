package repository

import (
	"context"

	"leadfunnel_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Store is the persistence contract the engagement services depend on.
// Implementations must make Update atomic per document: a write against a
// stale version fails with a conflict instead of losing a transition.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error)
	GetByCPF(ctx context.Context, cpf string) (*domain.Lead, error)
	Create(ctx context.Context, lead *domain.Lead) error
	// Update persists the whole document iff the stored version matches
	// lead.Version, then increments it. Returns ErrVersionConflict otherwise.
	Update(ctx context.Context, lead *domain.Lead) error
	List(ctx context.Context, filter ListFilter) ([]domain.Lead, int, error)
	// ListNonTerminal streams every lead still in the active funnel,
	// for the expiration sweep.
	ListNonTerminal(ctx context.Context) ([]domain.Lead, error)
	// ListBoundToConnection returns leads whose WhatsApp attribution points
	// at the given connection.
	ListBoundToConnection(ctx context.Context, connectionID string) ([]domain.Lead, error)
	StatusStats(ctx context.Context) ([]StatusStat, error)
	ListHumanRequired(ctx context.Context, limit int) ([]domain.Lead, error)
}

// ListFilter narrows and paginates lead listings.
type ListFilter struct {
	Status        *domain.Status
	Origin        string
	HumanRequired *bool
	Page          int
	Limit         int
}

// StatusStat is one row of the per-status dashboard aggregate.
type StatusStat struct {
	Status    domain.Status
	Total     int
	TotalCost int64
}
