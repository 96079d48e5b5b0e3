package templates

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"leadfunnel_backend/platform/apperr"
)

// ErrNoActiveTemplate is returned when a context has no active templates.
// Send sites treat this as a hard failure rather than inventing copy.
var ErrNoActiveTemplate = apperr.NotFound("no active template for context")

// Selector draws one active template per send using cumulative-weight random
// selection.
type Selector struct {
	store Store

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a selector over the given store.
func NewSelector(store Store) *Selector {
	return &Selector{
		store: store,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Pick draws one active template of the context, biased by weight. Templates
// with non-positive weight count as weight zero and only win when every
// active template has weight zero, in which case the draw is uniform.
func (s *Selector) Pick(ctx context.Context, templateContext string) (*Template, error) {
	active, err := s.store.ListActive(ctx, templateContext)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, ErrNoActiveTemplate
	}

	totalWeight := 0
	for _, t := range active {
		if t.Weight > 0 {
			totalWeight += t.Weight
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if totalWeight == 0 {
		return &active[s.rng.Intn(len(active))], nil
	}

	draw := s.rng.Intn(totalWeight)
	cumulative := 0
	for i := range active {
		if active[i].Weight <= 0 {
			continue
		}
		cumulative += active[i].Weight
		if draw < cumulative {
			return &active[i], nil
		}
	}

	// Unreachable when weights sum correctly; keep the last as a guard.
	return &active[len(active)-1], nil
}

// PickRendered draws a template and renders its body (and subject when set)
// with the given variables.
func (s *Selector) PickRendered(ctx context.Context, templateContext string, vars map[string]string) (*Template, string, error) {
	tpl, err := s.Pick(ctx, templateContext)
	if err != nil {
		return nil, "", err
	}
	return tpl, Render(tpl.Body, vars), nil
}
