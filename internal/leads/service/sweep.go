package service

import (
	"context"
	"sync/atomic"
	"time"

	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/internal/leads/domain"

	"golang.org/x/sync/errgroup"
)

// ExpireStale turns every non-terminal lead whose signing link passed the
// expiration window WHITE. The sweep is idempotent: leads already WHITE (or
// otherwise terminal) never appear in the candidate set, so re-running after
// a crash only picks up the remainder. Returns the number of leads expired.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	candidates, err := s.store.ListNonTerminal(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	expirationDays := s.cfg.GetProposalExpirationDays()

	var expired atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i := range candidates {
		lead := candidates[i]
		if !lead.LinkExpired(now, expirationDays) {
			continue
		}

		g.Go(func() error {
			old := lead.Status
			lead.ChangeStatus(domain.StatusWhite, "signing link expired", now)

			if err := s.store.Update(gctx, &lead); err != nil {
				// A concurrent write moved the lead; the next sweep
				// re-evaluates it from fresh state.
				s.log.Error("expiration update failed", "lead_id", lead.ID, "error", err)
				return nil
			}

			expired.Add(1)
			s.bus.Publish(gctx, events.LeadStatusChanged{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    lead.ID,
				OldStatus: old,
				NewStatus: domain.StatusWhite,
				Reason:    "signing link expired",
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(expired.Load()), err
	}

	s.log.Info("expiration sweep finished",
		"candidates", len(candidates), "expired", expired.Load())
	return int(expired.Load()), nil
}
