package scheduler

import (
	"context"
	"time"

	"leadfunnel_backend/internal/callcycle"
	"leadfunnel_backend/internal/events"
	leadstore "leadfunnel_backend/internal/leads/repository"
	leadsvc "leadfunnel_backend/internal/leads/service"
	"leadfunnel_backend/internal/whatsapp"
	"leadfunnel_backend/platform/logger"
)

// DailyResetJob zeroes the WhatsApp pool counters once per calendar day. The
// reset itself is idempotent (it only touches rows with a non-zero counter),
// so running it again after a restart on the same day is harmless.
type DailyResetJob struct {
	whatsapp *whatsapp.Service
	log      *logger.Logger
}

func NewDailyResetJob(wa *whatsapp.Service, log *logger.Logger) *DailyResetJob {
	return &DailyResetJob{whatsapp: wa, log: log}
}

func (j *DailyResetJob) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	lastDay := time.Now().UTC().Format("2006-01-02")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		today := time.Now().UTC().Format("2006-01-02")
		if today == lastDay {
			continue
		}
		lastDay = today

		count, err := j.whatsapp.ResetDailyCounters(ctx)
		if err != nil {
			j.log.Error("daily counter reset failed", "error", err)
			continue
		}
		j.log.Info("daily counters reset", "day", today, "connections", count)
	}
}

// ExpirationSweepJob expires stale signing links. It runs on an interval
// instead of a wall-clock schedule; each pass is idempotent, so timing
// precision does not matter.
type ExpirationSweepJob struct {
	leads    *leadsvc.Service
	interval time.Duration
	log      *logger.Logger
}

func NewExpirationSweepJob(leads *leadsvc.Service, log *logger.Logger) *ExpirationSweepJob {
	return &ExpirationSweepJob{leads: leads, interval: 6 * time.Hour, log: log}
}

func (j *ExpirationSweepJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// One pass at startup so a long downtime does not leave expired leads
	// waiting for the next tick.
	j.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		j.sweep(ctx)
	}
}

func (j *ExpirationSweepJob) sweep(ctx context.Context) {
	expired, err := j.leads.ExpireStale(ctx)
	if err != nil {
		j.log.Error("expiration sweep failed", "error", err)
		return
	}
	if expired > 0 {
		j.log.Info("expiration sweep expired leads", "count", expired)
	}
}

// CycleDriverJob keeps the voice cycle moving: it periodically walks the
// active funnel and queues the next regular attempt for every lead that is
// still eligible and under the attempt cap. Attempts and redials derive
// their state from the interaction log, so an extra enqueue for a lead whose
// cycle meanwhile stopped is a no-op.
type CycleDriverJob struct {
	leads    leadstore.Store
	client   *Client
	interval time.Duration
	log      *logger.Logger
}

func NewCycleDriverJob(leads leadstore.Store, client *Client, log *logger.Logger) *CycleDriverJob {
	return &CycleDriverJob{leads: leads, client: client, interval: 15 * time.Minute, log: log}
}

func (j *CycleDriverJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		active, err := j.leads.ListNonTerminal(ctx)
		if err != nil {
			j.log.Error("cycle driver listing failed", "error", err)
			continue
		}

		queued := 0
		for i := range active {
			lead := &active[i]
			if !lead.EligibleForCalls() {
				continue
			}

			progress := callcycle.FoldProgress(lead.Interactions, len(lead.DialablePhones()))
			if progress.Stopped || progress.Exhausted {
				continue
			}

			if err := j.client.EnqueueCallAttempt(ctx, lead.ID); err != nil {
				j.log.Error("enqueue call attempt failed", "lead_id", lead.ID, "error", err)
				continue
			}
			queued++
		}
		if queued > 0 {
			j.log.Info("cycle driver queued attempts", "count", queued)
		}
	}
}

// RegisterEventHandlers connects domain events to task enqueueing: a freshly
// imported lead gets its first call attempt right away.
func RegisterEventHandlers(bus events.Bus, client *Client, log *logger.Logger) {
	bus.Subscribe(events.LeadImported{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		imported, ok := e.(events.LeadImported)
		if !ok {
			return nil
		}
		if !imported.Created {
			return nil
		}
		if err := client.EnqueueCallAttempt(ctx, imported.LeadID); err != nil {
			log.Error("enqueue first call attempt failed", "lead_id", imported.LeadID, "error", err)
			return err
		}
		return nil
	}))
}
