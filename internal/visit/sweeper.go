package visit

import (
	"context"
	"errors"
	"time"

	"gatehouse.io/internal/audit"
	"gatehouse.io/internal/auth"
)

// AutoCancelReason is the status_reason stamped on sweeper-cancelled visits.
const AutoCancelReason = "auto-cancelled: incomplete or unverified"

// AutoCancelRule is one organization's sweep deadline. A zero After disables
// the sweep for that organization.
type AutoCancelRule struct {
	OrganizationID string
	After          time.Duration
}

// Sweeper cancels visits stuck in INCOMPLETE_PROFILE or PENDING_VERIFICATION
// past each organization's configured deadline. It is started once from the
// main process and runs until its context is cancelled.
type Sweeper struct {
	svc      Service
	rules    func(ctx context.Context) ([]AutoCancelRule, error)
	interval time.Duration
	now      func() time.Time
}

// NewSweeper wires a sweeper over the visit service. rules is consulted every
// tick so config changes take effect without a restart.
func NewSweeper(svc Service, rules func(ctx context.Context) ([]AutoCancelRule, error), interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		svc:      svc,
		rules:    rules,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until ctx is done. Each tick is independent; a failing tick is
// logged and the next tick retries from scratch.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	rules, err := s.rules(ctx)
	if err != nil {
		audit.LogEvent(ctx, "visit.sweep_failed", map[string]any{"error": err.Error()})
		return
	}
	for _, r := range rules {
		if r.After <= 0 {
			continue
		}
		cutoff := s.now().Add(-r.After)
		overdue, err := s.svc.ListOverdue(ctx, r.OrganizationID, cutoff)
		if err != nil {
			audit.LogEvent(ctx, "visit.sweep_failed", map[string]any{
				"organization_id": r.OrganizationID,
				"error":           err.Error(),
			})
			continue
		}
		for _, v := range overdue {
			_, err := s.svc.Transition(ctx, auth.System, v.ID, EventCancel, AutoCancelReason)
			if err != nil {
				// Raced with a concurrent transition; the row is no longer
				// ours to cancel.
				if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) {
					continue
				}
				audit.LogEvent(ctx, "visit.sweep_failed", map[string]any{
					"visit_id": v.ID,
					"error":    err.Error(),
				})
				continue
			}
			audit.LogEvent(ctx, "visit.auto_cancelled", map[string]any{
				"visit_id":        v.ID,
				"organization_id": v.OrganizationID,
			})
		}
	}
}
