package ledger

import "context"

// =============================================================================
// PERIOD RESOLVER - Keeps the settings period on the current month
// =============================================================================

// PeriodResolver reconciles the stored settings period with the clock.
//
// Every settings read should go through Resolve. Within one calendar month
// repeated calls perform no writes; the persisted period changes at most
// once per month boundary crossed.
type PeriodResolver struct {
	ledger *Ledger
	clock  Clock
}

// NewPeriodResolver creates a resolver using the ledger's clock.
func NewPeriodResolver(l *Ledger) *PeriodResolver {
	return &PeriodResolver{ledger: l, clock: l.Clock()}
}

// Current returns the period of the clock's current moment (UTC).
func (r *PeriodResolver) Current() Period {
	return PeriodOf(r.clock.Now())
}

// Resolve returns the settings with their period set to the current month.
// Missing settings are created with zero-valued defaults. When the stored
// period is stale, only the period field is changed and persisted.
func (r *PeriodResolver) Resolve(ctx context.Context) (BudgetSettings, error) {
	now := r.Current()
	return r.ledger.UpdateSettings(ctx, func(s *BudgetSettings, exists bool) bool {
		if !exists {
			*s = DefaultSettings(now)
			return true
		}
		if s.Period == now {
			return false
		}
		s.Period = now
		return true
	})
}
