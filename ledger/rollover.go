package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// ROLLOVER - Unspent surplus carried into the next period
// =============================================================================

// RolloverPolicy returns the surplus left over from the previous period,
// before clamping. It is the single place where the limit applied to a
// past period is chosen.
type RolloverPolicy func(settings BudgetSettings, previous Period, previousSpent decimal.Decimal) decimal.Decimal

// CurrentLimitPolicy applies the current spending limit to the previous
// period's spending. No per-period limit history is kept, so a limit edit
// changes the rollover computed for earlier months.
func CurrentLimitPolicy(settings BudgetSettings, _ Period, previousSpent decimal.Decimal) decimal.Decimal {
	return settings.Amount.Sub(previousSpent)
}

// RolloverCalculator computes the carry-in for a period.
type RolloverCalculator struct {
	Policy RolloverPolicy
}

// NewRolloverCalculator returns a calculator using CurrentLimitPolicy.
func NewRolloverCalculator() *RolloverCalculator {
	return &RolloverCalculator{Policy: CurrentLimitPolicy}
}

// Compute returns the rollover into target. The result is zero when
// rollover is disabled and never negative.
func (c *RolloverCalculator) Compute(target Period, settings BudgetSettings, all []Expense) decimal.Decimal {
	if !settings.RolloverEnabled {
		return decimal.Zero
	}
	previous := target.Previous()
	spent := decimal.Zero
	for _, e := range all {
		if e.Period() == previous {
			spent = spent.Add(e.Amount)
		}
	}
	return c.apply(settings, previous, spent)
}

// ComputeIndexed is Compute over a prebuilt period index.
func (c *RolloverCalculator) ComputeIndexed(target Period, settings BudgetSettings, idx PeriodIndex) decimal.Decimal {
	if !settings.RolloverEnabled {
		return decimal.Zero
	}
	previous := target.Previous()
	return c.apply(settings, previous, idx.Spent(previous))
}

func (c *RolloverCalculator) apply(settings BudgetSettings, previous Period, spent decimal.Decimal) decimal.Decimal {
	policy := c.Policy
	if policy == nil {
		policy = CurrentLimitPolicy
	}
	surplus := policy(settings, previous, spent)
	if surplus.IsNegative() {
		return decimal.Zero
	}
	return surplus
}
