package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OVERVIEW - Read-only derived state of the current period
// =============================================================================

// TrendMonths is the length of the trailing trend in a Snapshot.
const TrendMonths = 4

// HistoryLimit caps Snapshot.History.
const HistoryLimit = 50

// Snapshot is everything derived for the current period. It is the state
// handed to the advisory layer.
type Snapshot struct {
	Settings         BudgetSettings
	Period           Period
	Expenses         []Expense // current period only
	History          []Expense // latest HistoryLimit expenses of any period, oldest first
	Metrics          Metrics
	Trend            []TrendPoint
	Recurring        []Expense // across all periods
	AnnualRecurring  decimal.Decimal
	CategoryUsage    []CategoryUsage
	LimitsAllocated  decimal.Decimal
	LimitsOverBudget bool
	Sentiments       []SentimentPoint
	Goal             *SavingsGoal
	GoalProgress     decimal.Decimal
}

// Overview composes the resolver, rollover calculator and metrics.
type Overview struct {
	Ledger   *Ledger
	Resolver *PeriodResolver
	Rollover *RolloverCalculator
}

// NewOverview wires an Overview with the default rollover policy.
func NewOverview(l *Ledger) *Overview {
	return &Overview{
		Ledger:   l,
		Resolver: NewPeriodResolver(l),
		Rollover: NewRolloverCalculator(),
	}
}

// Build resolves the settings and derives the snapshot of the current period.
func (o *Overview) Build(ctx context.Context) (Snapshot, error) {
	settings, err := o.Resolver.Resolve(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("resolve settings: %w", err)
	}
	all, err := o.Ledger.ListExpenses(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list expenses: %w", err)
	}
	goal, err := o.Ledger.Goal(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load goal: %w", err)
	}

	idx := IndexByPeriod(all)
	current := settings.Period
	periodExpenses := idx.Expenses(current)
	rollover := o.Rollover.ComputeIndexed(current, settings, idx)
	metrics := ComputeMetrics(settings, periodExpenses, rollover)
	recurring := RecurringExpenses(all)

	snap := Snapshot{
		Settings:         settings,
		Period:           current,
		Expenses:         periodExpenses,
		History:          all[max(0, len(all)-HistoryLimit):],
		Metrics:          metrics,
		Trend:            TrailingTrend(idx, current, TrendMonths, settings.Amount),
		Recurring:        recurring,
		AnnualRecurring:  AnnualizedRecurringCost(recurring),
		CategoryUsage:    ComputeCategoryUsage(settings, metrics.CategoryTotals),
		LimitsAllocated:  AllocatedLimits(settings.CategoryLimits),
		LimitsOverBudget: LimitsExceedBudget(settings, settings.CategoryLimits),
		Sentiments:       SentimentPoints(periodExpenses),
		Goal:             goal,
		GoalProgress:     decimal.Zero,
	}
	if goal != nil {
		snap.GoalProgress = GoalProgress(*goal, metrics.NetSurplus)
	}
	return snap, nil
}

// RolloverFor computes the rollover into an arbitrary period using the
// resolved settings.
func (o *Overview) RolloverFor(ctx context.Context, target Period) (decimal.Decimal, BudgetSettings, error) {
	settings, err := o.Resolver.Resolve(ctx)
	if err != nil {
		return decimal.Zero, BudgetSettings{}, fmt.Errorf("resolve settings: %w", err)
	}
	all, err := o.Ledger.ListExpenses(ctx)
	if err != nil {
		return decimal.Zero, BudgetSettings{}, fmt.Errorf("list expenses: %w", err)
	}
	return o.Rollover.Compute(target, settings, all), settings, nil
}
