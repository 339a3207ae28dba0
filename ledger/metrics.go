/*
metrics.go - Derived values over settings and expenses

PURPOSE:
  Pure functions computing everything shown about a period: totals,
  available capacity including rollover, surplus, per-category totals,
  the trailing spending trend and annualized recurring cost.

DETERMINISM:
  Every function depends only on its arguments. The current period is
  always passed in; nothing here reads the clock.

INDEXING:
  PeriodIndex groups the expense log by period once, so a request that
  needs several periods (rollover, trend, current totals) scans the log
  a single time.

SEE ALSO:
  - rollover.go: Carry-in used by ComputeMetrics
  - overview.go: Composes these into a snapshot
*/
package ledger

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERIOD INDEX
// =============================================================================

// PeriodIndex maps each period to its expenses, in insertion order.
type PeriodIndex map[Period][]Expense

// IndexByPeriod groups expenses by period.
func IndexByPeriod(all []Expense) PeriodIndex {
	idx := make(PeriodIndex)
	for _, e := range all {
		p := e.Period()
		idx[p] = append(idx[p], e)
	}
	return idx
}

// Expenses returns the expenses of p. Never nil.
func (idx PeriodIndex) Expenses(p Period) []Expense {
	if es, ok := idx[p]; ok {
		return es
	}
	return []Expense{}
}

// Spent returns the summed amount of p.
func (idx PeriodIndex) Spent(p Period) decimal.Decimal {
	return SumAmounts(idx[p])
}

// ExpensesIn filters all down to the expenses of p.
func ExpensesIn(all []Expense, p Period) []Expense {
	out := []Expense{}
	for _, e := range all {
		if e.Period() == p {
			out = append(out, e)
		}
	}
	return out
}

// SumAmounts sums expense amounts.
func SumAmounts(expenses []Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// =============================================================================
// PERIOD METRICS
// =============================================================================

// Metrics are the aggregate values of one period.
type Metrics struct {
	TotalSpent     decimal.Decimal
	TotalAvailable decimal.Decimal
	Rollover       decimal.Decimal
	NetSurplus     decimal.Decimal
	Remaining      decimal.Decimal
	SavingsRate    decimal.Decimal // percent of income, zero when income is zero
	CategoryTotals map[Category]decimal.Decimal
}

// ComputeMetrics derives the metrics of a period from its expenses.
// Categories without expenses are absent from CategoryTotals.
func ComputeMetrics(settings BudgetSettings, periodExpenses []Expense, rollover decimal.Decimal) Metrics {
	m := Metrics{
		TotalSpent:     decimal.Zero,
		Rollover:       decimal.Zero,
		CategoryTotals: make(map[Category]decimal.Decimal),
	}
	for _, e := range periodExpenses {
		m.TotalSpent = m.TotalSpent.Add(e.Amount)
		m.CategoryTotals[e.Category] = m.CategoryTotals[e.Category].Add(e.Amount)
	}

	m.TotalAvailable = settings.Amount
	if settings.RolloverEnabled {
		m.Rollover = rollover
		m.TotalAvailable = m.TotalAvailable.Add(rollover)
	}
	m.NetSurplus = settings.Income.Sub(m.TotalSpent)
	m.Remaining = m.TotalAvailable.Sub(m.TotalSpent)
	m.SavingsRate = decimal.Zero
	if settings.Income.IsPositive() {
		m.SavingsRate = m.NetSurplus.Div(settings.Income).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return m
}

// =============================================================================
// TREND
// =============================================================================

// TrendPoint is the spending of one month in the trailing trend.
type TrendPoint struct {
	Period Period
	Spent  decimal.Decimal
	Budget decimal.Decimal
}

// TrailingTrend returns the n most recent months ending at current,
// oldest first. Months without expenses are zero.
func TrailingTrend(idx PeriodIndex, current Period, n int, limit decimal.Decimal) []TrendPoint {
	if n <= 0 {
		return []TrendPoint{}
	}
	points := make([]TrendPoint, 0, n)
	for i := n - 1; i >= 0; i-- {
		p := current.AddMonths(-i)
		points = append(points, TrendPoint{Period: p, Spent: idx.Spent(p), Budget: limit})
	}
	return points
}

// =============================================================================
// RECURRING COSTS
// =============================================================================

// RecurringExpenses returns the recurring subset, in input order.
func RecurringExpenses(expenses []Expense) []Expense {
	out := []Expense{}
	for _, e := range expenses {
		if e.Recurring {
			out = append(out, e)
		}
	}
	return out
}

// AnnualizedRecurringCost sums amount x {Weekly 52, Monthly 12, Yearly 1}
// over recurring expenses.
func AnnualizedRecurringCost(expenses []Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		if !e.Recurring {
			continue
		}
		total = total.Add(e.Amount.Mul(decimal.NewFromInt(e.Frequency.AnnualMultiplier())))
	}
	return total
}

// =============================================================================
// CATEGORY LIMITS
// =============================================================================

// UsageStatus grades spending against a category limit.
type UsageStatus string

const (
	UsageOK      UsageStatus = "ok"      // up to 60%
	UsageWarning UsageStatus = "warning" // up to 90%
	UsageOver    UsageStatus = "over"    // above 90%
)

// CategoryUsage is spending against one category limit.
type CategoryUsage struct {
	Category Category
	Spent    decimal.Decimal
	Limit    decimal.Decimal
	Percent  decimal.Decimal
	Status   UsageStatus
}

// ComputeCategoryUsage grades each category with a positive limit, in
// Categories order followed by unknown labels sorted by name.
func ComputeCategoryUsage(settings BudgetSettings, totals map[Category]decimal.Decimal) []CategoryUsage {
	out := []CategoryUsage{}
	for _, c := range limitedCategories(settings.CategoryLimits) {
		limit := settings.CategoryLimits[c]
		if !limit.IsPositive() {
			continue
		}
		spent := totals[c]
		pct := spent.Div(limit).Mul(decimal.NewFromInt(100)).Round(1)
		status := UsageOK
		switch {
		case pct.GreaterThan(decimal.NewFromInt(90)):
			status = UsageOver
		case pct.GreaterThan(decimal.NewFromInt(60)):
			status = UsageWarning
		}
		out = append(out, CategoryUsage{Category: c, Spent: spent, Limit: limit, Percent: pct, Status: status})
	}
	return out
}

// AllocatedLimits sums all category limits.
func AllocatedLimits(limits map[Category]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range limits {
		total = total.Add(v)
	}
	return total
}

// LimitsExceedBudget reports whether the category limits allocate more
// than the overall spending limit.
func LimitsExceedBudget(settings BudgetSettings, limits map[Category]decimal.Decimal) bool {
	return AllocatedLimits(limits).GreaterThan(settings.Amount)
}

func limitedCategories(limits map[Category]decimal.Decimal) []Category {
	var known, unknown []Category
	for _, c := range Categories {
		if _, ok := limits[c]; ok {
			known = append(known, c)
		}
	}
	for c := range limits {
		if !c.Known() {
			unknown = append(unknown, c)
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	return append(known, unknown...)
}

// =============================================================================
// PRESENTATION HELPERS
// =============================================================================

// FilterExpenses keeps expenses whose description or category contains
// query, case-insensitively. An empty query keeps everything.
func FilterExpenses(expenses []Expense, query string) []Expense {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return expenses
	}
	out := []Expense{}
	for _, e := range expenses {
		if strings.Contains(strings.ToLower(e.Description), q) ||
			strings.Contains(strings.ToLower(string(e.Category)), q) {
			out = append(out, e)
		}
	}
	return out
}

// SentimentPoint places an expense on the amount/feeling plane.
type SentimentPoint struct {
	ExpenseID   string
	Description string
	Amount      decimal.Decimal
	Sentiment   Sentiment
	Score       int
}

// SentimentPoints maps expenses onto SentimentPoints. Untagged expenses
// count as Neutral.
func SentimentPoints(expenses []Expense) []SentimentPoint {
	out := make([]SentimentPoint, 0, len(expenses))
	for _, e := range expenses {
		s := e.Sentiment
		if s == "" {
			s = SentimentNeutral
		}
		out = append(out, SentimentPoint{
			ExpenseID:   e.ID,
			Description: e.Description,
			Amount:      e.Amount,
			Sentiment:   s,
			Score:       s.Score(),
		})
	}
	return out
}

// GoalProgress returns savings as a percent of the goal target,
// clamped to [0, 100].
func GoalProgress(goal SavingsGoal, savings decimal.Decimal) decimal.Decimal {
	if !goal.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	pct := savings.Div(goal.TargetAmount).Mul(decimal.NewFromInt(100))
	hundred := decimal.NewFromInt(100)
	switch {
	case pct.IsNegative():
		return decimal.Zero
	case pct.GreaterThan(hundred):
		return hundred
	}
	return pct.Round(1)
}
