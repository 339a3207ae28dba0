package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/budget-engine/ledger"
)

func TestOverview_DecemberSurplusRollsIntoJanuary(t *testing.T) {
	// GIVEN: limit 500, income 3000, rollover on; December spending 420
	l, clock, _ := newTestLedger(t, at(2023, time.December, 2))
	ctx := context.Background()
	require.NoError(t, l.SaveSettings(ctx, ledger.BudgetSettings{
		Amount:          dec("500"),
		Income:          dec("3000"),
		Period:          ledger.MustParsePeriod("2023-12"),
		RolloverEnabled: true,
	}))
	for _, amt := range []string{"250", "170"} {
		_, err := l.AddExpense(ctx, coffee(amt))
		require.NoError(t, err)
	}

	// WHEN: January arrives and 300 is spent
	clock.Set(at(2024, time.January, 10))
	_, err := l.AddExpense(ctx, ledger.NewExpense{Description: "Rent share", Amount: dec("300"), Category: ledger.CategoryUtilities})
	require.NoError(t, err)

	snap, err := ledger.NewOverview(l).Build(ctx)
	require.NoError(t, err)

	// THEN: 80 rolls over; available 580; surplus 2700
	assert.Equal(t, "2024-01", snap.Period.String())
	assertDecimal(t, "80", snap.Metrics.Rollover)
	assertDecimal(t, "580", snap.Metrics.TotalAvailable)
	assertDecimal(t, "300", snap.Metrics.TotalSpent)
	assertDecimal(t, "2700", snap.Metrics.NetSurplus)
	assert.Len(t, snap.Expenses, 1)
	require.Len(t, snap.Trend, ledger.TrendMonths)
	assert.Equal(t, "2023-10", snap.Trend[0].Period.String())
	assertDecimal(t, "420", snap.Trend[2].Spent)
	assertDecimal(t, "300", snap.Trend[3].Spent)
}

func TestOverview_GoalProgressUsesNetSurplus(t *testing.T) {
	l, _, _ := newTestLedger(t, at(2024, time.April, 3))
	ctx := context.Background()
	require.NoError(t, l.SaveSettings(ctx, ledger.BudgetSettings{
		Amount: dec("800"), Income: dec("1000"), Period: ledger.MustParsePeriod("2024-04"),
	}))
	require.NoError(t, l.SaveGoal(ctx, &ledger.SavingsGoal{Title: "Bike", TargetAmount: dec("1000")}))
	_, err := l.AddExpense(ctx, coffee("500"))
	require.NoError(t, err)

	snap, err := ledger.NewOverview(l).Build(ctx)
	require.NoError(t, err)

	require.NotNil(t, snap.Goal)
	assertDecimal(t, "50", snap.GoalProgress)
}

func TestOverview_RecurringAcrossPeriods(t *testing.T) {
	l, clock, _ := newTestLedger(t, at(2024, time.January, 3))
	ctx := context.Background()
	_, err := l.AddExpense(ctx, ledger.NewExpense{
		Description: "Streaming", Amount: dec("15"), Category: ledger.CategoryEntertainment,
		Recurring: true, Frequency: ledger.FrequencyMonthly,
	})
	require.NoError(t, err)
	clock.Set(at(2024, time.March, 3))

	snap, err := ledger.NewOverview(l).Build(ctx)
	require.NoError(t, err)

	assert.Empty(t, snap.Expenses)
	assert.Len(t, snap.Recurring, 1)
	assertDecimal(t, "180", snap.AnnualRecurring)
}

func TestOverview_RolloverFor(t *testing.T) {
	l, clock, _ := newTestLedger(t, at(2024, time.February, 3))
	ctx := context.Background()
	require.NoError(t, l.SaveSettings(ctx, ledger.BudgetSettings{
		Amount: dec("200"), Period: ledger.MustParsePeriod("2024-02"), RolloverEnabled: true,
	}))
	_, err := l.AddExpense(ctx, coffee("50"))
	require.NoError(t, err)
	clock.Set(at(2024, time.May, 3))

	got, settings, err := ledger.NewOverview(l).RolloverFor(ctx, ledger.MustParsePeriod("2024-03"))
	require.NoError(t, err)

	assertDecimal(t, "150", got)
	assert.Equal(t, "2024-05", settings.Period.String())
}

func TestOverview_HistorySpansPeriodsAndIsCapped(t *testing.T) {
	// GIVEN more expenses than the history holds, over two months
	l, clock, _ := newTestLedger(t, at(2024, time.May, 2))
	ctx := context.Background()
	for i := 0; i < ledger.HistoryLimit; i++ {
		_, err := l.AddExpense(ctx, coffee("3"))
		require.NoError(t, err)
	}
	clock.Set(at(2024, time.June, 1))
	last, err := l.AddExpense(ctx, coffee("4"))
	require.NoError(t, err)

	// WHEN
	snap, err := ledger.NewOverview(l).Build(ctx)
	require.NoError(t, err)

	// THEN the newest expenses of any period are kept, oldest first
	assert.Len(t, snap.Expenses, 1)
	require.Len(t, snap.History, ledger.HistoryLimit)
	assert.Equal(t, "2024-05", snap.History[0].Period().String())
	assert.Equal(t, last.ID, snap.History[len(snap.History)-1].ID)
}
