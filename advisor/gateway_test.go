package advisor_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/budget-engine/advisor"
	"github.com/warp/budget-engine/ledger"
	"github.com/warp/budget-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// Phrases that only appear in one feature's prompt.
const (
	phraseInsight      = "behavioral financial insight"
	phraseForecast     = "Forecast whether"
	phraseSubscription = "Audit these subscriptions"
	phraseWealth       = "financial health from 0 to 100"
	phraseAnomalies    = "Detect unusual"
	phraseFreedom      = "financial independence"
	phraseValueAudit   = "Suggest one reallocation"
	phraseQuest        = "savings challenge"
	phrasePersona      = "spending personality"
	phraseCategories   = "Suggest a monthly spending limit"
	phraseGoalStrategy = "reach the savings goal on time"
	phraseMarket       = "local deals"
	phraseChat         = "latest message"
)

type answer struct {
	text string
	err  error
}

// scriptedGenerator answers by matching a phrase in the prompt.
type scriptedGenerator struct {
	mu       sync.Mutex
	answers  map[string]answer
	requests []advisor.Request
}

func newScripted() *scriptedGenerator {
	return &scriptedGenerator{answers: map[string]answer{}}
}

func (g *scriptedGenerator) on(phrase, text string) *scriptedGenerator {
	g.answers[phrase] = answer{text: text}
	return g
}

func (g *scriptedGenerator) fail(phrase string, err error) *scriptedGenerator {
	g.answers[phrase] = answer{err: err}
	return g
}

func (g *scriptedGenerator) Generate(_ context.Context, req advisor.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	for phrase, a := range g.answers {
		if strings.Contains(req.Prompt, phrase) {
			return a.text, a.err
		}
	}
	return "", errors.New("unscripted prompt")
}

func (g *scriptedGenerator) calls(phrase string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, r := range g.requests {
		if strings.Contains(r.Prompt, phrase) {
			n++
		}
	}
	return n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

// budgetSnapshot derives a snapshot of Jan 2025 with a few expenses.
func budgetSnapshot(t *testing.T) (ledger.Snapshot, *ledger.Ledger) {
	t.Helper()
	ctx := context.Background()
	l := ledger.New(store.NewMemory(), ledger.WithClock(ledger.ClockFunc(func() time.Time {
		return date(2025, time.January, 20)
	})))
	require.NoError(t, l.SaveSettings(ctx, ledger.BudgetSettings{
		Amount: dec("2000"),
		Income: dec("3000"),
		Period: ledger.MustParsePeriod("2025-01"),
	}))
	_, err := l.ImportExpenses(ctx, []ledger.Expense{
		{Description: "Groceries", Amount: dec("120"), Category: ledger.CategoryFood, Date: date(2025, time.January, 3)},
		{Description: "Concert", Amount: dec("80"), Category: ledger.CategoryEntertainment, Date: date(2025, time.January, 9), Sentiment: ledger.SentimentJoyful},
		{Description: "Streaming", Amount: dec("15"), Category: ledger.CategoryEntertainment, Date: date(2025, time.January, 1), Recurring: true, Frequency: ledger.FrequencyMonthly},
	})
	require.NoError(t, err)

	snap, err := ledger.NewOverview(l).Build(ctx)
	require.NoError(t, err)
	return snap, l
}

// =============================================================================
// TEXT FEATURES
// =============================================================================

func TestInsight_ReturnsTrimmedAnswer(t *testing.T) {
	// GIVEN
	snap, _ := budgetSnapshot(t)
	gen := newScripted().on(phraseInsight, "  You saved a third of your income.  \n")
	gw := advisor.NewGateway(gen)

	// WHEN
	got := gw.Insight(context.Background(), snap)

	// THEN
	assert.Equal(t, "You saved a third of your income.", got)
}

func TestInsight_Fallbacks(t *testing.T) {
	snap, _ := budgetSnapshot(t)

	t.Run("service error", func(t *testing.T) {
		gw := advisor.NewGateway(newScripted().fail(phraseInsight, errors.New("quota exceeded")))
		assert.Equal(t, advisor.FallbackInsight, gw.Insight(context.Background(), snap))
	})

	t.Run("empty answer", func(t *testing.T) {
		gw := advisor.NewGateway(newScripted().on(phraseInsight, "   "))
		assert.Equal(t, advisor.FallbackEmptyInsight, gw.Insight(context.Background(), snap))
	})

	t.Run("offline", func(t *testing.T) {
		gw := advisor.NewGateway(nil)
		assert.Equal(t, advisor.FallbackInsight, gw.Insight(context.Background(), snap))
	})
}

func TestInsight_PromptCarriesMetrics(t *testing.T) {
	// GIVEN
	snap, _ := budgetSnapshot(t)
	gen := newScripted().on(phraseInsight, "ok")
	gw := advisor.NewGateway(gen)

	// WHEN
	gw.Insight(context.Background(), snap)

	// THEN
	require.Len(t, gen.requests, 1)
	prompt := gen.requests[0].Prompt
	assert.Contains(t, prompt, "Monthly Income: $3000.00")
	assert.Contains(t, prompt, "Actual Spending: $215.00")
	assert.Contains(t, prompt, "Savings Rate: 92.8%")
	assert.NotEmpty(t, gen.requests[0].System)
	assert.False(t, gen.requests[0].JSON)
}

func TestSubscriptionAudit_SkippedWithoutRecurring(t *testing.T) {
	// GIVEN
	gen := newScripted().on(phraseSubscription, "Cancel the gym.")
	gw := advisor.NewGateway(gen)

	// WHEN
	got := gw.SubscriptionAudit(context.Background(), ledger.Snapshot{})

	// THEN
	assert.Empty(t, got)
	assert.Zero(t, gen.calls(phraseSubscription))
}

func TestGoalStrategy_SkippedWithoutGoal(t *testing.T) {
	snap, _ := budgetSnapshot(t)
	gen := newScripted().on(phraseGoalStrategy, "Save more.")
	gw := advisor.NewGateway(gen)

	assert.Empty(t, gw.GoalStrategy(context.Background(), snap))
	assert.Zero(t, gen.calls(phraseGoalStrategy))
}

func TestGateway_TimeoutBoundsRequests(t *testing.T) {
	// GIVEN a generator that blocks until its context ends
	snap, _ := budgetSnapshot(t)
	blocking := advisor.GeneratorFunc(func(ctx context.Context, _ advisor.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	gw := advisor.NewGateway(blocking, advisor.WithTimeout(20*time.Millisecond))

	// WHEN
	start := time.Now()
	got := gw.Insight(context.Background(), snap)

	// THEN
	assert.Equal(t, advisor.FallbackInsight, got)
	assert.Less(t, time.Since(start), 2*time.Second)
}

// =============================================================================
// STRUCTURED FEATURES
// =============================================================================

func TestWealthScore_DecodesAndClamps(t *testing.T) {
	snap, _ := budgetSnapshot(t)

	tests := []struct {
		name   string
		answer string
		want   int
	}{
		{"plain json", `{"score": 72, "label": "Healthy", "color": "#22c55e", "advice": "Keep going"}`, 72},
		{"code fence", "```json\n{\"score\": 55, \"label\": \"Fair\"}\n```", 55},
		{"above range", `{"score": 140, "label": "Wow"}`, 100},
		{"below range", `{"score": -3, "label": "Oops"}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newScripted().on(phraseWealth, tt.answer)
			gw := advisor.NewGateway(gen)

			got := gw.WealthScore(context.Background(), snap)

			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Score)
			assert.True(t, gen.requests[0].JSON)
		})
	}
}

func TestWealthScore_MalformedIsNil(t *testing.T) {
	snap, _ := budgetSnapshot(t)
	gw := advisor.NewGateway(newScripted().on(phraseWealth, "Your score is great!"))

	assert.Nil(t, gw.WealthScore(context.Background(), snap))
}

func TestAnomalies_NeverNil(t *testing.T) {
	snap, _ := budgetSnapshot(t)

	gw := advisor.NewGateway(newScripted().fail(phraseAnomalies, errors.New("boom")))
	got := gw.Anomalies(context.Background(), snap)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	gw = advisor.NewGateway(newScripted().on(phraseAnomalies, `[{"title":"Spike","message":"Entertainment doubled","severity":"medium"}]`))
	got = gw.Anomalies(context.Background(), snap)
	require.Len(t, got, 1)
	assert.Equal(t, "Spike", got[0].Title)
}

func TestFreedomHorizon_ClampsConfidence(t *testing.T) {
	snap, _ := budgetSnapshot(t)
	gw := advisor.NewGateway(newScripted().on(phraseFreedom,
		`{"freedom_date":"2041","yearly_growth":7.5,"milestones":[{"label":"Emergency fund","eta_months":4,"confidence":1.7,"action_item":"Automate savings"}]}`))

	got := gw.FreedomHorizon(context.Background(), snap)

	require.NotNil(t, got)
	assert.Equal(t, "2041", got.FreedomDate)
	require.Len(t, got.Milestones, 1)
	assert.Equal(t, 4, got.Milestones[0].EtaMonths)
	assert.Equal(t, 1.0, got.Milestones[0].Confidence)
}

func TestQuest_AlwaysAvailable(t *testing.T) {
	snap, _ := budgetSnapshot(t)
	gw := advisor.NewGateway(newScripted().on(phraseQuest,
		`{"title":"No-spend weekend","description":"Skip takeout","potential_savings":45.5,"difficulty":"Easy","status":"Active"}`))

	got := gw.Quest(context.Background(), snap)

	require.NotNil(t, got)
	assert.Equal(t, ledger.QuestAvailable, got.Status)
	assert.True(t, dec("45.5").Equal(got.PotentialSavings))
}

func TestCategoryOptimization_DropsUnknownAndNegative(t *testing.T) {
	snap, _ := budgetSnapshot(t)
	gw := advisor.NewGateway(newScripted().on(phraseCategories,
		`{"suggested_limits":{"Food":400,"Entertainment":-10,"Crypto":300},"reasoning":"Food first"}`))

	got := gw.CategoryOptimization(context.Background(), snap)

	require.NotNil(t, got)
	assert.Len(t, got.SuggestedLimits, 1)
	assert.True(t, dec("400").Equal(got.SuggestedLimits[ledger.CategoryFood]))
	assert.Equal(t, "Food first", got.Reasoning)
}

func TestMarketSavings_TargetsTopCategory(t *testing.T) {
	// GIVEN Food (120) outspends Entertainment (95)
	snap, _ := budgetSnapshot(t)
	gen := newScripted().on(phraseMarket, `{"text":"Try a discount grocer.","links":[{"title":"Deals","uri":"https://example.com"}]}`)
	gw := advisor.NewGateway(gen)

	// WHEN
	got := gw.MarketSavings(context.Background(), snap)

	// THEN
	require.NotNil(t, got)
	assert.Equal(t, ledger.CategoryFood, got.Category)
	assert.Contains(t, gen.requests[0].Prompt, `"Food"`)
	require.Len(t, got.Links, 1)
}

func TestMarketSavings_NilWithoutSpending(t *testing.T) {
	gen := newScripted().on(phraseMarket, `{"text":"x"}`)
	gw := advisor.NewGateway(gen)

	assert.Nil(t, gw.MarketSavings(context.Background(), ledger.Snapshot{}))
	assert.Zero(t, gen.calls(phraseMarket))
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat_SendsHistoryAndLastQuestion(t *testing.T) {
	// GIVEN
	snap, _ := budgetSnapshot(t)
	gen := newScripted().on(phraseChat, "Yes, you can afford it.")
	gw := advisor.NewGateway(gen)
	history := []advisor.Turn{
		{Role: advisor.RoleUser, Text: "Hi"},
		{Role: advisor.RoleModel, Text: "Hello! How can I help?"},
		{Role: advisor.RoleUser, Text: "Can I afford a new bike?"},
	}

	// WHEN
	got := gw.Chat(context.Background(), snap, history)

	// THEN
	assert.Equal(t, "Yes, you can afford it.", got)
	require.Len(t, gen.requests, 1)
	assert.Len(t, gen.requests[0].History, 2)
	assert.Contains(t, gen.requests[0].Prompt, "Can I afford a new bike?")
}

func TestChat_QuotesEarlierPeriods(t *testing.T) {
	// GIVEN a December expense outside the current period
	ctx := context.Background()
	_, l := budgetSnapshot(t)
	_, err := l.ImportExpenses(ctx, []ledger.Expense{
		{Description: "Holiday flights", Amount: dec("640"), Category: ledger.CategoryTransport, Date: date(2024, time.December, 18)},
	})
	require.NoError(t, err)
	snap, err := ledger.NewOverview(l).Build(ctx)
	require.NoError(t, err)
	gen := newScripted().on(phraseChat, "It was a one-off.")

	// WHEN
	advisor.NewGateway(gen).Chat(ctx, snap, []advisor.Turn{{Role: advisor.RoleUser, Text: "Why was December expensive?"}})

	// THEN the prompt carries history, trend and recurring charges
	require.Len(t, gen.requests, 1)
	prompt := gen.requests[0].Prompt
	assert.Contains(t, prompt, "Holiday flights")
	assert.Contains(t, prompt, "2024-12: spent $640.00")
	assert.Contains(t, prompt, "Streaming")
}

func TestChat_Fallback(t *testing.T) {
	snap, _ := budgetSnapshot(t)
	gw := advisor.NewGateway(newScripted().fail(phraseChat, errors.New("down")))

	assert.Equal(t, advisor.FallbackChat, gw.Chat(context.Background(), snap, []advisor.Turn{{Role: advisor.RoleUser, Text: "?"}}))
	assert.Equal(t, advisor.FallbackChat, gw.Chat(context.Background(), snap, nil))
}
