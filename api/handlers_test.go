/*
handlers_test.go - HTTP tests for the budget API

Tests run the full router over httptest with a SQLite :memory: store,
a fixed clock and a scripted advisor.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/budget-engine/advisor"
	"github.com/warp/budget-engine/ledger"
	"github.com/warp/budget-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type testEnv struct {
	handler *Handler
	router  http.Handler
	store   *sqlite.Store
	clock   *testClock
}

func setupTestEnv(t *testing.T, gen advisor.Generator) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &testClock{now: time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)}
	l := ledger.New(store, ledger.WithClock(clock))
	h := NewHandler(l, advisor.NewGateway(gen), nil)
	h.Runs = store
	return &testEnv{handler: h, router: NewRouter(h, nil), store: store, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// scriptedAdvisor answers by matching a phrase in the prompt.
func scriptedAdvisor(answers map[string]string) advisor.Generator {
	return advisor.GeneratorFunc(func(_ context.Context, req advisor.Request) (string, error) {
		for phrase, text := range answers {
			if strings.Contains(req.Prompt, phrase) {
				return text, nil
			}
		}
		return "", advisor.ErrOffline
	})
}

// =============================================================================
// USER
// =============================================================================

func TestUser_RegisterGetLogout(t *testing.T) {
	env := setupTestEnv(t, nil)

	// GIVEN no user
	rec := env.do(t, http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// WHEN registering
	rec = env.do(t, http.MethodPost, "/api/user", RegisterRequest{Username: "  sam  "})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[UserDTO](t, rec)
	assert.Equal(t, "sam", created.Username)
	assert.NotEmpty(t, created.ID)

	// THEN the user is returned
	rec = env.do(t, http.MethodGet, "/api/user", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[UserDTO](t, rec))

	// AND logout removes it
	rec = env.do(t, http.MethodDelete, "/api/user", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUser_RegisterRejectsBlankName(t *testing.T) {
	env := setupTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/user", RegisterRequest{Username: "   "})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "username")
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestSettings_DefaultsToCurrentPeriod(t *testing.T) {
	env := setupTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/settings", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[SettingsDTO](t, rec)
	assert.Equal(t, "2025-01", s.Period)
	assert.Zero(t, s.Amount)
	assert.False(t, s.RolloverEnabled)
}

func TestSettings_PartialUpdateKeepsPeriod(t *testing.T) {
	// GIVEN settings written in January
	env := setupTestEnv(t, nil)
	rec := env.do(t, http.MethodPut, "/api/settings", map[string]any{"amount": 500, "income": 3000})
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN only rollover is changed
	rec = env.do(t, http.MethodPut, "/api/settings", map[string]any{
		"rollover_enabled": true,
		"category_limits":  map[string]any{"Food": 200, "Health": 0},
	})

	// THEN other fields are untouched
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[SettingsDTO](t, rec)
	assert.Equal(t, 500.0, s.Amount)
	assert.Equal(t, 3000.0, s.Income)
	assert.True(t, s.RolloverEnabled)
	assert.Equal(t, "2025-01", s.Period)
	assert.Equal(t, map[string]float64{"Food": 200}, s.CategoryLimits, "zero limits mean no cap")
}

func TestSettings_RejectsNegativeAmount(t *testing.T) {
	env := setupTestEnv(t, nil)

	rec := env.do(t, http.MethodPut, "/api/settings", map[string]any{"amount": -1})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettings_RollsPeriodOnRead(t *testing.T) {
	// GIVEN settings in January
	env := setupTestEnv(t, nil)
	env.do(t, http.MethodPut, "/api/settings", map[string]any{"amount": 500})

	// WHEN the clock moves into February
	env.clock.Set(time.Date(2025, time.February, 1, 0, 5, 0, 0, time.UTC))
	rec := env.do(t, http.MethodGet, "/api/settings", nil)

	// THEN only the period changed
	s := decode[SettingsDTO](t, rec)
	assert.Equal(t, "2025-02", s.Period)
	assert.Equal(t, 500.0, s.Amount)
}

// =============================================================================
// EXPENSES
// =============================================================================

func TestExpenses_AddListDelete(t *testing.T) {
	env := setupTestEnv(t, nil)

	// WHEN adding an expense
	rec := env.do(t, http.MethodPost, "/api/expenses", map[string]any{
		"description": "Coffee beans",
		"amount":      "18.50",
		"category":    "Food",
		"sentiment":   "Joyful",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	added := decode[ExpenseDTO](t, rec)
	assert.Equal(t, 18.5, added.Amount)
	assert.Equal(t, "2025-01", added.Period)
	assert.Equal(t, "2025-01-15T10:00:00Z", added.Date)

	// THEN it is listed
	rec = env.do(t, http.MethodGet, "/api/expenses", nil)
	list := decode[[]ExpenseDTO](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, added.ID, list[0].ID)

	// AND deleting it twice succeeds
	rec = env.do(t, http.MethodDelete, "/api/expenses/"+added.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/expenses/"+added.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/expenses", nil)
	assert.Empty(t, decode[[]ExpenseDTO](t, rec))
}

func TestExpenses_Validation(t *testing.T) {
	env := setupTestEnv(t, nil)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"zero amount", map[string]any{"description": "x", "amount": 0}},
		{"blank description", map[string]any{"description": " ", "amount": 5}},
		{"recurring without frequency", map[string]any{"description": "Gym", "amount": 30, "is_recurring": true}},
		{"frequency without recurring", map[string]any{"description": "Gym", "amount": 30, "frequency": "Monthly"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/expenses", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := env.do(t, http.MethodGet, "/api/expenses", nil)
	assert.Empty(t, decode[[]ExpenseDTO](t, rec), "rejected expenses leave no trace")
}

func TestExpenses_FilterByPeriodAndQuery(t *testing.T) {
	// GIVEN expenses in December and January
	env := setupTestEnv(t, nil)
	env.clock.Set(time.Date(2024, time.December, 20, 9, 0, 0, 0, time.UTC))
	env.do(t, http.MethodPost, "/api/expenses", map[string]any{"description": "Gifts", "amount": 120, "category": "Shopping"})
	env.clock.Set(time.Date(2025, time.January, 3, 9, 0, 0, 0, time.UTC))
	env.do(t, http.MethodPost, "/api/expenses", map[string]any{"description": "Groceries", "amount": 60, "category": "Food"})
	env.do(t, http.MethodPost, "/api/expenses", map[string]any{"description": "Bus", "amount": 3, "category": "Transport"})

	// WHEN / THEN
	rec := env.do(t, http.MethodGet, "/api/expenses?period=2024-12", nil)
	dec := decode[[]ExpenseDTO](t, rec)
	require.Len(t, dec, 1)
	assert.Equal(t, "Gifts", dec[0].Description)

	rec = env.do(t, http.MethodGet, "/api/expenses?period=2025-01&q=FOOD", nil)
	jan := decode[[]ExpenseDTO](t, rec)
	require.Len(t, jan, 1)
	assert.Equal(t, "Groceries", jan[0].Description)

	rec = env.do(t, http.MethodGet, "/api/expenses?period=2025-13", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// OVERVIEW & ROLLOVER
// =============================================================================

func TestOverview_RolloverScenario(t *testing.T) {
	// GIVEN limit 500, income 3000, rollover on, 420 spent in December
	env := setupTestEnv(t, nil)
	env.clock.Set(time.Date(2024, time.December, 10, 12, 0, 0, 0, time.UTC))
	env.do(t, http.MethodPut, "/api/settings", map[string]any{"amount": 500, "income": 3000, "rollover_enabled": true})
	env.do(t, http.MethodPost, "/api/expenses", map[string]any{"description": "December", "amount": 420, "category": "Food"})

	// WHEN 300 is spent in January
	env.clock.Set(time.Date(2025, time.January, 5, 12, 0, 0, 0, time.UTC))
	env.do(t, http.MethodPost, "/api/expenses", map[string]any{"description": "January", "amount": 300, "category": "Food"})
	rec := env.do(t, http.MethodGet, "/api/overview", nil)

	// THEN
	require.Equal(t, http.StatusOK, rec.Code)
	ov := decode[OverviewDTO](t, rec)
	assert.Equal(t, "2025-01", ov.Period)
	assert.Equal(t, 80.0, ov.Metrics.Rollover)
	assert.Equal(t, 580.0, ov.Metrics.TotalAvailable)
	assert.Equal(t, 2700.0, ov.Metrics.NetSurplus)
	assert.Equal(t, 280.0, ov.Metrics.Remaining)
	assert.Equal(t, 90.0, ov.Metrics.SavingsRate)
	require.Len(t, ov.Trend, ledger.TrendMonths)
	assert.Equal(t, "2024-10", ov.Trend[0].Period)
	assert.Equal(t, 420.0, ov.Trend[2].Spent)
	assert.Equal(t, 300.0, ov.Trend[3].Spent)
	assert.Len(t, ov.Expenses, 1)

	// AND the rollover endpoint agrees
	rec = env.do(t, http.MethodGet, "/api/rollover", nil)
	ro := decode[RolloverDTO](t, rec)
	assert.Equal(t, "2024-12", ro.PreviousPeriod)
	assert.Equal(t, 80.0, ro.Rollover)

	rec = env.do(t, http.MethodGet, "/api/rollover?period=2024-12", nil)
	assert.Equal(t, 500.0, decode[RolloverDTO](t, rec).Rollover, "nothing spent in November")
}

func TestGoal_SaveGetDelete(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.do(t, http.MethodPut, "/api/settings", map[string]any{"amount": 1000, "income": 2000})
	env.do(t, http.MethodPost, "/api/expenses", map[string]any{"description": "Rent", "amount": 500, "category": "Utilities"})

	// Net savings 1500 of a 3000 target
	rec := env.do(t, http.MethodPut, "/api/goal", map[string]any{"title": "Trip", "target_amount": 3000, "deadline": "2025-08-01"})
	require.Equal(t, http.StatusOK, rec.Code)
	goal := decode[GoalDTO](t, rec)
	assert.Equal(t, 50.0, goal.Progress)

	rec = env.do(t, http.MethodGet, "/api/goal", nil)
	assert.Equal(t, "Trip", decode[GoalDTO](t, rec).Title)

	rec = env.do(t, http.MethodPut, "/api/goal", map[string]any{"title": "Trip", "target_amount": 3000, "deadline": "August"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/goal", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/goal", nil)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

// =============================================================================
// ADVICE
// =============================================================================

func TestAdvice_RefreshAndStaleness(t *testing.T) {
	// GIVEN an advisor with an insight and a quest
	env := setupTestEnv(t, scriptedAdvisor(map[string]string{
		"behavioral financial insight": "Nice restraint this month.",
		"savings challenge":            `{"title":"Pack lunch","description":"Five days","potential_savings":40,"difficulty":"Easy"}`,
	}))
	env.do(t, http.MethodPut, "/api/settings", map[string]any{"amount": 800, "income": 2500})

	rec := env.do(t, http.MethodGet, "/api/advice", nil)
	initial := decode[AdviceResponse](t, rec)
	assert.Nil(t, initial.Report)
	assert.True(t, initial.Stale)

	// WHEN refreshing
	rec = env.do(t, http.MethodPost, "/api/advice/refresh", nil)

	// THEN the report is fresh
	require.Equal(t, http.StatusOK, rec.Code)
	fresh := decode[AdviceResponse](t, rec)
	require.NotNil(t, fresh.Report)
	assert.False(t, fresh.Stale)
	assert.Equal(t, "Nice restraint this month.", fresh.Report.Insight)
	require.NotNil(t, fresh.Report.Quest)
	assert.Equal(t, "Available", fresh.Report.Quest.Status)
	assert.Nil(t, fresh.Report.WealthScore, "unscripted features fall back to nil")

	// AND becomes stale after a new expense
	env.do(t, http.MethodPost, "/api/expenses", map[string]any{"description": "Lunch", "amount": 12, "category": "Food"})
	rec = env.do(t, http.MethodGet, "/api/advice", nil)
	stale := decode[AdviceResponse](t, rec)
	require.NotNil(t, stale.Report)
	assert.True(t, stale.Stale)

	// AND the quest can be accepted
	rec = env.do(t, http.MethodPost, "/api/advice/quest/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Active", decode[QuestDTO](t, rec).Status)
}

func TestAdvice_SkippedForEmptyBudget(t *testing.T) {
	env := setupTestEnv(t, scriptedAdvisor(map[string]string{"behavioral financial insight": "hi"}))

	rec := env.do(t, http.MethodPost, "/api/advice/refresh", nil)

	resp := decode[AdviceResponse](t, rec)
	require.NotNil(t, resp.Report)
	assert.True(t, resp.Report.Skipped)
	assert.Empty(t, resp.Report.Insight)
}

func TestAdvice_AcceptWithoutQuest(t *testing.T) {
	env := setupTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/advice/quest/accept", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat(t *testing.T) {
	env := setupTestEnv(t, scriptedAdvisor(map[string]string{"latest message": "Try the 50/30/20 rule."}))

	rec := env.do(t, http.MethodPost, "/api/chat", ChatRequest{Messages: []advisor.Turn{
		{Role: advisor.RoleUser, Text: "How should I split my income?"},
	}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Try the 50/30/20 rule.", decode[ChatResponse](t, rec).Reply)

	rec = env.do(t, http.MethodPost, "/api/chat", ChatRequest{Messages: []advisor.Turn{
		{Role: advisor.RoleUser, Text: "Hi"},
		{Role: advisor.RoleModel, Text: "Hello"},
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "last message must be from the user")

	rec = env.do(t, http.MethodPost, "/api/chat", ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_OfflineFallback(t *testing.T) {
	env := setupTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/chat", ChatRequest{Messages: []advisor.Turn{{Role: advisor.RoleUser, Text: "?"}}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, advisor.FallbackChat, decode[ChatResponse](t, rec).Reply)
}

func TestSavingsTip_TopCategory(t *testing.T) {
	env := setupTestEnv(t, scriptedAdvisor(map[string]string{"local deals": `{"text":"Buy in bulk.","links":[]}`}))
	env.do(t, http.MethodPost, "/api/expenses", map[string]any{"description": "Groceries", "amount": 90, "category": "Food"})
	env.do(t, http.MethodPost, "/api/expenses", map[string]any{"description": "Bus", "amount": 10, "category": "Transport"})

	rec := env.do(t, http.MethodGet, "/api/advice/savings", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	tip := decode[advisor.SavingsTip](t, rec)
	assert.Equal(t, ledger.CategoryFood, tip.Category)
	assert.Equal(t, "Buy in bulk.", tip.Text)
}

func TestOptimizeCategories(t *testing.T) {
	env := setupTestEnv(t, scriptedAdvisor(map[string]string{
		"Suggest a monthly spending limit": `{"suggested_limits":{"Food":300,"Transport":100},"reasoning":"Food dominates."}`,
	}))

	rec := env.do(t, http.MethodPost, "/api/advice/categories", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	opt := decode[CategoryOptimizationDTO](t, rec)
	assert.Equal(t, map[string]float64{"Food": 300, "Transport": 100}, opt.SuggestedLimits)
}
