/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built budgets that populate the ledger with realistic data
	for testing and demos. Each scenario sets the budget settings, imports
	back-dated expenses and optionally a savings goal.

AVAILABLE SCENARIOS:

	fresh-start:        Income and limit set, nothing spent yet
	steady-saver:       Rollover on, last month under budget, savings goal
	overspender:        Category limits exceeded, last month over budget
	subscription-creep: Weekly, monthly and yearly recurring charges

HOW SCENARIOS WORK:
 1. Reset the ledger (clear all records)
 2. Save settings for the current period
 3. Import expenses dated relative to the current period
 4. Optionally save a savings goal

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "steady-saver"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add a seed function to 'scenarioSeeds'

NOTE:

	Scenarios reset the ledger. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and helpers
  - ledger/ledger.go: ImportExpenses, Reset
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-start",
		Name:        "Fresh Start",
		Description: "Income and spending limit set, no expenses recorded yet",
		Category:    "budget",
	},
	{
		ID:          "steady-saver",
		Name:        "Steady Saver",
		Description: "Rollover enabled with last month under budget and a savings goal",
		Category:    "rollover",
	},
	{
		ID:          "overspender",
		Name:        "Overspender",
		Description: "Category limits blown and last month over budget (no rollover)",
		Category:    "limits",
	},
	{
		ID:          "subscription-creep",
		Name:        "Subscription Creep",
		Description: "Weekly, monthly and yearly recurring charges adding up",
		Category:    "recurring",
	},
}

// scenarioSeed is the ledger content of a scenario.
type scenarioSeed struct {
	Settings ledger.BudgetSettings
	Expenses []ledger.Expense
	Goal     *ledger.SavingsGoal
}

// seedExpense is an expense placed on a day of a period.
type seedExpense struct {
	Day         int
	Description string
	Amount      string
	Category    ledger.Category
	Frequency   ledger.Frequency // recurring when set
	Sentiment   ledger.Sentiment
}

var scenarioSeeds = map[string]func(current ledger.Period, now time.Time) scenarioSeed{
	"fresh-start":        seedFreshStart,
	"steady-saver":       seedSteadySaver,
	"overspender":        seedOverspender,
	"subscription-creep": seedSubscriptionCreep,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the ledger and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	seed, ok := scenarioSeeds[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.loadScenario(r.Context(), seed); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears every ledger record.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Ledger.Reset(ctx); err != nil {
		return err
	}
	h.clearReport()
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

func (h *Handler) loadScenario(ctx context.Context, seed func(ledger.Period, time.Time) scenarioSeed) error {
	if err := h.reset(ctx); err != nil {
		return err
	}

	now := h.Ledger.Clock().Now().UTC()
	data := seed(ledger.PeriodOf(now), now)

	if err := h.Ledger.SaveSettings(ctx, data.Settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if len(data.Expenses) > 0 {
		if _, err := h.Ledger.ImportExpenses(ctx, data.Expenses); err != nil {
			return fmt.Errorf("import expenses: %w", err)
		}
	}
	if data.Goal != nil {
		if err := h.Ledger.SaveGoal(ctx, data.Goal); err != nil {
			return fmt.Errorf("save goal: %w", err)
		}
	}
	return nil
}

// =============================================================================
// SCENARIO SEEDS
// =============================================================================

func seedFreshStart(current ledger.Period, _ time.Time) scenarioSeed {
	return scenarioSeed{
		Settings: ledger.BudgetSettings{
			Amount: decimal.NewFromInt(2000),
			Income: decimal.NewFromInt(3500),
			Period: current,
		},
	}
}

func seedSteadySaver(current ledger.Period, now time.Time) scenarioSeed {
	previous := current.Previous()

	// Last month: 2100 of 2500 spent, so 400 rolls over.
	expenses := expensesIn(previous, now, []seedExpense{
		{Day: 1, Description: "Rent share", Amount: "1200", Category: ledger.CategoryUtilities, Sentiment: ledger.SentimentEssential},
		{Day: 4, Description: "Weekly groceries", Amount: "380", Category: ledger.CategoryFood, Sentiment: ledger.SentimentEssential},
		{Day: 9, Description: "Train pass", Amount: "95", Category: ledger.CategoryTransport},
		{Day: 15, Description: "Concert tickets", Amount: "140", Category: ledger.CategoryEntertainment, Sentiment: ledger.SentimentJoyful},
		{Day: 18, Description: "Pharmacy", Amount: "45", Category: ledger.CategoryHealth},
		{Day: 22, Description: "Running shoes", Amount: "240", Category: ledger.CategoryShopping, Sentiment: ledger.SentimentJoyful},
	})
	expenses = append(expenses, expensesIn(current, now, []seedExpense{
		{Day: 1, Description: "Rent share", Amount: "1200", Category: ledger.CategoryUtilities, Sentiment: ledger.SentimentEssential},
		{Day: 2, Description: "Streaming", Amount: "15.99", Category: ledger.CategoryEntertainment, Frequency: ledger.FrequencyMonthly},
		{Day: 3, Description: "Farmers market", Amount: "62.40", Category: ledger.CategoryFood, Sentiment: ledger.SentimentJoyful},
		{Day: 5, Description: "Train pass", Amount: "95", Category: ledger.CategoryTransport},
	})...)

	return scenarioSeed{
		Settings: ledger.BudgetSettings{
			Amount:          decimal.NewFromInt(2500),
			Income:          decimal.NewFromInt(4200),
			Period:          current,
			RolloverEnabled: true,
			CategoryLimits: map[ledger.Category]decimal.Decimal{
				ledger.CategoryFood:          decimal.NewFromInt(500),
				ledger.CategoryEntertainment: decimal.NewFromInt(200),
			},
		},
		Expenses: expenses,
		Goal: &ledger.SavingsGoal{
			Title:        "Emergency fund",
			TargetAmount: decimal.NewFromInt(6000),
			Deadline:     current.AddMonths(6).Start(),
		},
	}
}

func seedOverspender(current ledger.Period, now time.Time) scenarioSeed {
	previous := current.Previous()

	expenses := expensesIn(previous, now, []seedExpense{
		{Day: 2, Description: "Rent", Amount: "950", Category: ledger.CategoryUtilities, Sentiment: ledger.SentimentEssential},
		{Day: 6, Description: "Takeout", Amount: "310", Category: ledger.CategoryFood, Sentiment: ledger.SentimentRegret},
		{Day: 12, Description: "Flash sale haul", Amount: "420", Category: ledger.CategoryShopping, Sentiment: ledger.SentimentRegret},
	})
	expenses = append(expenses, expensesIn(current, now, []seedExpense{
		{Day: 1, Description: "Rent", Amount: "950", Category: ledger.CategoryUtilities, Sentiment: ledger.SentimentEssential},
		{Day: 2, Description: "Late-night delivery", Amount: "86.50", Category: ledger.CategoryFood, Sentiment: ledger.SentimentRegret},
		{Day: 3, Description: "Restaurant", Amount: "164", Category: ledger.CategoryFood, Sentiment: ledger.SentimentNeutral},
		{Day: 4, Description: "Gadget impulse buy", Amount: "229", Category: ledger.CategoryShopping, Sentiment: ledger.SentimentRegret},
		{Day: 5, Description: "Ride share", Amount: "48", Category: ledger.CategoryTransport},
	})...)

	return scenarioSeed{
		Settings: ledger.BudgetSettings{
			Amount:          decimal.NewFromInt(1500),
			Income:          decimal.NewFromInt(2800),
			Period:          current,
			RolloverEnabled: true,
			CategoryLimits: map[ledger.Category]decimal.Decimal{
				ledger.CategoryFood:      decimal.NewFromInt(250),
				ledger.CategoryShopping:  decimal.NewFromInt(200),
				ledger.CategoryUtilities: decimal.NewFromInt(1000),
				ledger.CategoryTransport: decimal.NewFromInt(150),
			},
		},
		Expenses: expenses,
	}
}

func seedSubscriptionCreep(current ledger.Period, now time.Time) scenarioSeed {
	return scenarioSeed{
		Settings: ledger.BudgetSettings{
			Amount: decimal.NewFromInt(1800),
			Income: decimal.NewFromInt(3200),
			Period: current,
		},
		Expenses: expensesIn(current, now, []seedExpense{
			{Day: 1, Description: "Gym membership", Amount: "39", Category: ledger.CategoryHealth, Frequency: ledger.FrequencyMonthly, Sentiment: ledger.SentimentRegret},
			{Day: 1, Description: "Music streaming", Amount: "10.99", Category: ledger.CategoryEntertainment, Frequency: ledger.FrequencyMonthly, Sentiment: ledger.SentimentJoyful},
			{Day: 2, Description: "Video streaming", Amount: "17.99", Category: ledger.CategoryEntertainment, Frequency: ledger.FrequencyMonthly},
			{Day: 2, Description: "Meal kit", Amount: "64", Category: ledger.CategoryFood, Frequency: ledger.FrequencyWeekly, Sentiment: ledger.SentimentNeutral},
			{Day: 3, Description: "Cloud storage", Amount: "99", Category: ledger.CategoryUtilities, Frequency: ledger.FrequencyYearly},
			{Day: 3, Description: "News subscription", Amount: "12", Category: ledger.CategoryOther, Frequency: ledger.FrequencyMonthly, Sentiment: ledger.SentimentRegret},
		}),
	}
}

// expensesIn places seeds on days of p. Days past now are clamped to now
// so the current period never holds future expenses.
func expensesIn(p ledger.Period, now time.Time, seeds []seedExpense) []ledger.Expense {
	out := make([]ledger.Expense, 0, len(seeds))
	for _, s := range seeds {
		date := p.Start().AddDate(0, 0, s.Day-1).Add(12 * time.Hour)
		if date.After(now) {
			date = now
		}
		out = append(out, ledger.Expense{
			Description: s.Description,
			Amount:      decimal.RequireFromString(s.Amount),
			Category:    s.Category,
			Date:        date,
			Recurring:   s.Frequency != "",
			Frequency:   s.Frequency,
			Sentiment:   s.Sentiment,
		})
	}
	return out
}
