/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Requests carry decimals so client input enters the accounting path
  without float rounding. Responses are float64 rounded to cents.

VALIDATION:
  Validation is done in handlers and the ledger, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Persisted records
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/advisor"
	"github.com/warp/budget-engine/ledger"
	"github.com/warp/budget-engine/store/sqlite"
)

// =============================================================================
// USER & SETTINGS
// =============================================================================

// UserDTO represents the display-name record.
type UserDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// RegisterRequest is the request to register a display name.
type RegisterRequest struct {
	Username string `json:"username"`
}

// SettingsDTO represents the resolved budget settings.
type SettingsDTO struct {
	Amount          float64            `json:"amount"`
	Income          float64            `json:"income"`
	Period          string             `json:"period"`
	RolloverEnabled bool               `json:"rollover_enabled"`
	CategoryLimits  map[string]float64 `json:"category_limits"`
}

// UpdateSettingsRequest is a partial settings update. Absent fields are
// left unchanged; the period can never be set by clients.
type UpdateSettingsRequest struct {
	Amount          *decimal.Decimal                    `json:"amount"`
	Income          *decimal.Decimal                    `json:"income"`
	RolloverEnabled *bool                               `json:"rollover_enabled"`
	CategoryLimits  map[ledger.Category]decimal.Decimal `json:"category_limits"`
}

// =============================================================================
// EXPENSES & GOAL
// =============================================================================

// ExpenseDTO represents an expense in API responses.
type ExpenseDTO struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Period      string  `json:"period"`
	IsRecurring bool    `json:"is_recurring"`
	Frequency   string  `json:"frequency,omitempty"`
	Sentiment   string  `json:"sentiment,omitempty"`
	Note        string  `json:"note,omitempty"`
}

// AddExpenseRequest is the request to record an expense.
type AddExpenseRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	IsRecurring bool            `json:"is_recurring"`
	Frequency   string          `json:"frequency"`
	Sentiment   string          `json:"sentiment"`
	Note        string          `json:"note"`
}

// GoalDTO represents the savings goal.
type GoalDTO struct {
	Title        string  `json:"title"`
	TargetAmount float64 `json:"target_amount"`
	Deadline     string  `json:"deadline"`
	Progress     float64 `json:"progress"`
}

// SaveGoalRequest is the request to set the savings goal.
type SaveGoalRequest struct {
	Title        string          `json:"title"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	Deadline     string          `json:"deadline"` // YYYY-MM-DD
}

// =============================================================================
// OVERVIEW & ROLLOVER
// =============================================================================

// MetricsDTO represents the aggregate values of the current period.
type MetricsDTO struct {
	TotalSpent     float64            `json:"total_spent"`
	TotalAvailable float64            `json:"total_available"`
	Rollover       float64            `json:"rollover"`
	NetSurplus     float64            `json:"net_surplus"`
	Remaining      float64            `json:"remaining"`
	SavingsRate    float64            `json:"savings_rate"`
	CategoryTotals map[string]float64 `json:"category_totals"`
}

// TrendPointDTO is one month of the spending trend.
type TrendPointDTO struct {
	Period string  `json:"period"`
	Spent  float64 `json:"spent"`
	Budget float64 `json:"budget"`
}

// CategoryUsageDTO is spending against one category limit.
type CategoryUsageDTO struct {
	Category string  `json:"category"`
	Spent    float64 `json:"spent"`
	Limit    float64 `json:"limit"`
	Percent  float64 `json:"percent"`
	Status   string  `json:"status"`
}

// SentimentDTO is one point of the value map.
type SentimentDTO struct {
	ExpenseID   string  `json:"expense_id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Sentiment   string  `json:"sentiment"`
	Score       int     `json:"score"`
}

// OverviewDTO is the derived state of the current period.
type OverviewDTO struct {
	Settings         SettingsDTO        `json:"settings"`
	Period           string             `json:"period"`
	Metrics          MetricsDTO         `json:"metrics"`
	Expenses         []ExpenseDTO       `json:"expenses"`
	Trend            []TrendPointDTO    `json:"trend"`
	Recurring        []ExpenseDTO       `json:"recurring"`
	AnnualRecurring  float64            `json:"annual_recurring"`
	CategoryUsage    []CategoryUsageDTO `json:"category_usage"`
	LimitsAllocated  float64            `json:"limits_allocated"`
	LimitsOverBudget bool               `json:"limits_over_budget"`
	Sentiments       []SentimentDTO     `json:"sentiments"`
	Goal             *GoalDTO           `json:"goal"`
}

// RolloverDTO is the surplus carried into a period.
type RolloverDTO struct {
	Period          string  `json:"period"`
	PreviousPeriod  string  `json:"previous_period"`
	RolloverEnabled bool    `json:"rollover_enabled"`
	Rollover        float64 `json:"rollover"`
}

// =============================================================================
// ADVICE
// =============================================================================

// QuestDTO represents the cached savings quest.
type QuestDTO struct {
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	PotentialSavings float64 `json:"potential_savings"`
	Difficulty       string  `json:"difficulty"`
	Status           string  `json:"status"`
}

// ReportDTO is the last advisory report.
type ReportDTO struct {
	Fingerprint       string                     `json:"fingerprint"`
	GeneratedAt       string                     `json:"generated_at"`
	Skipped           bool                       `json:"skipped"`
	Insight           string                     `json:"insight"`
	SubscriptionAudit string                     `json:"subscription_audit,omitempty"`
	Forecast          string                     `json:"forecast,omitempty"`
	WealthScore       *advisor.WealthScore       `json:"wealth_score"`
	Anomalies         []advisor.SpendingAlert    `json:"anomalies"`
	FreedomHorizon    *advisor.FreedomProjection `json:"freedom_horizon"`
	ValueAudit        string                     `json:"value_audit,omitempty"`
	GoalStrategy      string                     `json:"goal_strategy,omitempty"`
	Quest             *QuestDTO                  `json:"quest"`
	Persona           *ledger.SpendingPersona    `json:"persona"`
}

// AdviceResponse wraps the last report. Stale is true when the ledger
// changed since the report was generated, or when there is no report.
type AdviceResponse struct {
	Report *ReportDTO `json:"report"`
	Stale  bool       `json:"stale"`
}

// CategoryOptimizationDTO is a suggested set of category limits.
type CategoryOptimizationDTO struct {
	SuggestedLimits map[string]float64 `json:"suggested_limits"`
	Reasoning       string             `json:"reasoning"`
}

// ChatRequest carries the whole conversation, oldest first. The last
// message must come from the user.
type ChatRequest struct {
	Messages []advisor.Turn `json:"messages"`
}

// ChatResponse is the advisor's reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// =============================================================================
// SCENARIOS & SCHEDULER
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// PeriodRunDTO is one recorded period check.
type PeriodRunDTO struct {
	ID             string `json:"id"`
	CheckedAt      string `json:"checked_at"`
	PreviousPeriod string `json:"previous_period,omitempty"`
	CurrentPeriod  string `json:"current_period"`
	Rolled         bool   `json:"rolled"`
	Error          string `json:"error,omitempty"`
}

// PeriodRunsResponse lists recorded period checks.
type PeriodRunsResponse struct {
	Runs      []PeriodRunDTO `json:"runs"`
	NextRunAt string         `json:"next_run_at,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func toSettingsDTO(s ledger.BudgetSettings) SettingsDTO {
	limits := make(map[string]float64, len(s.CategoryLimits))
	for c, v := range s.CategoryLimits {
		limits[string(c)] = money(v)
	}
	return SettingsDTO{
		Amount:          money(s.Amount),
		Income:          money(s.Income),
		Period:          s.Period.String(),
		RolloverEnabled: s.RolloverEnabled,
		CategoryLimits:  limits,
	}
}

func toExpenseDTO(e ledger.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:          e.ID,
		Description: e.Description,
		Amount:      money(e.Amount),
		Category:    string(e.Category),
		Date:        e.Date.UTC().Format(time.RFC3339),
		Period:      e.Period().String(),
		IsRecurring: e.Recurring,
		Frequency:   string(e.Frequency),
		Sentiment:   string(e.Sentiment),
		Note:        e.Note,
	}
}

func toExpenseDTOs(expenses []ledger.Expense) []ExpenseDTO {
	dtos := make([]ExpenseDTO, len(expenses))
	for i, e := range expenses {
		dtos[i] = toExpenseDTO(e)
	}
	return dtos
}

func toGoalDTO(g *ledger.SavingsGoal, progress decimal.Decimal) *GoalDTO {
	if g == nil {
		return nil
	}
	return &GoalDTO{
		Title:        g.Title,
		TargetAmount: money(g.TargetAmount),
		Deadline:     g.Deadline.Format("2006-01-02"),
		Progress:     money(progress),
	}
}

func toOverviewDTO(s ledger.Snapshot) OverviewDTO {
	totals := make(map[string]float64, len(s.Metrics.CategoryTotals))
	for c, v := range s.Metrics.CategoryTotals {
		totals[string(c)] = money(v)
	}

	trend := make([]TrendPointDTO, len(s.Trend))
	for i, p := range s.Trend {
		trend[i] = TrendPointDTO{Period: p.Period.String(), Spent: money(p.Spent), Budget: money(p.Budget)}
	}

	usage := make([]CategoryUsageDTO, len(s.CategoryUsage))
	for i, u := range s.CategoryUsage {
		usage[i] = CategoryUsageDTO{
			Category: string(u.Category),
			Spent:    money(u.Spent),
			Limit:    money(u.Limit),
			Percent:  money(u.Percent),
			Status:   string(u.Status),
		}
	}

	sentiments := make([]SentimentDTO, len(s.Sentiments))
	for i, p := range s.Sentiments {
		sentiments[i] = SentimentDTO{
			ExpenseID:   p.ExpenseID,
			Description: p.Description,
			Amount:      money(p.Amount),
			Sentiment:   string(p.Sentiment),
			Score:       p.Score,
		}
	}

	return OverviewDTO{
		Settings: toSettingsDTO(s.Settings),
		Period:   s.Period.String(),
		Metrics: MetricsDTO{
			TotalSpent:     money(s.Metrics.TotalSpent),
			TotalAvailable: money(s.Metrics.TotalAvailable),
			Rollover:       money(s.Metrics.Rollover),
			NetSurplus:     money(s.Metrics.NetSurplus),
			Remaining:      money(s.Metrics.Remaining),
			SavingsRate:    money(s.Metrics.SavingsRate),
			CategoryTotals: totals,
		},
		Expenses:         toExpenseDTOs(s.Expenses),
		Trend:            trend,
		Recurring:        toExpenseDTOs(s.Recurring),
		AnnualRecurring:  money(s.AnnualRecurring),
		CategoryUsage:    usage,
		LimitsAllocated:  money(s.LimitsAllocated),
		LimitsOverBudget: s.LimitsOverBudget,
		Sentiments:       sentiments,
		Goal:             toGoalDTO(s.Goal, s.GoalProgress),
	}
}

func toQuestDTO(q *ledger.SavingsQuest) *QuestDTO {
	if q == nil {
		return nil
	}
	return &QuestDTO{
		Title:            q.Title,
		Description:      q.Description,
		PotentialSavings: money(q.PotentialSavings),
		Difficulty:       q.Difficulty,
		Status:           string(q.Status),
	}
}

func toReportDTO(r *advisor.Report) *ReportDTO {
	if r == nil {
		return nil
	}
	return &ReportDTO{
		Fingerprint:       r.Fingerprint,
		GeneratedAt:       r.GeneratedAt.Format(time.RFC3339),
		Skipped:           r.Skipped,
		Insight:           r.Insight,
		SubscriptionAudit: r.SubscriptionAudit,
		Forecast:          r.Forecast,
		WealthScore:       r.WealthScore,
		Anomalies:         r.Anomalies,
		FreedomHorizon:    r.FreedomHorizon,
		ValueAudit:        r.ValueAudit,
		GoalStrategy:      r.GoalStrategy,
		Quest:             toQuestDTO(r.Quest),
		Persona:           r.Persona,
	}
}

func toPeriodRunDTO(run sqlite.PeriodRun) PeriodRunDTO {
	return PeriodRunDTO{
		ID:             run.ID,
		CheckedAt:      run.CheckedAt.Format(time.RFC3339),
		PreviousPeriod: run.PreviousPeriod,
		CurrentPeriod:  run.CurrentPeriod,
		Rolled:         run.Rolled,
		Error:          run.Error,
	}
}
