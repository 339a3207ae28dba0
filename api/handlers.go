/*
handlers.go - HTTP API handlers for the budget ledger

PURPOSE:
  Exposes the ledger, its derived metrics and the advisor via REST API.
  Handles HTTP request/response and JSON serialization, and delegates to
  the ledger and advisor packages.

ENDPOINTS:
  User:
    GET    /api/user                 Display-name record
    POST   /api/user                 Register
    DELETE /api/user                 Logout

  Budget:
    GET    /api/settings             Resolved settings (rolls the period)
    PUT    /api/settings             Partial update
    GET    /api/expenses             ?period=YYYY-MM&q=search
    POST   /api/expenses             Record expense
    DELETE /api/expenses/{id}        Delete expense
    GET    /api/goal                 Savings goal
    PUT    /api/goal                 Set savings goal
    DELETE /api/goal                 Clear savings goal
    GET    /api/overview             Derived snapshot of the current period
    GET    /api/rollover             ?period=YYYY-MM

  Advice:
    GET    /api/advice               Last report + stale flag
    POST   /api/advice/refresh       Run all advisory requests
    POST   /api/advice/quest/accept  Accept the cached quest
    POST   /api/advice/categories    Suggested category limits
    GET    /api/advice/savings       Savings tip for the top category
    POST   /api/chat                 Conversation with the advisor

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call the ledger (and advisor)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Storage errors
  Advisor failures never surface as errors; fallbacks are returned.

SECURITY NOTE:
  No authentication. The user record is a display name only.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - scheduler.go: Background period rollover
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/advisor"
	"github.com/warp/budget-engine/ledger"
	"github.com/warp/budget-engine/store/sqlite"
)

// RunLog persists period checks. *sqlite.Store satisfies it.
type RunLog interface {
	SavePeriodRun(ctx context.Context, run sqlite.PeriodRun) error
	ListPeriodRuns(ctx context.Context, limit int) ([]sqlite.PeriodRun, error)
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger    *ledger.Ledger
	Overview  *ledger.Overview
	Advisor   *advisor.Gateway
	Runs      RunLog           // optional
	Scheduler *PeriodScheduler // optional

	logger *slog.Logger

	mu     sync.Mutex
	report *advisor.Report

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler over the ledger and advisor.
func NewHandler(l *ledger.Ledger, gw *advisor.Gateway, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if gw == nil {
		gw = advisor.NewGateway(nil)
	}
	return &Handler{
		Ledger:   l,
		Overview: ledger.NewOverview(l),
		Advisor:  gw,
		logger:   logger,
	}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// GetUser returns the display-name record.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Ledger.User(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load user", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "No user registered", ledger.ErrUserNotFound)
		return
	}
	writeJSON(w, http.StatusOK, UserDTO{ID: u.ID, Username: u.Username})
}

// RegisterUser replaces the display-name record.
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	u, err := h.Ledger.Register(r.Context(), req.Username)
	if err != nil {
		h.writeLedgerError(w, "Failed to register user", err)
		return
	}
	writeJSON(w, http.StatusCreated, UserDTO{ID: u.ID, Username: u.Username})
}

// LogoutUser removes the display-name record.
func (h *Handler) LogoutUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.Logout(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to log out", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns the settings, rolling the period forward if needed.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Overview.Resolver.Resolve(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(s))
}

// UpdateSettings applies a partial update. The period is never changed
// by this endpoint.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := validateSettingsRequest(req); err != nil {
		h.writeLedgerError(w, "Invalid settings", err)
		return
	}

	ctx := r.Context()
	if _, err := h.Overview.Resolver.Resolve(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	s, err := h.Ledger.UpdateSettings(ctx, func(s *ledger.BudgetSettings, _ bool) bool {
		if req.Amount != nil {
			s.Amount = *req.Amount
		}
		if req.Income != nil {
			s.Income = *req.Income
		}
		if req.RolloverEnabled != nil {
			s.RolloverEnabled = *req.RolloverEnabled
		}
		if req.CategoryLimits != nil {
			limits := make(map[ledger.Category]decimal.Decimal, len(req.CategoryLimits))
			for c, v := range req.CategoryLimits {
				if v.IsPositive() {
					limits[c] = v
				}
			}
			s.CategoryLimits = limits
		}
		return true
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(s))
}

func validateSettingsRequest(req UpdateSettingsRequest) error {
	if req.Amount != nil && req.Amount.IsNegative() {
		return &ledger.ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	if req.Income != nil && req.Income.IsNegative() {
		return &ledger.ValidationError{Field: "income", Reason: "must not be negative"}
	}
	for c, v := range req.CategoryLimits {
		if v.IsNegative() {
			return &ledger.ValidationError{Field: "category_limits", Reason: "limit for " + string(c) + " must not be negative"}
		}
	}
	return nil
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// ListExpenses returns expenses, optionally restricted to one period and
// filtered by a search query.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.Ledger.ListExpenses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list expenses", err)
		return
	}

	if raw := r.URL.Query().Get("period"); raw != "" {
		p, err := ledger.ParsePeriod(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period", err)
			return
		}
		expenses = ledger.ExpensesIn(expenses, p)
	}
	expenses = ledger.FilterExpenses(expenses, r.URL.Query().Get("q"))

	writeJSON(w, http.StatusOK, toExpenseDTOs(expenses))
}

// AddExpense records a new expense dated now.
func (h *Handler) AddExpense(w http.ResponseWriter, r *http.Request) {
	var req AddExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	e, err := h.Ledger.AddExpense(r.Context(), ledger.NewExpense{
		Description: req.Description,
		Amount:      req.Amount,
		Category:    ledger.Category(req.Category),
		Recurring:   req.IsRecurring,
		Frequency:   ledger.Frequency(req.Frequency),
		Sentiment:   ledger.Sentiment(req.Sentiment),
		Note:        req.Note,
	})
	if err != nil {
		h.writeLedgerError(w, "Failed to add expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseDTO(e))
}

// DeleteExpense removes an expense. Unknown IDs succeed.
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Ledger.DeleteExpense(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete expense", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// GOAL HANDLERS
// =============================================================================

// GetGoal returns the savings goal with its progress, or null.
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Overview.Build(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(snap.Goal, snap.GoalProgress))
}

// SaveGoal replaces the savings goal.
func (h *Handler) SaveGoal(w http.ResponseWriter, r *http.Request) {
	var req SaveGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		h.writeLedgerError(w, "Invalid goal", &ledger.ValidationError{Field: "title", Reason: "must not be empty"})
		return
	}
	if !req.TargetAmount.IsPositive() {
		h.writeLedgerError(w, "Invalid goal", &ledger.ValidationError{Field: "target_amount", Reason: "must be positive"})
		return
	}
	deadline, err := time.Parse("2006-01-02", req.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid deadline format (use YYYY-MM-DD)", err)
		return
	}

	goal := ledger.SavingsGoal{Title: title, TargetAmount: req.TargetAmount, Deadline: deadline}
	if err := h.Ledger.SaveGoal(r.Context(), &goal); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save goal", err)
		return
	}

	snap, err := h.Overview.Build(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(&goal, snap.GoalProgress))
}

// DeleteGoal clears the savings goal.
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.SaveGoal(r.Context(), nil); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear goal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// OVERVIEW HANDLERS
// =============================================================================

// GetOverview returns the derived state of the current period.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Overview.Build(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build overview", err)
		return
	}
	writeJSON(w, http.StatusOK, toOverviewDTO(snap))
}

// GetRollover returns the surplus carried into a period (default current).
func (h *Handler) GetRollover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target := h.Overview.Resolver.Current()
	if raw := r.URL.Query().Get("period"); raw != "" {
		p, err := ledger.ParsePeriod(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period", err)
			return
		}
		target = p
	}

	amount, settings, err := h.Overview.RolloverFor(ctx, target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute rollover", err)
		return
	}
	writeJSON(w, http.StatusOK, RolloverDTO{
		Period:          target.String(),
		PreviousPeriod:  target.Previous().String(),
		RolloverEnabled: settings.RolloverEnabled,
		Rollover:        money(amount),
	})
}

// =============================================================================
// ADVICE HANDLERS
// =============================================================================

// GetAdvice returns the last report. It is marked stale when the ledger
// changed since it was generated.
func (h *Handler) GetAdvice(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Overview.Build(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build overview", err)
		return
	}
	report := h.lastReport()
	writeJSON(w, http.StatusOK, AdviceResponse{
		Report: toReportDTO(report),
		Stale:  report == nil || report.Fingerprint != advisor.Fingerprint(snap),
	})
}

// RefreshAdvice runs every advisory request for the current state.
func (h *Handler) RefreshAdvice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := h.Overview.Build(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build overview", err)
		return
	}

	report := h.Advisor.Refresh(ctx, snap, h.Ledger)
	h.keepReport(report)

	// The ledger may have changed while the advisor was working.
	current, err := h.Overview.Build(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build overview", err)
		return
	}
	writeJSON(w, http.StatusOK, AdviceResponse{
		Report: toReportDTO(&report),
		Stale:  report.Fingerprint != advisor.Fingerprint(current),
	})
}

// AcceptQuest marks the cached savings quest Active.
func (h *Handler) AcceptQuest(w http.ResponseWriter, r *http.Request) {
	q, err := h.Ledger.AcceptQuest(r.Context())
	if err != nil {
		h.writeLedgerError(w, "Failed to accept quest", err)
		return
	}

	h.mu.Lock()
	if h.report != nil {
		accepted := q
		h.report.Quest = &accepted
	}
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, toQuestDTO(&q))
}

// OptimizeCategories suggests category limits. Null when the advisor has
// no answer.
func (h *Handler) OptimizeCategories(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Overview.Build(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build overview", err)
		return
	}
	opt := h.Advisor.CategoryOptimization(r.Context(), snap)
	if opt == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	limits := make(map[string]float64, len(opt.SuggestedLimits))
	for c, v := range opt.SuggestedLimits {
		limits[string(c)] = money(v)
	}
	writeJSON(w, http.StatusOK, CategoryOptimizationDTO{SuggestedLimits: limits, Reasoning: opt.Reasoning})
}

// GetSavingsTip returns a savings tip for the top spending category.
func (h *Handler) GetSavingsTip(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Overview.Build(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build overview", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Advisor.MarketSavings(r.Context(), snap))
}

// Chat answers the last user message of a conversation.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "At least one message is required", nil)
		return
	}
	for _, m := range req.Messages {
		if m.Role != advisor.RoleUser && m.Role != advisor.RoleModel {
			writeError(w, http.StatusBadRequest, "Message role must be user or model", nil)
			return
		}
	}
	if req.Messages[len(req.Messages)-1].Role != advisor.RoleUser {
		writeError(w, http.StatusBadRequest, "Last message must come from the user", nil)
		return
	}

	snap, err := h.Overview.Build(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build overview", err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Reply: h.Advisor.Chat(r.Context(), snap, req.Messages)})
}

func (h *Handler) lastReport() *advisor.Report {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.report == nil {
		return nil
	}
	r := *h.report
	return &r
}

// keepReport stores report unless a report started later is already kept.
func (h *Handler) keepReport(report advisor.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.report != nil && h.report.GeneratedAt.After(report.GeneratedAt) {
		return
	}
	h.report = &report
}

func (h *Handler) clearReport() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.report = nil
}

// =============================================================================
// SCHEDULER HANDLERS
// =============================================================================

// ListPeriodRuns returns the recorded period checks, newest first.
// GET /api/scheduler/runs
func (h *Handler) ListPeriodRuns(w http.ResponseWriter, r *http.Request) {
	resp := PeriodRunsResponse{Runs: []PeriodRunDTO{}}
	if h.Scheduler != nil && h.Scheduler.Enabled {
		resp.NextRunAt = h.Scheduler.GetNextRunTime().UTC().Format(time.RFC3339)
	}
	if h.Runs == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	runs, err := h.Runs.ListPeriodRuns(r.Context(), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get period runs", err)
		return
	}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, toPeriodRunDTO(run))
	}
	writeJSON(w, http.StatusOK, resp)
}

// TriggerPeriodCheck runs the scheduler's period check immediately.
// POST /api/scheduler/run
func (h *Handler) TriggerPeriodCheck(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Scheduler not configured", nil)
		return
	}
	run := h.Scheduler.RunNow(r.Context())
	if run.Error != "" {
		writeJSON(w, http.StatusInternalServerError, toPeriodRunDTO(run))
		return
	}
	writeJSON(w, http.StatusOK, toPeriodRunDTO(run))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps ledger errors onto HTTP statuses.
func (h *Handler) writeLedgerError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		h.logger.Error(message, "error", err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
