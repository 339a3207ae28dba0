/*
ledger.go - Persistence of budget records over a key/value Store

PURPOSE:
  The Ledger owns every persisted record: the expense log, the budget
  settings singleton, the savings goal, the display-name user and the
  cached advisory records. Each record lives in one Store slot as JSON.

CRITICAL INVARIANTS:
  1. APPEND-ONLY LOG: Expenses are added or deleted by ID, never edited
  2. INSERTION ORDER: ListExpenses returns records in the order added
  3. FRESH IDS: Every added expense gets a new UUID, never reused
  4. NO PARTIAL WRITES: A rejected expense leaves the log unchanged

CONCURRENCY:
  Every read-modify-write runs under one mutex, so concurrent HTTP
  requests observe a single logical writer.

EVENTS:
  After a mutation commits, an Event is handed to the Notifier. Notifier
  errors are logged and dropped.

SEE ALSO:
  - store.go: Storage interface and keys
  - resolver.go: Period transitions on settings read
  - events.go: Event and Notifier
*/
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger stores budget records.
type Ledger struct {
	store    Store
	clock    Clock
	notifier Notifier
	logger   *slog.Logger
	newID    func() string

	mu sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithNotifier sets the receiver of change events.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithIDGenerator overrides expense/user ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) { l.newID = fn }
}

// New creates a ledger over store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		clock:  SystemClock,
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Clock returns the ledger's clock.
func (l *Ledger) Clock() Clock {
	return l.clock
}

// =============================================================================
// EXPENSES
// =============================================================================

// AddExpense validates and appends an expense, assigning its ID and
// creation timestamp.
func (l *Ledger) AddExpense(ctx context.Context, in NewExpense) (Expense, error) {
	if err := validateExpense(&in); err != nil {
		return Expense{}, err
	}

	l.mu.Lock()
	expenses, err := l.loadExpenses(ctx)
	if err != nil {
		l.mu.Unlock()
		return Expense{}, err
	}

	e := Expense{
		ID:          l.newID(),
		Description: in.Description,
		Amount:      in.Amount,
		Category:    in.Category,
		Date:        l.clock.Now().UTC(),
		Recurring:   in.Recurring,
		Frequency:   in.Frequency,
		Sentiment:   in.Sentiment,
		Note:        in.Note,
	}
	expenses = append(expenses, e)
	err = l.save(ctx, KeyExpenses, expenses)
	l.mu.Unlock()
	if err != nil {
		return Expense{}, err
	}

	l.notify(ctx, Event{Type: EventExpenseAdded, ExpenseID: e.ID, Period: e.Period(), At: e.Date})
	return e, nil
}

// DeleteExpense removes the expense with the given ID.
// Unknown IDs are a no-op.
func (l *Ledger) DeleteExpense(ctx context.Context, id string) error {
	l.mu.Lock()
	expenses, err := l.loadExpenses(ctx)
	if err != nil {
		l.mu.Unlock()
		return err
	}

	idx := -1
	for i, e := range expenses {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return nil
	}

	removed := expenses[idx]
	expenses = append(expenses[:idx], expenses[idx+1:]...)
	err = l.save(ctx, KeyExpenses, expenses)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	l.notify(ctx, Event{Type: EventExpenseDeleted, ExpenseID: id, Period: removed.Period(), At: l.clock.Now().UTC()})
	return nil
}

// ListExpenses returns all expenses in insertion order.
func (l *Ledger) ListExpenses(ctx context.Context) ([]Expense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadExpenses(ctx)
}

// ImportExpenses appends pre-dated records, e.g. from a backup or a demo
// scenario. Records keep their Date; missing IDs are assigned. Nothing is
// written unless every record validates.
func (l *Ledger) ImportExpenses(ctx context.Context, records []Expense) ([]Expense, error) {
	out := make([]Expense, 0, len(records))
	for i, r := range records {
		in := NewExpense{
			Description: r.Description,
			Amount:      r.Amount,
			Category:    r.Category,
			Recurring:   r.Recurring,
			Frequency:   r.Frequency,
			Sentiment:   r.Sentiment,
			Note:        r.Note,
		}
		if err := validateExpense(&in); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if r.Date.IsZero() {
			return nil, fmt.Errorf("record %d: %w", i, &ValidationError{Field: "date", Reason: "required"})
		}
		e := Expense{
			ID:          r.ID,
			Description: in.Description,
			Amount:      in.Amount,
			Category:    in.Category,
			Date:        r.Date.UTC(),
			Recurring:   in.Recurring,
			Frequency:   in.Frequency,
			Sentiment:   in.Sentiment,
			Note:        in.Note,
		}
		if e.ID == "" {
			e.ID = l.newID()
		}
		out = append(out, e)
	}

	l.mu.Lock()
	expenses, err := l.loadExpenses(ctx)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	seen := make(map[string]bool, len(expenses))
	for _, e := range expenses {
		seen[e.ID] = true
	}
	for _, e := range out {
		if seen[e.ID] {
			l.mu.Unlock()
			return nil, &ValidationError{Field: "id", Reason: fmt.Sprintf("duplicate expense id %q", e.ID)}
		}
		seen[e.ID] = true
	}
	err = l.save(ctx, KeyExpenses, append(expenses, out...))
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	for _, e := range out {
		l.notify(ctx, Event{Type: EventExpenseAdded, ExpenseID: e.ID, Period: e.Period(), At: e.Date})
	}
	return out, nil
}

func (l *Ledger) loadExpenses(ctx context.Context) ([]Expense, error) {
	var expenses []Expense
	if _, err := l.load(ctx, KeyExpenses, &expenses); err != nil {
		return nil, err
	}
	if expenses == nil {
		expenses = []Expense{}
	}
	return expenses, nil
}

func validateExpense(in *NewExpense) error {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if !in.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if in.Category == "" {
		in.Category = CategoryOther
	}
	if in.Recurring && !in.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Reason: "required for recurring expenses (Weekly, Monthly or Yearly)"}
	}
	if !in.Recurring && in.Frequency != "" {
		return &ValidationError{Field: "frequency", Reason: "only allowed on recurring expenses"}
	}
	if in.Sentiment != "" && in.Sentiment.Score() == 0 {
		return &ValidationError{Field: "sentiment", Reason: fmt.Sprintf("unknown sentiment %q", in.Sentiment)}
	}
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings returns the stored settings, or defaults for the current
// period when none exist. It never writes; see PeriodResolver.
func (l *Ledger) Settings(ctx context.Context) (BudgetSettings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, _, err := l.loadSettings(ctx)
	return s, err
}

// SaveSettings replaces the settings singleton. No validation.
func (l *Ledger) SaveSettings(ctx context.Context, s BudgetSettings) error {
	l.mu.Lock()
	err := l.save(ctx, KeySettings, s)
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.notify(ctx, Event{Type: EventSettingsSaved, Period: s.Period, At: l.clock.Now().UTC()})
	return nil
}

// UpdateSettings atomically applies fn to the stored settings. exists is
// false when fn receives defaults. The result is persisted only when fn
// returns true.
func (l *Ledger) UpdateSettings(ctx context.Context, fn func(s *BudgetSettings, exists bool) bool) (BudgetSettings, error) {
	l.mu.Lock()
	s, exists, err := l.loadSettings(ctx)
	if err != nil {
		l.mu.Unlock()
		return BudgetSettings{}, err
	}
	before := s.Period
	if !fn(&s, exists) {
		l.mu.Unlock()
		return s, nil
	}
	err = l.save(ctx, KeySettings, s)
	l.mu.Unlock()
	if err != nil {
		return BudgetSettings{}, err
	}

	evt := EventSettingsSaved
	if exists && before != s.Period {
		evt = EventPeriodRolled
	}
	l.notify(ctx, Event{Type: evt, Period: s.Period, At: l.clock.Now().UTC()})
	return s, nil
}

func (l *Ledger) loadSettings(ctx context.Context) (BudgetSettings, bool, error) {
	var s BudgetSettings
	ok, err := l.load(ctx, KeySettings, &s)
	if err != nil {
		return BudgetSettings{}, false, err
	}
	if !ok {
		return DefaultSettings(PeriodOf(l.clock.Now())), false, nil
	}
	return s, true, nil
}

// =============================================================================
// GOAL
// =============================================================================

// Goal returns the active savings goal, or nil.
func (l *Ledger) Goal(ctx context.Context) (*SavingsGoal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var g SavingsGoal
	ok, err := l.load(ctx, KeyGoal, &g)
	if err != nil || !ok {
		return nil, err
	}
	return &g, nil
}

// SaveGoal replaces the goal. A nil goal clears it. No validation.
func (l *Ledger) SaveGoal(ctx context.Context, g *SavingsGoal) error {
	l.mu.Lock()
	var err error
	if g == nil {
		err = l.remove(ctx, KeyGoal)
	} else {
		err = l.save(ctx, KeyGoal, g)
	}
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.notify(ctx, Event{Type: EventGoalSaved, At: l.clock.Now().UTC()})
	return nil
}

// =============================================================================
// USER
// =============================================================================

// User returns the display-name record, or nil.
func (l *Ledger) User(ctx context.Context) (*User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var u User
	ok, err := l.load(ctx, KeyUser, &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

// Register replaces the display-name record.
func (l *Ledger) Register(ctx context.Context, username string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	u := User{ID: l.newID(), Username: username}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.save(ctx, KeyUser, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Logout removes the display-name record.
func (l *Ledger) Logout(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remove(ctx, KeyUser)
}

// =============================================================================
// CACHED ADVISORY RECORDS
// =============================================================================

// Quest returns the cached savings quest, or nil.
func (l *Ledger) Quest(ctx context.Context) (*SavingsQuest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadQuest(ctx)
}

// SaveQuest replaces the cached quest. A nil quest clears it.
func (l *Ledger) SaveQuest(ctx context.Context, q *SavingsQuest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if q == nil {
		return l.remove(ctx, KeyQuest)
	}
	return l.save(ctx, KeyQuest, q)
}

// ReplaceAvailableQuest stores fresh unless an accepted quest is cached,
// and returns the quest that is cached afterwards. A nil fresh quest
// leaves the cache untouched.
func (l *Ledger) ReplaceAvailableQuest(ctx context.Context, fresh *SavingsQuest) (*SavingsQuest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, err := l.loadQuest(ctx)
	if err != nil {
		return nil, err
	}
	if fresh == nil || (current != nil && current.Status != QuestAvailable) {
		return current, nil
	}
	if err := l.save(ctx, KeyQuest, fresh); err != nil {
		return current, err
	}
	return fresh, nil
}

// AcceptQuest marks the cached quest Active.
func (l *Ledger) AcceptQuest(ctx context.Context) (SavingsQuest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q, err := l.loadQuest(ctx)
	if err != nil {
		return SavingsQuest{}, err
	}
	if q == nil {
		return SavingsQuest{}, ErrNoQuest
	}
	q.Status = QuestActive
	if err := l.save(ctx, KeyQuest, q); err != nil {
		return SavingsQuest{}, err
	}
	return *q, nil
}

func (l *Ledger) loadQuest(ctx context.Context) (*SavingsQuest, error) {
	var q SavingsQuest
	ok, err := l.load(ctx, KeyQuest, &q)
	if err != nil || !ok {
		return nil, err
	}
	return &q, nil
}

// Persona returns the cached spending persona, or nil.
func (l *Ledger) Persona(ctx context.Context) (*SpendingPersona, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var p SpendingPersona
	ok, err := l.load(ctx, KeyPersona, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// SavePersona replaces the cached persona. A nil persona clears it.
func (l *Ledger) SavePersona(ctx context.Context, p *SpendingPersona) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p == nil {
		return l.remove(ctx, KeyPersona)
	}
	return l.save(ctx, KeyPersona, p)
}

// Reset deletes every ledger record.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range []string{KeyUser, KeySettings, KeyExpenses, KeyGoal, KeyQuest, KeyPersona} {
		if err := l.remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// STORE HELPERS
// =============================================================================

func (l *Ledger) load(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (l *Ledger) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := l.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (l *Ledger) remove(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (l *Ledger) notify(ctx context.Context, e Event) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Notify(ctx, e); err != nil {
		l.logger.WarnContext(ctx, "ledger event not delivered",
			"type", string(e.Type),
			"expense_id", e.ExpenseID,
			"error", err)
	}
}
