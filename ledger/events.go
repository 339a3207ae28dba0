package ledger

import (
	"context"
	"time"
)

// =============================================================================
// EVENTS - Change notifications emitted after successful mutations
// =============================================================================

// EventType identifies a ledger mutation.
type EventType string

const (
	EventExpenseAdded   EventType = "expense.added"
	EventExpenseDeleted EventType = "expense.deleted"
	EventSettingsSaved  EventType = "settings.saved"
	EventPeriodRolled   EventType = "period.rolled"
	EventGoalSaved      EventType = "goal.saved"
)

// Event describes a committed change. Consumers must treat delivery as
// best effort: a failed notification never rolls back the mutation.
type Event struct {
	Type      EventType `json:"type"`
	ExpenseID string    `json:"expense_id,omitempty"`
	Period    Period    `json:"period"`
	At        time.Time `json:"at"`
}

// Notifier receives ledger events.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event) error

func (f NotifierFunc) Notify(ctx context.Context, e Event) error { return f(ctx, e) }

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies the current moment.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
