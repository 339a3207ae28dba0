/*
store.go - Key/value persistence interface for the ledger

PURPOSE:
  Defines the boundary between the ledger and its storage medium. The
  ledger keeps each logical record (settings, expense log, goal, ...) in
  one slot, JSON encoded, so any get/set/delete store will do.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory for tests and ":memory:" runs
  - store/sqlite/sqlite.go: Durable SQLite table

ERRORS:
  A missing key is not an error: Get returns ok=false. Any returned error
  means the medium is unavailable and is propagated to the caller.

SEE ALSO:
  - ledger.go: The only consumer
*/
package ledger

import "context"

// =============================================================================
// STORE - Interface for record persistence
// =============================================================================

// Store persists opaque values by key.
type Store interface {
	// Get returns the value stored under key. ok is false when absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Storage keys, one per logical record.
const (
	KeyUser     = "ft_user"
	KeySettings = "ft_budget"
	KeyExpenses = "ft_expenses"
	KeyGoal     = "ft_goal"
	KeyQuest    = "ft_quest"
	KeyPersona  = "ft_persona"
)
