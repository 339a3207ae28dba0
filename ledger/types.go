/*
types.go - Core records of the budget ledger

PURPOSE:
  Defines the persisted records: expenses, the budget settings singleton,
  the optional savings goal, the display-name user record and the cached
  advisory records (quest, persona).

MONEY:
  All currency values are shopspring/decimal. Floats never enter the
  accounting path; the API layer converts to float64 only for display.

SEE ALSO:
  - period.go: Period derivation from timestamps
  - ledger.go: Persistence of these records
  - metrics.go: Derived values computed from them
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Category labels an expense. Unknown labels are accepted.
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryUtilities     Category = "Utilities"
	CategoryShopping      Category = "Shopping"
	CategoryEntertainment Category = "Entertainment"
	CategoryHealth        Category = "Health"
	CategoryOther         Category = "Other"
)

// Categories is the closed set of known labels, in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryUtilities,
	CategoryShopping,
	CategoryEntertainment,
	CategoryHealth,
	CategoryOther,
}

// Known reports whether c is one of the built-in categories.
func (c Category) Known() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Frequency is the repeat interval of a recurring expense.
type Frequency string

const (
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
	FrequencyYearly  Frequency = "Yearly"
)

// AnnualMultiplier returns how many times per year the frequency occurs.
// Unknown frequencies return zero.
func (f Frequency) AnnualMultiplier() int64 {
	switch f {
	case FrequencyWeekly:
		return 52
	case FrequencyMonthly:
		return 12
	case FrequencyYearly:
		return 1
	default:
		return 0
	}
}

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	return f.AnnualMultiplier() > 0
}

// Sentiment is the user's feeling about an expense. Advisory only.
type Sentiment string

const (
	SentimentEssential Sentiment = "Essential"
	SentimentJoyful    Sentiment = "Joyful"
	SentimentNeutral   Sentiment = "Neutral"
	SentimentRegret    Sentiment = "Regret"
)

// Score maps a sentiment onto the 1-4 scale used by value audits.
func (s Sentiment) Score() int {
	switch s {
	case SentimentJoyful:
		return 4
	case SentimentEssential:
		return 3
	case SentimentNeutral:
		return 2
	case SentimentRegret:
		return 1
	default:
		return 0
	}
}

// =============================================================================
// EXPENSE
// =============================================================================

// Expense is one entry of the append-only expense log.
// Expenses are never updated in place; only deleted by ID.
type Expense struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    Category        `json:"category"`
	Date        time.Time       `json:"date"`
	Recurring   bool            `json:"is_recurring"`
	Frequency   Frequency       `json:"frequency,omitempty"`
	Sentiment   Sentiment       `json:"sentiment,omitempty"`
	Note        string          `json:"note,omitempty"`
}

// Period returns the calendar month the expense belongs to.
func (e Expense) Period() Period {
	return PeriodOf(e.Date)
}

// NewExpense holds the caller-supplied fields of an expense.
// ID and Date are assigned by the ledger.
type NewExpense struct {
	Description string
	Amount      decimal.Decimal
	Category    Category
	Recurring   bool
	Frequency   Frequency
	Sentiment   Sentiment
	Note        string
}

// =============================================================================
// SETTINGS & GOAL
// =============================================================================

// BudgetSettings is the singleton budget configuration.
type BudgetSettings struct {
	Amount          decimal.Decimal              `json:"amount"`
	Income          decimal.Decimal              `json:"income"`
	Period          Period                       `json:"period"`
	RolloverEnabled bool                         `json:"rollover_enabled"`
	CategoryLimits  map[Category]decimal.Decimal `json:"category_limits,omitempty"`
}

// DefaultSettings returns the zero-valued settings for the given period.
func DefaultSettings(p Period) BudgetSettings {
	return BudgetSettings{
		Amount: decimal.Zero,
		Income: decimal.Zero,
		Period: p,
	}
}

// SavingsGoal is the optional single active savings target.
type SavingsGoal struct {
	Title        string          `json:"title"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	Deadline     time.Time       `json:"deadline"`
}

// User is the display-name record. There is no authentication.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// =============================================================================
// CACHED ADVISORY RECORDS
// =============================================================================

// QuestStatus tracks whether a savings quest has been accepted.
type QuestStatus string

const (
	QuestAvailable QuestStatus = "Available"
	QuestActive    QuestStatus = "Active"
)

// SavingsQuest is a short savings challenge suggested by the advisor.
type SavingsQuest struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	PotentialSavings decimal.Decimal `json:"potential_savings"`
	Difficulty       string          `json:"difficulty"` // Easy, Medium or Hard
	Status           QuestStatus     `json:"status"`
}

// SpendingPersona is the advisor's classification of spending habits.
type SpendingPersona struct {
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Trait       string `json:"trait"`
	Advice      string `json:"advice"`
}
