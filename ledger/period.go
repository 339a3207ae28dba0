package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - The unit over which budget and spending are scoped
// =============================================================================

// Period is a calendar month, identified externally by a "YYYY-MM" string.
//
// Periods are derived from UTC timestamps so that the period of an expense
// always equals the first seven characters of its serialised timestamp.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t, evaluated in UTC.
func PeriodOf(t time.Time) Period {
	u := t.UTC()
	return Period{Year: u.Year(), Month: u.Month()}
}

// ParsePeriod parses a "YYYY-MM" identifier.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// MustParsePeriod is ParsePeriod for constants and tests. Panics on error.
func MustParsePeriod(s string) Period {
	p, err := ParsePeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Previous returns the calendar month immediately before p.
// The month before 2024-01 is 2023-12.
func (p Period) Previous() Period {
	return p.AddMonths(-1)
}

// Next returns the calendar month immediately after p.
func (p Period) Next() Period {
	return p.AddMonths(1)
}

// AddMonths shifts p by n calendar months (n may be negative).
func (p Period) AddMonths(n int) Period {
	idx := p.Year*12 + int(p.Month-1) + n
	year := idx / 12
	month := idx % 12
	if month < 0 {
		month += 12
		year--
	}
	return Period{Year: year, Month: time.Month(month + 1)}
}

// Start returns the first instant of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether p is the zero period.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// String returns the "YYYY-MM" identifier.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// MarshalText implements encoding.TextMarshaler.
func (p Period) MarshalText() ([]byte, error) {
	if p.IsZero() {
		return []byte{}, nil
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Period) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*p = Period{}
		return nil
	}
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
