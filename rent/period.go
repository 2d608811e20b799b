package rent

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD KEY - Identifies one rent month
// =============================================================================

// Sane bounds for period keys. The household did not exist before 2000 and
// the tool is not planning a century ahead; anything outside this window is
// a data-entry error, not a real period.
const (
	MinYear = 2000
	MaxYear = 2100
)

// PeriodKey identifies a rent period by calendar month.
type PeriodKey struct {
	Year  int
	Month time.Month
}

// KeyFor returns the period key a date falls into.
func KeyFor(date time.Time) PeriodKey {
	return PeriodKey{Year: date.Year(), Month: date.Month()}
}

// Validate returns ErrInvalidPeriod when the key is outside the sane range.
func (k PeriodKey) Validate() error {
	if k.Year < MinYear || k.Year > MaxYear {
		return fmt.Errorf("%w: year %d out of range [%d, %d]", ErrInvalidPeriod, k.Year, MinYear, MaxYear)
	}
	if k.Month < time.January || k.Month > time.December {
		return fmt.Errorf("%w: month %d out of range [1, 12]", ErrInvalidPeriod, int(k.Month))
	}
	return nil
}

// Next returns the following month's key.
func (k PeriodKey) Next() PeriodKey {
	if k.Month == time.December {
		return PeriodKey{Year: k.Year + 1, Month: time.January}
	}
	return PeriodKey{Year: k.Year, Month: k.Month + 1}
}

// Prev returns the preceding month's key.
func (k PeriodKey) Prev() PeriodKey {
	if k.Month == time.January {
		return PeriodKey{Year: k.Year - 1, Month: time.December}
	}
	return PeriodKey{Year: k.Year, Month: k.Month - 1}
}

// Before reports whether k is chronologically earlier than other.
func (k PeriodKey) Before(other PeriodKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// After reports whether k is chronologically later than other.
func (k PeriodKey) After(other PeriodKey) bool {
	return other.Before(k)
}

// Start returns the first instant of the period (UTC).
func (k PeriodKey) Start() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the period at UTC midnight.
func (k PeriodKey) End() time.Time {
	return k.Start().AddDate(0, 1, -1)
}

func (k PeriodKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// EarlierOf returns the chronologically earlier of two keys.
func EarlierOf(a, b PeriodKey) PeriodKey {
	if b.Before(a) {
		return b
	}
	return a
}

// LaterOf returns the chronologically later of two keys.
func LaterOf(a, b PeriodKey) PeriodKey {
	if b.After(a) {
		return b
	}
	return a
}

// =============================================================================
// CLOCK - Injected "current period" source
// =============================================================================

// Clock supplies the current time. Injected so recalculation ranges are
// testable without depending on the wall clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a func to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock backed by time.Now (UTC).
func SystemClock() Clock {
	return ClockFunc(func() time.Time { return time.Now().UTC() })
}

// CurrentKey returns the period key of the clock's current time.
func CurrentKey(clock Clock) PeriodKey {
	return KeyFor(clock.Now())
}
