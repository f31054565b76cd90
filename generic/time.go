/*
Package generic provides the calendar and money primitives the ledger engine is built on.

PURPOSE:
  Domain-agnostic helpers with no state and no I/O. The pardna package builds
  schedules out of these; nothing here knows about plans or participants.

KEY CONCEPTS IN THIS FILE (time.go):
  - Frequency: the unit a schedule advances by (DAILY, WEEKLY, MONTHLY)
  - AddInterval: calendar arithmetic with end-of-month clamping
  - EnumerateIntervals: the boundary sequence between two dates

MONTH ARITHMETIC:
  time.AddDate normalises overflow (Jan 31 + 1 month = Mar 2 or Mar 3).
  Schedules must not drift like that, so AddInterval clamps instead:

    AddInterval(2024-01-31, MONTHLY, 1) = 2024-02-29
    AddInterval(2024-01-31, MONTHLY, 2) = 2024-03-31

  Boundaries are always computed from the anchor (start + k units), never by
  repeatedly adding one unit, so a clamped month does not shorten later ones.

SEE ALSO:
  - period.go: PeriodType mapping
  - amount.go: decimal amounts
  - pardna/ledger.go: the generator that consumes these
*/
package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// FREQUENCY
// =============================================================================

// Frequency is how often a schedule advances.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

// DefaultFrequency applies wherever a frequency is not given.
const DefaultFrequency = FrequencyMonthly

// OrDefault returns f, or MONTHLY when f is empty.
func (f Frequency) OrDefault() Frequency {
	if f == "" {
		return DefaultFrequency
	}
	return f
}

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// ParseFrequency accepts the wire names case-insensitively. Empty input
// returns the empty frequency so callers can apply their own default.
func ParseFrequency(s string) (Frequency, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	f := Frequency(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown frequency %q", s)
	}
	return f, nil
}

// =============================================================================
// INTERVAL ARITHMETIC
// =============================================================================

// AddInterval adds count frequency units to t. Negative counts go backwards.
// Months land on the same day-of-month, clamped to the target month's length.
// An unknown frequency is treated as MONTHLY.
func AddInterval(t time.Time, f Frequency, count int) time.Time {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, count)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7*count)
	default:
		return addMonths(t, count)
	}
}

func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	// First of the target month, then clamp the day.
	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := DaysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

// EnumerateIntervals returns every boundary start, start+1 unit, start+2 units...
// that is not after end, in ascending order. Returns nil when end is before start.
func EnumerateIntervals(start, end time.Time, f Frequency) []time.Time {
	if end.Before(start) {
		return nil
	}
	var boundaries []time.Time
	for k := 0; ; k++ {
		b := AddInterval(start, f, k)
		if b.After(end) {
			break
		}
		boundaries = append(boundaries, b)
	}
	return boundaries
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// StartOfDay truncates t to midnight in UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns midnight UTC of the current day.
func Today() time.Time { return StartOfDay(time.Now()) }

// FormatDate renders t as YYYY-MM-DD in UTC. Drivers may hand back
// stored dates in the local zone.
func FormatDate(t time.Time) string { return t.UTC().Format(DateLayout) }

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"
