package generic

import (
	"strings"
	"time"
)

// =============================================================================
// CALENDAR UTILITIES - Pure functions, no state
// =============================================================================

// DaysInMonth returns the length of month in year, accounting for leap years.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IterateLocalDates returns one YYYY-MM-DD key per civil day in [start, end],
// ascending. Both bounds may be plain dates or RFC 3339 timestamps; a
// timestamp is interpreted in loc so that "2024-03-05T23:30:00-05:00" and
// "2024-03-06T04:30:00Z" yield the same key for a New York calendar.
func IterateLocalDates(startISO, endISO string, loc *time.Location) ([]string, error) {
	start, err := ParseLocalDate(startISO, loc)
	if err != nil {
		return nil, err
	}
	end, err := ParseLocalDate(endISO, loc)
	if err != nil {
		return nil, err
	}
	period, err := NewPeriod(start, end)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, period.Len())
	for _, d := range period.Days() {
		keys = append(keys, d.Key())
	}
	return keys, nil
}

// WeekdayName returns the English weekday name of tp ("Monday" ... "Sunday").
// These names are the vocabulary of weekly-off settings.
func WeekdayName(tp TimePoint) string {
	return tp.Weekday().String()
}

// ParseWeekday maps a weekday name to time.Weekday, case-insensitively.
// Three-letter abbreviations are accepted.
func ParseWeekday(name string) (time.Weekday, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return 0, false
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if n == full || (len(n) == 3 && strings.HasPrefix(full, n)) {
			return d, true
		}
	}
	return 0, false
}
