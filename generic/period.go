package generic

// =============================================================================
// PERIOD - An inclusive range of civil dates
// =============================================================================

// Period is the window an audit, comp-off scan, or leave request covers.
// Both ends are inclusive.
//
// Examples:
//   - Audit window: 2024-03-01 .. 2024-03-31
//   - Comp-off lookback: as-of minus 89 days .. as-of
//   - Leave request span: start_date .. end_date
type Period struct {
	Start TimePoint
	End   TimePoint
}

// MaxPeriodDays bounds a period supplied by a caller (audit window, leave
// request span, report range).
const MaxPeriodDays = 366

// NewPeriod validates that end is not before start.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// Bounded returns a ValidationError when p covers more than maxDays days.
func (p Period) Bounded(maxDays int) error {
	if p.End.After(p.Start.AddDays(maxDays - 1)) {
		return Invalid("period", "%s spans more than %d days", p, maxDays)
	}
	return nil
}

// TrailingPeriod returns the n-day window ending at end (inclusive).
func TrailingPeriod(end TimePoint, days int) Period {
	if days < 1 {
		days = 1
	}
	return Period{Start: end.AddDays(-(days - 1)), End: end}
}

// Contains returns true if the date is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Len is the number of days in the period.
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	days := make([]TimePoint, 0, p.Len())
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Intersect clips p to other; ok is false when they do not overlap.
func (p Period) Intersect(other Period) (Period, bool) {
	start := p.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := p.End
	if other.End.Before(end) {
		end = other.End
	}
	if end.Before(start) {
		return Period{}, false
	}
	return Period{Start: start, End: end}, true
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
