package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - A civil calendar date
// =============================================================================

// DateLayout is the key format used for dates everywhere in the engine.
const DateLayout = "2006-01-02"

// TimePoint is a calendar date with no time-of-day and no zone. It is stored
// as midnight UTC so that day arithmetic never crosses a DST boundary; the
// zone a date was observed in only matters when bucketing a timestamp, see
// LocalDay.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// LocalDay returns the civil date t falls on when observed in loc. Punch
// timestamps must be bucketed with this, not with t.UTC(), or a punch at
// 00:30 local time lands on the previous day for zones east of UTC.
func LocalDay(t time.Time, loc *time.Location) TimePoint {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	return NewTimePoint(lt.Year(), lt.Month(), lt.Day())
}

// Today returns the current civil date in loc.
func Today(loc *time.Location) TimePoint {
	return LocalDay(time.Now(), loc)
}

// ParseDate parses a YYYY-MM-DD key.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return TimePoint{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("malformed date %q", s)}
	}
	return NewTimePoint(t.Year(), t.Month(), t.Day()), nil
}

// ParseLocalDate accepts either a plain date or an RFC 3339 timestamp. A
// timestamp is converted to loc before its date is taken.
func ParseLocalDate(s string, loc *time.Location) (TimePoint, error) {
	s = strings.TrimSpace(s)
	if len(s) == len(DateLayout) {
		return ParseDate(s)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return TimePoint{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("malformed date %q", s)}
	}
	return LocalDay(t, loc), nil
}

// MustParseDate is for tests and fixtures.
func MustParseDate(s string) TimePoint {
	tp, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, n, 0)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

// Key returns the YYYY-MM-DD form used as a map key and storage value.
func (tp TimePoint) Key() string { return tp.Time.Format(DateLayout) }

func (tp TimePoint) String() string { return tp.Key() }

// StartIn returns the instant local midnight of this date occurs in loc.
func (tp TimePoint) StartIn(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(tp.Year(), tp.Month(), tp.Day(), 0, 0, 0, 0, loc)
}

// DaysBetween counts whole days from -> to (negative when to is earlier).
// Unix seconds are used so the count stays exact beyond time.Duration's
// range.
func DaysBetween(from, to TimePoint) int {
	return int((to.Time.Unix() - from.Time.Unix()) / 86400)
}
