/*
compoff.go - Compensatory-off detection

PURPOSE:
  A day earns comp-off when it is one of the employee's weekly-off days and
  the employee punched on it:

    earned(D) = isWeeklyOff(D) && didWork(D) && !sandwiched(D)

SANDWICH RULE (only when the employee's setting enables it):
  Walk outward from D to the nearest non-off day on each side. If BOTH of
  those days have no punch, D is sandwiched between absences and earns
  nothing.

      Fri      Sat(off)   Sun(off)   Mon
      absent   worked     -          absent    => Sat sandwiched
      present  worked     -          absent    => Sat earns

  - a neighbour later than asOf has not happened yet and counts as present
  - when every weekday is off there are no neighbours and no sandwich

DAY BUCKETING:
  Punches are bucketed by their local civil day in the configured
  location, never by UTC day.

SEE ALSO:
  - rules.go: Work on Weekly Off rules multiply Earned by allocated_count
  - generic/time.go: LocalDay
*/
package leave

import (
	"context"
	"time"

	"github.com/warp/payroll-engine/generic"
)

// sandwichReach bounds the neighbour walk; a week always contains a
// non-off day unless all seven are off.
const sandwichReach = 7

// PunchIndex is the set of local days on which an employee punched.
type PunchIndex map[string]struct{}

func IndexPunches(punches []Punch, loc *time.Location) PunchIndex {
	ix := make(PunchIndex, len(punches))
	for _, p := range punches {
		ix[generic.LocalDay(p.At, loc).Key()] = struct{}{}
	}
	return ix
}

func (ix PunchIndex) Worked(day generic.TimePoint) bool {
	_, ok := ix[day.Key()]
	return ok
}

// DayVerdict explains the outcome for one weekly-off day.
type DayVerdict struct {
	Date       generic.TimePoint
	Weekday    string
	Worked     bool
	Sandwiched bool
	Earned     bool
}

type CompOffReport struct {
	EmployeeCode generic.EmployeeCode
	Period       generic.Period
	// Days holds one verdict per weekly-off day in Period.
	Days   []DayVerdict
	Earned int
}

// DetectCompOff evaluates every day of p against the weekly-off setting.
func DetectCompOff(setting WeeklyOffSetting, worked PunchIndex, p generic.Period, asOf generic.TimePoint) CompOffReport {
	report := CompOffReport{EmployeeCode: setting.EmployeeCode, Period: p}
	for _, day := range p.Days() {
		if !setting.IsOff(day.Weekday()) {
			continue
		}
		v := DayVerdict{
			Date:    day,
			Weekday: generic.WeekdayName(day),
			Worked:  worked.Worked(day),
		}
		if v.Worked {
			v.Sandwiched = sandwiched(setting, worked, day, asOf)
			v.Earned = !v.Sandwiched
		}
		if v.Earned {
			report.Earned++
		}
		report.Days = append(report.Days, v)
	}
	return report
}

func sandwiched(setting WeeklyOffSetting, worked PunchIndex, day, asOf generic.TimePoint) bool {
	if !setting.SandwichRule || setting.AllOff() {
		return false
	}
	before, okBefore := nearestWorkingDay(setting, day, -1)
	after, okAfter := nearestWorkingDay(setting, day, 1)
	if !okBefore || !okAfter {
		return false
	}
	absent := func(d generic.TimePoint) bool {
		return d.BeforeOrEqual(asOf) && !worked.Worked(d)
	}
	return absent(before) && absent(after)
}

func nearestWorkingDay(setting WeeklyOffSetting, from generic.TimePoint, step int) (generic.TimePoint, bool) {
	d := from
	for i := 0; i < sandwichReach; i++ {
		d = d.AddDays(step)
		if !setting.IsOff(d.Weekday()) {
			return d, true
		}
	}
	return generic.TimePoint{}, false
}

// =============================================================================
// DETECTOR - Loads inputs for DetectCompOff
// =============================================================================

type CompOffDetector struct {
	Directory  Directory
	Attendance Attendance
	Location   *time.Location
}

// Report loads the weekly-off setting and punches of code and evaluates p.
// An employee without a setting has no off days and earns nothing.
func (d *CompOffDetector) Report(ctx context.Context, code generic.EmployeeCode, p generic.Period, asOf generic.TimePoint) (CompOffReport, error) {
	setting, ok, err := d.Directory.WeeklyOff(ctx, code)
	if err != nil {
		return CompOffReport{}, err
	}
	if !ok {
		return CompOffReport{EmployeeCode: code, Period: p}, nil
	}

	// Pad by a week on both sides so sandwich neighbours of edge days are seen.
	from := p.Start.AddDays(-sandwichReach).StartIn(d.Location)
	to := p.End.AddDays(sandwichReach + 1).StartIn(d.Location)
	punches, err := d.Attendance.Punches(ctx, code, from, to)
	if err != nil {
		return CompOffReport{}, err
	}

	setting.EmployeeCode = code
	return DetectCompOff(setting, IndexPunches(punches, d.Location), p, asOf), nil
}
