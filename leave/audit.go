/*
audit.go - Absentee reconciliation

PURPOSE:
  Enumerates unresolved absences over a date range:

    absent(emp, D) = !didWork(D) && !isWeeklyOff(D) && !hasApplication(D)

  evaluated only for days inside the employee's employment span. Each
  (employee, date) pair is reported at most once per call, however many
  sources mention it. Results are ordered by employee code, then date.

  An absence is resolved through Ledger.Regularize, after which the day
  carries an application and drops out of later audits.

SEE ALSO:
  - compoff.go: PunchIndex, the same local-day bucketing
  - ledger.go: Regularize
*/
package leave

import (
	"context"
	"sort"
	"time"

	"github.com/warp/payroll-engine/generic"
)

type Absence struct {
	EmployeeCode generic.EmployeeCode
	Date         generic.TimePoint
	Weekday      string
}

// EmployeeFacts bundles the per-employee inputs of FindAbsences.
type EmployeeFacts struct {
	Employee  Employee
	WeeklyOff WeeklyOffSetting
	Worked    PunchIndex
}

// DayKey identifies one (employee, date) pair.
func DayKey(code generic.EmployeeCode, day generic.TimePoint) string {
	return string(code) + "|" + day.Key()
}

// FindAbsences is the pure audit. covered holds DayKeys of days that
// already carry a LeaveApplication.
func FindAbsences(facts []EmployeeFacts, covered map[string]struct{}, p generic.Period) []Absence {
	seen := make(map[string]struct{})
	var out []Absence

	for _, f := range facts {
		span, ok := f.Employee.EmploymentSpan(p)
		if !ok {
			continue
		}
		for _, day := range span.Days() {
			key := DayKey(f.Employee.Code, day)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			if f.Worked.Worked(day) || f.WeeklyOff.IsOff(day.Weekday()) {
				continue
			}
			if _, ok := covered[key]; ok {
				continue
			}
			out = append(out, Absence{
				EmployeeCode: f.Employee.Code,
				Date:         day,
				Weekday:      generic.WeekdayName(day),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeCode != out[j].EmployeeCode {
			return out[i].EmployeeCode < out[j].EmployeeCode
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// =============================================================================
// AUDITOR - Loads inputs for FindAbsences
// =============================================================================

type Auditor struct {
	Directory  Directory
	Attendance Attendance
	Ledger     LedgerReader
	Location   *time.Location
}

// Absences audits every employee on the roster over p.
func (a *Auditor) Absences(ctx context.Context, p generic.Period) ([]Absence, error) {
	if p.End.Before(p.Start) {
		return nil, generic.ErrInvalidPeriod
	}
	if err := p.Bounded(generic.MaxPeriodDays); err != nil {
		return nil, err
	}
	employees, err := a.Directory.Employees(ctx)
	if err != nil {
		return nil, err
	}

	apps, err := a.Ledger.Applications(ctx, "", p)
	if err != nil {
		return nil, err
	}
	covered := make(map[string]struct{}, len(apps))
	for _, app := range apps {
		covered[DayKey(app.EmployeeCode, app.Date)] = struct{}{}
	}

	from := p.Start.StartIn(a.Location)
	to := p.End.AddDays(1).StartIn(a.Location)

	facts := make([]EmployeeFacts, 0, len(employees))
	for _, emp := range employees {
		if _, ok := emp.EmploymentSpan(p); !ok {
			continue
		}
		setting, _, err := a.Directory.WeeklyOff(ctx, emp.Code)
		if err != nil {
			return nil, err
		}
		punches, err := a.Attendance.Punches(ctx, emp.Code, from, to)
		if err != nil {
			return nil, err
		}
		facts = append(facts, EmployeeFacts{
			Employee:  emp,
			WeeklyOff: setting,
			Worked:    IndexPunches(punches, a.Location),
		})
	}

	return FindAbsences(facts, covered, p), nil
}
