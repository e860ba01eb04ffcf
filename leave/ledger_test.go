package leave_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
)

// =============================================================================
// AUDIT + REGULARIZE
// =============================================================================

func TestAuditThenRegularize_SingleAbsence(t *testing.T) {
	// GIVEN: E1 punched every weekday of 4-8 March 2024 except Tuesday the 5th,
	//        weekends off, CL remaining = 2
	// WHEN: The week is audited and the absence regularized with CL
	// THEN: Exactly one absence is reported; afterwards CL remaining = 1, an
	//       application exists for the 5th and the audit comes back clean
	f := newFixture(t)
	f.employee(t, "E1", "2024-01-01")
	f.weekend(t, "E1", false)
	f.leaveType(t, "CL")
	f.fixedRule(t, "cl", "CL", 2)
	f.credit(t, "E1", "2024-03-01")
	f.punch(t, "E1", "2024-03-04", "2024-03-06", "2024-03-07", "2024-03-08")
	week := period(t, "2024-03-04", "2024-03-10")

	absences, err := f.auditor.Absences(f.ctx, week)
	require.NoError(t, err)
	require.Len(t, absences, 1)
	assert.Equal(t, "2024-03-05", absences[0].Date.Key())
	assert.Equal(t, "Tuesday", absences[0].Weekday)

	app, err := f.ledger.Regularize(f.ctx, "E1", absences[0].Date, "CL")
	require.NoError(t, err)
	assert.Equal(t, leave.SourceRegularization, app.Source)

	assert.True(t, f.balance(t, "E1", "CL").Remaining.Equal(generic.Days(1)))
	stored, ok, err := f.store.ApplicationOn(f.ctx, "E1", day("2024-03-05"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, app.ID, stored.ID)

	absences, err = f.auditor.Absences(f.ctx, week)
	require.NoError(t, err)
	assert.Empty(t, absences)
}

func TestRegularize_InsufficientBalance_LeavesStoreUnchanged(t *testing.T) {
	// GIVEN: CL remaining = 0.5
	// WHEN: Regularizing one day
	// THEN: InsufficientBalanceError; no application, balance and journal untouched
	f := newFixture(t)
	f.employee(t, "E1", "2024-01-01")
	f.leaveType(t, "CL")
	f.fixedRule(t, "cl", "CL", 0.5)
	f.credit(t, "E1", "2024-03-01")
	before := f.balance(t, "E1", "CL")
	txsBefore, err := f.store.Transactions(f.ctx, "E1", "CL")
	require.NoError(t, err)

	_, err = f.ledger.Regularize(f.ctx, "E1", day("2024-03-05"), "CL")

	require.Error(t, err)
	var ib *generic.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assert.Equal(t, "0.5", ib.Remaining.String())
	assert.Equal(t, "1", ib.Requested.String())

	assert.Equal(t, before, f.balance(t, "E1", "CL"))
	_, ok, err := f.store.ApplicationOn(f.ctx, "E1", day("2024-03-05"))
	require.NoError(t, err)
	assert.False(t, ok)
	txsAfter, err := f.store.Transactions(f.ctx, "E1", "CL")
	require.NoError(t, err)
	assert.Len(t, txsAfter, len(txsBefore))
}

func TestRegularize_NoBalanceRow_IsInsufficient(t *testing.T) {
	f := newFixture(t)
	f.employee(t, "E1", "2024-01-01")
	f.leaveType(t, "CL")

	_, err := f.ledger.Regularize(f.ctx, "E1", day("2024-03-05"), "CL")

	assert.ErrorIs(t, err, generic.ErrInsufficientBalance)
	assert.True(t, generic.IsConflict(err))
}

func TestRegularize_SameDayTwice_IsNoOp(t *testing.T) {
	f := newFixture(t)
	f.employee(t, "E1", "2024-01-01")
	f.leaveType(t, "CL")
	f.fixedRule(t, "cl", "CL", 3)
	f.credit(t, "E1", "2024-03-01")

	first, err := f.ledger.Regularize(f.ctx, "E1", day("2024-03-05"), "CL")
	require.NoError(t, err)
	second, err := f.ledger.Regularize(f.ctx, "E1", day("2024-03-05"), "CL")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, f.balance(t, "E1", "CL").Remaining.Equal(generic.Days(2)))
}

func TestRegularize_UnknownReferences(t *testing.T) {
	f := newFixture(t)
	f.employee(t, "E1", "2024-01-01")

	_, err := f.ledger.Regularize(f.ctx, "E404", day("2024-03-05"), "CL")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	_, err = f.ledger.Regularize(f.ctx, "E1", day("2024-03-05"), "XX")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	_, err = f.ledger.Regularize(f.ctx, "E1", generic.TimePoint{}, "CL")
	assert.ErrorIs(t, err, generic.ErrValidation)
}

// =============================================================================
// AUDIT
// =============================================================================

func TestAudit_OnlyWithinEmploymentSpan(t *testing.T) {
	// GIVEN: E1 joins on Wednesday, E2 leaves on Tuesday, nobody punches
	// WHEN: Monday..Friday is audited
	// THEN: E1 is absent Wed-Fri, E2 Mon-Tue; ordered by employee then date
	f := newFixture(t)
	f.employee(t, "E1", "2024-03-06")
	f.employee(t, "E2", "2023-01-01", func(e *leave.Employee) { e.LeaveDate = day("2024-03-05") })
	f.employee(t, "E3", "2024-04-01")

	absences, err := f.auditor.Absences(f.ctx, period(t, "2024-03-04", "2024-03-08"))
	require.NoError(t, err)

	var got []string
	for _, a := range absences {
		got = append(got, string(a.EmployeeCode)+" "+a.Date.Key())
	}
	assert.Equal(t, []string{
		"E1 2024-03-06", "E1 2024-03-07", "E1 2024-03-08",
		"E2 2024-03-04", "E2 2024-03-05",
	}, got)
}

func TestAudit_NoWeeklyOffSetting_WeekendsCount(t *testing.T) {
	f := newFixture(t)
	f.employee(t, "E1", "2024-01-01")

	absences, err := f.auditor.Absences(f.ctx, period(t, "2024-03-09", "2024-03-10"))
	require.NoError(t, err)
	assert.Len(t, absences, 2)
}

func TestAudit_InvalidPeriod(t *testing.T) {
	f := newFixture(t)

	_, err := f.auditor.Absences(f.ctx, generic.Period{Start: day("2024-03-10"), End: day("2024-03-01")})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	_, err = f.auditor.Absences(f.ctx, generic.Period{Start: day("0001-01-01"), End: day("9999-12-31")})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestFindAbsences_DeduplicatesRepeatedFacts(t *testing.T) {
	// Property: no (employee, date) pair appears twice, however the facts repeat.
	emp := leave.Employee{Code: "E1", JoinDate: day("2024-01-01")}
	facts := []leave.EmployeeFacts{
		{Employee: emp, Worked: leave.PunchIndex{}},
		{Employee: emp, Worked: leave.PunchIndex{}},
	}
	covered := map[string]struct{}{leave.DayKey("E1", day("2024-03-06")): {}}

	absences := leave.FindAbsences(facts, covered, period(t, "2024-03-04", "2024-03-06"))

	require.Len(t, absences, 2)
	assert.Equal(t, "2024-03-04", absences[0].Date.Key())
	assert.Equal(t, "2024-03-05", absences[1].Date.Key())
}
