package leave_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
)

func requestFixture(t *testing.T, credit float64) *fixture {
	t.Helper()
	f := newFixture(t)
	f.employee(t, "E1", "2024-01-01")
	f.leaveType(t, "CL")
	f.fixedRule(t, "cl", "CL", credit)
	f.credit(t, "E1", "2024-03-01")
	return f
}

func submit(t *testing.T, f *fixture, start, end string) leave.LeaveRequest {
	t.Helper()
	req, err := f.requests.Submit(f.ctx, leave.SubmitInput{
		EmployeeCode: "E1", LeaveType: "CL", Start: day(start), End: day(end), Reason: "trip",
	})
	require.NoError(t, err)
	return req
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_CountsCalendarDays(t *testing.T) {
	f := requestFixture(t, 10)

	req := submit(t, f, "2024-03-08", "2024-03-11")

	assert.Equal(t, 4, req.TotalDays)
	assert.Equal(t, leave.RequestPending, req.Status)
	assert.True(t, f.balance(t, "E1", "CL").Remaining.Equal(generic.Days(10)), "submission consumes nothing")
}

func TestSubmit_ExceedsRemaining_Rejected(t *testing.T) {
	// GIVEN: CL remaining = 2
	// WHEN: Submitting a 3-day request
	// THEN: InsufficientBalanceError and nothing is stored
	f := requestFixture(t, 2)

	_, err := f.requests.Submit(f.ctx, leave.SubmitInput{
		EmployeeCode: "E1", LeaveType: "CL", Start: day("2024-03-04"), End: day("2024-03-06"),
	})

	assert.ErrorIs(t, err, generic.ErrInsufficientBalance)
	all, err := f.requests.List(f.ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSubmit_InvalidInput(t *testing.T) {
	f := requestFixture(t, 5)

	_, err := f.requests.Submit(f.ctx, leave.SubmitInput{
		EmployeeCode: "E1", LeaveType: "CL", Start: day("2024-03-06"), End: day("2024-03-04"),
	})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
	assert.True(t, generic.IsClientError(err))

	_, err = f.requests.Submit(f.ctx, leave.SubmitInput{EmployeeCode: "E1", LeaveType: "CL"})
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = f.requests.Submit(f.ctx, leave.SubmitInput{
		EmployeeCode: "E1", LeaveType: "CL", Start: day("2024-01-01"), End: day("2025-06-30"),
	})
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = f.requests.Submit(f.ctx, leave.SubmitInput{
		EmployeeCode: "E1", LeaveType: "SL", Start: day("2024-03-04"), End: day("2024-03-04"),
	})
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// DECISIONS
// =============================================================================

func TestApprove_DebitsAndRecordsEachDay(t *testing.T) {
	f := requestFixture(t, 5)
	req := submit(t, f, "2024-03-04", "2024-03-06")

	approved, err := f.requests.Approve(f.ctx, req.ID, "manager")
	require.NoError(t, err)

	assert.Equal(t, leave.RequestApproved, approved.Status)
	assert.Equal(t, "manager", approved.DecidedBy)
	assert.False(t, approved.DecidedAt.IsZero())

	b := f.balance(t, "E1", "CL")
	assert.True(t, b.Used.Equal(generic.Days(3)))
	assert.True(t, b.Remaining.Equal(generic.Days(2)))

	apps, err := f.ledger.Applications(f.ctx, "E1", req.Period())
	require.NoError(t, err)
	require.Len(t, apps, 3)
	for _, app := range apps {
		assert.Equal(t, leave.SourceRequest, app.Source)
		assert.Equal(t, req.ID, app.Reference)
	}

	stored, err := f.requests.Get(f.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.RequestApproved, stored.Status)
}

func TestReject_HasNoSideEffects(t *testing.T) {
	f := requestFixture(t, 5)
	req := submit(t, f, "2024-03-04", "2024-03-06")

	rejected, err := f.requests.Reject(f.ctx, req.ID, "manager")
	require.NoError(t, err)

	assert.Equal(t, leave.RequestRejected, rejected.Status)
	assert.True(t, f.balance(t, "E1", "CL").Remaining.Equal(generic.Days(5)))
	apps, err := f.ledger.Applications(f.ctx, "E1", req.Period())
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestDecisions_AreTerminal(t *testing.T) {
	// GIVEN: One approved and one rejected request
	// WHEN: Either is decided again
	// THEN: ErrInvalidTransition, and the balance is debited only once
	f := requestFixture(t, 5)
	approved := submit(t, f, "2024-03-04", "2024-03-04")
	rejected := submit(t, f, "2024-03-05", "2024-03-05")
	_, err := f.requests.Approve(f.ctx, approved.ID, "m")
	require.NoError(t, err)
	_, err = f.requests.Reject(f.ctx, rejected.ID, "m")
	require.NoError(t, err)

	_, err = f.requests.Approve(f.ctx, approved.ID, "m")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
	_, err = f.requests.Reject(f.ctx, approved.ID, "m")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
	_, err = f.requests.Approve(f.ctx, rejected.ID, "m")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	assert.True(t, f.balance(t, "E1", "CL").Remaining.Equal(generic.Days(4)))
}

func TestRequests_CoveredDaysAreNotDebitedTwice(t *testing.T) {
	// GIVEN: CL remaining = 5 and Tuesday 5 March regularized with CL
	// WHEN: A request spanning the 5th is submitted, and a pending request
	//       whose day is regularized before approval is approved
	// THEN: Both are refused with ErrDayCovered; only the regularized days
	//       are debited and the second request stays pending
	f := requestFixture(t, 5)
	_, err := f.ledger.Regularize(f.ctx, "E1", day("2024-03-05"), "CL")
	require.NoError(t, err)

	_, err = f.requests.Submit(f.ctx, leave.SubmitInput{
		EmployeeCode: "E1", LeaveType: "CL", Start: day("2024-03-04"), End: day("2024-03-06"),
	})
	assert.ErrorIs(t, err, generic.ErrDayCovered)
	assert.True(t, generic.IsConflict(err))

	pending := submit(t, f, "2024-03-11", "2024-03-12")
	_, err = f.ledger.Regularize(f.ctx, "E1", day("2024-03-12"), "CL")
	require.NoError(t, err)

	_, err = f.requests.Approve(f.ctx, pending.ID, "m")
	assert.ErrorIs(t, err, generic.ErrDayCovered)

	b := f.balance(t, "E1", "CL")
	assert.True(t, b.Used.Equal(generic.Days(2)))
	stored, err := f.requests.Get(f.ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.RequestPending, stored.Status)
	app, ok, err := f.store.ApplicationOn(f.ctx, "E1", day("2024-03-12"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, leave.SourceRegularization, app.Source)
}

func TestApprove_UnknownRequest(t *testing.T) {
	f := requestFixture(t, 5)

	_, err := f.requests.Approve(f.ctx, "nope", "m")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestApprove_ConcurrentRequestsCannotOverdraw(t *testing.T) {
	// GIVEN: CL remaining = 3 and two pending 2-day requests (each passed the
	//        submission check on its own)
	// WHEN: Both are approved concurrently
	// THEN: Exactly one succeeds; remaining = 1, never negative
	f := requestFixture(t, 3)
	a := submit(t, f, "2024-03-04", "2024-03-05")
	b := submit(t, f, "2024-03-11", "2024-03-12")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.requests.Approve(f.ctx, id, "m")
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, generic.ErrInsufficientBalance)
	}
	assert.Equal(t, 1, succeeded)

	bal := f.balance(t, "E1", "CL")
	assert.True(t, bal.Remaining.Equal(generic.Days(1)))
	assert.True(t, bal.Consistent())

	pending, err := f.requests.List(f.ctx, leave.RequestPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "the losing request stays pending")
}
