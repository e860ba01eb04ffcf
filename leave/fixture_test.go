package leave_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	ctx   context.Context
	store *memory.Store
	log   *slog.Logger

	evaluator *leave.Evaluator
	ledger    *leave.Ledger
	requests  *leave.RequestService
	auditor   *leave.Auditor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		ctx:       context.Background(),
		store:     store,
		log:       logger,
		evaluator: leave.NewEvaluator(store, store, store, time.UTC, logger),
		ledger:    leave.NewLedger(store, store, logger),
		requests:  leave.NewRequestService(store, store, logger),
		auditor:   &leave.Auditor{Directory: store, Attendance: store, Ledger: store, Location: time.UTC},
	}
}

func day(s string) generic.TimePoint { return generic.MustParseDate(s) }

func period(t *testing.T, from, to string) generic.Period {
	t.Helper()
	p, err := generic.NewPeriod(day(from), day(to))
	require.NoError(t, err)
	return p
}

func (f *fixture) employee(t *testing.T, code, joined string, opts ...func(*leave.Employee)) leave.Employee {
	t.Helper()
	e := leave.Employee{
		Code:       generic.EmployeeCode(code),
		Name:       code,
		Department: "Engineering",
		JoinDate:   day(joined),
		Status:     leave.StatusActive,
	}
	for _, opt := range opts {
		opt(&e)
	}
	require.NoError(t, f.store.SaveEmployee(f.ctx, e))
	return e
}

func (f *fixture) leaveType(t *testing.T, code string, opts ...func(*leave.LeaveType)) {
	t.Helper()
	lt := leave.LeaveType{Code: generic.LeaveTypeCode(code), Name: code, Gender: leave.GenderAll, Status: leave.StatusActive}
	for _, opt := range opts {
		opt(&lt)
	}
	require.NoError(t, f.store.SaveLeaveType(f.ctx, lt))
}

func (f *fixture) fixedRule(t *testing.T, id, lt string, count float64, opts ...func(*leave.LeaveRule)) {
	t.Helper()
	r := leave.LeaveRule{
		ID:             id,
		LeaveType:      generic.LeaveTypeCode(lt),
		Allocation:     leave.AllocationFixed,
		Scope:          leave.ScopeGlobal,
		AllocatedCount: decimal.NewFromFloat(count),
		Status:         leave.StatusActive,
	}
	for _, opt := range opts {
		opt(&r)
	}
	require.NoError(t, f.store.SaveLeaveRule(f.ctx, r))
}

func (f *fixture) weekend(t *testing.T, code string, sandwich bool) {
	t.Helper()
	require.NoError(t, f.store.SaveWeeklyOff(f.ctx, leave.WeeklyOffSetting{
		EmployeeCode: generic.EmployeeCode(code),
		Days:         []time.Weekday{time.Saturday, time.Sunday},
		SandwichRule: sandwich,
	}))
}

// punch records a 10:00 UTC punch on each date.
func (f *fixture) punch(t *testing.T, code string, dates ...string) {
	t.Helper()
	for _, d := range dates {
		at := day(d).StartIn(time.UTC).Add(10 * time.Hour)
		require.NoError(t, f.store.RecordPunch(f.ctx, leave.Punch{EmployeeCode: generic.EmployeeCode(code), At: at}))
	}
}

// credit runs the rule pass for one employee.
func (f *fixture) credit(t *testing.T, code, asOf string) leave.Accrual {
	t.Helper()
	acc, err := f.evaluator.Apply(f.ctx, generic.EmployeeCode(code), day(asOf), nil)
	require.NoError(t, err)
	return acc
}

func (f *fixture) balance(t *testing.T, code, lt string) generic.Balance {
	t.Helper()
	b, ok, err := f.store.Balance(f.ctx, generic.EmployeeCode(code), generic.LeaveTypeCode(lt))
	require.NoError(t, err)
	require.True(t, ok, "balance %s/%s should exist", code, lt)
	return b
}
