/*
store.go - Persistence contracts for the leave subsystem

PURPOSE:
  The engine reads reference data it does not own (roster, catalogs,
  weekly-off settings, punches) and is the sole writer of derived ledger
  rows (balances, applications, requests, journal).

  Directory / Attendance   read-only inputs
  LedgerStore              ledger reads + WithTx for every mutation
  Registry / PunchLog      write side of the reference data, used by the
                           HTTP surface and the demo loader, never by the
                           engine itself

TRANSACTIONS:
  Every LeaveBalance mutation is one check-then-write inside WithTx. The
  LedgerTx handed to fn reads through the same transaction, so the balance
  it returns cannot go stale before the write. If fn returns an error every
  write made through the LedgerTx is rolled back.

SEE ALSO:
  - store/sqlite: production implementation
  - store/memory: snapshot/rollback implementation for tests
*/
package leave

import (
	"context"
	"time"

	"github.com/warp/payroll-engine/generic"
)

// Directory exposes the roster and the leave catalogs.
type Directory interface {
	Employee(ctx context.Context, code generic.EmployeeCode) (Employee, error)
	Employees(ctx context.Context) ([]Employee, error)
	LeaveType(ctx context.Context, code generic.LeaveTypeCode) (LeaveType, error)
	LeaveTypes(ctx context.Context) ([]LeaveType, error)
	// LeaveRules returns rules in evaluation order.
	LeaveRules(ctx context.Context) ([]LeaveRule, error)
	// WeeklyOff returns ok=false when the employee has no setting.
	WeeklyOff(ctx context.Context, code generic.EmployeeCode) (setting WeeklyOffSetting, ok bool, err error)
}

// Attendance exposes punch logs.
type Attendance interface {
	// Punches returns punches with from <= At < to, oldest first.
	Punches(ctx context.Context, code generic.EmployeeCode, from, to time.Time) ([]Punch, error)
}

// LedgerReader is the read side of the ledger.
type LedgerReader interface {
	// Balance returns ok=false when no row exists yet.
	Balance(ctx context.Context, code generic.EmployeeCode, lt generic.LeaveTypeCode) (b generic.Balance, ok bool, err error)
	Balances(ctx context.Context, code generic.EmployeeCode) ([]generic.Balance, error)
	// Applications lists applications dated within p. An empty code lists
	// every employee's.
	Applications(ctx context.Context, code generic.EmployeeCode, p generic.Period) ([]LeaveApplication, error)
	ApplicationOn(ctx context.Context, code generic.EmployeeCode, day generic.TimePoint) (app LeaveApplication, ok bool, err error)
	Request(ctx context.Context, id string) (LeaveRequest, error)
	// Requests lists requests, newest first. An empty status lists all.
	Requests(ctx context.Context, status RequestStatus) ([]LeaveRequest, error)
}

// LedgerTx is the view of the ledger inside one store transaction.
type LedgerTx interface {
	LedgerReader
	generic.Journal

	PutBalance(ctx context.Context, b generic.Balance) error
	// PutApplication upserts on (employee, date).
	PutApplication(ctx context.Context, app LeaveApplication) error
	PutRequest(ctx context.Context, r LeaveRequest) error
}

// LedgerStore is the ledger as seen from outside a transaction.
type LedgerStore interface {
	LedgerReader
	Transactions(ctx context.Context, code generic.EmployeeCode, lt generic.LeaveTypeCode) ([]generic.Transaction, error)
	WithTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// Registry is the write side of the reference data.
type Registry interface {
	Directory
	SaveEmployee(ctx context.Context, e Employee) error
	SaveLeaveType(ctx context.Context, lt LeaveType) error
	SaveLeaveRule(ctx context.Context, r LeaveRule) error
	SaveWeeklyOff(ctx context.Context, w WeeklyOffSetting) error
}

// PunchLog is the append side of attendance.
type PunchLog interface {
	Attendance
	RecordPunch(ctx context.Context, p Punch) error
}
