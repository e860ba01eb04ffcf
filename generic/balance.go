/*
balance.go - LeaveBalance arithmetic

PURPOSE:
  A LeaveBalance is the materialized ledger row for one
  (employee, leave type) pair. This file owns the only arithmetic allowed
  on it, so the invariant lives in one place:

    remaining = opening - used        (always)
    remaining >= 0                    (after every ledger operation)

OPERATIONS:
  WithOpening(x): a rule pass sets the opening figure. used is kept;
                  remaining is recomputed. Fails if x < used.
  Debit(n):       leave is consumed. Fails if remaining < n.

  Both return a NEW Balance; the receiver is never modified. Callers persist
  the result inside a store transaction after re-reading the row, so that
  two concurrent debits cannot both see the same stale remaining.

SEE ALSO:
  - leave/ledger.go: check-then-write inside Store.WithTx
  - errors.go: InsufficientBalanceError
*/
package generic

import "time"

// Balance is one (employee, leave type) ledger row.
type Balance struct {
	EmployeeCode EmployeeCode
	LeaveType    LeaveTypeCode
	Opening      Amount
	Used         Amount
	Remaining    Amount
	UpdatedAt    time.Time
}

// NewBalance creates a fresh row with nothing used.
func NewBalance(emp EmployeeCode, lt LeaveTypeCode, opening Amount) Balance {
	return Balance{
		EmployeeCode: emp,
		LeaveType:    lt,
		Opening:      opening,
		Used:         opening.Zero(),
		Remaining:    opening,
	}
}

// Consistent reports whether the row satisfies the ledger invariant.
func (b Balance) Consistent() bool {
	return b.Remaining.Equal(b.Opening.Sub(b.Used)) && !b.Remaining.IsNegative()
}

// CanDebit reports whether n days can be consumed.
func (b Balance) CanDebit(n Amount) bool {
	return !b.Remaining.Sub(n).IsNegative()
}

// Debit consumes n days.
func (b Balance) Debit(n Amount) (Balance, error) {
	if n.IsNegative() {
		return b, Invalid("amount", "debit must not be negative, got %s", n)
	}
	if !b.CanDebit(n) {
		return b, &InsufficientBalanceError{
			EmployeeCode: b.EmployeeCode,
			LeaveType:    b.LeaveType,
			Remaining:    b.Remaining,
			Requested:    n,
		}
	}
	b.Used = b.Used.Add(n)
	b.Remaining = b.Opening.Sub(b.Used)
	return b, nil
}

// WithOpening replaces the opening figure and recomputes remaining.
func (b Balance) WithOpening(opening Amount) (Balance, error) {
	if opening.IsNegative() {
		return b, Invalid("opening", "must not be negative, got %s", opening)
	}
	remaining := opening.Sub(b.Used)
	if remaining.IsNegative() {
		return b, &InsufficientBalanceError{
			EmployeeCode: b.EmployeeCode,
			LeaveType:    b.LeaveType,
			Remaining:    opening,
			Requested:    b.Used,
		}
	}
	b.Opening = opening
	b.Remaining = remaining
	return b, nil
}
