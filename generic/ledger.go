/*
ledger.go - Append-only journal of balance changes

PURPOSE:
  LeaveBalance rows are mutable (opening is replaced by each rule pass,
  used grows with consumption). The journal is the audit trail beside them:
  every mutation appends one Transaction in the SAME store transaction as
  the row update, so "why is remaining 3?" can always be answered by
  replaying the journal.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

SEE ALSO:
  - balance.go: the row arithmetic the journal explains
  - leave/ledger.go: writes row + journal entry together
*/
package generic

import "context"

// Journal is the append-only side of the ledger.
type Journal interface {
	// Append adds a transaction. Fails with ErrDuplicateIdempotencyKey if the
	// key already exists.
	Append(ctx context.Context, tx Transaction) error

	// Transactions returns all transactions for employee+leave type,
	// chronologically.
	Transactions(ctx context.Context, emp EmployeeCode, lt LeaveTypeCode) ([]Transaction, error)
}

// Replay sums a journal into the balance it should have produced. Grants
// and adjustments move opening; consumption moves used.
func Replay(emp EmployeeCode, lt LeaveTypeCode, txs []Transaction) Balance {
	b := NewBalance(emp, lt, Days(0))
	for _, tx := range txs {
		switch tx.Type {
		case TxGrant, TxAdjustment:
			b.Opening = b.Opening.Add(tx.Delta)
		case TxConsumption:
			b.Used = b.Used.Add(tx.Delta.Neg())
		}
	}
	b.Remaining = b.Opening.Sub(b.Used)
	return b
}
