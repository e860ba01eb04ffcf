/*
ledger.go - Balance row mutations with their journal entries

PURPOSE:
  The two primitive ledger writes, each a check-then-write against a row
  re-read inside the caller's store transaction:

    setOpening(x)   rule pass replaces opening; used is kept
    debit(n)        leave consumed; fails if remaining < n

  Each appends one journal Transaction through the same LedgerTx, so the row
  and its explanation commit or roll back together.

  Regularize builds on debit: it turns one audited absence into a leave
  day (application insert + debit 1) atomically.

CRITICAL INVARIANTS:
  1. remaining = opening - used after every write
  2. remaining >= 0 after every write; violating writes fail with
     InsufficientBalanceError and leave the store unchanged
  3. at most one LeaveApplication per (employee, date)

SEE ALSO:
  - generic/balance.go: the row arithmetic
  - request.go: approval debits total_days through the same primitive
  - rules.go: rule passes write through setOpening
*/
package leave

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/warp/payroll-engine/generic"
)

// Ledger owns every LeaveBalance mutation outside a rule pass.
type Ledger struct {
	Store     LedgerStore
	Directory Directory
	Logger    *slog.Logger
	Now       func() time.Time
}

func NewLedger(store LedgerStore, dir Directory, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{Store: store, Directory: dir, Logger: logger, Now: time.Now}
}

func (l *Ledger) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

// =============================================================================
// READS
// =============================================================================

func (l *Ledger) Balances(ctx context.Context, code generic.EmployeeCode) ([]generic.Balance, error) {
	if _, err := l.Directory.Employee(ctx, code); err != nil {
		return nil, err
	}
	return l.Store.Balances(ctx, code)
}

func (l *Ledger) Applications(ctx context.Context, code generic.EmployeeCode, p generic.Period) ([]LeaveApplication, error) {
	return l.Store.Applications(ctx, code, p)
}

// History returns the journal for one balance together with the balance a
// replay of it produces.
func (l *Ledger) History(ctx context.Context, code generic.EmployeeCode, lt generic.LeaveTypeCode) ([]generic.Transaction, generic.Balance, error) {
	txs, err := l.Store.Transactions(ctx, code, lt)
	if err != nil {
		return nil, generic.Balance{}, err
	}
	return txs, generic.Replay(code, lt, txs), nil
}

// =============================================================================
// REGULARIZE - Absence to leave day
// =============================================================================

// Regularize converts the absence of code on day into one day of lt. If the
// day already carries an application, that application is returned and
// nothing is written.
func (l *Ledger) Regularize(ctx context.Context, code generic.EmployeeCode, day generic.TimePoint, lt generic.LeaveTypeCode) (LeaveApplication, error) {
	if day.IsZero() {
		return LeaveApplication{}, generic.Invalid("date", "is required")
	}
	if _, err := l.Directory.Employee(ctx, code); err != nil {
		return LeaveApplication{}, err
	}
	if _, err := l.Directory.LeaveType(ctx, lt); err != nil {
		return LeaveApplication{}, err
	}

	var result LeaveApplication
	err := l.Store.WithTx(ctx, func(tx LedgerTx) error {
		existing, ok, err := tx.ApplicationOn(ctx, code, day)
		if err != nil {
			return err
		}
		if ok {
			result = existing
			return nil
		}

		now := l.now()
		key := fmt.Sprintf("regularize:%s:%s", code, day.Key())
		if _, err := debit(ctx, tx, code, lt, generic.Days(1), day, "", "absence regularized", key, now); err != nil {
			return err
		}

		result = LeaveApplication{
			ID:           uuid.NewString(),
			EmployeeCode: code,
			Date:         day,
			LeaveType:    lt,
			Source:       SourceRegularization,
			CreatedAt:    now,
		}
		return tx.PutApplication(ctx, result)
	})
	if err != nil {
		return LeaveApplication{}, fmt.Errorf("regularize %s on %s: %w", code, day, err)
	}

	l.Logger.InfoContext(ctx, "absence regularized",
		slog.String("employee", string(code)),
		slog.String("date", day.Key()),
		slog.String("leave_type", string(result.LeaveType)),
	)
	return result, nil
}

// =============================================================================
// PRIMITIVES - Call only inside WithTx
// =============================================================================

// setOpening replaces the opening figure of one balance, creating the row
// when missing. The journal records the change of opening as a grant (up)
// or an adjustment (down); an unchanged opening is not journaled.
func setOpening(ctx context.Context, tx LedgerTx, code generic.EmployeeCode, lt generic.LeaveTypeCode, opening generic.Amount, asOf generic.TimePoint, reason string, now time.Time) (generic.Balance, error) {
	current, ok, err := tx.Balance(ctx, code, lt)
	if err != nil {
		return generic.Balance{}, err
	}
	if !ok {
		current = generic.NewBalance(code, lt, generic.Days(0))
	}

	next, err := current.WithOpening(opening)
	if err != nil {
		return current, err
	}
	next.UpdatedAt = now
	if err := tx.PutBalance(ctx, next); err != nil {
		return current, err
	}

	delta := next.Opening.Sub(current.Opening)
	if delta.IsZero() {
		return next, nil
	}
	txType := generic.TxGrant
	if delta.IsNegative() {
		txType = generic.TxAdjustment
	}
	id := uuid.NewString()
	return next, tx.Append(ctx, generic.Transaction{
		ID:             generic.TransactionID(id),
		EmployeeCode:   code,
		LeaveType:      lt,
		EffectiveAt:    asOf,
		Delta:          delta,
		Type:           txType,
		Reason:         reason,
		IdempotencyKey: "opening:" + id,
		CreatedAt:      generic.LocalDay(now, time.UTC),
	})
}

// debit consumes n days. A missing row has nothing to consume.
func debit(ctx context.Context, tx LedgerTx, code generic.EmployeeCode, lt generic.LeaveTypeCode, n generic.Amount, day generic.TimePoint, ref, reason, key string, now time.Time) (generic.Balance, error) {
	current, ok, err := tx.Balance(ctx, code, lt)
	if err != nil {
		return generic.Balance{}, err
	}
	if !ok {
		return generic.Balance{}, &generic.InsufficientBalanceError{
			EmployeeCode: code,
			LeaveType:    lt,
			Remaining:    generic.Days(0),
			Requested:    n,
		}
	}

	next, err := current.Debit(n)
	if err != nil {
		return current, err
	}
	next.UpdatedAt = now
	if err := tx.PutBalance(ctx, next); err != nil {
		return current, err
	}

	return next, tx.Append(ctx, generic.Transaction{
		ID:             generic.TransactionID(uuid.NewString()),
		EmployeeCode:   code,
		LeaveType:      lt,
		EffectiveAt:    day,
		Delta:          n.Neg(),
		Type:           generic.TxConsumption,
		ReferenceID:    ref,
		Reason:         reason,
		IdempotencyKey: key,
		CreatedAt:      generic.LocalDay(now, time.UTC),
	})
}
