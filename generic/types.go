/*
Package generic provides the domain-agnostic building blocks of the engine.

PURPOSE:
  Types shared by the salary calculator and the leave subsystem: decimal
  quantities, civil calendar dates, periods, the ledger journal entry, and
  the error taxonomy. Nothing in this package knows what a "leave type" or
  an "earning component" is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity with a unit (days of leave, currency)
  - Transaction: An immutable journal entry recording a balance change
  - Identifiers: EmployeeCode and LeaveTypeCode

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64 arithmetic
  2. Immutability: journal entries are appended, never edited
  3. Type Safety: employee codes and leave type codes cannot be mixed up

USAGE:
  amount := generic.NewAmount(1, generic.UnitDays)
  tx := generic.Transaction{
      EmployeeCode: "E-001",
      LeaveType:    "CL",
      Delta:        amount.Neg(),
      Type:         generic.TxConsumption,
  }

SEE ALSO:
  - time.go: TimePoint (civil date) and local-day bucketing
  - calendar.go: month length, date iteration, weekday names
  - balance.go: LeaveBalance arithmetic and its invariant
  - errors.go: ValidationError, InsufficientBalanceError, NotFoundError
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const UnitDays Unit = "days"

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

// Days is shorthand for a leave quantity.
func Days(value float64) Amount { return NewAmount(value, UnitDays) }

// ParseDecimal parses s, treating anything non-numeric as zero.
func ParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) String() string               { return a.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeCode string
type LeaveTypeCode string
type TransactionID string

// =============================================================================
// TRANSACTION - Journal entry for a balance change
// =============================================================================

type TransactionType string

const (
	TxGrant       TransactionType = "grant"       // Opening balance set by a rule pass
	TxConsumption TransactionType = "consumption" // Leave used (regularized absence, approved request)
	TxAdjustment  TransactionType = "adjustment"  // Opening lowered by a later rule pass
)

// Transaction records one change to a LeaveBalance. The balance row is the
// materialized state; the journal explains how it got there.
type Transaction struct {
	ID             TransactionID
	EmployeeCode   EmployeeCode
	LeaveType      LeaveTypeCode
	EffectiveAt    TimePoint
	Delta          Amount
	Type           TransactionType
	ReferenceID    string
	Reason         string
	IdempotencyKey string
	CreatedAt      TimePoint
}
