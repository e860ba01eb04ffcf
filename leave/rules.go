/*
rules.go - Leave rule evaluation

PURPOSE:
  Computes, for one employee, the opening-balance contribution of every
  active rule and writes the result to the ledger.

EVALUATION (per rule, in catalog order):
  1. rule and its leave type must be active; leave type gender must apply
  2. skip if daysEmployed(asOf) < eligibility_days
  3. scope: Global | Department | Specific Employees (comma list,
     trimmed, case-insensitive)
  4. Fixed, Working Days Based   -> allocated_count
     Work on Weekly Off          -> earnedCO * allocated_count over the
                                    lookback window ending at asOf (or the
                                    caller's period)
  5. contributions for the same leave type merge by MergeMode:
       last_write_wins  the last matching rule's figure survives
       accumulate       figures are summed
  6. one setOpening per leave type, each in its own store transaction.
     An opening never drops below used: a contribution smaller than the
     days already consumed (a used comp-off day leaving the lookback
     window) holds the opening at used and is reported in Accrual.Clamped.
     A store failure stops the pass; leave types already written stay.

  Skipped rules contribute nothing and write nothing: an employee inside
  the eligibility window gets no balance row from that rule.

SEE ALSO:
  - compoff.go: earnedCO
  - ledger.go: setOpening
  - credit.go: the roster-wide batch
*/
package leave

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// DefaultLookbackDays is the trailing window Work on Weekly Off rules scan.
const DefaultLookbackDays = 90

// MergeMode decides how several rules for one leave type combine.
type MergeMode string

const (
	MergeLastWriteWins MergeMode = "last_write_wins"
	MergeAccumulate    MergeMode = "accumulate"
)

func ParseMergeMode(s string) (MergeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(MergeLastWriteWins):
		return MergeLastWriteWins, nil
	case string(MergeAccumulate):
		return MergeAccumulate, nil
	}
	return "", generic.Invalid("merge_mode", "unknown merge mode %q", s)
}

// Contribution is one rule's effect on one leave type.
type Contribution struct {
	RuleID     string
	LeaveType  generic.LeaveTypeCode
	Allocation AllocationType
	Days       decimal.Decimal
	// EarnedCompOff is set for Work on Weekly Off rules.
	EarnedCompOff int
}

// Accrual is the outcome of one rule pass for one employee.
type Accrual struct {
	EmployeeCode  generic.EmployeeCode
	AsOf          generic.TimePoint
	Contributions []Contribution
	Balances      []generic.Balance
	Clamped       []ClampedOpening
}

// ClampedOpening reports a leave type whose new contribution fell below the
// days already used. The opening is held at Used, leaving nothing remaining.
type ClampedOpening struct {
	LeaveType    generic.LeaveTypeCode
	Contribution decimal.Decimal
	Used         decimal.Decimal
}

type Evaluator struct {
	Directory    Directory
	Store        LedgerStore
	CompOff      *CompOffDetector
	LookbackDays int
	Merge        MergeMode
	Logger       *slog.Logger
	Now          func() time.Time
}

func NewEvaluator(dir Directory, att Attendance, store LedgerStore, loc *time.Location, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		Directory:    dir,
		Store:        store,
		CompOff:      &CompOffDetector{Directory: dir, Attendance: att, Location: loc},
		LookbackDays: DefaultLookbackDays,
		Merge:        MergeLastWriteWins,
		Logger:       logger,
		Now:          time.Now,
	}
}

// catalog is the rule set and leave types loaded once per pass or batch.
type catalog struct {
	rules []LeaveRule
	types map[generic.LeaveTypeCode]LeaveType
}

func (e *Evaluator) loadCatalog(ctx context.Context) (catalog, error) {
	rules, err := e.Directory.LeaveRules(ctx)
	if err != nil {
		return catalog{}, fmt.Errorf("load leave rules: %w", err)
	}
	types, err := e.Directory.LeaveTypes(ctx)
	if err != nil {
		return catalog{}, fmt.Errorf("load leave types: %w", err)
	}
	c := catalog{rules: rules, types: make(map[generic.LeaveTypeCode]LeaveType, len(types))}
	for _, lt := range types {
		c.types[lt.Code] = lt
	}
	return c, nil
}

// Evaluate computes contributions without writing anything. period, when
// non-nil, replaces the trailing lookback window for comp-off rules.
func (e *Evaluator) Evaluate(ctx context.Context, emp Employee, asOf generic.TimePoint, period *generic.Period) ([]Contribution, error) {
	c, err := e.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return e.evaluate(ctx, c, emp, asOf, period)
}

func (e *Evaluator) evaluate(ctx context.Context, c catalog, emp Employee, asOf generic.TimePoint, period *generic.Period) ([]Contribution, error) {
	if emp.Status == StatusInactive {
		return nil, nil
	}

	window := generic.TrailingPeriod(asOf, e.lookback())
	if period != nil {
		window = *period
	}

	var out []Contribution
	var compOff *CompOffReport
	daysEmployed := emp.DaysEmployed(asOf)

	for _, rule := range c.rules {
		if rule.Status == StatusInactive {
			continue
		}
		lt, ok := c.types[rule.LeaveType]
		if !ok || lt.Status == StatusInactive || !lt.AppliesTo(emp) {
			continue
		}
		if daysEmployed < rule.EligibilityDays {
			continue
		}
		if !rule.Matches(emp) {
			continue
		}

		contrib := Contribution{RuleID: rule.ID, LeaveType: rule.LeaveType, Allocation: rule.Allocation}
		switch rule.Allocation {
		case AllocationWorkOnWeeklyOff:
			if compOff == nil {
				report, err := e.CompOff.Report(ctx, emp.Code, window, asOf)
				if err != nil {
					return nil, fmt.Errorf("comp-off for %s: %w", emp.Code, err)
				}
				compOff = &report
			}
			contrib.EarnedCompOff = compOff.Earned
			contrib.Days = decimal.NewFromInt(int64(compOff.Earned)).Mul(rule.AllocatedCount)
		default:
			contrib.Days = rule.AllocatedCount
		}
		out = append(out, contrib)
	}
	return out, nil
}

func (e *Evaluator) lookback() int {
	if e.LookbackDays <= 0 {
		return DefaultLookbackDays
	}
	return e.LookbackDays
}

// MergeContributions folds contributions into one opening figure per leave
// type. Leave types are returned in first-seen order.
func MergeContributions(mode MergeMode, contribs []Contribution) ([]generic.LeaveTypeCode, map[generic.LeaveTypeCode]decimal.Decimal) {
	var order []generic.LeaveTypeCode
	totals := make(map[generic.LeaveTypeCode]decimal.Decimal)
	for _, c := range contribs {
		prev, seen := totals[c.LeaveType]
		if !seen {
			order = append(order, c.LeaveType)
		}
		if mode == MergeAccumulate {
			totals[c.LeaveType] = prev.Add(c.Days)
		} else {
			totals[c.LeaveType] = c.Days
		}
	}
	return order, totals
}

// Apply evaluates and writes one employee's openings, one leave type per
// store transaction.
func (e *Evaluator) Apply(ctx context.Context, code generic.EmployeeCode, asOf generic.TimePoint, period *generic.Period) (Accrual, error) {
	emp, err := e.Directory.Employee(ctx, code)
	if err != nil {
		return Accrual{}, err
	}
	c, err := e.loadCatalog(ctx)
	if err != nil {
		return Accrual{}, err
	}
	return e.apply(ctx, c, emp, asOf, period)
}

func (e *Evaluator) apply(ctx context.Context, c catalog, emp Employee, asOf generic.TimePoint, period *generic.Period) (Accrual, error) {
	contribs, err := e.evaluate(ctx, c, emp, asOf, period)
	if err != nil {
		return Accrual{}, err
	}
	result := Accrual{EmployeeCode: emp.Code, AsOf: asOf, Contributions: contribs}
	if len(contribs) == 0 {
		return result, nil
	}

	order, totals := MergeContributions(e.Merge, contribs)
	now := e.now()
	for _, lt := range order {
		var (
			b       generic.Balance
			clamped *ClampedOpening
		)
		err := e.Store.WithTx(ctx, func(tx LedgerTx) error {
			opening := generic.NewAmountFromDecimal(totals[lt], generic.UnitDays)
			current, ok, err := tx.Balance(ctx, emp.Code, lt)
			if err != nil {
				return err
			}
			clamped = nil
			if ok && opening.LessThan(current.Used) {
				clamped = &ClampedOpening{LeaveType: lt, Contribution: totals[lt], Used: current.Used.Value}
				opening = current.Used
			}
			b, err = setOpening(ctx, tx, emp.Code, lt, opening, asOf, "rule pass", now)
			return err
		})
		if err != nil {
			return result, fmt.Errorf("set opening %s/%s: %w", emp.Code, lt, err)
		}
		result.Balances = append(result.Balances, b)
		if clamped != nil {
			result.Clamped = append(result.Clamped, *clamped)
			e.Logger.WarnContext(ctx, "opening clamped to used days",
				slog.String("employee", string(emp.Code)),
				slog.String("leave_type", string(lt)),
				slog.String("contribution", clamped.Contribution.String()),
				slog.String("used", clamped.Used.String()),
			)
		}
	}

	e.Logger.DebugContext(ctx, "rule pass applied",
		slog.String("employee", string(emp.Code)),
		slog.String("as_of", asOf.Key()),
		slog.Int("leave_types", len(order)),
	)
	return result, nil
}

func (e *Evaluator) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
