/*
credit.go - Roster-wide auto-credit

PURPOSE:
  Runs the rule pass for every active employee. The batch as a whole is
  NOT atomic: each (employee, leave type) opening is its own store
  transaction, a failure is recorded and the batch moves on, and
  cancellation is honoured between employees. Whatever was committed before a failure or cancellation stays
  committed and is reported in the summary.

SEE ALSO:
  - rules.go: Evaluator.apply (one employee, one transaction per leave type)
  - api/scheduler.go: runs CreditAll on an interval and records each run
*/
package leave

import (
	"context"
	"log/slog"
	"time"

	"github.com/warp/payroll-engine/generic"
)

type CreditFailure struct {
	EmployeeCode generic.EmployeeCode `json:"employee_code"`
	Error        string               `json:"error"`
}

// CreditRun is the summary of one batch. It is also what the run log stores.
type CreditRun struct {
	ID          string
	AsOf        generic.TimePoint
	Status      RunStatus
	Processed   int
	Skipped     int
	Failures    []CreditFailure
	StartedAt   time.Time
	CompletedAt time.Time
}

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial" // some employees failed
	RunCanceled  RunStatus = "canceled"
	RunFailed    RunStatus = "failed" // the roster or catalog could not be read
)

// RunLog persists batch summaries.
type RunLog interface {
	SaveCreditRun(ctx context.Context, run CreditRun) error
	CreditRuns(ctx context.Context, limit int) ([]CreditRun, error)
}

// CreditAll applies the rule pass to every active employee as of asOf. It
// returns ctx.Err() alongside the partial summary when canceled.
func (e *Evaluator) CreditAll(ctx context.Context, runID string, asOf generic.TimePoint) (CreditRun, error) {
	run := CreditRun{ID: runID, AsOf: asOf, Status: RunRunning, StartedAt: e.now()}

	employees, err := e.Directory.Employees(ctx)
	if err != nil {
		run.Status, run.CompletedAt = RunFailed, e.now()
		return run, err
	}
	c, err := e.loadCatalog(ctx)
	if err != nil {
		run.Status, run.CompletedAt = RunFailed, e.now()
		return run, err
	}

	for _, emp := range employees {
		if err := ctx.Err(); err != nil {
			run.Status = RunCanceled
			run.CompletedAt = e.now()
			e.Logger.WarnContext(ctx, "auto-credit canceled",
				slog.String("run", runID),
				slog.Int("processed", run.Processed),
			)
			return run, err
		}
		if emp.Status == StatusInactive {
			run.Skipped++
			continue
		}

		accrual, err := e.apply(ctx, c, emp, asOf, nil)
		if err != nil {
			run.Failures = append(run.Failures, CreditFailure{EmployeeCode: emp.Code, Error: err.Error()})
			e.Logger.WarnContext(ctx, "auto-credit failed for employee",
				slog.String("run", runID),
				slog.String("employee", string(emp.Code)),
				slog.Any("error", err),
			)
			continue
		}
		if len(accrual.Balances) == 0 {
			run.Skipped++
			continue
		}
		run.Processed++
	}

	run.Status = RunCompleted
	if len(run.Failures) > 0 {
		run.Status = RunPartial
	}
	run.CompletedAt = e.now()
	e.Logger.InfoContext(ctx, "auto-credit finished",
		slog.String("run", runID),
		slog.String("as_of", asOf.Key()),
		slog.Int("processed", run.Processed),
		slog.Int("skipped", run.Skipped),
		slog.Int("failed", len(run.Failures)),
	)
	return run, nil
}
