package leave

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// REQUEST SERVICE - Leave request state machine
// =============================================================================
//
//   Pending --Approve--> Approved   debit total_days, one application per day
//   Pending --Reject---> Rejected   no side effects
//
// Both targets are terminal. Submission pre-checks the balance; approval
// re-checks it inside the store transaction, which is what settles a race
// between two pending requests against the same balance. A span that
// touches a day already carrying a leave application (regularized, or
// covered by an approved request) is refused at both steps, so no day is
// ever debited twice.

type RequestService struct {
	Directory Directory
	Store     LedgerStore
	Logger    *slog.Logger
	Now       func() time.Time
}

func NewRequestService(dir Directory, store LedgerStore, logger *slog.Logger) *RequestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestService{Directory: dir, Store: store, Logger: logger, Now: time.Now}
}

type SubmitInput struct {
	EmployeeCode generic.EmployeeCode
	LeaveType    generic.LeaveTypeCode
	Start        generic.TimePoint
	End          generic.TimePoint
	Reason       string
}

// Submit validates and records a Pending request. total_days is the number
// of calendar days in the span.
func (rs *RequestService) Submit(ctx context.Context, in SubmitInput) (LeaveRequest, error) {
	if in.Start.IsZero() || in.End.IsZero() {
		return LeaveRequest{}, generic.Invalid("dates", "start and end are required")
	}
	period, err := generic.NewPeriod(in.Start, in.End)
	if err != nil {
		return LeaveRequest{}, err
	}
	if err := period.Bounded(generic.MaxPeriodDays); err != nil {
		return LeaveRequest{}, err
	}
	if _, err := rs.Directory.Employee(ctx, in.EmployeeCode); err != nil {
		return LeaveRequest{}, err
	}
	if _, err := rs.Directory.LeaveType(ctx, in.LeaveType); err != nil {
		return LeaveRequest{}, err
	}

	req := LeaveRequest{
		ID:           uuid.NewString(),
		EmployeeCode: in.EmployeeCode,
		LeaveType:    in.LeaveType,
		Start:        period.Start,
		End:          period.End,
		TotalDays:    period.Len(),
		Reason:       strings.TrimSpace(in.Reason),
		Status:       RequestPending,
		CreatedAt:    rs.now(),
	}

	err = rs.Store.WithTx(ctx, func(tx LedgerTx) error {
		if err := checkUncovered(ctx, tx, req.EmployeeCode, period); err != nil {
			return err
		}
		if err := checkBalance(ctx, tx, req.EmployeeCode, req.LeaveType, req.days()); err != nil {
			return err
		}
		return tx.PutRequest(ctx, req)
	})
	if err != nil {
		return LeaveRequest{}, fmt.Errorf("submit leave request: %w", err)
	}
	return req, nil
}

// Approve moves a Pending request to Approved and consumes its days.
func (rs *RequestService) Approve(ctx context.Context, id, approver string) (LeaveRequest, error) {
	var out LeaveRequest
	err := rs.Store.WithTx(ctx, func(tx LedgerTx) error {
		req, err := pendingRequest(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := checkUncovered(ctx, tx, req.EmployeeCode, req.Period()); err != nil {
			return err
		}

		now := rs.now()
		key := "request:" + req.ID
		if _, err := debit(ctx, tx, req.EmployeeCode, req.LeaveType, req.days(), req.Start, req.ID, "leave request approved", key, now); err != nil {
			return err
		}

		for _, day := range req.Period().Days() {
			app := LeaveApplication{
				ID:           uuid.NewString(),
				EmployeeCode: req.EmployeeCode,
				Date:         day,
				LeaveType:    req.LeaveType,
				Source:       SourceRequest,
				Reference:    req.ID,
				CreatedAt:    now,
			}
			if err := tx.PutApplication(ctx, app); err != nil {
				return fmt.Errorf("record application for %s: %w", day, err)
			}
		}

		req.Status = RequestApproved
		req.DecidedBy = approver
		req.DecidedAt = now
		out = req
		return tx.PutRequest(ctx, req)
	})
	if err != nil {
		return LeaveRequest{}, fmt.Errorf("approve leave request %s: %w", id, err)
	}

	rs.Logger.InfoContext(ctx, "leave request approved",
		slog.String("request", out.ID),
		slog.String("employee", string(out.EmployeeCode)),
		slog.Int("days", out.TotalDays),
	)
	return out, nil
}

// Reject moves a Pending request to Rejected.
func (rs *RequestService) Reject(ctx context.Context, id, approver string) (LeaveRequest, error) {
	var out LeaveRequest
	err := rs.Store.WithTx(ctx, func(tx LedgerTx) error {
		req, err := pendingRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		req.Status = RequestRejected
		req.DecidedBy = approver
		req.DecidedAt = rs.now()
		out = req
		return tx.PutRequest(ctx, req)
	})
	if err != nil {
		return LeaveRequest{}, fmt.Errorf("reject leave request %s: %w", id, err)
	}
	return out, nil
}

func (rs *RequestService) Get(ctx context.Context, id string) (LeaveRequest, error) {
	return rs.Store.Request(ctx, id)
}

func (rs *RequestService) List(ctx context.Context, status RequestStatus) ([]LeaveRequest, error) {
	return rs.Store.Requests(ctx, status)
}

func (rs *RequestService) now() time.Time {
	if rs.Now == nil {
		return time.Now()
	}
	return rs.Now()
}

func (r LeaveRequest) days() generic.Amount {
	return generic.NewAmountFromInt(r.TotalDays, generic.UnitDays)
}

func pendingRequest(ctx context.Context, tx LedgerTx, id string) (LeaveRequest, error) {
	req, err := tx.Request(ctx, id)
	if err != nil {
		return LeaveRequest{}, err
	}
	if req.Status != RequestPending {
		return LeaveRequest{}, fmt.Errorf("request is %s: %w", req.Status, generic.ErrInvalidTransition)
	}
	return req, nil
}

func checkBalance(ctx context.Context, tx LedgerTx, code generic.EmployeeCode, lt generic.LeaveTypeCode, n generic.Amount) error {
	b, ok, err := tx.Balance(ctx, code, lt)
	if err != nil {
		return err
	}
	if !ok {
		b = generic.NewBalance(code, lt, generic.Days(0))
	}
	if !b.CanDebit(n) {
		return &generic.InsufficientBalanceError{
			EmployeeCode: code,
			LeaveType:    lt,
			Remaining:    b.Remaining,
			Requested:    n,
		}
	}
	return nil
}

func checkUncovered(ctx context.Context, tx LedgerTx, code generic.EmployeeCode, p generic.Period) error {
	apps, err := tx.Applications(ctx, code, p)
	if err != nil {
		return err
	}
	if len(apps) > 0 {
		return fmt.Errorf("%s (%s): %w", apps[0].Date, apps[0].LeaveType, generic.ErrDayCovered)
	}
	return nil
}
