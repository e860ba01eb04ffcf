package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
)

// =============================================================================
// LEDGER READS (outside a transaction)
// =============================================================================

func (s *Store) Balance(ctx context.Context, code generic.EmployeeCode, lt generic.LeaveTypeCode) (generic.Balance, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBalance(ctx, s.db, code, lt)
}

func (s *Store) Balances(ctx context.Context, code generic.EmployeeCode) ([]generic.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBalances(ctx, s.db, code)
}

func (s *Store) Applications(ctx context.Context, code generic.EmployeeCode, p generic.Period) ([]leave.LeaveApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listApplications(ctx, s.db, code, p)
}

func (s *Store) ApplicationOn(ctx context.Context, code generic.EmployeeCode, day generic.TimePoint) (leave.LeaveApplication, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getApplication(ctx, s.db, code, day)
}

func (s *Store) Request(ctx context.Context, id string) (leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, id)
}

func (s *Store) Requests(ctx context.Context, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRequests(ctx, s.db, status)
}

func (s *Store) Transactions(ctx context.Context, code generic.EmployeeCode, lt generic.LeaveTypeCode) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTransactions(ctx, s.db, code, lt)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes fn within a database transaction. Every read and write
// fn makes through tx sees the transaction's own uncommitted state.
func (s *Store) WithTx(ctx context.Context, fn func(tx leave.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Balance(ctx context.Context, code generic.EmployeeCode, lt generic.LeaveTypeCode) (generic.Balance, bool, error) {
	return getBalance(ctx, ts.tx, code, lt)
}

func (ts *txStore) Balances(ctx context.Context, code generic.EmployeeCode) ([]generic.Balance, error) {
	return listBalances(ctx, ts.tx, code)
}

func (ts *txStore) Applications(ctx context.Context, code generic.EmployeeCode, p generic.Period) ([]leave.LeaveApplication, error) {
	return listApplications(ctx, ts.tx, code, p)
}

func (ts *txStore) ApplicationOn(ctx context.Context, code generic.EmployeeCode, day generic.TimePoint) (leave.LeaveApplication, bool, error) {
	return getApplication(ctx, ts.tx, code, day)
}

func (ts *txStore) Request(ctx context.Context, id string) (leave.LeaveRequest, error) {
	return getRequest(ctx, ts.tx, id)
}

func (ts *txStore) Requests(ctx context.Context, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	return listRequests(ctx, ts.tx, status)
}

func (ts *txStore) Transactions(ctx context.Context, code generic.EmployeeCode, lt generic.LeaveTypeCode) ([]generic.Transaction, error) {
	return listTransactions(ctx, ts.tx, code, lt)
}

func (ts *txStore) Append(ctx context.Context, tx generic.Transaction) error {
	return appendTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) PutBalance(ctx context.Context, b generic.Balance) error {
	_, err := ts.tx.ExecContext(ctx, `
		INSERT INTO leave_balances (employee_code, leave_type, opening, used, remaining, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_code, leave_type) DO UPDATE SET
			opening = excluded.opening,
			used = excluded.used,
			remaining = excluded.remaining,
			updated_at = excluded.updated_at
	`, b.EmployeeCode, b.LeaveType, b.Opening.Value.String(), b.Used.Value.String(),
		b.Remaining.Value.String(), formatInstant(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

func (ts *txStore) PutApplication(ctx context.Context, app leave.LeaveApplication) error {
	_, err := ts.tx.ExecContext(ctx, `
		INSERT INTO leave_applications (id, employee_code, date, leave_type, source, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_code, date) DO UPDATE SET
			leave_type = excluded.leave_type,
			source = excluded.source,
			reference = excluded.reference
	`, app.ID, app.EmployeeCode, app.Date.Key(), app.LeaveType, string(app.Source),
		nullString(app.Reference), formatInstant(app.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save leave application: %w", err)
	}
	return nil
}

func (ts *txStore) PutRequest(ctx context.Context, r leave.LeaveRequest) error {
	_, err := ts.tx.ExecContext(ctx, `
		INSERT INTO leave_requests (id, employee_code, leave_type, start_date, end_date, total_days,
			reason, status, decided_by, decided_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			decided_by = excluded.decided_by,
			decided_at = excluded.decided_at
	`, r.ID, r.EmployeeCode, r.LeaveType, r.Start.Key(), r.End.Key(), r.TotalDays,
		nullString(r.Reason), string(r.Status), nullString(r.DecidedBy), nullInstant(r.DecidedAt),
		formatInstant(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save leave request: %w", err)
	}
	return nil
}

// =============================================================================
// QUERIES (shared by Store and txStore)
// =============================================================================

func getBalance(ctx context.Context, q querier, code generic.EmployeeCode, lt generic.LeaveTypeCode) (generic.Balance, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT employee_code, leave_type, opening, used, remaining, updated_at
		FROM leave_balances WHERE employee_code = ? AND leave_type = ?
	`, code, lt)
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Balance{}, false, nil
	}
	if err != nil {
		return generic.Balance{}, false, fmt.Errorf("failed to get balance: %w", err)
	}
	return b, true, nil
}

func listBalances(ctx context.Context, q querier, code generic.EmployeeCode) ([]generic.Balance, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT employee_code, leave_type, opening, used, remaining, updated_at
		FROM leave_balances WHERE employee_code = ?
		ORDER BY leave_type
	`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var out []generic.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBalance(row scanner) (generic.Balance, error) {
	var (
		b                        generic.Balance
		opening, used, remaining string
		updatedAt                string
	)
	if err := row.Scan(&b.EmployeeCode, &b.LeaveType, &opening, &used, &remaining, &updatedAt); err != nil {
		return b, err
	}
	b.Opening = days(opening)
	b.Used = days(used)
	b.Remaining = days(remaining)
	b.UpdatedAt = parseInstant(updatedAt)
	return b, nil
}

const applicationColumns = `id, employee_code, date, leave_type, source, reference, created_at`

func getApplication(ctx context.Context, q querier, code generic.EmployeeCode, day generic.TimePoint) (leave.LeaveApplication, bool, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM leave_applications WHERE employee_code = ? AND date = ?`,
		code, day.Key())
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.LeaveApplication{}, false, nil
	}
	if err != nil {
		return leave.LeaveApplication{}, false, fmt.Errorf("failed to get leave application: %w", err)
	}
	return app, true, nil
}

func listApplications(ctx context.Context, q querier, code generic.EmployeeCode, p generic.Period) ([]leave.LeaveApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM leave_applications WHERE date >= ? AND date <= ?`
	args := []any{p.Start.Key(), p.End.Key()}
	if code != "" {
		query += ` AND employee_code = ?`
		args = append(args, code)
	}
	query += ` ORDER BY employee_code, date`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave applications: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

func scanApplication(row scanner) (leave.LeaveApplication, error) {
	var (
		app       leave.LeaveApplication
		date      string
		source    string
		reference sql.NullString
		createdAt string
	)
	if err := row.Scan(&app.ID, &app.EmployeeCode, &date, &app.LeaveType, &source, &reference, &createdAt); err != nil {
		return app, err
	}
	app.Date = parseDate(date)
	app.Source = leave.ApplicationSource(source)
	app.Reference = reference.String
	app.CreatedAt = parseInstant(createdAt)
	return app, nil
}

const requestColumns = `id, employee_code, leave_type, start_date, end_date, total_days, reason, status,
	decided_by, decided_at, created_at`

func getRequest(ctx context.Context, q querier, id string) (leave.LeaveRequest, error) {
	row := q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.LeaveRequest{}, generic.NotFound("leave request", id)
	}
	if err != nil {
		return leave.LeaveRequest{}, fmt.Errorf("failed to get leave request: %w", err)
	}
	return r, nil
}

func listRequests(ctx context.Context, q querier, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRequest(row scanner) (leave.LeaveRequest, error) {
	var (
		r          leave.LeaveRequest
		start, end string
		reason     sql.NullString
		status     string
		decidedBy  sql.NullString
		decidedAt  sql.NullString
		createdAt  string
	)
	err := row.Scan(&r.ID, &r.EmployeeCode, &r.LeaveType, &start, &end, &r.TotalDays, &reason,
		&status, &decidedBy, &decidedAt, &createdAt)
	if err != nil {
		return r, err
	}
	r.Start = parseDate(start)
	r.End = parseDate(end)
	r.Reason = reason.String
	r.Status = leave.RequestStatus(status)
	r.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		r.DecidedAt = parseInstant(decidedAt.String)
	}
	r.CreatedAt = parseInstant(createdAt)
	return r, nil
}

// =============================================================================
// JOURNAL
// =============================================================================

func appendTransaction(ctx context.Context, q querier, tx generic.Transaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO ledger_transactions
		(id, seq, employee_code, leave_type, effective_at, delta_value, delta_unit, tx_type,
		 reference_id, reason, idempotency_key, created_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM ledger_transactions), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(tx.ID),
		tx.EmployeeCode,
		tx.LeaveType,
		tx.EffectiveAt.Key(),
		tx.Delta.Value.String(),
		string(tx.Delta.Unit),
		string(tx.Type),
		nullString(tx.ReferenceID),
		nullString(tx.Reason),
		nullString(tx.IdempotencyKey),
		tx.CreatedAt.Key(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func listTransactions(ctx context.Context, q querier, code generic.EmployeeCode, lt generic.LeaveTypeCode) ([]generic.Transaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, employee_code, leave_type, effective_at, delta_value, delta_unit, tx_type,
		       reference_id, reason, idempotency_key, created_at
		FROM ledger_transactions
		WHERE employee_code = ? AND leave_type = ?
		ORDER BY seq
	`, code, lt)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []generic.Transaction
	for rows.Next() {
		var (
			tx             generic.Transaction
			effectiveAt    string
			deltaValue     string
			deltaUnit      string
			txType         string
			referenceID    sql.NullString
			reason         sql.NullString
			idempotencyKey sql.NullString
			createdAt      string
		)
		err := rows.Scan(&tx.ID, &tx.EmployeeCode, &tx.LeaveType, &effectiveAt, &deltaValue, &deltaUnit,
			&txType, &referenceID, &reason, &idempotencyKey, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.EffectiveAt = parseDate(effectiveAt)
		tx.Delta = generic.NewAmountFromDecimal(generic.ParseDecimal(deltaValue), generic.Unit(deltaUnit))
		tx.Type = generic.TransactionType(txType)
		tx.ReferenceID = referenceID.String
		tx.Reason = reason.String
		tx.IdempotencyKey = idempotencyKey.String
		tx.CreatedAt = parseDate(createdAt)
		out = append(out, tx)
	}
	return out, rows.Err()
}
