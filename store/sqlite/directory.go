package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// SaveEmployee creates or updates an employee.
func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (code, name, department, gender, join_date, leave_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			department = excluded.department,
			gender = excluded.gender,
			join_date = excluded.join_date,
			leave_date = excluded.leave_date,
			status = excluded.status
	`, e.Code, e.Name, e.Department, string(e.Gender), e.JoinDate.Key(), nullDate(e.LeaveDate),
		string(e.Status), formatInstant(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

const employeeColumns = `code, name, department, gender, join_date, leave_date, status`

func (s *Store) Employee(ctx context.Context, code generic.EmployeeCode) (leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE code = ?`, code)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Employee{}, generic.NotFound("employee", string(code))
	}
	return e, err
}

func (s *Store) Employees(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []leave.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (leave.Employee, error) {
	var (
		e         leave.Employee
		gender    string
		joinDate  string
		leaveDate sql.NullString
		status    string
	)
	if err := row.Scan(&e.Code, &e.Name, &e.Department, &gender, &joinDate, &leaveDate, &status); err != nil {
		return e, err
	}
	e.Gender = leave.Gender(gender)
	e.JoinDate = parseDate(joinDate)
	if leaveDate.Valid {
		e.LeaveDate = parseDate(leaveDate.String)
	}
	e.Status = leave.ParseStatus(status)
	return e, nil
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

func (s *Store) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_types (code, name, gender, accrual_frequency, carry_forward, encashable, is_comp_off, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			gender = excluded.gender,
			accrual_frequency = excluded.accrual_frequency,
			carry_forward = excluded.carry_forward,
			encashable = excluded.encashable,
			is_comp_off = excluded.is_comp_off,
			status = excluded.status
	`, lt.Code, lt.Name, string(lt.Gender), lt.AccrualFrequency, lt.CarryForward, lt.Encashable,
		lt.IsCompOff, string(lt.Status))
	if err != nil {
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	return nil
}

const leaveTypeColumns = `code, name, gender, accrual_frequency, carry_forward, encashable, is_comp_off, status`

func (s *Store) LeaveType(ctx context.Context, code generic.LeaveTypeCode) (leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types WHERE code = ?`, code)
	lt, err := scanLeaveType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.LeaveType{}, generic.NotFound("leave type", string(code))
	}
	return lt, err
}

func (s *Store) LeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave types: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveType
	for rows.Next() {
		lt, err := scanLeaveType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lt)
	}
	return out, rows.Err()
}

func scanLeaveType(row scanner) (leave.LeaveType, error) {
	var (
		lt     leave.LeaveType
		gender string
		status string
	)
	err := row.Scan(&lt.Code, &lt.Name, &gender, &lt.AccrualFrequency, &lt.CarryForward,
		&lt.Encashable, &lt.IsCompOff, &status)
	if err != nil {
		return lt, err
	}
	lt.Gender = leave.ParseGender(gender)
	lt.Status = leave.ParseStatus(status)
	return lt, nil
}

// =============================================================================
// LEAVE RULES
// =============================================================================

// SaveLeaveRule creates or updates a rule. New rules are evaluated after
// every existing one; updates keep their position.
func (s *Store) SaveLeaveRule(ctx context.Context, r leave.LeaveRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_rules (id, position, leave_type_code, eligibility_days, allocation_type,
			eligibility_scope, scope_value, allocated_count, min_working_days,
			auto_add_frequency, auto_remove_frequency, status)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM leave_rules), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			leave_type_code = excluded.leave_type_code,
			eligibility_days = excluded.eligibility_days,
			allocation_type = excluded.allocation_type,
			eligibility_scope = excluded.eligibility_scope,
			scope_value = excluded.scope_value,
			allocated_count = excluded.allocated_count,
			min_working_days = excluded.min_working_days,
			auto_add_frequency = excluded.auto_add_frequency,
			auto_remove_frequency = excluded.auto_remove_frequency,
			status = excluded.status
	`, r.ID, r.LeaveType, r.EligibilityDays, string(r.Allocation), string(r.Scope), r.ScopeValue,
		r.AllocatedCount.String(), r.MinWorkingDays, r.AutoAddFrequency, r.AutoRemoveFrequency,
		string(r.Status))
	if err != nil {
		return fmt.Errorf("failed to save leave rule: %w", err)
	}
	return nil
}

func (s *Store) LeaveRules(ctx context.Context) ([]leave.LeaveRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, leave_type_code, eligibility_days, allocation_type, eligibility_scope, scope_value,
		       allocated_count, min_working_days, auto_add_frequency, auto_remove_frequency, status
		FROM leave_rules
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave rules: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveRule
	for rows.Next() {
		var (
			r          leave.LeaveRule
			allocation string
			scope      string
			count      string
			status     string
		)
		err := rows.Scan(&r.ID, &r.LeaveType, &r.EligibilityDays, &allocation, &scope, &r.ScopeValue,
			&count, &r.MinWorkingDays, &r.AutoAddFrequency, &r.AutoRemoveFrequency, &status)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leave rule: %w", err)
		}
		r.Allocation = leave.AllocationType(allocation)
		r.Scope = leave.Scope(scope)
		r.AllocatedCount = generic.ParseDecimal(count)
		r.Status = leave.ParseStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// WEEKLY OFF
// =============================================================================

func (s *Store) SaveWeeklyOff(ctx context.Context, w leave.WeeklyOffSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weekly_off_settings (employee_code, days, sandwich_rule)
		VALUES (?, ?, ?)
		ON CONFLICT(employee_code) DO UPDATE SET
			days = excluded.days,
			sandwich_rule = excluded.sandwich_rule
	`, w.EmployeeCode, strings.Join(w.DayNames(), ","), w.SandwichRule)
	if err != nil {
		return fmt.Errorf("failed to save weekly off: %w", err)
	}
	return nil
}

func (s *Store) WeeklyOff(ctx context.Context, code generic.EmployeeCode) (leave.WeeklyOffSetting, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		w     = leave.WeeklyOffSetting{EmployeeCode: code}
		names string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT days, sandwich_rule FROM weekly_off_settings WHERE employee_code = ?`, code,
	).Scan(&names, &w.SandwichRule)
	if errors.Is(err, sql.ErrNoRows) {
		return w, false, nil
	}
	if err != nil {
		return w, false, fmt.Errorf("failed to get weekly off: %w", err)
	}
	for _, name := range strings.Split(names, ",") {
		if d, ok := generic.ParseWeekday(name); ok {
			w.Days = append(w.Days, d)
		}
	}
	return w, true, nil
}

// =============================================================================
// PUNCHES
// =============================================================================

func (s *Store) RecordPunch(ctx context.Context, p leave.Punch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attendance_punches (employee_code, punched_at) VALUES (?, ?)`,
		p.EmployeeCode, p.At.Unix())
	if err != nil {
		return fmt.Errorf("failed to record punch: %w", err)
	}
	return nil
}

func (s *Store) Punches(ctx context.Context, code generic.EmployeeCode, from, to time.Time) ([]leave.Punch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT punched_at FROM attendance_punches
		WHERE employee_code = ? AND punched_at >= ? AND punched_at < ?
		ORDER BY punched_at
	`, code, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query punches: %w", err)
	}
	defer rows.Close()

	var out []leave.Punch
	for rows.Next() {
		var unix int64
		if err := rows.Scan(&unix); err != nil {
			return nil, err
		}
		out = append(out, leave.Punch{EmployeeCode: code, At: time.Unix(unix, 0).UTC()})
	}
	return out, rows.Err()
}
