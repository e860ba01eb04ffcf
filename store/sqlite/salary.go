package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/salary"
)

// =============================================================================
// SALARY COMPONENTS
// =============================================================================

// SaveComponent creates or updates a component. New components are
// appended to the end of their catalog.
func (s *Store) SaveComponent(ctx context.Context, kind salary.Kind, c salary.Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO salary_components (id, kind, position, name, calculation_percentage, based_on, max_calculated_value)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM salary_components WHERE kind = ?), ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			calculation_percentage = excluded.calculation_percentage,
			based_on = excluded.based_on,
			max_calculated_value = excluded.max_calculated_value
	`, c.ID, string(kind), string(kind), c.Name, nullDecimal(c.Percentage), string(c.BasedOn), nullDecimal(c.MaxValue))
	if err != nil {
		return fmt.Errorf("failed to save salary component: %w", err)
	}
	return nil
}

func (s *Store) Components(ctx context.Context, kind salary.Kind) ([]salary.Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, calculation_percentage, based_on, max_calculated_value
		FROM salary_components WHERE kind = ?
		ORDER BY position
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list salary components: %w", err)
	}
	defer rows.Close()

	var out []salary.Component
	for rows.Next() {
		var (
			c        salary.Component
			pct, max sql.NullString
			basedOn  string
		)
		if err := rows.Scan(&c.ID, &c.Name, &pct, &basedOn, &max); err != nil {
			return nil, fmt.Errorf("failed to scan salary component: %w", err)
		}
		c.Percentage = parseNullDecimal(pct)
		c.BasedOn = salary.ParseBasedOn(basedOn)
		c.MaxValue = parseNullDecimal(max)
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// SALARY STRUCTURES
// =============================================================================

func (s *Store) SaveStructure(ctx context.Context, st salary.Structure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	earnings, err := json.Marshal(st.Earnings)
	if err != nil {
		return err
	}
	deductions, err := json.Marshal(st.Deductions)
	if err != nil {
		return err
	}
	employer, err := json.Marshal(st.EmployerAdditional)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO salary_structures (employee_code, monthly_gross, basic_salary, ctc, earnings_json,
			deductions_json, employer_additional_json, total_earnings, total_deductions,
			total_employer_additional, net_salary, derived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_code) DO UPDATE SET
			monthly_gross = excluded.monthly_gross,
			basic_salary = excluded.basic_salary,
			ctc = excluded.ctc,
			earnings_json = excluded.earnings_json,
			deductions_json = excluded.deductions_json,
			employer_additional_json = excluded.employer_additional_json,
			total_earnings = excluded.total_earnings,
			total_deductions = excluded.total_deductions,
			total_employer_additional = excluded.total_employer_additional,
			net_salary = excluded.net_salary,
			derived_at = excluded.derived_at
	`, st.EmployeeCode, st.MonthlyGross.String(), st.BasicSalary.String(), st.CTC.String(),
		string(earnings), string(deductions), string(employer), st.TotalEarnings.String(),
		st.TotalDeductions.String(), st.TotalEmployerAdditional.String(), st.NetSalary.String(),
		formatInstant(st.DerivedAt))
	if err != nil {
		return fmt.Errorf("failed to save salary structure: %w", err)
	}
	return nil
}

func (s *Store) Structure(ctx context.Context, code string) (salary.Structure, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		st                             salary.Structure
		gross, basic, ctc              string
		earnings, deductions, employer string
		totalE, totalD, totalEmployer  string
		net, derivedAt                 string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT employee_code, monthly_gross, basic_salary, ctc, earnings_json, deductions_json,
		       employer_additional_json, total_earnings, total_deductions, total_employer_additional,
		       net_salary, derived_at
		FROM salary_structures WHERE employee_code = ?
	`, code).Scan(&st.EmployeeCode, &gross, &basic, &ctc, &earnings, &deductions, &employer,
		&totalE, &totalD, &totalEmployer, &net, &derivedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return salary.Structure{}, false, nil
	}
	if err != nil {
		return salary.Structure{}, false, fmt.Errorf("failed to get salary structure: %w", err)
	}

	for _, part := range []struct {
		raw string
		dst *[]salary.Line
	}{{earnings, &st.Earnings}, {deductions, &st.Deductions}, {employer, &st.EmployerAdditional}} {
		if err := json.Unmarshal([]byte(part.raw), part.dst); err != nil {
			return salary.Structure{}, false, fmt.Errorf("failed to decode salary breakdown: %w", err)
		}
	}
	st.MonthlyGross = generic.ParseDecimal(gross)
	st.BasicSalary = generic.ParseDecimal(basic)
	st.CTC = generic.ParseDecimal(ctc)
	st.TotalEarnings = generic.ParseDecimal(totalE)
	st.TotalDeductions = generic.ParseDecimal(totalD)
	st.TotalEmployerAdditional = generic.ParseDecimal(totalEmployer)
	st.NetSalary = generic.ParseDecimal(net)
	st.DerivedAt = parseInstant(derivedAt)
	return st, true, nil
}

// =============================================================================
// CREDIT RUNS
// =============================================================================

// SaveCreditRun creates or updates a run record.
func (s *Store) SaveCreditRun(ctx context.Context, run leave.CreditRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	failures, err := json.Marshal(run.Failures)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credit_runs (id, as_of, status, processed, skipped, failures_json, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			processed = excluded.processed,
			skipped = excluded.skipped,
			failures_json = excluded.failures_json,
			completed_at = excluded.completed_at
	`, run.ID, run.AsOf.Key(), string(run.Status), run.Processed, run.Skipped, string(failures),
		formatInstant(run.StartedAt), nullInstant(run.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to save credit run: %w", err)
	}
	return nil
}

// CreditRuns returns the most recent runs first.
func (s *Store) CreditRuns(ctx context.Context, limit int) ([]leave.CreditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, as_of, status, processed, skipped, failures_json, started_at, completed_at
		FROM credit_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit runs: %w", err)
	}
	defer rows.Close()

	var out []leave.CreditRun
	for rows.Next() {
		var (
			run         leave.CreditRun
			asOf        string
			status      string
			failures    string
			startedAt   string
			completedAt sql.NullString
		)
		err := rows.Scan(&run.ID, &asOf, &status, &run.Processed, &run.Skipped, &failures, &startedAt, &completedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit run: %w", err)
		}
		run.AsOf = parseDate(asOf)
		run.Status = leave.RunStatus(status)
		if err := json.Unmarshal([]byte(failures), &run.Failures); err != nil {
			return nil, fmt.Errorf("failed to decode credit run failures: %w", err)
		}
		run.StartedAt = parseInstant(startedAt)
		if completedAt.Valid {
			run.CompletedAt = parseInstant(completedAt.String)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
