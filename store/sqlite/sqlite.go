/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence contract of the engine using SQLite:

    leave.Registry / leave.PunchLog   roster, catalogs, weekly-off, punches
    leave.LedgerStore                 balances, applications, requests, journal
    leave.RunLog                      auto-credit run summaries
    salary.Repository                 component catalogs, salary structures

APPEND-ONLY ENFORCEMENT:
  ledger_transactions and attendance_punches are never updated or deleted.
  Balance rows are mutable; the journal beside them explains every change.

KEY TABLES:
  leave_balances:      (employee_code, leave_type) -> opening, used, remaining
  leave_applications:  UNIQUE(employee_code, date)
  leave_requests:      state machine rows
  ledger_transactions: immutable journal, idempotency_key UNIQUE

CONCURRENCY:
  sync.RWMutex serializes writers: WithTx holds the write lock for the whole
  database transaction, so a balance read inside it cannot go stale before
  the write. Reads inside WithTx go through the *sql.Tx, never through the
  Store's locked methods.

STORAGE FORMATS:
  decimals   TEXT (exact, via shopspring/decimal)
  dates      TEXT YYYY-MM-DD
  instants   TEXT RFC 3339 (UTC)
  punches    INTEGER unix seconds, bucketed into local days by the engine

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - leave/store.go: the interfaces
  - store/memory: the in-process implementation used in unit tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/salary"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ leave.Registry    = (*Store)(nil)
	_ leave.PunchLog    = (*Store)(nil)
	_ leave.LedgerStore = (*Store)(nil)
	_ leave.RunLog      = (*Store)(nil)
	_ salary.Repository = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Roster (reference data)
	CREATE TABLE IF NOT EXISTS employees (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		gender TEXT NOT NULL DEFAULT '',
		join_date TEXT NOT NULL,
		leave_date TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_department
		ON employees(department);

	-- Leave catalogs
	CREATE TABLE IF NOT EXISTS leave_types (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		gender TEXT NOT NULL DEFAULT 'All',
		accrual_frequency TEXT NOT NULL DEFAULT '',
		carry_forward BOOLEAN NOT NULL DEFAULT FALSE,
		encashable BOOLEAN NOT NULL DEFAULT FALSE,
		is_comp_off BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'active'
	);

	CREATE TABLE IF NOT EXISTS leave_rules (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		leave_type_code TEXT NOT NULL REFERENCES leave_types(code),
		eligibility_days INTEGER NOT NULL DEFAULT 0,
		allocation_type TEXT NOT NULL,
		eligibility_scope TEXT NOT NULL DEFAULT 'Global',
		scope_value TEXT NOT NULL DEFAULT '',
		allocated_count TEXT NOT NULL DEFAULT '0',
		min_working_days INTEGER NOT NULL DEFAULT 0,
		auto_add_frequency TEXT NOT NULL DEFAULT '',
		auto_remove_frequency TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active'
	);

	CREATE INDEX IF NOT EXISTS idx_leave_rules_position
		ON leave_rules(position);

	-- Attendance inputs
	CREATE TABLE IF NOT EXISTS weekly_off_settings (
		employee_code TEXT PRIMARY KEY,
		days TEXT NOT NULL DEFAULT '',
		sandwich_rule BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS attendance_punches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_code TEXT NOT NULL,
		punched_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_punches_employee_time
		ON attendance_punches(employee_code, punched_at);

	-- Ledger rows (written only by the engine)
	CREATE TABLE IF NOT EXISTS leave_balances (
		employee_code TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		opening TEXT NOT NULL,
		used TEXT NOT NULL,
		remaining TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_code, leave_type)
	);

	CREATE TABLE IF NOT EXISTS leave_applications (
		id TEXT PRIMARY KEY,
		employee_code TEXT NOT NULL,
		date TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		source TEXT NOT NULL,
		reference TEXT,
		created_at TEXT NOT NULL,
		UNIQUE (employee_code, date)
	);

	CREATE INDEX IF NOT EXISTS idx_applications_date
		ON leave_applications(date);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_code TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_days INTEGER NOT NULL,
		reason TEXT,
		status TEXT NOT NULL DEFAULT 'Pending',
		decided_by TEXT,
		decided_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);

	-- Journal (append-only)
	CREATE TABLE IF NOT EXISTS ledger_transactions (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		employee_code TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		delta_value TEXT NOT NULL,
		delta_unit TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_employee_type
		ON ledger_transactions(employee_code, leave_type, seq);

	-- Salary
	CREATE TABLE IF NOT EXISTS salary_components (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		calculation_percentage TEXT,
		based_on TEXT NOT NULL DEFAULT 'Basic',
		max_calculated_value TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_salary_components_kind
		ON salary_components(kind, position);

	CREATE TABLE IF NOT EXISTS salary_structures (
		employee_code TEXT PRIMARY KEY,
		monthly_gross TEXT NOT NULL,
		basic_salary TEXT NOT NULL,
		ctc TEXT NOT NULL,
		earnings_json TEXT NOT NULL,
		deductions_json TEXT NOT NULL,
		employer_additional_json TEXT NOT NULL,
		total_earnings TEXT NOT NULL,
		total_deductions TEXT NOT NULL,
		total_employer_additional TEXT NOT NULL,
		net_salary TEXT NOT NULL,
		derived_at TEXT NOT NULL
	);

	-- Auto-credit runs
	CREATE TABLE IF NOT EXISTS credit_runs (
		id TEXT PRIMARY KEY,
		as_of TEXT NOT NULL,
		status TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failures_json TEXT NOT NULL DEFAULT '[]',
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_credit_runs_started
		ON credit_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func parseNullDecimal(ns sql.NullString) decimal.NullDecimal {
	if !ns.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(generic.ParseDecimal(ns.String))
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseInstant(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullInstant(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatInstant(t), Valid: true}
}

func parseDate(s string) generic.TimePoint {
	tp, _ := generic.ParseDate(s)
	return tp
}

func nullDate(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.Key(), Valid: true}
}

func days(s string) generic.Amount {
	return generic.NewAmountFromDecimal(generic.ParseDecimal(s), generic.UnitDays)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
