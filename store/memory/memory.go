// Package memory provides an in-process implementation of every store
// contract, for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/salary"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu sync.RWMutex

	// reference data
	employees  map[generic.EmployeeCode]leave.Employee
	leaveTypes map[generic.LeaveTypeCode]leave.LeaveType
	rules      []leave.LeaveRule
	weeklyOff  map[generic.EmployeeCode]leave.WeeklyOffSetting
	punches    map[generic.EmployeeCode][]leave.Punch
	components map[salary.Kind][]salary.Component
	structures map[string]salary.Structure
	runs       []leave.CreditRun

	// ledger; everything WithTx may write lives in ledgerState
	ledger ledgerState
}

type balanceKey struct {
	Employee  generic.EmployeeCode
	LeaveType generic.LeaveTypeCode
}

type ledgerState struct {
	balances     map[balanceKey]generic.Balance
	applications map[string]leave.LeaveApplication // by leave.DayKey
	requests     map[string]leave.LeaveRequest
	journal      map[balanceKey][]generic.Transaction
	idempotency  map[string]bool
}

func newLedgerState() ledgerState {
	return ledgerState{
		balances:     make(map[balanceKey]generic.Balance),
		applications: make(map[string]leave.LeaveApplication),
		requests:     make(map[string]leave.LeaveRequest),
		journal:      make(map[balanceKey][]generic.Transaction),
		idempotency:  make(map[string]bool),
	}
}

func New() *Store {
	return &Store{
		employees:  make(map[generic.EmployeeCode]leave.Employee),
		leaveTypes: make(map[generic.LeaveTypeCode]leave.LeaveType),
		weeklyOff:  make(map[generic.EmployeeCode]leave.WeeklyOffSetting),
		punches:    make(map[generic.EmployeeCode][]leave.Punch),
		components: make(map[salary.Kind][]salary.Component),
		structures: make(map[string]salary.Structure),
		ledger:     newLedgerState(),
	}
}

var (
	_ leave.Registry    = (*Store)(nil)
	_ leave.PunchLog    = (*Store)(nil)
	_ leave.LedgerStore = (*Store)(nil)
	_ leave.RunLog      = (*Store)(nil)
	_ salary.Repository = (*Store)(nil)
)

// =============================================================================
// DIRECTORY
// =============================================================================

func (s *Store) Employee(_ context.Context, code generic.EmployeeCode) (leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[code]
	if !ok {
		return leave.Employee{}, generic.NotFound("employee", string(code))
	}
	return e, nil
}

func (s *Store) Employees(_ context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]leave.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) SaveEmployee(_ context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.Code] = e
	return nil
}

func (s *Store) LeaveType(_ context.Context, code generic.LeaveTypeCode) (leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lt, ok := s.leaveTypes[code]
	if !ok {
		return leave.LeaveType{}, generic.NotFound("leave type", string(code))
	}
	return lt, nil
}

func (s *Store) LeaveTypes(_ context.Context) ([]leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]leave.LeaveType, 0, len(s.leaveTypes))
	for _, lt := range s.leaveTypes {
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) SaveLeaveType(_ context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveTypes[lt.Code] = lt
	return nil
}

func (s *Store) LeaveRules(_ context.Context) ([]leave.LeaveRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]leave.LeaveRule(nil), s.rules...), nil
}

// SaveLeaveRule replaces a rule with the same ID in place, else appends.
func (s *Store) SaveLeaveRule(_ context.Context, r leave.LeaveRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == r.ID {
			s.rules[i] = r
			return nil
		}
	}
	s.rules = append(s.rules, r)
	return nil
}

func (s *Store) WeeklyOff(_ context.Context, code generic.EmployeeCode) (leave.WeeklyOffSetting, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.weeklyOff[code]
	return w, ok, nil
}

func (s *Store) SaveWeeklyOff(_ context.Context, w leave.WeeklyOffSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Days = append([]time.Weekday(nil), w.Days...)
	s.weeklyOff[w.EmployeeCode] = w
	return nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (s *Store) Punches(_ context.Context, code generic.EmployeeCode, from, to time.Time) ([]leave.Punch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.Punch
	for _, p := range s.punches[code] {
		if !p.At.Before(from) && p.At.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

// RecordPunch keeps each employee's punches sorted by time.
func (s *Store) RecordPunch(_ context.Context, p leave.Punch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.punches[p.EmployeeCode]
	i := sort.Search(len(ps), func(i int) bool { return ps[i].At.After(p.At) })
	ps = append(ps, leave.Punch{})
	copy(ps[i+1:], ps[i:])
	ps[i] = p
	s.punches[p.EmployeeCode] = ps
	return nil
}

// =============================================================================
// LEDGER READS (outside a transaction)
// =============================================================================

func (s *Store) Balance(ctx context.Context, code generic.EmployeeCode, lt generic.LeaveTypeCode) (generic.Balance, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.balance(code, lt)
}

func (s *Store) Balances(_ context.Context, code generic.EmployeeCode) ([]generic.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.balancesOf(code), nil
}

func (s *Store) Applications(_ context.Context, code generic.EmployeeCode, p generic.Period) ([]leave.LeaveApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.applicationsIn(code, p), nil
}

func (s *Store) ApplicationOn(_ context.Context, code generic.EmployeeCode, day generic.TimePoint) (leave.LeaveApplication, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.ledger.applications[leave.DayKey(code, day)]
	return app, ok, nil
}

func (s *Store) Request(_ context.Context, id string) (leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.request(id)
}

func (s *Store) Requests(_ context.Context, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.requestsWith(status), nil
}

func (s *Store) Transactions(_ context.Context, code generic.EmployeeCode, lt generic.LeaveTypeCode) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]generic.Transaction(nil), s.ledger.journal[balanceKey{code, lt}]...), nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn holding the write lock. Writes go straight to the live
// maps; on error the snapshot taken before fn is restored.
func (s *Store) WithTx(ctx context.Context, fn func(tx leave.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.ledger.clone()
	if err := fn(&txView{state: &s.ledger}); err != nil {
		s.ledger = snapshot
		return err
	}
	return nil
}

func (l ledgerState) clone() ledgerState {
	c := newLedgerState()
	for k, v := range l.balances {
		c.balances[k] = v
	}
	for k, v := range l.applications {
		c.applications[k] = v
	}
	for k, v := range l.requests {
		c.requests[k] = v
	}
	for k, v := range l.journal {
		c.journal[k] = append([]generic.Transaction(nil), v...)
	}
	for k, v := range l.idempotency {
		c.idempotency[k] = v
	}
	return c
}

// txView reads and writes ledgerState without locking; the enclosing
// WithTx holds the lock.
type txView struct {
	state *ledgerState
}

func (tv *txView) Balance(_ context.Context, code generic.EmployeeCode, lt generic.LeaveTypeCode) (generic.Balance, bool, error) {
	return tv.state.balance(code, lt)
}

func (tv *txView) Balances(_ context.Context, code generic.EmployeeCode) ([]generic.Balance, error) {
	return tv.state.balancesOf(code), nil
}

func (tv *txView) Applications(_ context.Context, code generic.EmployeeCode, p generic.Period) ([]leave.LeaveApplication, error) {
	return tv.state.applicationsIn(code, p), nil
}

func (tv *txView) ApplicationOn(_ context.Context, code generic.EmployeeCode, day generic.TimePoint) (leave.LeaveApplication, bool, error) {
	app, ok := tv.state.applications[leave.DayKey(code, day)]
	return app, ok, nil
}

func (tv *txView) Request(_ context.Context, id string) (leave.LeaveRequest, error) {
	return tv.state.request(id)
}

func (tv *txView) Requests(_ context.Context, status leave.RequestStatus) ([]leave.LeaveRequest, error) {
	return tv.state.requestsWith(status), nil
}

func (tv *txView) Transactions(_ context.Context, code generic.EmployeeCode, lt generic.LeaveTypeCode) ([]generic.Transaction, error) {
	return append([]generic.Transaction(nil), tv.state.journal[balanceKey{code, lt}]...), nil
}

func (tv *txView) Append(_ context.Context, tx generic.Transaction) error {
	if tx.IdempotencyKey != "" {
		if tv.state.idempotency[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		tv.state.idempotency[tx.IdempotencyKey] = true
	}
	k := balanceKey{tx.EmployeeCode, tx.LeaveType}
	tv.state.journal[k] = append(tv.state.journal[k], tx)
	return nil
}

func (tv *txView) PutBalance(_ context.Context, b generic.Balance) error {
	tv.state.balances[balanceKey{b.EmployeeCode, b.LeaveType}] = b
	return nil
}

func (tv *txView) PutApplication(_ context.Context, app leave.LeaveApplication) error {
	tv.state.applications[leave.DayKey(app.EmployeeCode, app.Date)] = app
	return nil
}

func (tv *txView) PutRequest(_ context.Context, r leave.LeaveRequest) error {
	tv.state.requests[r.ID] = r
	return nil
}

// =============================================================================
// LEDGER STATE QUERIES (caller holds the lock)
// =============================================================================

func (l *ledgerState) balance(code generic.EmployeeCode, lt generic.LeaveTypeCode) (generic.Balance, bool, error) {
	b, ok := l.balances[balanceKey{code, lt}]
	return b, ok, nil
}

func (l *ledgerState) balancesOf(code generic.EmployeeCode) []generic.Balance {
	var out []generic.Balance
	for k, b := range l.balances {
		if k.Employee == code {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeaveType < out[j].LeaveType })
	return out
}

func (l *ledgerState) applicationsIn(code generic.EmployeeCode, p generic.Period) []leave.LeaveApplication {
	var out []leave.LeaveApplication
	for _, app := range l.applications {
		if (code == "" || app.EmployeeCode == code) && p.Contains(app.Date) {
			out = append(out, app)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeCode != out[j].EmployeeCode {
			return out[i].EmployeeCode < out[j].EmployeeCode
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func (l *ledgerState) request(id string) (leave.LeaveRequest, error) {
	r, ok := l.requests[id]
	if !ok {
		return leave.LeaveRequest{}, generic.NotFound("leave request", id)
	}
	return r, nil
}

func (l *ledgerState) requestsWith(status leave.RequestStatus) []leave.LeaveRequest {
	var out []leave.LeaveRequest
	for _, r := range l.requests {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// =============================================================================
// SALARY REPOSITORY
// =============================================================================

func (s *Store) Components(_ context.Context, kind salary.Kind) ([]salary.Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]salary.Component(nil), s.components[kind]...), nil
}

func (s *Store) SaveComponent(_ context.Context, kind salary.Kind, c salary.Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	comps := s.components[kind]
	for i := range comps {
		if comps[i].ID == c.ID {
			comps[i] = c
			return nil
		}
	}
	s.components[kind] = append(comps, c)
	return nil
}

func (s *Store) Structure(_ context.Context, code string) (salary.Structure, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.structures[code]
	return st, ok, nil
}

func (s *Store) SaveStructure(_ context.Context, st salary.Structure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.structures[st.EmployeeCode] = st
	return nil
}

// =============================================================================
// RUN LOG
// =============================================================================

func (s *Store) SaveCreditRun(_ context.Context, run leave.CreditRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == run.ID {
			s.runs[i] = run
			return nil
		}
	}
	s.runs = append(s.runs, run)
	return nil
}

// CreditRuns returns the most recent runs first.
func (s *Store) CreditRuns(_ context.Context, limit int) ([]leave.CreditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.CreditRun
	for i := len(s.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.runs[i])
	}
	return out, nil
}
