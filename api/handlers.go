/*
handlers.go - HTTP API handlers for the payroll and leave engine

PURPOSE:
  Exposes the salary calculator and the leave subsystem via REST API.
  Handles HTTP request/response and JSON serialization, and delegates
  every decision to the domain packages.

ENDPOINTS:
  Employees:
    GET    /api/employees                          List employees
    POST   /api/employees                          Create or update employee
    GET    /api/employees/{code}                   Get employee
    GET    /api/employees/{code}/weekly-off        Get weekly-off setting
    PUT    /api/employees/{code}/weekly-off        Replace weekly-off setting
    POST   /api/employees/{code}/punches           Record punches

  Ledger:
    GET    /api/employees/{code}/balances                        Balances
    GET    /api/employees/{code}/balances/{leaveType}/transactions Journal
    GET    /api/employees/{code}/applications?from&to             Applications
    GET    /api/employees/{code}/comp-off?from&to&as_of           Comp-off report
    POST   /api/employees/{code}/accrue                           Rule pass

  Salary:
    GET    /api/employees/{code}/salary                          Stored structure
    POST   /api/employees/{code}/salary/derive                   Derive from gross
    PUT    /api/employees/{code}/salary/components/{kind}/{id}   Override one line

  Catalogs:
    GET/POST /api/leave-types, /api/leave-rules, /api/salary-components

  Audit & Requests:
    GET    /api/absences?from&to                   Absentee audit
    POST   /api/absences/regularize                Cover an absence with leave
    POST   /api/leave-requests                     Submit
    GET    /api/leave-requests?status=             List
    GET    /api/leave-requests/{id}                Get
    POST   /api/leave-requests/{id}/approve        Approve (debits balance)
    POST   /api/leave-requests/{id}/reject         Reject

  Admin:
    POST   /api/admin/auto-credit                  Roster-wide rule pass
    GET    /api/admin/auto-credit/runs?limit=      Run history
    GET    /api/admin/auto-credit/status           Scheduler status

  Scenarios:
    GET    /api/scenarios                          List demo scenarios
    GET    /api/scenarios/current                  Last loaded scenario
    POST   /api/scenarios/load                     Load a demo scenario

ERROR HANDLING:
  Domain errors are mapped by category (generic/errors.go):
  - 400: validation errors, malformed periods, bad JSON
  - 404: unknown employee, leave type, request, structure
  - 409: insufficient balance, decided request, duplicate journal key
  - 500: everything else (logged)
  Body: {"error": "...", "details": "..."}

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/salary"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the HTTP surface reads or writes.
type Store interface {
	leave.Registry
	leave.PunchLog
	leave.LedgerStore
	leave.RunLog
	salary.Repository
}

// Options tunes the services built by NewHandler. Zero values fall back to
// the engine defaults.
type Options struct {
	Location           *time.Location
	Logger             *slog.Logger
	LookbackDays       int
	Merge              leave.MergeMode
	AutoCreditEnabled  bool
	AutoCreditInterval time.Duration
}

// Handler holds all dependencies of the HTTP handlers.
type Handler struct {
	Store     Store
	Catalogs  *factory.CatalogFactory
	Ledger    *leave.Ledger
	Evaluator *leave.Evaluator
	Auditor   *leave.Auditor
	Requests  *leave.RequestService
	Salary    *salary.Service
	Scheduler *AutoCreditScheduler
	Location  *time.Location
	Logger    *slog.Logger

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler wires the domain services around store.
func NewHandler(store Store, opts Options) *Handler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	evaluator := leave.NewEvaluator(store, store, store, loc, logger)
	if opts.LookbackDays > 0 {
		evaluator.LookbackDays = opts.LookbackDays
	}
	if opts.Merge != "" {
		evaluator.Merge = opts.Merge
	}

	scheduler := NewAutoCreditScheduler(evaluator, store, loc, logger)
	scheduler.Enabled = opts.AutoCreditEnabled
	if opts.AutoCreditInterval > 0 {
		scheduler.Interval = opts.AutoCreditInterval
	}

	return &Handler{
		Store:     store,
		Catalogs:  factory.NewCatalogFactory(),
		Ledger:    leave.NewLedger(store, store, logger),
		Evaluator: evaluator,
		Auditor:   &leave.Auditor{Directory: store, Attendance: store, Ledger: store, Location: loc},
		Requests:  leave.NewRequestService(store, store, logger),
		Salary:    salary.NewService(store, logger),
		Scheduler: scheduler,
		Location:  loc,
		Logger:    logger,
	}
}

// Health pings the store when it supports it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.fail(w, r, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns the roster ordered by code.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.Employees(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dtos = append(dtos, toEmployeeDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.Employee(r.Context(), employeeCode(r))
	if err != nil {
		h.fail(w, r, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	emp, err := req.toEmployee()
	if err != nil {
		h.fail(w, r, "Invalid employee", err)
		return
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		h.fail(w, r, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

func (req CreateEmployeeRequest) toEmployee() (leave.Employee, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return leave.Employee{}, generic.Invalid("code", "employee code is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return leave.Employee{}, generic.Invalid("name", "employee name is required")
	}
	joined, err := generic.ParseDate(req.JoinDate)
	if err != nil {
		return leave.Employee{}, generic.Invalid("join_date", "join date must be YYYY-MM-DD")
	}
	emp := leave.Employee{
		Code:       generic.EmployeeCode(code),
		Name:       strings.TrimSpace(req.Name),
		Department: strings.TrimSpace(req.Department),
		Gender:     leave.ParseGender(req.Gender),
		JoinDate:   joined,
		Status:     leave.ParseStatus(req.Status),
	}
	if strings.TrimSpace(req.LeaveDate) != "" {
		left, err := generic.ParseDate(req.LeaveDate)
		if err != nil {
			return leave.Employee{}, generic.Invalid("leave_date", "leave date must be YYYY-MM-DD")
		}
		if left.Before(joined) {
			return leave.Employee{}, generic.Invalid("leave_date", "leave date %s is before join date %s", left, joined)
		}
		emp.LeaveDate = left
	}
	return emp, nil
}

func (h *Handler) GetWeeklyOff(w http.ResponseWriter, r *http.Request) {
	code := employeeCode(r)
	if _, err := h.Store.Employee(r.Context(), code); err != nil {
		h.fail(w, r, "Failed to get employee", err)
		return
	}
	setting, ok, err := h.Store.WeeklyOff(r.Context(), code)
	if err != nil {
		h.fail(w, r, "Failed to get weekly-off setting", err)
		return
	}
	if !ok {
		setting = leave.WeeklyOffSetting{EmployeeCode: code}
	}
	writeJSON(w, http.StatusOK, toWeeklyOffDTO(setting))
}

// PutWeeklyOff replaces the employee's weekly-off days and sandwich flag.
func (h *Handler) PutWeeklyOff(w http.ResponseWriter, r *http.Request) {
	code := employeeCode(r)
	var req WeeklyOffRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.Store.Employee(r.Context(), code); err != nil {
		h.fail(w, r, "Failed to get employee", err)
		return
	}

	setting := leave.WeeklyOffSetting{EmployeeCode: code, SandwichRule: req.SandwichRule}
	seen := map[time.Weekday]bool{}
	for _, name := range req.Days {
		d, ok := generic.ParseWeekday(name)
		if !ok {
			h.fail(w, r, "Invalid weekly-off setting", generic.Invalid("days", "unknown weekday %q", name))
			return
		}
		if !seen[d] {
			seen[d] = true
			setting.Days = append(setting.Days, d)
		}
	}

	if err := h.Store.SaveWeeklyOff(r.Context(), setting); err != nil {
		h.fail(w, r, "Failed to save weekly-off setting", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeeklyOffDTO(setting))
}

// RecordPunches appends attendance punches. Each instant is reported with
// the local date it counts for.
func (h *Handler) RecordPunches(w http.ResponseWriter, r *http.Request) {
	code := employeeCode(r)
	var req RecordPunchesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.At) == 0 {
		h.fail(w, r, "Invalid punches", generic.Invalid("at", "at least one punch is required"))
		return
	}
	if _, err := h.Store.Employee(r.Context(), code); err != nil {
		h.fail(w, r, "Failed to get employee", err)
		return
	}

	punches := make([]leave.Punch, 0, len(req.At))
	for _, s := range req.At {
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
		if err != nil {
			h.fail(w, r, "Invalid punches", generic.Invalid("at", "punch %q is not RFC 3339", s))
			return
		}
		punches = append(punches, leave.Punch{EmployeeCode: code, At: at})
	}

	dtos := make([]PunchDTO, 0, len(punches))
	for _, p := range punches {
		if err := h.Store.RecordPunch(r.Context(), p); err != nil {
			h.fail(w, r, "Failed to record punch", err)
			return
		}
		dtos = append(dtos, PunchDTO{
			EmployeeCode: string(code),
			At:           p.At.Format(time.RFC3339),
			LocalDate:    generic.LocalDay(p.At, h.Location).Key(),
		})
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	code := employeeCode(r)
	if _, err := h.Store.Employee(r.Context(), code); err != nil {
		h.fail(w, r, "Failed to get employee", err)
		return
	}
	balances, err := h.Ledger.Balances(r.Context(), code)
	if err != nil {
		h.fail(w, r, "Failed to get balances", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTOs(balances))
}

// GetBalanceHistory returns the journal of one balance and the balance it
// replays to.
func (h *Handler) GetBalanceHistory(w http.ResponseWriter, r *http.Request) {
	code := employeeCode(r)
	lt := generic.LeaveTypeCode(chi.URLParam(r, "leaveType"))

	txs, replayed, err := h.Ledger.History(r.Context(), code, lt)
	if err != nil {
		h.fail(w, r, "Failed to get balance history", err)
		return
	}

	dto := HistoryDTO{Balance: toBalanceDTO(replayed), Transactions: make([]TransactionDTO, 0, len(txs))}
	for _, tx := range txs {
		dto.Transactions = append(dto.Transactions, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetApplications lists the employee's leave applications. The period
// defaults to the current month.
func (h *Handler) GetApplications(w http.ResponseWriter, r *http.Request) {
	code := employeeCode(r)
	p, err := h.periodParam(r, false)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	if _, err := h.Store.Employee(r.Context(), code); err != nil {
		h.fail(w, r, "Failed to get employee", err)
		return
	}

	apps, err := h.Ledger.Applications(r.Context(), code, p)
	if err != nil {
		h.fail(w, r, "Failed to list applications", err)
		return
	}
	dtos := make([]ApplicationDTO, 0, len(apps))
	for _, app := range apps {
		dtos = append(dtos, toApplicationDTO(app))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCompOff reports, per weekly-off day, whether the employee earned
// comp-off. The period defaults to the evaluator's trailing lookback window
// ending at as_of (default today).
func (h *Handler) GetCompOff(w http.ResponseWriter, r *http.Request) {
	code := employeeCode(r)
	asOf, err := h.dateParam(r, "as_of", generic.Today(h.Location))
	if err != nil {
		h.fail(w, r, "Invalid as_of", err)
		return
	}
	p := generic.TrailingPeriod(asOf, h.Evaluator.LookbackDays)
	if r.URL.Query().Get("from") != "" || r.URL.Query().Get("to") != "" {
		if p, err = h.periodParam(r, true); err != nil {
			h.fail(w, r, "Invalid period", err)
			return
		}
	}
	if _, err := h.Store.Employee(r.Context(), code); err != nil {
		h.fail(w, r, "Failed to get employee", err)
		return
	}

	report, err := h.Evaluator.CompOff.Report(r.Context(), code, p, asOf)
	if err != nil {
		h.fail(w, r, "Failed to detect comp-off", err)
		return
	}
	writeJSON(w, http.StatusOK, toCompOffDTO(report))
}

// Accrue runs the rule pass for one employee.
func (h *Handler) Accrue(w http.ResponseWriter, r *http.Request) {
	code := employeeCode(r)
	var req AccrueRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	asOf := generic.Today(h.Location)
	if req.AsOf != "" {
		var err error
		if asOf, err = generic.ParseDate(req.AsOf); err != nil {
			h.fail(w, r, "Invalid as_of", err)
			return
		}
	}

	var period *generic.Period
	switch {
	case req.From == "" && req.To == "":
	case req.From == "" || req.To == "":
		h.fail(w, r, "Invalid period", generic.Invalid("from", "from and to must be given together"))
		return
	default:
		p, err := parsePeriod(req.From, req.To)
		if err != nil {
			h.fail(w, r, "Invalid period", err)
			return
		}
		period = &p
	}

	accrual, err := h.Evaluator.Apply(r.Context(), code, asOf, period)
	if err != nil {
		h.fail(w, r, "Failed to apply leave rules", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccrualDTO(accrual))
}

// =============================================================================
// SALARY HANDLERS
// =============================================================================

func (h *Handler) GetSalary(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	st, ok, err := h.Salary.Structure(r.Context(), code)
	if err != nil {
		h.fail(w, r, "Failed to get salary structure", err)
		return
	}
	if !ok {
		h.fail(w, r, "Salary structure not found", generic.NotFound("salary structure", code))
		return
	}
	writeJSON(w, http.StatusOK, toSalaryStructureDTO(st))
}

// DeriveSalary replaces the structure with one derived from monthly gross.
func (h *Handler) DeriveSalary(w http.ResponseWriter, r *http.Request) {
	code := employeeCode(r)
	var req DeriveSalaryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.Store.Employee(r.Context(), code); err != nil {
		h.fail(w, r, "Failed to get employee", err)
		return
	}

	st, err := h.Salary.Derive(r.Context(), string(code), req.MonthlyGross)
	if err != nil {
		h.fail(w, r, "Failed to derive salary structure", err)
		return
	}
	writeJSON(w, http.StatusOK, toSalaryStructureDTO(st))
}

// OverrideSalaryComponent patches one line and recomputes totals.
func (h *Handler) OverrideSalaryComponent(w http.ResponseWriter, r *http.Request) {
	code := employeeCode(r)
	kind := salary.Kind(chi.URLParam(r, "kind"))
	id := chi.URLParam(r, "id")
	var req OverrideComponentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.Store.Employee(r.Context(), code); err != nil {
		h.fail(w, r, "Failed to get employee", err)
		return
	}

	st, err := h.Salary.Override(r.Context(), string(code), kind, id, req.Amount)
	if err != nil {
		h.fail(w, r, "Failed to override salary component", err)
		return
	}
	writeJSON(w, http.StatusOK, toSalaryStructureDTO(st))
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.LeaveTypes(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list leave types", err)
		return
	}
	dtos := make([]factory.LeaveTypeJSON, 0, len(types))
	for _, lt := range types {
		dtos = append(dtos, toLeaveTypeJSON(lt))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateLeaveType(w http.ResponseWriter, r *http.Request) {
	var req factory.LeaveTypeJSON
	if !decodeJSON(w, r, &req) {
		return
	}
	lt, err := req.ToLeaveType()
	if err != nil {
		h.fail(w, r, "Invalid leave type", err)
		return
	}
	if err := h.Store.SaveLeaveType(r.Context(), lt); err != nil {
		h.fail(w, r, "Failed to save leave type", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveTypeJSON(lt))
}

// ListLeaveRules returns rules in evaluation order.
func (h *Handler) ListLeaveRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.LeaveRules(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list leave rules", err)
		return
	}
	dtos := make([]factory.LeaveRuleJSON, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, toLeaveRuleJSON(rule))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateLeaveRule(w http.ResponseWriter, r *http.Request) {
	var req factory.LeaveRuleJSON
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, err := req.ToLeaveRule()
	if err != nil {
		h.fail(w, r, "Invalid leave rule", err)
		return
	}
	if _, err := h.Store.LeaveType(r.Context(), rule.LeaveType); err != nil {
		if generic.IsNotFound(err) {
			err = generic.Invalid("leave_type", "leave rule %s references unknown leave type %s", rule.ID, rule.LeaveType)
		}
		h.fail(w, r, "Invalid leave rule", err)
		return
	}
	if err := h.Store.SaveLeaveRule(r.Context(), rule); err != nil {
		h.fail(w, r, "Failed to save leave rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRuleJSON(rule))
}

// ListSalaryComponents returns all three catalogs, each in position order.
// ?kind= restricts the listing to one catalog.
func (h *Handler) ListSalaryComponents(w http.ResponseWriter, r *http.Request) {
	kinds := []salary.Kind{salary.KindEarning, salary.KindDeduction, salary.KindEmployerAdditional}
	if k := r.URL.Query().Get("kind"); k != "" {
		kind := salary.Kind(k)
		if !kind.Valid() {
			h.fail(w, r, "Invalid kind", generic.Invalid("kind", "unknown component kind %q", k))
			return
		}
		kinds = []salary.Kind{kind}
	}

	dtos := []SalaryComponentDTO{}
	for _, kind := range kinds {
		comps, err := h.Store.Components(r.Context(), kind)
		if err != nil {
			h.fail(w, r, "Failed to list salary components", err)
			return
		}
		for _, c := range comps {
			dtos = append(dtos, SalaryComponentDTO{Kind: string(kind), ComponentJSON: toComponentJSON(c)})
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSalaryComponent(w http.ResponseWriter, r *http.Request) {
	var req SalaryComponentDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	kind := salary.Kind(req.Kind)
	if !kind.Valid() {
		h.fail(w, r, "Invalid salary component", generic.Invalid("kind", "unknown component kind %q", req.Kind))
		return
	}
	c, err := req.ToComponent()
	if err != nil {
		h.fail(w, r, "Invalid salary component", err)
		return
	}
	if err := h.Store.SaveComponent(r.Context(), kind, c); err != nil {
		h.fail(w, r, "Failed to save salary component", err)
		return
	}
	writeJSON(w, http.StatusCreated, SalaryComponentDTO{Kind: string(kind), ComponentJSON: toComponentJSON(c)})
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// ListAbsences audits the whole roster over ?from&to (both required).
func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	p, err := h.periodParam(r, true)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}

	absences, err := h.Auditor.Absences(r.Context(), p)
	if err != nil {
		h.fail(w, r, "Failed to audit absences", err)
		return
	}
	dtos := make([]AbsenceDTO, 0, len(absences))
	for _, a := range absences {
		dtos = append(dtos, AbsenceDTO{
			EmployeeCode: string(a.EmployeeCode),
			Date:         a.Date.Key(),
			Weekday:      a.Weekday,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Regularize covers one absent day with one day of leave.
func (h *Handler) Regularize(w http.ResponseWriter, r *http.Request) {
	var req RegularizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	day, err := generic.ParseDate(req.Date)
	if err != nil {
		h.fail(w, r, "Invalid date", err)
		return
	}

	app, err := h.Ledger.Regularize(r.Context(),
		generic.EmployeeCode(strings.TrimSpace(req.EmployeeCode)), day,
		generic.LeaveTypeCode(strings.TrimSpace(req.LeaveType)))
	if err != nil {
		h.fail(w, r, "Failed to regularize absence", err)
		return
	}
	writeJSON(w, http.StatusCreated, toApplicationDTO(app))
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

func (h *Handler) SubmitLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitLeaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := leave.SubmitInput{
		EmployeeCode: generic.EmployeeCode(strings.TrimSpace(req.EmployeeCode)),
		LeaveType:    generic.LeaveTypeCode(strings.TrimSpace(req.LeaveType)),
		Reason:       req.Reason,
	}
	var err error
	if in.Start, err = generic.ParseDate(req.StartDate); err != nil {
		h.fail(w, r, "Invalid start_date", err)
		return
	}
	if in.End, err = generic.ParseDate(req.EndDate); err != nil {
		h.fail(w, r, "Invalid end_date", err)
		return
	}

	lr, err := h.Requests.Submit(r.Context(), in)
	if err != nil {
		h.fail(w, r, "Failed to submit leave request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(lr))
}

// ListLeaveRequests lists requests newest first, optionally by ?status=.
func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	var status leave.RequestStatus
	if s := r.URL.Query().Get("status"); s != "" {
		var ok bool
		if status, ok = leave.ParseRequestStatus(s); !ok {
			h.fail(w, r, "Invalid status", generic.Invalid("status", "unknown request status %q", s))
			return
		}
	}

	requests, err := h.Requests.List(r.Context(), status)
	if err != nil {
		h.fail(w, r, "Failed to list leave requests", err)
		return
	}
	dtos := make([]LeaveRequestDTO, 0, len(requests))
	for _, lr := range requests {
		dtos = append(dtos, toLeaveRequestDTO(lr))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	lr, err := h.Requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(lr))
}

func (h *Handler) ApproveLeaveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Requests.Approve, "Failed to approve leave request")
}

func (h *Handler) RejectLeaveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Requests.Reject, "Failed to reject leave request")
}

type decision func(ctx context.Context, id, decidedBy string) (leave.LeaveRequest, error)

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn decision, message string) {
	var req DecisionRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	decidedBy := strings.TrimSpace(req.DecidedBy)
	if decidedBy == "" {
		decidedBy = "admin"
	}

	lr, err := fn(r.Context(), chi.URLParam(r, "id"), decidedBy)
	if err != nil {
		h.fail(w, r, message, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(lr))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerAutoCredit runs the roster-wide rule pass now and returns its
// summary. A batch with per-employee failures is still a 200 with status
// "partial".
func (h *Handler) TriggerAutoCredit(w http.ResponseWriter, r *http.Request) {
	var req AutoCreditRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	asOf := generic.Today(h.Location)
	if req.AsOf != "" {
		var err error
		if asOf, err = generic.ParseDate(req.AsOf); err != nil {
			h.fail(w, r, "Invalid as_of", err)
			return
		}
	}

	run, err := h.Scheduler.RunNow(r.Context(), asOf)
	if err != nil {
		h.fail(w, r, "Auto-credit failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toCreditRunDTO(run))
}

// ListCreditRuns returns recorded runs, newest first.
func (h *Handler) ListCreditRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.fail(w, r, "Invalid limit", generic.Invalid("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := h.Store.CreditRuns(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "Failed to list credit runs", err)
		return
	}
	dtos := make([]CreditRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toCreditRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	status := SchedulerStatusDTO{
		Enabled:  h.Scheduler.Enabled,
		Interval: h.Scheduler.Interval.String(),
	}
	if next, ok := h.Scheduler.NextRunTime(r.Context()); ok {
		status.NextRunAt = formatTime(next)
	}
	last, ok, err := h.Scheduler.LastRun(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to get last run", err)
		return
	}
	if ok {
		dto := toCreditRunDTO(last)
		status.LastRun = &dto
	}
	writeJSON(w, http.StatusOK, status)
}

// =============================================================================
// HELPERS
// =============================================================================

func employeeCode(r *http.Request) generic.EmployeeCode {
	return generic.EmployeeCode(chi.URLParam(r, "code"))
}

func (h *Handler) dateParam(r *http.Request, name string, def generic.TimePoint) (generic.TimePoint, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	return generic.ParseDate(s)
}

// periodParam reads ?from&to, at most MaxPeriodDays long. When not
// required and both are absent the current month is returned.
func (h *Handler) periodParam(r *http.Request, required bool) (generic.Period, error) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" && to == "" && !required {
		today := generic.Today(h.Location)
		y, m := today.Year(), today.Month()
		return generic.Period{
			Start: generic.NewTimePoint(y, m, 1),
			End:   generic.NewTimePoint(y, m, generic.DaysInMonth(y, m)),
		}, nil
	}
	if from == "" || to == "" {
		return generic.Period{}, generic.Invalid("from", "from and to are both required")
	}
	return parsePeriod(from, to)
}

func parsePeriod(from, to string) (generic.Period, error) {
	start, err := generic.ParseDate(from)
	if err != nil {
		return generic.Period{}, err
	}
	end, err := generic.ParseDate(to)
	if err != nil {
		return generic.Period{}, err
	}
	p, err := generic.NewPeriod(start, end)
	if err != nil {
		return generic.Period{}, err
	}
	return p, p.Bounded(generic.MaxPeriodDays)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// fail maps a domain error to its HTTP status. Server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorContext(r.Context(), message,
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
