/*
handlers_test.go - HTTP tests for the API handlers

Each test drives the real router against an in-memory SQLite store:
- Employee, weekly-off and punch endpoints
- Audit and regularization, leave request workflow
- Salary derivation and overrides
- Catalog endpoints, auto-credit, error mapping
*/
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// HELPERS
// =============================================================================

type testServer struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
	store   *sqlite.Store
}

func newTestServer(t *testing.T, opts ...func(*Options)) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	o := Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	h := NewHandler(store, o)
	return &testServer{t: t, handler: h, router: NewRouter(h, RouterOptions{}), store: store}
}

// do sends body as JSON; a string body is sent verbatim.
func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(ts.t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) expect(method, path string, body any, status int) *httptest.ResponseRecorder {
	ts.t.Helper()
	rec := ts.do(method, path, body)
	require.Equal(ts.t, status, rec.Code, "%s %s: %s", method, path, rec.Body.String())
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (ts *testServer) employee(code, joined string) {
	ts.t.Helper()
	ts.expect(http.MethodPost, "/api/employees", CreateEmployeeRequest{
		Code: code, Name: "Employee " + code, Department: "Ops", JoinDate: joined,
	}, http.StatusCreated)
}

func (ts *testServer) casualLeave(count int) {
	ts.t.Helper()
	ts.expect(http.MethodPost, "/api/leave-types", map[string]any{"code": "CL", "name": "Casual Leave"}, http.StatusCreated)
	ts.expect(http.MethodPost, "/api/leave-rules", map[string]any{
		"id": "cl", "leave_type": "CL", "allocation_type": "Fixed", "allocated_count": count,
	}, http.StatusCreated)
}

func (ts *testServer) accrue(code, asOf string) AccrualDTO {
	ts.t.Helper()
	rec := ts.expect(http.MethodPost, "/api/employees/"+code+"/accrue", AccrueRequest{AsOf: asOf}, http.StatusOK)
	return decodeBody[AccrualDTO](ts.t, rec)
}

func (ts *testServer) balance(code, lt string) BalanceDTO {
	ts.t.Helper()
	rec := ts.expect(http.MethodGet, "/api/employees/"+code+"/balances", nil, http.StatusOK)
	for _, b := range decodeBody[[]BalanceDTO](ts.t, rec) {
		if b.LeaveType == lt {
			return b
		}
	}
	ts.t.Fatalf("no %s balance for %s", lt, code)
	return BalanceDTO{}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.expect(http.MethodGet, "/healthz", nil, http.StatusOK)

	assert.Equal(t, "ok", decodeBody[map[string]string](t, rec)["status"])
}

func TestCreateEmployee_ThenGetAndList(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.expect(http.MethodPost, "/api/employees", CreateEmployeeRequest{
		Code: "E1", Name: "Asha", Department: "Finance", Gender: "female", JoinDate: "2024-01-15",
	}, http.StatusCreated)
	created := decodeBody[EmployeeDTO](t, rec)
	assert.Equal(t, "active", created.Status)
	assert.Equal(t, "Female", created.Gender)

	got := decodeBody[EmployeeDTO](t, ts.expect(http.MethodGet, "/api/employees/E1", nil, http.StatusOK))
	assert.Equal(t, created, got)

	all := decodeBody[[]EmployeeDTO](t, ts.expect(http.MethodGet, "/api/employees", nil, http.StatusOK))
	assert.Len(t, all, 1)
}

func TestCreateEmployee_RejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing code", CreateEmployeeRequest{Name: "A", JoinDate: "2024-01-01"}},
		{"missing name", CreateEmployeeRequest{Code: "E1", JoinDate: "2024-01-01"}},
		{"bad join date", CreateEmployeeRequest{Code: "E1", Name: "A", JoinDate: "01/02/2024"}},
		{"leave before join", CreateEmployeeRequest{Code: "E1", Name: "A", JoinDate: "2024-03-01", LeaveDate: "2024-02-01"}},
		{"malformed json", `{"code": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/employees", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeBody[ErrorResponse](t, rec).Error)
		})
	}
}

func TestGetEmployee_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.expect(http.MethodGet, "/api/employees/E404", nil, http.StatusNotFound)

	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Details, "E404")
}

func TestWeeklyOff_PutAndGet(t *testing.T) {
	// GIVEN: An employee
	// WHEN: Setting weekly-off days with abbreviations and a duplicate
	// THEN: Days are normalized and deduplicated; an unknown day is a 400
	ts := newTestServer(t)
	ts.employee("E1", "2024-01-01")

	rec := ts.expect(http.MethodPut, "/api/employees/E1/weekly-off", WeeklyOffRequest{
		Days: []string{"sat", "Sunday", "Sat"}, SandwichRule: true,
	}, http.StatusOK)
	put := decodeBody[WeeklyOffDTO](t, rec)
	assert.Equal(t, []string{"Saturday", "Sunday"}, put.Days)
	assert.True(t, put.SandwichRule)

	got := decodeBody[WeeklyOffDTO](t, ts.expect(http.MethodGet, "/api/employees/E1/weekly-off", nil, http.StatusOK))
	assert.Equal(t, put, got)

	ts.expect(http.MethodPut, "/api/employees/E1/weekly-off", WeeklyOffRequest{Days: []string{"Funday"}}, http.StatusBadRequest)
	ts.expect(http.MethodPut, "/api/employees/E404/weekly-off", WeeklyOffRequest{}, http.StatusNotFound)
}

func TestRecordPunches_ReportsLocalDate(t *testing.T) {
	// GIVEN: The server runs in IST (UTC+5:30)
	// WHEN: A punch at 20:00 UTC on 8 March is recorded
	// THEN: It counts for 9 March
	ist := time.FixedZone("IST", 5*3600+1800)
	ts := newTestServer(t, func(o *Options) { o.Location = ist })
	ts.employee("E1", "2024-01-01")

	rec := ts.expect(http.MethodPost, "/api/employees/E1/punches", RecordPunchesRequest{
		At: []string{"2024-03-08T20:00:00Z"},
	}, http.StatusCreated)

	punches := decodeBody[[]PunchDTO](t, rec)
	require.Len(t, punches, 1)
	assert.Equal(t, "2024-03-09", punches[0].LocalDate)

	ts.expect(http.MethodPost, "/api/employees/E1/punches", RecordPunchesRequest{At: []string{"yesterday"}}, http.StatusBadRequest)
	ts.expect(http.MethodPost, "/api/employees/E1/punches", RecordPunchesRequest{}, http.StatusBadRequest)
}

// =============================================================================
// LEDGER
// =============================================================================

func TestAuditThenRegularize_OverHTTP(t *testing.T) {
	// GIVEN: E1 punched 4, 6, 7 and 8 March 2024, weekends off, CL = 2
	// WHEN: The week is audited and the Tuesday regularized with CL
	// THEN: One absence on 2024-03-05; afterwards CL remaining = 1, the
	//       application is listed and the audit is clean
	ts := newTestServer(t)
	ts.employee("E1", "2024-01-01")
	ts.expect(http.MethodPut, "/api/employees/E1/weekly-off", WeeklyOffRequest{Days: []string{"Saturday", "Sunday"}}, http.StatusOK)
	ts.casualLeave(2)
	ts.accrue("E1", "2024-03-01")
	ts.expect(http.MethodPost, "/api/employees/E1/punches", RecordPunchesRequest{At: []string{
		"2024-03-04T10:00:00Z", "2024-03-06T10:00:00Z", "2024-03-07T10:00:00Z", "2024-03-08T10:00:00Z",
	}}, http.StatusCreated)

	absences := decodeBody[[]AbsenceDTO](t, ts.expect(http.MethodGet, "/api/absences?from=2024-03-04&to=2024-03-10", nil, http.StatusOK))
	require.Len(t, absences, 1)
	assert.Equal(t, AbsenceDTO{EmployeeCode: "E1", Date: "2024-03-05", Weekday: "Tuesday"}, absences[0])

	rec := ts.expect(http.MethodPost, "/api/absences/regularize", RegularizeRequest{
		EmployeeCode: "E1", Date: "2024-03-05", LeaveType: "CL",
	}, http.StatusCreated)
	app := decodeBody[ApplicationDTO](t, rec)
	assert.Equal(t, "regularization", app.Source)

	assert.True(t, ts.balance("E1", "CL").Remaining.Equal(dec("1")))

	apps := decodeBody[[]ApplicationDTO](t, ts.expect(http.MethodGet, "/api/employees/E1/applications?from=2024-03-01&to=2024-03-31", nil, http.StatusOK))
	require.Len(t, apps, 1)
	assert.Equal(t, app.ID, apps[0].ID)

	absences = decodeBody[[]AbsenceDTO](t, ts.expect(http.MethodGet, "/api/absences?from=2024-03-04&to=2024-03-10", nil, http.StatusOK))
	assert.Empty(t, absences)
}

func TestRegularize_ErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	ts.employee("E1", "2024-01-01")
	ts.casualLeave(1)
	ts.accrue("E1", "2024-03-01")
	ts.expect(http.MethodPost, "/api/absences/regularize", RegularizeRequest{EmployeeCode: "E1", Date: "2024-03-05", LeaveType: "CL"}, http.StatusCreated)

	tests := []struct {
		name   string
		req    RegularizeRequest
		status int
	}{
		{"insufficient balance", RegularizeRequest{EmployeeCode: "E1", Date: "2024-03-06", LeaveType: "CL"}, http.StatusConflict},
		{"unknown employee", RegularizeRequest{EmployeeCode: "E404", Date: "2024-03-06", LeaveType: "CL"}, http.StatusNotFound},
		{"unknown leave type", RegularizeRequest{EmployeeCode: "E1", Date: "2024-03-06", LeaveType: "XX"}, http.StatusNotFound},
		{"malformed date", RegularizeRequest{EmployeeCode: "E1", Date: "March 6", LeaveType: "CL"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/absences/regularize", tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestListAbsences_RequiresValidPeriod(t *testing.T) {
	ts := newTestServer(t)

	ts.expect(http.MethodGet, "/api/absences", nil, http.StatusBadRequest)
	ts.expect(http.MethodGet, "/api/absences?from=2024-03-04", nil, http.StatusBadRequest)
	ts.expect(http.MethodGet, "/api/absences?from=2024-03-10&to=2024-03-04", nil, http.StatusBadRequest)
	ts.expect(http.MethodGet, "/api/absences?from=0001-01-01&to=9999-12-31", nil, http.StatusBadRequest)
}

func TestGetApplications_DefaultsToCurrentMonth(t *testing.T) {
	// GIVEN: Applications on the first and last day of the current month and
	//        on the first day of the next
	// WHEN: Applications are listed without from/to
	// THEN: Only the two in the current month are returned
	ts := newTestServer(t)
	ts.employee("E1", "2024-01-01")
	ts.casualLeave(3)
	today := generic.Today(time.UTC)
	y, m := today.Year(), today.Month()
	first := generic.NewTimePoint(y, m, 1)
	last := generic.NewTimePoint(y, m, generic.DaysInMonth(y, m))
	ts.accrue("E1", first.Key())
	for _, d := range []generic.TimePoint{first, last, last.AddDays(1)} {
		ts.expect(http.MethodPost, "/api/absences/regularize", RegularizeRequest{
			EmployeeCode: "E1", Date: d.Key(), LeaveType: "CL",
		}, http.StatusCreated)
	}

	apps := decodeBody[[]ApplicationDTO](t, ts.expect(http.MethodGet, "/api/employees/E1/applications", nil, http.StatusOK))

	require.Len(t, apps, 2)
	assert.Equal(t, first.Key(), apps[0].Date)
	assert.Equal(t, last.Key(), apps[1].Date)
}

func TestAccrue_HistoryReplaysToBalance(t *testing.T) {
	// GIVEN: CL = 5 credited, then one day regularized
	// WHEN: The balance journal is read
	// THEN: A grant and a consumption, replaying to the stored row
	ts := newTestServer(t)
	ts.employee("E1", "2024-01-01")
	ts.casualLeave(5)

	accrual := ts.accrue("E1", "2024-03-01")
	require.Len(t, accrual.Contributions, 1)
	assert.Equal(t, "cl", accrual.Contributions[0].RuleID)
	ts.expect(http.MethodPost, "/api/absences/regularize", RegularizeRequest{EmployeeCode: "E1", Date: "2024-03-05", LeaveType: "CL"}, http.StatusCreated)

	history := decodeBody[HistoryDTO](t, ts.expect(http.MethodGet, "/api/employees/E1/balances/CL/transactions", nil, http.StatusOK))

	require.Len(t, history.Transactions, 2)
	assert.Equal(t, "grant", history.Transactions[0].Type)
	assert.Equal(t, "consumption", history.Transactions[1].Type)
	assert.True(t, history.Transactions[1].Delta.Equal(dec("-1")))
	stored := ts.balance("E1", "CL")
	assert.True(t, history.Balance.Remaining.Equal(stored.Remaining))
	assert.True(t, history.Balance.Used.Equal(stored.Used))
}

func TestAccrue_PeriodNeedsBothBounds(t *testing.T) {
	ts := newTestServer(t)
	ts.employee("E1", "2024-01-01")

	ts.expect(http.MethodPost, "/api/employees/E1/accrue", AccrueRequest{AsOf: "2024-03-31", From: "2024-03-01"}, http.StatusBadRequest)
	ts.expect(http.MethodPost, "/api/employees/E1/accrue", AccrueRequest{AsOf: "2024-03-31", From: "2024-03-31", To: "2024-03-01"}, http.StatusBadRequest)
	ts.expect(http.MethodPost, "/api/employees/E404/accrue", nil, http.StatusNotFound)
}

func TestCompOff_NoWeeklyOffSetting(t *testing.T) {
	ts := newTestServer(t)
	ts.employee("E1", "2024-01-01")

	rec := ts.expect(http.MethodGet, "/api/employees/E1/comp-off?from=2024-03-01&to=2024-03-31", nil, http.StatusOK)

	report := decodeBody[CompOffDTO](t, rec)
	assert.Equal(t, 0, report.Earned)
	assert.Empty(t, report.Days)
	assert.Equal(t, "2024-03-01", report.From)
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func TestLeaveRequest_Workflow(t *testing.T) {
	// GIVEN: CL remaining = 2
	// WHEN: A 3-day request, then a 2-day request approved twice
	// THEN: 409 for the overdraft, 200 then 409 for the approvals, CL = 0
	ts := newTestServer(t)
	ts.employee("E1", "2024-01-01")
	ts.casualLeave(2)
	ts.accrue("E1", "2024-03-01")

	ts.expect(http.MethodPost, "/api/leave-requests", SubmitLeaveRequest{
		EmployeeCode: "E1", LeaveType: "CL", StartDate: "2024-03-04", EndDate: "2024-03-06",
	}, http.StatusConflict)

	rec := ts.expect(http.MethodPost, "/api/leave-requests", SubmitLeaveRequest{
		EmployeeCode: "E1", LeaveType: "CL", StartDate: "2024-03-04", EndDate: "2024-03-05", Reason: "family",
	}, http.StatusCreated)
	submitted := decodeBody[LeaveRequestDTO](t, rec)
	assert.Equal(t, "Pending", submitted.Status)
	assert.Equal(t, 2, submitted.TotalDays)

	pending := decodeBody[[]LeaveRequestDTO](t, ts.expect(http.MethodGet, "/api/leave-requests?status=pending", nil, http.StatusOK))
	require.Len(t, pending, 1)

	rec = ts.expect(http.MethodPost, "/api/leave-requests/"+submitted.ID+"/approve", DecisionRequest{DecidedBy: "manager"}, http.StatusOK)
	approved := decodeBody[LeaveRequestDTO](t, rec)
	assert.Equal(t, "Approved", approved.Status)
	assert.Equal(t, "manager", approved.DecidedBy)

	ts.expect(http.MethodPost, "/api/leave-requests/"+submitted.ID+"/approve", nil, http.StatusConflict)
	ts.expect(http.MethodPost, "/api/leave-requests/"+submitted.ID+"/reject", nil, http.StatusConflict)

	assert.True(t, ts.balance("E1", "CL").Remaining.IsZero())
	apps := decodeBody[[]ApplicationDTO](t, ts.expect(http.MethodGet, "/api/employees/E1/applications?from=2024-03-01&to=2024-03-31", nil, http.StatusOK))
	assert.Len(t, apps, 2)
}

func TestLeaveRequest_RejectAndLookups(t *testing.T) {
	ts := newTestServer(t)
	ts.employee("E1", "2024-01-01")
	ts.casualLeave(5)
	ts.accrue("E1", "2024-03-01")

	rec := ts.expect(http.MethodPost, "/api/leave-requests", SubmitLeaveRequest{
		EmployeeCode: "E1", LeaveType: "CL", StartDate: "2024-03-04", EndDate: "2024-03-04",
	}, http.StatusCreated)
	id := decodeBody[LeaveRequestDTO](t, rec).ID

	rejected := decodeBody[LeaveRequestDTO](t, ts.expect(http.MethodPost, "/api/leave-requests/"+id+"/reject", nil, http.StatusOK))
	assert.Equal(t, "Rejected", rejected.Status)
	assert.Equal(t, "admin", rejected.DecidedBy)
	assert.True(t, ts.balance("E1", "CL").Remaining.Equal(dec("5")))

	got := decodeBody[LeaveRequestDTO](t, ts.expect(http.MethodGet, "/api/leave-requests/"+id, nil, http.StatusOK))
	assert.Equal(t, rejected, got)

	ts.expect(http.MethodGet, "/api/leave-requests/nope", nil, http.StatusNotFound)
	ts.expect(http.MethodPost, "/api/leave-requests/nope/approve", nil, http.StatusNotFound)
	ts.expect(http.MethodGet, "/api/leave-requests?status=maybe", nil, http.StatusBadRequest)
	ts.expect(http.MethodPost, "/api/leave-requests", SubmitLeaveRequest{
		EmployeeCode: "E1", LeaveType: "CL", StartDate: "2024-03-04",
	}, http.StatusBadRequest)
}

// =============================================================================
// SALARY
// =============================================================================

func (ts *testServer) salaryCatalog() {
	ts.t.Helper()
	for _, c := range []map[string]any{
		{"kind": "earning", "id": "basic", "name": "Basic", "calculation_percentage": 50, "based_on": "Gross"},
		{"kind": "earning", "id": "hra", "name": "HRA", "calculation_percentage": "40", "based_on": "Basic", "max_calculated_value": 9000},
		{"kind": "earning", "id": "special", "name": "Special Allowance"},
		{"kind": "deduction", "id": "pf", "name": "PF"},
		{"kind": "deduction", "id": "esi", "name": "ESI"},
	} {
		ts.expect(http.MethodPost, "/api/salary-components", c, http.StatusCreated)
	}
}

func TestSalary_DeriveThenOverride(t *testing.T) {
	// GIVEN: Basic 50% of gross, HRA 40% of basic capped at 9000, PF, ESI
	// WHEN: Gross 50000 is derived, then Special Allowance set to 1000
	// THEN: Net 31000, then 32000 with nothing else recomputed
	ts := newTestServer(t)
	ts.employee("E1", "2024-01-01")
	ts.salaryCatalog()

	ts.expect(http.MethodGet, "/api/employees/E1/salary", nil, http.StatusNotFound)

	rec := ts.expect(http.MethodPost, "/api/employees/E1/salary/derive", map[string]any{"monthly_gross": 50000}, http.StatusOK)
	st := decodeBody[SalaryStructureDTO](t, rec)
	assert.True(t, st.BasicSalary.Equal(dec("25000")))
	assert.True(t, st.NetSalary.Equal(dec("31000")), "net = %s", st.NetSalary)
	require.Len(t, st.Deductions, 1)
	assert.Equal(t, "pf", st.Deductions[0].ComponentID)

	rec = ts.expect(http.MethodPut, "/api/employees/E1/salary/components/earning/special", map[string]any{"amount": "1000"}, http.StatusOK)
	st = decodeBody[SalaryStructureDTO](t, rec)
	assert.True(t, st.NetSalary.Equal(dec("32000")), "net = %s", st.NetSalary)
	assert.True(t, st.BasicSalary.Equal(dec("25000")))

	stored := decodeBody[SalaryStructureDTO](t, ts.expect(http.MethodGet, "/api/employees/E1/salary", nil, http.StatusOK))
	assert.True(t, stored.NetSalary.Equal(dec("32000")))

	ts.expect(http.MethodPut, "/api/employees/E1/salary/components/bonus/special", map[string]any{"amount": 1}, http.StatusBadRequest)
	ts.expect(http.MethodPut, "/api/employees/E1/salary/components/earning/nope", map[string]any{"amount": 1}, http.StatusNotFound)
	ts.expect(http.MethodPut, "/api/employees/E1/salary/components/earning/special", map[string]any{"amount": -1}, http.StatusBadRequest)
	ts.expect(http.MethodPost, "/api/employees/E404/salary/derive", map[string]any{"monthly_gross": 1}, http.StatusNotFound)
}

// =============================================================================
// CATALOGS
// =============================================================================

func TestCatalogs_CreateAndList(t *testing.T) {
	ts := newTestServer(t)
	ts.salaryCatalog()
	ts.casualLeave(12)

	comps := decodeBody[[]SalaryComponentDTO](t, ts.expect(http.MethodGet, "/api/salary-components?kind=deduction", nil, http.StatusOK))
	require.Len(t, comps, 2)
	assert.Equal(t, "pf", comps[0].ID)
	assert.Equal(t, "esi", comps[1].ID)

	all := decodeBody[[]SalaryComponentDTO](t, ts.expect(http.MethodGet, "/api/salary-components", nil, http.StatusOK))
	assert.Len(t, all, 5)
	assert.Equal(t, "earning", all[0].Kind)
	assert.True(t, all[1].MaxCalculatedValue.OrZero().Equal(dec("9000")))

	rules := decodeBody[[]map[string]any](t, ts.expect(http.MethodGet, "/api/leave-rules", nil, http.StatusOK))
	require.Len(t, rules, 1)
	assert.Equal(t, "Fixed", rules[0]["allocation_type"])

	types := decodeBody[[]map[string]any](t, ts.expect(http.MethodGet, "/api/leave-types", nil, http.StatusOK))
	require.Len(t, types, 1)
	assert.Equal(t, "Casual Leave", types[0]["name"])
}

func TestCatalogs_RejectBadDefinitions(t *testing.T) {
	ts := newTestServer(t)

	ts.expect(http.MethodPost, "/api/salary-components", map[string]any{"kind": "bonus", "id": "x", "name": "X"}, http.StatusBadRequest)
	ts.expect(http.MethodPost, "/api/salary-components", map[string]any{"kind": "earning", "name": "X"}, http.StatusBadRequest)
	ts.expect(http.MethodPost, "/api/leave-types", map[string]any{"name": "No Code"}, http.StatusBadRequest)
	ts.expect(http.MethodPost, "/api/leave-rules", map[string]any{
		"id": "r1", "leave_type": "ZZ", "allocation_type": "Fixed", "allocated_count": 1,
	}, http.StatusBadRequest)
	ts.expect(http.MethodPost, "/api/leave-rules", map[string]any{
		"id": "r1", "leave_type": "ZZ", "allocation_type": "Monthly",
	}, http.StatusBadRequest)
	ts.expect(http.MethodGet, "/api/salary-components?kind=bonus", nil, http.StatusBadRequest)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAutoCredit_RunsAndIsRecorded(t *testing.T) {
	// GIVEN: One active and one inactive employee, a fixed CL rule
	// WHEN: The batch is triggered as of 2024-06-30
	// THEN: One processed, one skipped; the run is listed and reported as last
	ts := newTestServer(t)
	ts.employee("E1", "2024-01-01")
	ts.expect(http.MethodPost, "/api/employees", CreateEmployeeRequest{
		Code: "E2", Name: "Gone", JoinDate: "2023-01-01", Status: "inactive",
	}, http.StatusCreated)
	ts.casualLeave(12)

	rec := ts.expect(http.MethodPost, "/api/admin/auto-credit", AutoCreditRequest{AsOf: "2024-06-30"}, http.StatusOK)
	run := decodeBody[CreditRunDTO](t, rec)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 1, run.Skipped)
	assert.Empty(t, run.Failures)
	assert.Equal(t, "2024-06-30", run.AsOf)

	assert.True(t, ts.balance("E1", "CL").Opening.Equal(dec("12")))

	runs := decodeBody[[]CreditRunDTO](t, ts.expect(http.MethodGet, "/api/admin/auto-credit/runs", nil, http.StatusOK))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, "completed", runs[0].Status)

	status := decodeBody[SchedulerStatusDTO](t, ts.expect(http.MethodGet, "/api/admin/auto-credit/status", nil, http.StatusOK))
	assert.False(t, status.Enabled)
	assert.Empty(t, status.NextRunAt)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, run.ID, status.LastRun.ID)

	ts.expect(http.MethodGet, "/api/admin/auto-credit/runs?limit=0", nil, http.StatusBadRequest)
	ts.expect(http.MethodPost, "/api/admin/auto-credit", AutoCreditRequest{AsOf: "June"}, http.StatusBadRequest)
}
