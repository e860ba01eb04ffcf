/*
scenarios_test.go - Tests for the demo scenarios

PURPOSE:
	Each scenario is loaded through the HTTP surface and the resulting
	state is checked through the same endpoints a client would use.
*/
package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *testServer) loadScenario(id string) {
	ts.t.Helper()
	ts.expect(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id}, http.StatusOK)
}

func TestScenario_SalaryStructure(t *testing.T) {
	// GIVEN: The salary-structure scenario
	// WHEN: The stored structure is read
	// THEN: Basic 25000, HRA clamped to 9000, PF 3000, no ESI, net 31000
	ts := newTestServer(t)
	ts.loadScenario("salary-structure")

	st := decodeBody[SalaryStructureDTO](t, ts.expect(http.MethodGet, "/api/employees/DEMO-SAL/salary", nil, http.StatusOK))

	amounts := map[string]string{}
	for _, l := range st.Earnings {
		amounts[l.ComponentID] = l.Amount.String()
	}
	for _, l := range st.Deductions {
		amounts[l.ComponentID] = l.Amount.String()
	}
	assert.Equal(t, "25000", amounts["basic"])
	assert.Equal(t, "9000", amounts["hra"])
	assert.Equal(t, "3000", amounts["pf"])
	assert.NotContains(t, amounts, "esi")
	assert.True(t, st.NetSalary.Equal(dec("31000")), "net = %s", st.NetSalary)
}

func TestScenario_NewJoiner(t *testing.T) {
	// GIVEN: Joined 10 days ago, the CL rule needs 90 days
	// WHEN: The scenario runs the rule pass as of today
	// THEN: No balance row is written
	ts := newTestServer(t)
	ts.loadScenario("new-joiner")

	balances := decodeBody[[]BalanceDTO](t, ts.expect(http.MethodGet, "/api/employees/DEMO-NEW/balances", nil, http.StatusOK))

	assert.Empty(t, balances)
}

func TestScenario_AbsenteeWeek(t *testing.T) {
	// GIVEN: The absentee-week scenario, loaded twice
	// WHEN: 4-10 March 2024 is audited and the absence regularized
	// THEN: One absence on Tuesday 5 March; CL goes from 2 to 1
	ts := newTestServer(t)
	ts.loadScenario("absentee-week")
	ts.loadScenario("absentee-week")

	absences := decodeBody[[]AbsenceDTO](t, ts.expect(http.MethodGet, "/api/absences?from=2024-03-04&to=2024-03-10", nil, http.StatusOK))
	require.Len(t, absences, 1)
	assert.Equal(t, "DEMO-ABS", absences[0].EmployeeCode)
	assert.Equal(t, "2024-03-05", absences[0].Date)
	assert.True(t, ts.balance("DEMO-ABS", "CL").Remaining.Equal(dec("2")))

	ts.expect(http.MethodPost, "/api/absences/regularize", RegularizeRequest{
		EmployeeCode: "DEMO-ABS", Date: "2024-03-05", LeaveType: "CL",
	}, http.StatusCreated)

	assert.True(t, ts.balance("DEMO-ABS", "CL").Remaining.Equal(dec("1")))
}

func TestScenario_CompOff(t *testing.T) {
	// GIVEN: Weekend work on 9, 16 and 24 March 2024, sandwich rule on,
	//        Friday 15 and Monday 18 absent
	// WHEN: The March report is read
	// THEN: Saturday 16 is sandwiched; 2 days earned and credited as CO
	ts := newTestServer(t)
	ts.loadScenario("comp-off")

	rec := ts.expect(http.MethodGet, "/api/employees/DEMO-CO/comp-off?from=2024-03-01&to=2024-03-31&as_of=2024-03-31", nil, http.StatusOK)
	report := decodeBody[CompOffDTO](t, rec)

	assert.Equal(t, 2, report.Earned)
	assert.Len(t, report.Days, 10, "every weekend day of March is reported")
	for _, d := range report.Days {
		switch d.Date {
		case "2024-03-09", "2024-03-24":
			assert.True(t, d.Earned, d.Date)
		case "2024-03-16":
			assert.True(t, d.Worked)
			assert.True(t, d.Sandwiched)
			assert.False(t, d.Earned)
		default:
			assert.False(t, d.Worked, d.Date)
		}
	}

	assert.True(t, ts.balance("DEMO-CO", "CO").Opening.Equal(dec("2")))
}

func TestScenarios_ListAndCurrent(t *testing.T) {
	ts := newTestServer(t)

	list := decodeBody[[]ScenarioDTO](t, ts.expect(http.MethodGet, "/api/scenarios", nil, http.StatusOK))
	assert.Len(t, list, len(scenarios))

	rec := ts.expect(http.MethodGet, "/api/scenarios/current", nil, http.StatusOK)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	ts.loadScenario("new-joiner")
	current := decodeBody[ScenarioDTO](t, ts.expect(http.MethodGet, "/api/scenarios/current", nil, http.StatusOK))
	assert.Equal(t, "new-joiner", current.ID)

	ts.expect(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"}, http.StatusBadRequest)
}

