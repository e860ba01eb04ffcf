/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for demos. Each scenario seeds the shared demo catalog, creates
	its own employees and leave rules, and runs the engine operations that
	bring the data into the state the scenario demonstrates.

AVAILABLE SCENARIOS:

	salary-structure: Gross 50000 split into Basic, capped HRA and PF
	new-joiner:       Joined 10 days ago, rule needs 90 days, no credit
	absentee-week:    Tuesday 5 March 2024 has no punch and no leave
	comp-off:         Weekend work in March 2024 with the sandwich rule

HOW SCENARIOS WORK:
 1. Load the demo catalog (components, leave types) via the factory
 2. Load the scenario's own leave rules, scoped to its employees
 3. Create employees, weekly-off settings and punches
 4. Run the rule pass and/or derive the salary structure

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "absentee-week"}

	then e.g. GET /api/absences?from=2024-03-04&to=2024-03-10

NOTE:

	Scenarios do not reset the store. Every loader upserts fixed codes,
	so loading a scenario twice leaves the same state, except that a
	used balance is never reduced.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - factory/catalog.go: Catalog JSON definitions
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "salary-structure",
		Name:        "Salary Structure",
		Description: "Monthly gross 50000: Basic 25000, HRA capped at 9000, PF 3000, ESI not applicable",
		Category:    "salary",
	},
	{
		ID:          "new-joiner",
		Name:        "New Joiner",
		Description: "Employee joined 10 days ago; the casual leave rule needs 90 days of service",
		Category:    "leave",
	},
	{
		ID:          "absentee-week",
		Name:        "Absentee Week",
		Description: "Punches every weekday of 4-8 March 2024 except Tuesday; 2 days of casual leave to regularize with",
		Category:    "leave",
	},
	{
		ID:          "comp-off",
		Name:        "Comp-Off With Sandwich Rule",
		Description: "Weekend work in March 2024: two earning days and one sandwiched Saturday",
		Category:    "leave",
	},
}

// demoCatalog is shared by every scenario.
const demoCatalog = `{
  "earning_components": [
    {"id": "basic", "name": "Basic", "calculation_percentage": 50, "based_on": "Gross"},
    {"id": "hra", "name": "HRA", "calculation_percentage": 40, "based_on": "Basic", "max_calculated_value": 9000},
    {"id": "special", "name": "Special Allowance", "calculation_percentage": null}
  ],
  "deduction_components": [
    {"id": "pf", "name": "PF", "calculation_percentage": null},
    {"id": "esi", "name": "ESI", "calculation_percentage": null}
  ],
  "employer_additional_components": [
    {"id": "employer-pf", "name": "Employer PF", "calculation_percentage": null},
    {"id": "employer-esi", "name": "Employer ESI", "calculation_percentage": null}
  ],
  "leave_types": [
    {"code": "CL", "name": "Casual Leave", "accrual_frequency": "Yearly"},
    {"code": "SL", "name": "Sick Leave", "accrual_frequency": "Yearly"},
    {"code": "CO", "name": "Compensatory Off", "is_comp_off": true}
  ]
}`

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, or null.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()

	var err error
	switch req.ScenarioID {
	case "salary-structure":
		err = h.loadSalaryStructureScenario(ctx)
	case "new-joiner":
		err = h.loadNewJoinerScenario(ctx)
	case "absentee-week":
		err = h.loadAbsenteeWeekScenario(ctx)
	case "comp-off":
		err = h.loadCompOffScenario(ctx)
	default:
		h.fail(w, r, "Unknown scenario", generic.Invalid("scenario_id", "unknown scenario %q", req.ScenarioID))
		return
	}

	if err != nil {
		h.fail(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	h.Logger.InfoContext(ctx, "scenario loaded", "scenario", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSalaryStructureScenario(ctx context.Context) error {
	if err := h.loadCatalog(ctx, demoCatalog); err != nil {
		return err
	}
	if err := h.Store.SaveEmployee(ctx, leave.Employee{
		Code:       "DEMO-SAL",
		Name:       "Asha Rao",
		Department: "Finance",
		JoinDate:   generic.MustParseDate("2023-04-01"),
		Status:     leave.StatusActive,
	}); err != nil {
		return err
	}
	_, err := h.Salary.Derive(ctx, "DEMO-SAL", decimal.NewFromInt(50000))
	return err
}

func (h *Handler) loadNewJoinerScenario(ctx context.Context) error {
	if err := h.loadCatalog(ctx, demoCatalog); err != nil {
		return err
	}
	if err := h.loadCatalog(ctx, `{
	  "leave_rules": [
	    {"id": "demo-new-cl", "leave_type": "CL", "eligibility_days": 90,
	     "allocation_type": "Fixed", "eligibility_scope": "Specific Employees",
	     "scope_value": "DEMO-NEW", "allocated_count": 12}
	  ]
	}`); err != nil {
		return err
	}

	today := generic.Today(h.Location)
	if err := h.Store.SaveEmployee(ctx, leave.Employee{
		Code:       "DEMO-NEW",
		Name:       "Ravi Menon",
		Department: "Engineering",
		JoinDate:   today.AddDays(-10),
		Status:     leave.StatusActive,
	}); err != nil {
		return err
	}
	_, err := h.Evaluator.Apply(ctx, "DEMO-NEW", today, nil)
	return err
}

func (h *Handler) loadAbsenteeWeekScenario(ctx context.Context) error {
	if err := h.loadCatalog(ctx, demoCatalog); err != nil {
		return err
	}
	if err := h.loadCatalog(ctx, `{
	  "leave_rules": [
	    {"id": "demo-abs-cl", "leave_type": "CL", "allocation_type": "Fixed",
	     "eligibility_scope": "Specific Employees", "scope_value": "DEMO-ABS",
	     "allocated_count": 2}
	  ]
	}`); err != nil {
		return err
	}

	code := generic.EmployeeCode("DEMO-ABS")
	if err := h.seedEmployee(ctx, leave.Employee{
		Code:       code,
		Name:       "Meera Iyer",
		Department: "Operations",
		JoinDate:   generic.MustParseDate("2024-01-01"),
		Status:     leave.StatusActive,
	}, false); err != nil {
		return err
	}
	if err := h.seedPunches(ctx, code, "2024-03-04", "2024-03-06", "2024-03-07", "2024-03-08"); err != nil {
		return err
	}
	_, err := h.Evaluator.Apply(ctx, code, generic.MustParseDate("2024-03-01"), nil)
	return err
}

func (h *Handler) loadCompOffScenario(ctx context.Context) error {
	if err := h.loadCatalog(ctx, demoCatalog); err != nil {
		return err
	}
	if err := h.loadCatalog(ctx, `{
	  "leave_rules": [
	    {"id": "demo-co", "leave_type": "CO", "allocation_type": "Work on Weekly Off",
	     "eligibility_scope": "Specific Employees", "scope_value": "DEMO-CO",
	     "allocated_count": 1}
	  ]
	}`); err != nil {
		return err
	}

	code := generic.EmployeeCode("DEMO-CO")
	if err := h.seedEmployee(ctx, leave.Employee{
		Code:       code,
		Name:       "Karan Shah",
		Department: "Support",
		JoinDate:   generic.MustParseDate("2023-01-01"),
		Status:     leave.StatusActive,
	}, true); err != nil {
		return err
	}
	// Sat 9th: Friday present, earns. Sat 16th: Fri 15th and Mon 18th
	// absent, sandwiched. Sun 24th: Friday present, earns.
	if err := h.seedPunches(ctx, code,
		"2024-03-08", "2024-03-09",
		"2024-03-16",
		"2024-03-22", "2024-03-24",
	); err != nil {
		return err
	}

	march, err := generic.NewPeriod(generic.MustParseDate("2024-03-01"), generic.MustParseDate("2024-03-31"))
	if err != nil {
		return err
	}
	_, err = h.Evaluator.Apply(ctx, code, march.End, &march)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) loadCatalog(ctx context.Context, jsonStr string) error {
	cat, err := h.Catalogs.ParseCatalog(jsonStr)
	if err != nil {
		return err
	}
	return h.Catalogs.Load(ctx, h.Store, h.Store, cat)
}

// seedEmployee saves emp with Saturday and Sunday off.
func (h *Handler) seedEmployee(ctx context.Context, emp leave.Employee, sandwich bool) error {
	if err := h.Store.SaveEmployee(ctx, emp); err != nil {
		return err
	}
	return h.Store.SaveWeeklyOff(ctx, leave.WeeklyOffSetting{
		EmployeeCode: emp.Code,
		Days:         []time.Weekday{time.Saturday, time.Sunday},
		SandwichRule: sandwich,
	})
}

// seedPunches records one 09:30 local punch on each date. Dates that
// already have a punch are skipped so reloading does not duplicate them.
func (h *Handler) seedPunches(ctx context.Context, code generic.EmployeeCode, dates ...string) error {
	for _, d := range dates {
		day := generic.MustParseDate(d)
		start := day.StartIn(h.Location)
		existing, err := h.Store.Punches(ctx, code, start, day.AddDays(1).StartIn(h.Location))
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			continue
		}
		at := start.Add(9*time.Hour + 30*time.Minute)
		if err := h.Store.RecordPunch(ctx, leave.Punch{EmployeeCode: code, At: at}); err != nil {
			return err
		}
	}
	return nil
}
