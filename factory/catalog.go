/*
Package factory provides JSON to Go catalog conversion.

PURPOSE:
  Converts JSON catalog definitions into salary.Component, leave.LeaveType
  and leave.LeaveRule values. Administrators maintain the component and
  rule catalogs as data; the factory validates them and produces the typed
  structs the calculator and the rule evaluator consume.

JSON SCHEMA:
  {
    "earning_components": [
      {"id": "e-basic", "name": "Basic", "calculation_percentage": 50, "based_on": "Gross"},
      {"id": "e-hra", "name": "HRA", "calculation_percentage": "40", "based_on": "Basic",
       "max_calculated_value": 9000}
    ],
    "deduction_components": [{"id": "d-pf", "name": "Employee PF"}],
    "employer_additional_components": [{"id": "r-pf", "name": "Employer PF"}],
    "leave_types": [
      {"code": "CL", "name": "Casual Leave", "gender": "All"}
    ],
    "leave_rules": [
      {"id": "cl-global", "leave_type": "CL", "allocation_type": "Fixed",
       "eligibility_scope": "Global", "allocated_count": 12}
    ]
  }

LENIENT NUMBERS:
  calculation_percentage, max_calculated_value and allocated_count accept a
  JSON number, a numeric string or null. Anything else loads as 0, which the
  calculator treats as a manual component (or an uncapped one).

ORDER:
  Array order is catalog order. Basic must come before the components
  based on it, and rules are evaluated in the order given.

USAGE:
  f := factory.NewCatalogFactory()
  cat, err := f.ParseCatalog(jsonString)
  if err != nil { ... }
  err = f.Load(ctx, registry, salaryRepo, cat)

SEE ALSO:
  - salary/types.go: Component and role resolution
  - leave/types.go: LeaveType and LeaveRule
  - api/scenarios.go: demo catalogs built through this factory
*/
package factory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/salary"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of every administrator catalog.
type CatalogJSON struct {
	EarningComponents            []ComponentJSON `json:"earning_components,omitempty"`
	DeductionComponents          []ComponentJSON `json:"deduction_components,omitempty"`
	EmployerAdditionalComponents []ComponentJSON `json:"employer_additional_components,omitempty"`
	LeaveTypes                   []LeaveTypeJSON `json:"leave_types,omitempty"`
	LeaveRules                   []LeaveRuleJSON `json:"leave_rules,omitempty"`
}

// ComponentJSON represents one salary component.
type ComponentJSON struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	CalculationPercentage Number `json:"calculation_percentage"`
	BasedOn               string `json:"based_on,omitempty"` // Basic, Gross, HRA, Fixed
	MaxCalculatedValue    Number `json:"max_calculated_value"`
}

// LeaveTypeJSON represents one leave type.
type LeaveTypeJSON struct {
	Code             string `json:"code"`
	Name             string `json:"name"`
	Gender           string `json:"gender,omitempty"`
	AccrualFrequency string `json:"accrual_frequency,omitempty"`
	CarryForward     bool   `json:"carry_forward,omitempty"`
	Encashable       bool   `json:"encashable,omitempty"`
	IsCompOff        bool   `json:"is_comp_off,omitempty"`
	Status           string `json:"status,omitempty"`
}

// LeaveRuleJSON represents one leave rule.
type LeaveRuleJSON struct {
	ID                  string `json:"id"`
	LeaveType           string `json:"leave_type"`
	EligibilityDays     int    `json:"eligibility_days,omitempty"`
	AllocationType      string `json:"allocation_type"`
	EligibilityScope    string `json:"eligibility_scope,omitempty"`
	ScopeValue          string `json:"scope_value,omitempty"`
	AllocatedCount      Number `json:"allocated_count"`
	MinWorkingDays      int    `json:"min_working_days,omitempty"`
	AutoAddFrequency    string `json:"auto_add_frequency,omitempty"`
	AutoRemoveFrequency string `json:"auto_remove_frequency,omitempty"`
	Status              string `json:"status,omitempty"`
}

// Number is a lenient decimal: a JSON number, a numeric string, or null.
type Number struct {
	decimal.NullDecimal
}

// NewNumber wraps a valid decimal.
func NewNumber(d decimal.Decimal) Number {
	return Number{decimal.NewNullDecimal(d)}
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		n.NullDecimal = decimal.NullDecimal{}
		return nil
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			n.NullDecimal = decimal.NullDecimal{}
			return nil
		}
	}
	// non-numeric loads as 0
	n.NullDecimal = decimal.NewNullDecimal(generic.ParseDecimal(raw))
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(n.Decimal.String()), nil
}

// OrZero returns the value, or zero when null.
func (n Number) OrZero() decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return n.Decimal
}

// =============================================================================
// CATALOG FACTORY
// =============================================================================

// Catalog is the typed result of parsing a CatalogJSON.
type Catalog struct {
	Components map[salary.Kind][]salary.Component
	LeaveTypes []leave.LeaveType
	LeaveRules []leave.LeaveRule
}

// SalaryCatalogs resolves roles for the three component catalogs.
func (c *Catalog) SalaryCatalogs() salary.Catalogs {
	return salary.Catalogs{
		Earnings:           salary.NewCatalog(salary.KindEarning, c.Components[salary.KindEarning]),
		Deductions:         salary.NewCatalog(salary.KindDeduction, c.Components[salary.KindDeduction]),
		EmployerAdditional: salary.NewCatalog(salary.KindEmployerAdditional, c.Components[salary.KindEmployerAdditional]),
	}
}

// CatalogFactory converts JSON catalogs to Go structs.
type CatalogFactory struct{}

// NewCatalogFactory creates a new catalog factory.
func NewCatalogFactory() *CatalogFactory {
	return &CatalogFactory{}
}

// ParseCatalog parses a JSON string into a Catalog.
func (f *CatalogFactory) ParseCatalog(jsonStr string) (*Catalog, error) {
	var cj CatalogJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON validates cj and converts it. When cj defines leave types,
// every rule must reference one of them.
func (f *CatalogFactory) FromJSON(cj CatalogJSON) (*Catalog, error) {
	cat := &Catalog{Components: make(map[salary.Kind][]salary.Component)}

	for kind, list := range map[salary.Kind][]ComponentJSON{
		salary.KindEarning:            cj.EarningComponents,
		salary.KindDeduction:          cj.DeductionComponents,
		salary.KindEmployerAdditional: cj.EmployerAdditionalComponents,
	} {
		seen := make(map[string]bool)
		for _, item := range list {
			c, err := item.ToComponent()
			if err != nil {
				return nil, err
			}
			if seen[c.ID] {
				return nil, generic.Invalid("id", "duplicate %s component %q", kind, c.ID)
			}
			seen[c.ID] = true
			cat.Components[kind] = append(cat.Components[kind], c)
		}
	}

	types := make(map[generic.LeaveTypeCode]bool)
	for _, tj := range cj.LeaveTypes {
		lt, err := tj.ToLeaveType()
		if err != nil {
			return nil, err
		}
		types[lt.Code] = true
		cat.LeaveTypes = append(cat.LeaveTypes, lt)
	}

	for _, rj := range cj.LeaveRules {
		r, err := rj.ToLeaveRule()
		if err != nil {
			return nil, err
		}
		if len(types) > 0 && !types[r.LeaveType] {
			return nil, generic.Invalid("leave_type", "rule %q references unknown leave type %q", r.ID, r.LeaveType)
		}
		cat.LeaveRules = append(cat.LeaveRules, r)
	}

	return cat, nil
}

// Load persists cat: leave types before the rules that reference them,
// then the component catalogs in order.
func (f *CatalogFactory) Load(ctx context.Context, reg leave.Registry, repo salary.Repository, cat *Catalog) error {
	for _, lt := range cat.LeaveTypes {
		if err := reg.SaveLeaveType(ctx, lt); err != nil {
			return fmt.Errorf("load leave type %s: %w", lt.Code, err)
		}
	}
	for _, r := range cat.LeaveRules {
		if err := reg.SaveLeaveRule(ctx, r); err != nil {
			return fmt.Errorf("load leave rule %s: %w", r.ID, err)
		}
	}
	for _, kind := range []salary.Kind{salary.KindEarning, salary.KindDeduction, salary.KindEmployerAdditional} {
		for _, c := range cat.Components[kind] {
			if err := repo.SaveComponent(ctx, kind, c); err != nil {
				return fmt.Errorf("load %s component %s: %w", kind, c.ID, err)
			}
		}
	}
	return nil
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// ToComponent converts and validates one component definition.
func (cj ComponentJSON) ToComponent() (salary.Component, error) {
	if strings.TrimSpace(cj.ID) == "" {
		return salary.Component{}, generic.Invalid("id", "is required")
	}
	if strings.TrimSpace(cj.Name) == "" {
		return salary.Component{}, generic.Invalid("name", "is required for component %q", cj.ID)
	}
	return salary.Component{
		ID:         cj.ID,
		Name:       cj.Name,
		Percentage: cj.CalculationPercentage.NullDecimal,
		BasedOn:    salary.ParseBasedOn(cj.BasedOn),
		MaxValue:   cj.MaxCalculatedValue.NullDecimal,
	}, nil
}

func (tj LeaveTypeJSON) ToLeaveType() (leave.LeaveType, error) {
	if strings.TrimSpace(tj.Code) == "" {
		return leave.LeaveType{}, generic.Invalid("code", "is required")
	}
	name := tj.Name
	if name == "" {
		name = tj.Code
	}
	return leave.LeaveType{
		Code:             generic.LeaveTypeCode(tj.Code),
		Name:             name,
		Gender:           leave.ParseGender(tj.Gender),
		AccrualFrequency: tj.AccrualFrequency,
		CarryForward:     tj.CarryForward,
		Encashable:       tj.Encashable,
		IsCompOff:        tj.IsCompOff,
		Status:           leave.ParseStatus(tj.Status),
	}, nil
}

func (rj LeaveRuleJSON) ToLeaveRule() (leave.LeaveRule, error) {
	if strings.TrimSpace(rj.ID) == "" {
		return leave.LeaveRule{}, generic.Invalid("id", "is required")
	}
	if strings.TrimSpace(rj.LeaveType) == "" {
		return leave.LeaveRule{}, generic.Invalid("leave_type", "is required for rule %q", rj.ID)
	}
	allocation, ok := leave.ParseAllocationType(rj.AllocationType)
	if !ok {
		return leave.LeaveRule{}, generic.Invalid("allocation_type", "unknown value %q", rj.AllocationType)
	}
	scope, ok := leave.ParseScope(rj.EligibilityScope)
	if !ok {
		return leave.LeaveRule{}, generic.Invalid("eligibility_scope", "unknown value %q", rj.EligibilityScope)
	}
	if rj.EligibilityDays < 0 {
		return leave.LeaveRule{}, generic.Invalid("eligibility_days", "must not be negative")
	}
	count := rj.AllocatedCount.OrZero()
	if count.IsNegative() {
		return leave.LeaveRule{}, generic.Invalid("allocated_count", "must not be negative")
	}
	return leave.LeaveRule{
		ID:                  rj.ID,
		LeaveType:           generic.LeaveTypeCode(rj.LeaveType),
		EligibilityDays:     rj.EligibilityDays,
		Allocation:          allocation,
		Scope:               scope,
		ScopeValue:          rj.ScopeValue,
		AllocatedCount:      count,
		MinWorkingDays:      rj.MinWorkingDays,
		AutoAddFrequency:    rj.AutoAddFrequency,
		AutoRemoveFrequency: rj.AutoRemoveFrequency,
		Status:              leave.ParseStatus(rj.Status),
	}, nil
}
