// Package salary expands a monthly gross figure into a compensation
// breakdown: Basic, the other earnings, employee deductions, employer
// contributions, CTC and net pay.
package salary

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COMPONENT CATALOGS
// =============================================================================

// Kind names one of the three ordered catalogs.
type Kind string

const (
	KindEarning            Kind = "earning"
	KindDeduction          Kind = "deduction"
	KindEmployerAdditional Kind = "employer_additional"
)

func (k Kind) Valid() bool {
	return k == KindEarning || k == KindDeduction || k == KindEmployerAdditional
}

// BasedOn selects what a component's percentage is applied to.
type BasedOn string

const (
	BasedOnBasic BasedOn = "Basic"
	BasedOnGross BasedOn = "Gross"
	BasedOnFixed BasedOn = "Fixed" // the percentage value IS the amount
	BasedOnHRA   BasedOn = "HRA"
)

// ParseBasedOn is case-insensitive; unknown values fall back to Basic.
func ParseBasedOn(s string) BasedOn {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gross":
		return BasedOnGross
	case "fixed":
		return BasedOnFixed
	case "hra":
		return BasedOnHRA
	default:
		return BasedOnBasic
	}
}

// Role is how the calculator treats a component. It is derived from the
// component name once, when the catalog is built, and never re-sniffed.
type Role string

const (
	RoleBasic   Role = "basic"
	RoleHRA     Role = "hra"
	RolePF      Role = "pf"
	RoleESI     Role = "esi"
	RoleGeneric Role = "generic"
)

// Component is one administrator-defined catalog entry.
type Component struct {
	ID   string
	Name string

	// Percentage is NULL for manual (flat) components.
	Percentage decimal.NullDecimal
	BasedOn    BasedOn

	// MaxValue is NULL or <= 0 when uncapped.
	MaxValue decimal.NullDecimal

	Role Role
}

func (c Component) pct() decimal.Decimal {
	if !c.Percentage.Valid {
		return decimal.Zero
	}
	return c.Percentage.Decimal
}

// IsManual reports whether the calculator leaves this component to a human.
func (c Component) IsManual() bool {
	return !c.pct().IsPositive()
}

func (c Component) capped(v decimal.Decimal) decimal.Decimal {
	if c.MaxValue.Valid && c.MaxValue.Decimal.IsPositive() && v.GreaterThan(c.MaxValue.Decimal) {
		return c.MaxValue.Decimal
	}
	return v
}

// Catalog is an ordered list of components of one kind with roles resolved.
type Catalog struct {
	Kind       Kind
	Components []Component
}

// NewCatalog resolves the role of every component. For earnings only the
// first "basic" component becomes RoleBasic and the first HRA component
// becomes RoleHRA; later look-alikes are ordinary earnings.
func NewCatalog(kind Kind, components []Component) Catalog {
	out := make([]Component, len(components))
	seenBasic, seenHRA := false, false
	for i, c := range components {
		c.Role = ResolveRole(kind, c.Name)
		switch {
		case c.Role == RoleBasic && seenBasic, c.Role == RoleHRA && seenHRA:
			c.Role = RoleGeneric
		case c.Role == RoleBasic:
			seenBasic = true
		case c.Role == RoleHRA:
			seenHRA = true
		}
		out[i] = c
	}
	return Catalog{Kind: kind, Components: out}
}

// ResolveRole maps a component name to its role for the given catalog kind.
func ResolveRole(kind Kind, name string) Role {
	n := strings.ToLower(name)
	switch kind {
	case KindEarning:
		if strings.Contains(n, "basic") {
			return RoleBasic
		}
		if strings.Contains(n, "hra") || strings.Contains(n, "house rent") {
			return RoleHRA
		}
	case KindDeduction, KindEmployerAdditional:
		if (strings.Contains(n, "pf") || strings.Contains(n, "provident")) && !strings.Contains(n, "vol") {
			return RolePF
		}
		if strings.Contains(n, "esi") {
			return RoleESI
		}
	}
	return RoleGeneric
}

// Find returns the component with the given id.
func (c Catalog) Find(id string) (Component, bool) {
	for _, comp := range c.Components {
		if comp.ID == id {
			return comp, true
		}
	}
	return Component{}, false
}

func (c Catalog) byRole(role Role) (Component, bool) {
	for _, comp := range c.Components {
		if comp.Role == role {
			return comp, true
		}
	}
	return Component{}, false
}

// Catalogs bundles the three catalogs an employee's structure is derived from.
type Catalogs struct {
	Earnings           Catalog
	Deductions         Catalog
	EmployerAdditional Catalog
}

func (cs Catalogs) of(kind Kind) Catalog {
	switch kind {
	case KindDeduction:
		return cs.Deductions
	case KindEmployerAdditional:
		return cs.EmployerAdditional
	default:
		return cs.Earnings
	}
}

// =============================================================================
// SALARY STRUCTURE - Derived snapshot
// =============================================================================

// Line is one row of a breakdown.
type Line struct {
	ComponentID string          `json:"component_id"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Manual      bool            `json:"manual,omitempty"`
	Overridden  bool            `json:"overridden,omitempty"`
}

// Structure is an employee's compensation snapshot. It is replaced
// wholesale by DeriveFromGross and patched by OverrideComponent.
type Structure struct {
	EmployeeCode string

	MonthlyGross decimal.Decimal
	BasicSalary  decimal.Decimal
	CTC          decimal.Decimal

	Earnings           []Line
	Deductions         []Line
	EmployerAdditional []Line

	TotalEarnings           decimal.Decimal
	TotalDeductions         decimal.Decimal
	TotalEmployerAdditional decimal.Decimal
	NetSalary               decimal.Decimal

	// DerivedAt is stamped by Service when the structure is saved.
	DerivedAt time.Time
}

func (s *Structure) lines(kind Kind) *[]Line {
	switch kind {
	case KindDeduction:
		return &s.Deductions
	case KindEmployerAdditional:
		return &s.EmployerAdditional
	default:
		return &s.Earnings
	}
}
