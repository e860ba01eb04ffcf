/*
calculator.go - Gross to breakdown derivation

PURPOSE:
  Two distinct operations on a salary structure:

    DeriveFromGross(gross)          full replace; every line recomputed
    OverrideComponent(id, amount)   partial patch; nothing else recomputed

  Editing one component is an override of the last automatic pass. A later
  gross change does not re-derive overridden lines unless the caller runs
  DeriveFromGross again, which discards every override.

DERIVATION ORDER (single pass, order matters):
  1. Basic      = gross * pct / 100, capped
  2. Earnings   by based_on: Basic | Gross | Fixed | HRA, capped; manual = 0
  3. Deductions PF  (default 12% of basic)
                ESI (default 0.75% of gross, only when gross <= 21000)
                else as step 2; rounded to integer; <= 0 omitted
  4. Employer   PF  (default 13% of basic)
                ESI (default 3.25% of gross, same gate)
                else as step 2; rounded to integer; <= 0 omitted
  5. CTC = gross + employer total; Net = earnings total - deductions total

SEE ALSO:
  - types.go: roles resolved at catalog-load time
  - factory/catalog.go: JSON catalogs, non-numeric percentages load as 0
*/
package salary

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// BasicLineID identifies the Basic line kept from a prior structure when the
// catalog has no basic component.
const BasicLineID = "basic-salary"

var (
	hundred = decimal.NewFromInt(100)

	// ESIGrossCeiling is the highest gross for which ESI applies.
	ESIGrossCeiling = decimal.NewFromInt(21000)

	DefaultEmployeePF  = decimal.NewFromInt(12)
	DefaultEmployeeESI = decimal.RequireFromString("0.75")
	DefaultEmployerPF  = decimal.NewFromInt(13)
	DefaultEmployerESI = decimal.RequireFromString("3.25")
)

const (
	earningPlaces   = 2
	deductionPlaces = 0
)

// bases are the figures percentages can be applied to, filled in as the
// pass proceeds.
type bases struct {
	gross decimal.Decimal
	basic decimal.Decimal
	hra   decimal.Decimal
}

func (b bases) of(on BasedOn) decimal.Decimal {
	switch on {
	case BasedOnGross:
		return b.gross
	case BasedOnHRA:
		return b.hra
	default:
		return b.basic
	}
}

// genericAmount applies the based_on rule. ok is false for manual components.
func (c Component) genericAmount(b bases) (amount decimal.Decimal, ok bool) {
	pct := c.pct()
	if !pct.IsPositive() {
		return decimal.Zero, false
	}
	if c.BasedOn == BasedOnFixed {
		return c.capped(pct), true
	}
	return c.capped(b.of(c.BasedOn).Mul(pct).Div(hundred)), true
}

// statutoryAmount applies the PF/ESI special cases with the given defaults.
func (c Component) statutoryAmount(b bases, pfDefault, esiDefault decimal.Decimal) decimal.Decimal {
	switch c.Role {
	case RolePF:
		pct := c.pct()
		if !pct.IsPositive() {
			pct = pfDefault
		}
		return c.capped(b.basic.Mul(pct).Div(hundred))
	case RoleESI:
		if b.gross.GreaterThan(ESIGrossCeiling) {
			return decimal.Zero
		}
		pct := c.pct()
		if !pct.IsPositive() {
			pct = esiDefault
		}
		return c.capped(b.gross.Mul(pct).Div(hundred))
	default:
		amount, _ := c.genericAmount(b)
		return amount
	}
}

// DeriveFromGross computes a complete structure from gross. prior may be
// nil; it is consulted only to keep a nonzero Basic when the catalog has no
// basic component at all.
func DeriveFromGross(gross decimal.Decimal, cats Catalogs, prior *Structure) (Structure, error) {
	if gross.IsNegative() {
		return Structure{}, generic.Invalid("gross", "must not be negative, got %s", gross)
	}

	b := bases{gross: gross}
	s := Structure{MonthlyGross: gross}
	if prior != nil {
		s.EmployeeCode = prior.EmployeeCode
	}

	// 1. Basic
	basicComp, hasBasic := cats.Earnings.byRole(RoleBasic)
	switch {
	case hasBasic && !basicComp.IsManual():
		b.basic = basicComp.capped(gross.Mul(basicComp.pct()).Div(hundred)).Round(earningPlaces)
		s.Earnings = append(s.Earnings, Line{ComponentID: basicComp.ID, Name: basicComp.Name, Amount: b.basic})
	case hasBasic:
		// Manual basic derives to zero; set it with OverrideComponent.
		s.Earnings = append(s.Earnings, Line{ComponentID: basicComp.ID, Name: basicComp.Name, Amount: b.basic, Manual: true})
	case prior != nil && prior.BasicSalary.IsPositive():
		b.basic = prior.BasicSalary
		s.Earnings = append(s.Earnings, Line{ComponentID: BasicLineID, Name: "Basic Salary", Amount: b.basic})
	}
	s.BasicSalary = b.basic

	// 2. Other earnings
	for _, c := range cats.Earnings.Components {
		if c.Role == RoleBasic {
			continue
		}
		amount, ok := c.genericAmount(b)
		amount = amount.Round(earningPlaces)
		if c.Role == RoleHRA {
			b.hra = amount
		}
		s.Earnings = append(s.Earnings, Line{ComponentID: c.ID, Name: c.Name, Amount: amount, Manual: !ok})
	}

	// 3. Deductions
	for _, c := range cats.Deductions.Components {
		amount := c.statutoryAmount(b, DefaultEmployeePF, DefaultEmployeeESI).Round(deductionPlaces)
		if amount.IsPositive() {
			s.Deductions = append(s.Deductions, Line{ComponentID: c.ID, Name: c.Name, Amount: amount})
		}
	}

	// 4. Employer additional
	for _, c := range cats.EmployerAdditional.Components {
		amount := c.statutoryAmount(b, DefaultEmployerPF, DefaultEmployerESI).Round(deductionPlaces)
		if amount.IsPositive() {
			s.EmployerAdditional = append(s.EmployerAdditional, Line{ComponentID: c.ID, Name: c.Name, Amount: amount})
		}
	}

	// 5. Totals
	s.recompute()
	return s, nil
}

// OverrideComponent sets one line to amount and recomputes totals only.
// A line the last derivation omitted (zero deduction) is added back in
// catalog position. Setting a deduction or employer line to zero removes it.
func OverrideComponent(s Structure, cats Catalogs, kind Kind, componentID string, amount decimal.Decimal) (Structure, error) {
	if !kind.Valid() {
		return s, generic.Invalid("kind", "unknown component kind %q", kind)
	}
	if amount.IsNegative() {
		return s, generic.Invalid("amount", "must not be negative, got %s", amount)
	}

	name := ""
	isBasic := false
	if comp, ok := cats.of(kind).Find(componentID); ok {
		name = comp.Name
		isBasic = comp.Role == RoleBasic
	} else if kind == KindEarning && componentID == BasicLineID && s.hasLine(kind, componentID) {
		name = "Basic Salary"
		isBasic = true
	} else {
		return s, generic.NotFound("component", string(kind)+"/"+componentID)
	}

	out := s.clone()
	lines := out.lines(kind)
	patched := Line{ComponentID: componentID, Name: name, Amount: amount, Overridden: true}
	drop := kind != KindEarning && !amount.IsPositive()

	replaced := false
	next := make([]Line, 0, len(*lines)+1)
	for _, l := range *lines {
		if l.ComponentID == componentID {
			replaced = true
			if !drop {
				next = append(next, patched)
			}
			continue
		}
		next = append(next, l)
	}
	if !replaced && !drop {
		next = insertInCatalogOrder(next, patched, cats.of(kind))
	}
	*lines = next

	if isBasic {
		out.BasicSalary = amount
	}
	out.recompute()
	return out, nil
}

func insertInCatalogOrder(lines []Line, l Line, cat Catalog) []Line {
	position := make(map[string]int, len(cat.Components))
	for i, c := range cat.Components {
		position[c.ID] = i
	}
	at := len(lines)
	for i, existing := range lines {
		p, ok := position[existing.ComponentID]
		if ok && p > position[l.ComponentID] {
			at = i
			break
		}
	}
	lines = append(lines, Line{})
	copy(lines[at+1:], lines[at:])
	lines[at] = l
	return lines
}

func (s Structure) hasLine(kind Kind, id string) bool {
	for _, l := range *s.lines(kind) {
		if l.ComponentID == id {
			return true
		}
	}
	return false
}

func (s Structure) clone() Structure {
	out := s
	out.Earnings = append([]Line(nil), s.Earnings...)
	out.Deductions = append([]Line(nil), s.Deductions...)
	out.EmployerAdditional = append([]Line(nil), s.EmployerAdditional...)
	return out
}

func sum(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

func (s *Structure) recompute() {
	s.TotalEarnings = sum(s.Earnings)
	s.TotalDeductions = sum(s.Deductions)
	s.TotalEmployerAdditional = sum(s.EmployerAdditional)
	s.CTC = s.MonthlyGross.Add(s.TotalEmployerAdditional)
	s.NetSalary = s.TotalEarnings.Sub(s.TotalDeductions)
}
