// Package leave maintains the leave balance ledger: rule-driven opening
// balances, compensatory-off detection, absence auditing and the leave
// request workflow.
package leave

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// REFERENCE DATA - Read-only to the engine
// =============================================================================

// Status is shared by employees, leave types and rules.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ParseStatus is case-insensitive; anything but "inactive" is active.
func ParseStatus(s string) Status {
	if strings.EqualFold(strings.TrimSpace(s), string(StatusInactive)) {
		return StatusInactive
	}
	return StatusActive
}

// Gender doubles as the applicability of a leave type. GenderAll applies to
// every employee; an employee with no recorded gender only receives
// GenderAll leave types.
type Gender string

const (
	GenderAll    Gender = "All"
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m":
		return GenderMale
	case "female", "f":
		return GenderFemale
	case "all", "":
		return GenderAll
	default:
		return Gender(s)
	}
}

type Employee struct {
	Code       generic.EmployeeCode
	Name       string
	Department string
	Gender     Gender // empty when not recorded
	JoinDate   generic.TimePoint
	LeaveDate  generic.TimePoint // zero while employed
	Status     Status
}

// DaysEmployed counts whole days from the join date to asOf.
func (e Employee) DaysEmployed(asOf generic.TimePoint) int {
	return generic.DaysBetween(e.JoinDate, asOf)
}

// EmploymentSpan is the part of p during which the employee was on the
// roster. ok is false when the two do not overlap.
func (e Employee) EmploymentSpan(p generic.Period) (generic.Period, bool) {
	span := generic.Period{Start: e.JoinDate, End: p.End}
	if !e.LeaveDate.IsZero() {
		span.End = e.LeaveDate
	}
	if span.End.Before(span.Start) {
		return generic.Period{}, false
	}
	return span.Intersect(p)
}

type LeaveType struct {
	Code             generic.LeaveTypeCode
	Name             string
	Gender           Gender
	AccrualFrequency string
	CarryForward     bool
	Encashable       bool
	IsCompOff        bool
	Status           Status
}

// AppliesTo reports whether the leave type's gender applicability admits e.
func (lt LeaveType) AppliesTo(e Employee) bool {
	if lt.Gender == "" || lt.Gender == GenderAll {
		return true
	}
	return lt.Gender == e.Gender
}

// =============================================================================
// RULES
// =============================================================================

type AllocationType string

const (
	AllocationFixed           AllocationType = "Fixed"
	AllocationWorkingDays     AllocationType = "Working Days Based"
	AllocationWorkOnWeeklyOff AllocationType = "Work on Weekly Off"
)

// ParseAllocationType matches case-insensitively, ignoring separators.
func ParseAllocationType(s string) (AllocationType, bool) {
	switch normalize(s) {
	case "fixed":
		return AllocationFixed, true
	case "workingdaysbased":
		return AllocationWorkingDays, true
	case "workonweeklyoff":
		return AllocationWorkOnWeeklyOff, true
	}
	return "", false
}

type Scope string

const (
	ScopeGlobal            Scope = "Global"
	ScopeDepartment        Scope = "Department"
	ScopeSpecificEmployees Scope = "Specific Employees"
)

func ParseScope(s string) (Scope, bool) {
	switch normalize(s) {
	case "global", "":
		return ScopeGlobal, true
	case "department":
		return ScopeDepartment, true
	case "specificemployees":
		return ScopeSpecificEmployees, true
	}
	return "", false
}

func normalize(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

type LeaveRule struct {
	ID                  string
	LeaveType           generic.LeaveTypeCode
	EligibilityDays     int
	Allocation          AllocationType
	Scope               Scope
	ScopeValue          string // comma list of departments or employee codes
	AllocatedCount      decimal.Decimal
	MinWorkingDays      int
	AutoAddFrequency    string
	AutoRemoveFrequency string
	Status              Status
}

// Matches evaluates the rule's eligibility scope against e.
func (r LeaveRule) Matches(e Employee) bool {
	switch r.Scope {
	case ScopeDepartment:
		return listContains(r.ScopeValue, e.Department)
	case ScopeSpecificEmployees:
		return listContains(r.ScopeValue, string(e.Code))
	default:
		return true
	}
}

func listContains(list, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	for _, item := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(item), value) {
			return true
		}
	}
	return false
}

// =============================================================================
// ATTENDANCE INPUTS
// =============================================================================

// WeeklyOffSetting lists the weekdays an employee is not expected to work.
type WeeklyOffSetting struct {
	EmployeeCode generic.EmployeeCode
	Days         []time.Weekday
	SandwichRule bool
}

func (w WeeklyOffSetting) IsOff(d time.Weekday) bool {
	for _, off := range w.Days {
		if off == d {
			return true
		}
	}
	return false
}

// AllOff reports whether every weekday is off.
func (w WeeklyOffSetting) AllOff() bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if !w.IsOff(d) {
			return false
		}
	}
	return true
}

// DayNames returns the off days as English weekday names.
func (w WeeklyOffSetting) DayNames() []string {
	names := make([]string, 0, len(w.Days))
	for _, d := range w.Days {
		names = append(names, d.String())
	}
	return names
}

// Punch is one attendance log entry.
type Punch struct {
	EmployeeCode generic.EmployeeCode
	At           time.Time
}

// =============================================================================
// LEDGER RECORDS - Written by the engine
// =============================================================================

type ApplicationSource string

const (
	SourceRegularization ApplicationSource = "regularization"
	SourceRequest        ApplicationSource = "request"
)

// LeaveApplication marks one day as accounted for by leave. Unique per
// (employee, date).
type LeaveApplication struct {
	ID           string
	EmployeeCode generic.EmployeeCode
	Date         generic.TimePoint
	LeaveType    generic.LeaveTypeCode
	Source       ApplicationSource
	Reference    string // request id for SourceRequest
	CreatedAt    time.Time
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestApproved RequestStatus = "Approved"
	RequestRejected RequestStatus = "Rejected"
)

func ParseRequestStatus(s string) (RequestStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return RequestPending, true
	case "approved":
		return RequestApproved, true
	case "rejected":
		return RequestRejected, true
	}
	return "", false
}

type LeaveRequest struct {
	ID           string
	EmployeeCode generic.EmployeeCode
	LeaveType    generic.LeaveTypeCode
	Start        generic.TimePoint
	End          generic.TimePoint
	TotalDays    int
	Reason       string
	Status       RequestStatus
	DecidedBy    string
	DecidedAt    time.Time
	CreatedAt    time.Time
}

func (r LeaveRequest) Period() generic.Period {
	return generic.Period{Start: r.Start, End: r.End}
}
