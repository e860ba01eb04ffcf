/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  domain types in leave/ and salary/ from the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

FORMATS:
  - Dates are YYYY-MM-DD civil dates
  - Instants are RFC 3339
  - Day counts and money are decimals encoded as JSON strings
    ("12.5"); request bodies accept numbers or strings

VALIDATION:
  Validation is done in handlers and the domain packages, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/catalog.go: ComponentJSON, LeaveTypeJSON, LeaveRuleJSON
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/salary"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	Gender     string `json:"gender,omitempty"`
	JoinDate   string `json:"join_date"`
	LeaveDate  string `json:"leave_date,omitempty"`
	Status     string `json:"status"`
}

// CreateEmployeeRequest also updates an existing employee with the same code.
type CreateEmployeeRequest struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Gender     string `json:"gender"`
	JoinDate   string `json:"join_date"`
	LeaveDate  string `json:"leave_date"`
	Status     string `json:"status"`
}

type WeeklyOffDTO struct {
	EmployeeCode string   `json:"employee_code"`
	Days         []string `json:"days"`
	SandwichRule bool     `json:"sandwich_rule"`
}

type WeeklyOffRequest struct {
	Days         []string `json:"days"`
	SandwichRule bool     `json:"sandwich_rule"`
}

// RecordPunchesRequest carries one or more RFC 3339 punch instants.
type RecordPunchesRequest struct {
	At []string `json:"at"`
}

type PunchDTO struct {
	EmployeeCode string `json:"employee_code"`
	At           string `json:"at"`
	LocalDate    string `json:"local_date"`
}

// =============================================================================
// LEDGER
// =============================================================================

type BalanceDTO struct {
	EmployeeCode string          `json:"employee_code"`
	LeaveType    string          `json:"leave_type"`
	Opening      decimal.Decimal `json:"opening"`
	Used         decimal.Decimal `json:"used"`
	Remaining    decimal.Decimal `json:"remaining"`
	UpdatedAt    string          `json:"updated_at,omitempty"`
}

type TransactionDTO struct {
	ID          string          `json:"id"`
	EffectiveAt string          `json:"effective_at"`
	Delta       decimal.Decimal `json:"delta"`
	Type        string          `json:"type"`
	ReferenceID string          `json:"reference_id,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// HistoryDTO is the journal of one balance plus the balance it replays to.
type HistoryDTO struct {
	Balance      BalanceDTO       `json:"balance"`
	Transactions []TransactionDTO `json:"transactions"`
}

type ApplicationDTO struct {
	ID           string `json:"id"`
	EmployeeCode string `json:"employee_code"`
	Date         string `json:"date"`
	LeaveType    string `json:"leave_type"`
	Source       string `json:"source"`
	Reference    string `json:"reference,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// AccrueRequest triggers one employee's rule pass. From/To, when both set,
// replace the trailing comp-off lookback window.
type AccrueRequest struct {
	AsOf string `json:"as_of"`
	From string `json:"from"`
	To   string `json:"to"`
}

type ContributionDTO struct {
	RuleID        string          `json:"rule_id"`
	LeaveType     string          `json:"leave_type"`
	Allocation    string          `json:"allocation_type"`
	Days          decimal.Decimal `json:"days"`
	EarnedCompOff int             `json:"earned_comp_off,omitempty"`
}

type AccrualDTO struct {
	EmployeeCode  string            `json:"employee_code"`
	AsOf          string            `json:"as_of"`
	Contributions []ContributionDTO `json:"contributions"`
	Balances      []BalanceDTO      `json:"balances"`
	Clamped       []ClampedDTO      `json:"clamped,omitempty"`
}

// ClampedDTO is a leave type whose opening was held at the days already used.
type ClampedDTO struct {
	LeaveType    string          `json:"leave_type"`
	Contribution decimal.Decimal `json:"contribution"`
	Used         decimal.Decimal `json:"used"`
}

type CompOffDayDTO struct {
	Date       string `json:"date"`
	Weekday    string `json:"weekday"`
	Worked     bool   `json:"worked"`
	Sandwiched bool   `json:"sandwiched"`
	Earned     bool   `json:"earned"`
}

type CompOffDTO struct {
	EmployeeCode string          `json:"employee_code"`
	From         string          `json:"from"`
	To           string          `json:"to"`
	Earned       int             `json:"earned"`
	Days         []CompOffDayDTO `json:"days"`
}

// =============================================================================
// SALARY
// =============================================================================

type SalaryStructureDTO struct {
	EmployeeCode            string          `json:"employee_code"`
	MonthlyGross            decimal.Decimal `json:"monthly_gross"`
	BasicSalary             decimal.Decimal `json:"basic_salary"`
	CTC                     decimal.Decimal `json:"ctc"`
	Earnings                []salary.Line   `json:"earnings_breakdown"`
	Deductions              []salary.Line   `json:"deductions_breakdown"`
	EmployerAdditional      []salary.Line   `json:"employer_additional_breakdown"`
	TotalEarnings           decimal.Decimal `json:"total_earnings"`
	TotalDeductions         decimal.Decimal `json:"total_deductions"`
	TotalEmployerAdditional decimal.Decimal `json:"total_employer_additional"`
	NetSalary               decimal.Decimal `json:"net_salary"`
	DerivedAt               string          `json:"derived_at,omitempty"`
}

type DeriveSalaryRequest struct {
	MonthlyGross decimal.Decimal `json:"monthly_gross"`
}

type OverrideComponentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// SalaryComponentDTO is a catalog component tagged with its kind.
type SalaryComponentDTO struct {
	Kind string `json:"kind"`
	factory.ComponentJSON
}

// =============================================================================
// AUDIT & REQUESTS
// =============================================================================

type AbsenceDTO struct {
	EmployeeCode string `json:"employee_code"`
	Date         string `json:"date"`
	Weekday      string `json:"weekday"`
}

type RegularizeRequest struct {
	EmployeeCode string `json:"employee_code"`
	Date         string `json:"date"`
	LeaveType    string `json:"leave_type"`
}

type SubmitLeaveRequest struct {
	EmployeeCode string `json:"employee_code"`
	LeaveType    string `json:"leave_type"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Reason       string `json:"reason"`
}

type LeaveRequestDTO struct {
	ID           string `json:"id"`
	EmployeeCode string `json:"employee_code"`
	LeaveType    string `json:"leave_type"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	TotalDays    int    `json:"total_days"`
	Reason       string `json:"reason,omitempty"`
	Status       string `json:"status"`
	DecidedBy    string `json:"decided_by,omitempty"`
	DecidedAt    string `json:"decided_at,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type DecisionRequest struct {
	DecidedBy string `json:"decided_by"`
}

// =============================================================================
// ADMIN
// =============================================================================

type AutoCreditRequest struct {
	AsOf string `json:"as_of"`
}

type CreditRunDTO struct {
	ID          string                `json:"id"`
	AsOf        string                `json:"as_of"`
	Status      string                `json:"status"`
	Processed   int                   `json:"processed"`
	Skipped     int                   `json:"skipped"`
	Failures    []leave.CreditFailure `json:"failures"`
	StartedAt   string                `json:"started_at"`
	CompletedAt string                `json:"completed_at,omitempty"`
}

type SchedulerStatusDTO struct {
	Enabled   bool          `json:"enabled"`
	Interval  string        `json:"interval"`
	NextRunAt string        `json:"next_run_at,omitempty"`
	LastRun   *CreditRunDTO `json:"last_run,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatDate(tp generic.TimePoint) string {
	if tp.IsZero() {
		return ""
	}
	return tp.Key()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		Code:       string(e.Code),
		Name:       e.Name,
		Department: e.Department,
		Gender:     string(e.Gender),
		JoinDate:   formatDate(e.JoinDate),
		LeaveDate:  formatDate(e.LeaveDate),
		Status:     string(e.Status),
	}
}

func toWeeklyOffDTO(w leave.WeeklyOffSetting) WeeklyOffDTO {
	return WeeklyOffDTO{
		EmployeeCode: string(w.EmployeeCode),
		Days:         w.DayNames(),
		SandwichRule: w.SandwichRule,
	}
}

func toBalanceDTO(b generic.Balance) BalanceDTO {
	return BalanceDTO{
		EmployeeCode: string(b.EmployeeCode),
		LeaveType:    string(b.LeaveType),
		Opening:      b.Opening.Value,
		Used:         b.Used.Value,
		Remaining:    b.Remaining.Value,
		UpdatedAt:    formatTime(b.UpdatedAt),
	}
}

func toBalanceDTOs(bs []generic.Balance) []BalanceDTO {
	out := make([]BalanceDTO, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBalanceDTO(b))
	}
	return out
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          string(tx.ID),
		EffectiveAt: formatDate(tx.EffectiveAt),
		Delta:       tx.Delta.Value,
		Type:        string(tx.Type),
		ReferenceID: tx.ReferenceID,
		Reason:      tx.Reason,
		CreatedAt:   formatTime(tx.CreatedAt.Time),
	}
}

func toApplicationDTO(app leave.LeaveApplication) ApplicationDTO {
	return ApplicationDTO{
		ID:           app.ID,
		EmployeeCode: string(app.EmployeeCode),
		Date:         formatDate(app.Date),
		LeaveType:    string(app.LeaveType),
		Source:       string(app.Source),
		Reference:    app.Reference,
		CreatedAt:    formatTime(app.CreatedAt),
	}
}

func toAccrualDTO(a leave.Accrual) AccrualDTO {
	dto := AccrualDTO{
		EmployeeCode:  string(a.EmployeeCode),
		AsOf:          formatDate(a.AsOf),
		Contributions: make([]ContributionDTO, 0, len(a.Contributions)),
		Balances:      toBalanceDTOs(a.Balances),
	}
	for _, c := range a.Contributions {
		dto.Contributions = append(dto.Contributions, ContributionDTO{
			RuleID:        c.RuleID,
			LeaveType:     string(c.LeaveType),
			Allocation:    string(c.Allocation),
			Days:          c.Days,
			EarnedCompOff: c.EarnedCompOff,
		})
	}
	for _, c := range a.Clamped {
		dto.Clamped = append(dto.Clamped, ClampedDTO{
			LeaveType:    string(c.LeaveType),
			Contribution: c.Contribution,
			Used:         c.Used,
		})
	}
	return dto
}

func toCompOffDTO(r leave.CompOffReport) CompOffDTO {
	dto := CompOffDTO{
		EmployeeCode: string(r.EmployeeCode),
		From:         formatDate(r.Period.Start),
		To:           formatDate(r.Period.End),
		Earned:       r.Earned,
		Days:         make([]CompOffDayDTO, 0, len(r.Days)),
	}
	for _, d := range r.Days {
		dto.Days = append(dto.Days, CompOffDayDTO{
			Date:       formatDate(d.Date),
			Weekday:    d.Weekday,
			Worked:     d.Worked,
			Sandwiched: d.Sandwiched,
			Earned:     d.Earned,
		})
	}
	return dto
}

func toSalaryStructureDTO(s salary.Structure) SalaryStructureDTO {
	return SalaryStructureDTO{
		EmployeeCode:            s.EmployeeCode,
		MonthlyGross:            s.MonthlyGross,
		BasicSalary:             s.BasicSalary,
		CTC:                     s.CTC,
		Earnings:                nonNilLines(s.Earnings),
		Deductions:              nonNilLines(s.Deductions),
		EmployerAdditional:      nonNilLines(s.EmployerAdditional),
		TotalEarnings:           s.TotalEarnings,
		TotalDeductions:         s.TotalDeductions,
		TotalEmployerAdditional: s.TotalEmployerAdditional,
		NetSalary:               s.NetSalary,
		DerivedAt:               formatTime(s.DerivedAt),
	}
}

func nonNilLines(lines []salary.Line) []salary.Line {
	if lines == nil {
		return []salary.Line{}
	}
	return lines
}

func toComponentJSON(c salary.Component) factory.ComponentJSON {
	cj := factory.ComponentJSON{
		ID:      c.ID,
		Name:    c.Name,
		BasedOn: string(c.BasedOn),
	}
	if c.Percentage.Valid {
		cj.CalculationPercentage = factory.NewNumber(c.Percentage.Decimal)
	}
	if c.MaxValue.Valid {
		cj.MaxCalculatedValue = factory.NewNumber(c.MaxValue.Decimal)
	}
	return cj
}

func toLeaveTypeJSON(lt leave.LeaveType) factory.LeaveTypeJSON {
	return factory.LeaveTypeJSON{
		Code:             string(lt.Code),
		Name:             lt.Name,
		Gender:           string(lt.Gender),
		AccrualFrequency: lt.AccrualFrequency,
		CarryForward:     lt.CarryForward,
		Encashable:       lt.Encashable,
		IsCompOff:        lt.IsCompOff,
		Status:           string(lt.Status),
	}
}

func toLeaveRuleJSON(r leave.LeaveRule) factory.LeaveRuleJSON {
	return factory.LeaveRuleJSON{
		ID:                  r.ID,
		LeaveType:           string(r.LeaveType),
		EligibilityDays:     r.EligibilityDays,
		AllocationType:      string(r.Allocation),
		EligibilityScope:    string(r.Scope),
		ScopeValue:          r.ScopeValue,
		AllocatedCount:      factory.NewNumber(r.AllocatedCount),
		MinWorkingDays:      r.MinWorkingDays,
		AutoAddFrequency:    r.AutoAddFrequency,
		AutoRemoveFrequency: r.AutoRemoveFrequency,
		Status:              string(r.Status),
	}
}

func toLeaveRequestDTO(r leave.LeaveRequest) LeaveRequestDTO {
	return LeaveRequestDTO{
		ID:           r.ID,
		EmployeeCode: string(r.EmployeeCode),
		LeaveType:    string(r.LeaveType),
		StartDate:    formatDate(r.Start),
		EndDate:      formatDate(r.End),
		TotalDays:    r.TotalDays,
		Reason:       r.Reason,
		Status:       string(r.Status),
		DecidedBy:    r.DecidedBy,
		DecidedAt:    formatTime(r.DecidedAt),
		CreatedAt:    formatTime(r.CreatedAt),
	}
}

func toCreditRunDTO(run leave.CreditRun) CreditRunDTO {
	failures := run.Failures
	if failures == nil {
		failures = []leave.CreditFailure{}
	}
	return CreditRunDTO{
		ID:          run.ID,
		AsOf:        formatDate(run.AsOf),
		Status:      string(run.Status),
		Processed:   run.Processed,
		Skipped:     run.Skipped,
		Failures:    failures,
		StartedAt:   formatTime(run.StartedAt),
		CompletedAt: formatTime(run.CompletedAt),
	}
}
