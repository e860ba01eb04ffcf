package salary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Repository persists catalogs and per-employee structures.
type Repository interface {
	// Components returns one catalog in position order.
	Components(ctx context.Context, kind Kind) ([]Component, error)
	// SaveComponent inserts or updates; new components go to the end.
	SaveComponent(ctx context.Context, kind Kind, c Component) error
	Structure(ctx context.Context, employeeCode string) (s Structure, ok bool, err error)
	SaveStructure(ctx context.Context, s Structure) error
}

// LoadCatalogs reads all three catalogs and resolves roles.
func LoadCatalogs(ctx context.Context, repo Repository) (Catalogs, error) {
	var cats Catalogs
	for _, kind := range []Kind{KindEarning, KindDeduction, KindEmployerAdditional} {
		comps, err := repo.Components(ctx, kind)
		if err != nil {
			return Catalogs{}, fmt.Errorf("load %s components: %w", kind, err)
		}
		cat := NewCatalog(kind, comps)
		switch kind {
		case KindEarning:
			cats.Earnings = cat
		case KindDeduction:
			cats.Deductions = cat
		default:
			cats.EmployerAdditional = cat
		}
	}
	return cats, nil
}

// Service runs the calculator against stored catalogs and structures.
type Service struct {
	Repo   Repository
	Logger *slog.Logger
	Now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Repo: repo, Logger: logger, Now: time.Now}
}

// Structure returns the stored structure of an employee.
func (s *Service) Structure(ctx context.Context, employeeCode string) (Structure, bool, error) {
	return s.Repo.Structure(ctx, employeeCode)
}

// Derive replaces the employee's structure with a fresh derivation.
func (s *Service) Derive(ctx context.Context, employeeCode string, gross decimal.Decimal) (Structure, error) {
	cats, err := LoadCatalogs(ctx, s.Repo)
	if err != nil {
		return Structure{}, err
	}
	prior, ok, err := s.Repo.Structure(ctx, employeeCode)
	if err != nil {
		return Structure{}, err
	}
	var priorPtr *Structure
	if ok {
		priorPtr = &prior
	}

	out, err := DeriveFromGross(gross, cats, priorPtr)
	if err != nil {
		return Structure{}, err
	}
	out.EmployeeCode = employeeCode
	if err := s.save(ctx, &out, "salary structure derived"); err != nil {
		return Structure{}, err
	}
	return out, nil
}

// Override patches one line of the stored structure.
func (s *Service) Override(ctx context.Context, employeeCode string, kind Kind, componentID string, amount decimal.Decimal) (Structure, error) {
	cats, err := LoadCatalogs(ctx, s.Repo)
	if err != nil {
		return Structure{}, err
	}
	current, ok, err := s.Repo.Structure(ctx, employeeCode)
	if err != nil {
		return Structure{}, err
	}
	if !ok {
		current = Structure{EmployeeCode: employeeCode}
	}

	out, err := OverrideComponent(current, cats, kind, componentID, amount)
	if err != nil {
		return Structure{}, err
	}
	if err := s.save(ctx, &out, "salary component overridden"); err != nil {
		return Structure{}, err
	}
	return out, nil
}

func (s *Service) save(ctx context.Context, st *Structure, msg string) error {
	if s.Now != nil {
		st.DerivedAt = s.Now()
	}
	if err := s.Repo.SaveStructure(ctx, *st); err != nil {
		return fmt.Errorf("save salary structure %s: %w", st.EmployeeCode, err)
	}
	s.Logger.InfoContext(ctx, msg,
		slog.String("employee", st.EmployeeCode),
		slog.String("gross", st.MonthlyGross.String()),
		slog.String("net", st.NetSalary.String()),
	)
	return nil
}
