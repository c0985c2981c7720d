package employees

import (
	"context"
	"strings"
	"time"

	"github.com/agrodistri/agrodistri/internal/shared"
)

// RepositoryPort defines data access methods for employees.
type RepositoryPort interface {
	InsertEmployee(ctx context.Context, e Employee) (int64, error)
	GetEmployee(ctx context.Context, id int64) (Employee, error)
	ListEmployees(ctx context.Context, role Role) ([]Employee, error)
}

// Service handles employee business logic.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateEmployee registers an active employee.
func (s *Service) CreateEmployee(ctx context.Context, input CreateEmployeeInput) (Employee, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Employee{}, shared.NewValidationError("name", "required")
	}
	if !input.Role.IsValid() {
		return Employee{}, shared.NewValidationError("role", "must be driver, loader or admin")
	}
	e := Employee{
		Name:      name,
		Role:      input.Role,
		Phone:     strings.TrimSpace(input.Phone),
		IsActive:  true,
		CreatedAt: s.now().UTC(),
	}
	id, err := s.repo.InsertEmployee(ctx, e)
	if err != nil {
		return Employee{}, err
	}
	e.ID = id
	return e, nil
}

// GetEmployee returns an employee.
func (s *Service) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	return s.repo.GetEmployee(ctx, id)
}

// ListEmployees returns employees filtered by role when given.
func (s *Service) ListEmployees(ctx context.Context, role Role) ([]Employee, error) {
	if role != "" && !role.IsValid() {
		return nil, shared.NewValidationError("role", "must be driver, loader or admin")
	}
	return s.repo.ListEmployees(ctx, role)
}

// RequireActive loads id and checks it is an active employee with the given
// role. Drivers may also load.
func RequireActive(ctx context.Context, tx TxRepository, id int64, role Role) (Employee, error) {
	e, err := tx.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	if !e.IsActive {
		return Employee{}, shared.NewValidationError(string(role)+"_id", "employee is not active")
	}
	switch {
	case e.Role == role:
	case role == RoleLoader && e.Role == RoleDriver:
	default:
		return Employee{}, shared.NewValidationError(string(role)+"_id", "employee is a "+string(e.Role))
	}
	return e, nil
}
