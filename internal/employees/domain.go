// Package employees keeps the drivers, loaders and admins that deliveries
// reference.
package employees

import "time"

// Role classifies an employee.
type Role string

const (
	RoleDriver Role = "driver"
	RoleLoader Role = "loader"
	RoleAdmin  Role = "admin"
)

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleDriver, RoleLoader, RoleAdmin:
		return true
	default:
		return false
	}
}

// Employee is a staff member.
type Employee struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateEmployeeInput describes a new employee.
type CreateEmployeeInput struct {
	Name  string `json:"name" validate:"required,max=120"`
	Role  Role   `json:"role" validate:"required,oneof=driver loader admin"`
	Phone string `json:"phone" validate:"max=30"`
}
