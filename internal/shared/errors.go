package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock marks a request exceeding on-hand stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrPrecondition marks an entity not in the state an operation requires.
	ErrPrecondition = errors.New("precondition failed")
	// ErrBackend marks a failure of the backing store itself.
	ErrBackend = errors.New("backend failure")
	// ErrUnauthorized indicates a missing or wrong API token.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientStockError names the product and what is available.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (id %d): available %d, requested %d",
		e.ProductName, e.ProductID, e.Available, e.Requested)
}

// Is matches ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// PreconditionError names the unmet condition.
type PreconditionError struct {
	Entity    string
	ID        int64
	Condition string
}

// NewPreconditionError builds a PreconditionError.
func NewPreconditionError(entity string, id int64, condition string) *PreconditionError {
	return &PreconditionError{Entity: entity, ID: id, Condition: condition}
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Entity, e.ID, e.Condition)
}

// Is matches ErrPrecondition.
func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// BackendError wraps a failed store call. The original error stays reachable
// through Unwrap so driver-level codes can still be inspected.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is matches ErrBackend.
func (e *BackendError) Is(target error) bool { return target == ErrBackend }

// Backend wraps err as a BackendError unless it already carries a domain kind.
func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrPrecondition) ||
		errors.Is(err, ErrBackend) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}
