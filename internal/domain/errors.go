// Package domain contains custom error types for the application.
package domain

import (
	"errors"
	"fmt"
)

// Base errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInsufficientData   = errors.New("insufficient data")
	ErrConstraintConflict = errors.New("constraints eliminate every purchase strategy")
	ErrPricingUnavailable = errors.New("pricing unavailable")
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [field=%s]: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NotFoundError represents a missing record, such as a budget period
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found [id=%s]", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// InsufficientDataError is returned when a computation has nothing to work on
type InsufficientDataError struct {
	Operation string
	Reason    string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data [operation=%s]: %s", e.Operation, e.Reason)
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// NewInsufficientDataError creates a new InsufficientDataError
func NewInsufficientDataError(operation, reason string) *InsufficientDataError {
	return &InsufficientDataError{Operation: operation, Reason: reason}
}

// ConstraintConflictError is returned when constraint filtering leaves no candidate scenario
type ConstraintConflictError struct {
	Scenarios   int
	Constraints OptimizationConstraints
}

func (e *ConstraintConflictError) Error() string {
	return fmt.Sprintf("constraint conflict: all %d scenarios were eliminated", e.Scenarios)
}

func (e *ConstraintConflictError) Unwrap() error {
	return ErrConstraintConflict
}

// NewConstraintConflictError creates a new ConstraintConflictError
func NewConstraintConflictError(scenarios int, constraints OptimizationConstraints) *ConstraintConflictError {
	return &ConstraintConflictError{Scenarios: scenarios, Constraints: constraints}
}

// PricingError represents a failed catalog lookup
type PricingError struct {
	Family   string
	Category PurchaseCategory
	Err      error
}

func (e *PricingError) Error() string {
	return fmt.Sprintf("pricing error [family=%s, category=%s]: %v", e.Family, e.Category, e.Err)
}

func (e *PricingError) Unwrap() error {
	return e.Err
}

// NewPricingError creates a new PricingError
func NewPricingError(family string, category PurchaseCategory, err error) *PricingError {
	return &PricingError{Family: family, Category: category, Err: err}
}

// AnalysisError represents errors during a planning phase
type AnalysisError struct {
	Phase string
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis error [phase=%s]: %v", e.Phase, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// NewAnalysisError creates a new AnalysisError
func NewAnalysisError(phase string, err error) *AnalysisError {
	return &AnalysisError{
		Phase: phase,
		Err:   err,
	}
}
