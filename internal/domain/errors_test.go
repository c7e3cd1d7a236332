package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorsUnwrap(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"Validation", NewValidationError("workloads", "empty"), ErrInvalidInput},
		{"Not found", NewNotFoundError("grant", "g1"), ErrNotFound},
		{"Insufficient data", NewInsufficientDataError("forecast", "no history"), ErrInsufficientData},
		{"Constraint conflict", NewConstraintConflictError(5, OptimizationConstraints{}), ErrConstraintConflict},
		{"Pricing", NewPricingError("m5", Spot, ErrPricingUnavailable), ErrPricingUnavailable},
		{"Analysis wraps phase error", NewAnalysisError("filter", NewConstraintConflictError(3, OptimizationConstraints{})), ErrConstraintConflict},
		{"fmt wrapping", fmt.Errorf("plan: %w", NewNotFoundError("grant", "g2")), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.target)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NewValidationError("amount", "must be positive"), "field=amount"},
		{NewNotFoundError("budget period", "g1"), "budget period not found [id=g1]"},
		{NewConstraintConflictError(7, OptimizationConstraints{}), "all 7 scenarios"},
		{NewPricingError("p3", Reserved, ErrNotFound), "family=p3, category=reserved"},
		{NewAnalysisError("aggregate", errors.New("boom")), "phase=aggregate"},
	}
	for _, tt := range tests {
		if !strings.Contains(tt.err.Error(), tt.want) {
			t.Errorf("%q does not contain %q", tt.err.Error(), tt.want)
		}
	}
}

func TestErrorsAs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewValidationError("grant_id", "must be specified"))

	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "grant_id" {
		t.Errorf("errors.As() ValidationError = %+v", ve)
	}

	var ce *ConstraintConflictError
	if errors.As(err, &ce) {
		t.Error("validation error should not match ConstraintConflictError")
	}
}
