// Package domain contains interfaces that define contracts for the application.
package domain

import (
	"context"
	"time"
)

// PricingCatalog maps an instance family and purchase category to an hourly rate.
// Implementations must be safe for concurrent use; the optimizer calls it from
// several goroutines during scenario generation.
type PricingCatalog interface {
	// Rate returns the hourly cost of one instance of family bought as category
	Rate(family string, category PurchaseCategory, commitment CommitmentTerm) (float64, error)
}

// InstanceCatalog resolves resource requirements to instance families
type InstanceCatalog interface {
	// ResolveFamily returns the family that best serves the requirement
	ResolveFamily(req ResourceRequirement) string

	// Class returns the hardware class of a family
	Class(family string) InstanceClass
}

// SpotRateSource provides observed spot rates, typically from a cloud API
type SpotRateSource interface {
	// SpotRate returns the current hourly spot rate for a family
	SpotRate(ctx context.Context, family string) (float64, error)

	// IsAvailable reports whether the source has working credentials
	IsAvailable() bool
}

// IDGenerator produces identities for generated records
type IDGenerator interface {
	// NewID returns a new identity with the given prefix
	NewID(prefix string) string
}

// Clock returns the current time
type Clock func() time.Time

// Forecaster projects future spend from history
type Forecaster interface {
	// Project produces a forecast from the given input
	Project(input ForecastInput) (*BudgetForecast, error)

	// Method names the forecasting model
	Method() string
}

// CacheProvider defines the interface for caching data
type CacheProvider interface {
	// Get retrieves a value from cache
	Get(key string) (interface{}, bool)

	// Set stores a value in cache with expiration
	Set(key string, value interface{}, ttlSeconds int)

	// Delete removes a value from cache
	Delete(key string)

	// Clear removes all values from cache
	Clear()
}

// Logger defines the logging interface used throughout the application
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}

// GrantRepository stores grants between ledger operations
type GrantRepository interface {
	// Get returns a copy of the grant or a NotFoundError
	Get(id string) (*Grant, error)

	// Save stores a copy of the grant
	Save(grant *Grant) error

	// List returns the stored grant IDs in sorted order
	List() []string
}
