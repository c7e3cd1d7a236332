package provider

import (
	"context"
	"time"

	"github.com/commitment-planner/internal/domain"
)

// SpotAwareCatalog decorates a pricing catalog with observed spot rates.
// Non-spot categories and lookups that fail fall through to the base catalog.
type SpotAwareCatalog struct {
	base    domain.PricingCatalog
	source  domain.SpotRateSource
	timeout time.Duration
	logger  domain.Logger
}

// NewSpotAwareCatalog creates a decorating catalog
func NewSpotAwareCatalog(base domain.PricingCatalog, source domain.SpotRateSource, timeout time.Duration, logger domain.Logger) *SpotAwareCatalog {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = domain.NopLogger{}
	}
	return &SpotAwareCatalog{base: base, source: source, timeout: timeout, logger: logger}
}

// Rate returns the live spot rate for spot capacity, else the base rate
func (c *SpotAwareCatalog) Rate(family string, category domain.PurchaseCategory, commitment domain.CommitmentTerm) (float64, error) {
	if category != domain.Spot || c.source == nil || !c.source.IsAvailable() {
		return c.base.Rate(family, category, commitment)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	rate, err := c.source.SpotRate(ctx, family)
	if err != nil || rate <= 0 {
		c.logger.Warn("live spot rate unavailable for %s, using list price: %v", family, err)
		return c.base.Rate(family, category, commitment)
	}
	return rate, nil
}
