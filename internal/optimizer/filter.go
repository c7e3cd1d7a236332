package optimizer

import (
	"fmt"
	"math"

	"github.com/commitment-planner/internal/domain"
)

// ConstraintFilter rewrites and prunes scenarios to satisfy hard constraints
type ConstraintFilter struct {
	catalog domain.PricingCatalog
	logger  domain.Logger
}

// NewConstraintFilter creates a new constraint filter
func NewConstraintFilter(catalog domain.PricingCatalog, logger domain.Logger) *ConstraintFilter {
	if logger == nil {
		logger = domain.NopLogger{}
	}
	return &ConstraintFilter{catalog: catalog, logger: logger}
}

// Apply transforms every scenario and drops the ones that no longer qualify.
// A 1yr planning horizon clamps commitments like MaxCommitment does.
// It returns a ConstraintConflictError when nothing survives.
func (f *ConstraintFilter) Apply(
	scenarios []domain.Scenario,
	constraints domain.OptimizationConstraints,
	horizon domain.CommitmentTerm,
	discounts domain.DiscountProfile,
) ([]domain.Scenario, error) {
	pricer := NewPricer(f.catalog, discounts)
	maxTerm := constraints.MaxCommitment
	if horizon == domain.OneYear {
		maxTerm = domain.OneYear
	}

	result := make([]domain.Scenario, 0, len(scenarios))
	for _, sc := range scenarios {
		filtered, err := f.transform(sc, constraints, maxTerm, pricer)
		if err != nil {
			return nil, err
		}

		eligible, reasons := f.IsEligible(filtered, constraints)
		if !eligible {
			f.logger.Debug("Scenario %s eliminated: %v", sc.ID, reasons)
			continue
		}
		result = append(result, filtered)
	}

	if len(result) == 0 {
		return nil, domain.NewConstraintConflictError(len(scenarios), constraints)
	}
	return result, nil
}

// transform applies the strategy-level rewrites to a copy of the scenario
func (f *ConstraintFilter) transform(
	sc domain.Scenario,
	c domain.OptimizationConstraints,
	maxTerm domain.CommitmentTerm,
	pricer Pricer,
) (domain.Scenario, error) {
	out := sc
	out.Strategies = make([]domain.PurchaseStrategy, 0, len(sc.Strategies))

	for _, st := range sc.Strategies {
		// 1. Spot disallowed
		if st.Category == domain.Spot && !c.SpotAllowed() {
			continue
		}

		// 2. Commitment ceiling, re-priced at the shorter term
		if maxTerm == domain.OneYear && st.Commitment == domain.ThreeYear {
			cost, err := pricer.Price(st.InstanceFamily, st.Category, domain.OneYear)
			if err != nil {
				return out, fmt.Errorf("reprice %s %s: %w", st.InstanceFamily, st.Category, err)
			}
			st.Commitment = domain.OneYear
			st.HourlyCost = cost
		}

		// 3. Upfront payment ceiling
		if c.MaxUpfrontPayment != domain.NoPayment && st.Payment.Rank() > c.MaxUpfrontPayment.Rank() {
			st.Payment = c.MaxUpfrontPayment
		}

		out.Strategies = append(out.Strategies, st)
	}

	// 4. Spot share ceiling: keep the first N spot strategies
	if c.MaxSpotPercentage != nil && len(out.Strategies) > 0 {
		n := len(out.Strategies)
		if spotShare(out.Strategies) > *c.MaxSpotPercentage {
			keep := int(math.Floor(*c.MaxSpotPercentage / 100 * float64(n)))
			trimmed := make([]domain.PurchaseStrategy, 0, n)
			for _, st := range out.Strategies {
				if st.Category == domain.Spot {
					if keep == 0 {
						continue
					}
					keep--
				}
				trimmed = append(trimmed, st)
			}
			out.Strategies = trimmed
		}
	}

	return out, nil
}

// IsEligible checks whether a transformed scenario can still be recommended
func (f *ConstraintFilter) IsEligible(sc domain.Scenario, c domain.OptimizationConstraints) (bool, []string) {
	reasons := make([]string, 0)

	if len(sc.Strategies) == 0 {
		reasons = append(reasons, "no strategies left")
		return false, reasons
	}

	if c.MinReservedPercentage > 0 && reservedShare(sc.Strategies) < c.MinReservedPercentage {
		reasons = append(reasons, fmt.Sprintf("reserved share below %.0f%%", c.MinReservedPercentage))
		return false, reasons
	}

	return true, reasons
}

// spotShare is the percentage of strategies that buy spot capacity
func spotShare(strategies []domain.PurchaseStrategy) float64 {
	if len(strategies) == 0 {
		return 0
	}
	spot := 0
	for _, st := range strategies {
		if st.Category == domain.Spot {
			spot++
		}
	}
	return float64(spot) / float64(len(strategies)) * 100
}

// reservedShare is the percentage of purchased quantity that is reserved
func reservedShare(strategies []domain.PurchaseStrategy) float64 {
	var reserved, total int
	for _, st := range strategies {
		total += st.Quantity
		if st.Category == domain.Reserved {
			reserved += st.Quantity
		}
	}
	if total == 0 {
		return 0
	}
	return float64(reserved) / float64(total) * 100
}

// ValidateConstraints rejects out-of-range constraint values
func ValidateConstraints(c domain.OptimizationConstraints) error {
	switch c.MaxCommitment {
	case domain.NoCommitment, domain.OneYear, domain.ThreeYear:
	default:
		return domain.NewValidationError("constraints.max_commitment", "must be 1yr or 3yr")
	}
	if c.MaxUpfrontPayment != domain.NoPayment && c.MaxUpfrontPayment.Rank() == 0 {
		return domain.NewValidationError("constraints.max_upfront_payment", "must be no-upfront, partial-upfront or all-upfront")
	}
	switch c.RiskTolerance {
	case "", domain.RiskLow, domain.RiskMedium, domain.RiskHigh:
	default:
		return domain.NewValidationError("constraints.risk_tolerance", "must be low, medium or high")
	}
	if c.MinReservedPercentage < 0 || c.MinReservedPercentage > 100 {
		return domain.NewValidationError("constraints.min_reserved_percentage", "must be between 0 and 100")
	}
	if c.MaxSpotPercentage != nil && (*c.MaxSpotPercentage < 0 || *c.MaxSpotPercentage > 100) {
		return domain.NewValidationError("constraints.max_spot_percentage", "must be between 0 and 100")
	}
	return nil
}

// ValidateDiscounts rejects discount fractions outside [0, 1)
func ValidateDiscounts(d domain.DiscountProfile) error {
	if d.EDPDiscount < 0 || d.EDPDiscount >= 1 {
		return domain.NewValidationError("discounts.edp_discount", "must be a fraction in [0, 1)")
	}
	for family, v := range d.PPADiscounts {
		if v < 0 || v >= 1 {
			return domain.NewValidationError("discounts.ppa_discounts."+family, "must be a fraction in [0, 1)")
		}
	}
	for category, v := range d.VolumeDiscounts {
		if v < 0 || v >= 1 {
			return domain.NewValidationError("discounts.volume_discounts."+category, "must be a fraction in [0, 1)")
		}
	}
	if d.AvailableCredits < 0 {
		return domain.NewValidationError("discounts.available_credits", "must not be negative")
	}
	return nil
}
