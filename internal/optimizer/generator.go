package optimizer

import (
	"context"
	"fmt"
	"math"

	"github.com/commitment-planner/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Pricer resolves discounted hourly rates from the catalog
type Pricer struct {
	catalog   domain.PricingCatalog
	discounts domain.DiscountProfile
}

// NewPricer creates a pricer for a discount profile
func NewPricer(catalog domain.PricingCatalog, discounts domain.DiscountProfile) Pricer {
	return Pricer{catalog: catalog, discounts: discounts}
}

// Price returns the discounted hourly cost of one instance
func (p Pricer) Price(family string, category domain.PurchaseCategory, term domain.CommitmentTerm) (float64, error) {
	rate, err := p.catalog.Rate(family, category, term)
	if err != nil {
		return 0, err
	}
	return ApplyDiscounts(rate, family, category, p.discounts), nil
}

// ApplyDiscounts adjusts a list rate: EDP on reserved, PPA on on-demand for
// the family, and any volume discount keyed by category
func ApplyDiscounts(rate float64, family string, category domain.PurchaseCategory, d domain.DiscountProfile) float64 {
	switch category {
	case domain.Reserved:
		rate *= 1 - d.EDPDiscount
	case domain.OnDemand:
		if ppa, ok := d.PPADiscounts[family]; ok {
			rate *= 1 - ppa
		}
	}
	if v, ok := d.VolumeDiscounts[string(category)]; ok {
		rate *= 1 - v
	}
	return rate
}

// Generator builds candidate scenarios from templates
type Generator struct {
	catalog   domain.PricingCatalog
	ids       domain.IDGenerator
	templates []Template
}

// NewGenerator creates a generator. A nil template list uses DefaultTemplates.
func NewGenerator(catalog domain.PricingCatalog, ids domain.IDGenerator, templates []Template) *Generator {
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &Generator{catalog: catalog, ids: ids, templates: templates}
}

// Generate builds one scenario per enabled template. Templates are evaluated
// concurrently; output order follows the template table.
func (g *Generator) Generate(ctx context.Context, agg *Aggregate, discounts domain.DiscountProfile) ([]domain.Scenario, error) {
	enabled := make([]Template, 0, len(g.templates))
	for _, t := range g.templates {
		if t.Enabled == nil || t.Enabled(agg) {
			enabled = append(enabled, t)
		}
	}

	pricer := NewPricer(g.catalog, discounts)
	results := make([]domain.Scenario, len(enabled))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, tmpl := range enabled {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			sc, err := buildScenario(tmpl, agg, pricer)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", tmpl.ID, err)
			}
			sc.Order = i
			results[i] = sc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// IDs are assigned after the barrier so sequence generators stay deterministic
	for i := range results {
		for j := range results[i].Strategies {
			results[i].Strategies[j].ID = g.ids.NewID("strategy")
		}
	}

	return results, nil
}

func buildScenario(tmpl Template, agg *Aggregate, pricer Pricer) (domain.Scenario, error) {
	sc := domain.Scenario{
		ID:         tmpl.ID,
		Name:       tmpl.Name,
		Strategies: make([]domain.PurchaseStrategy, 0, len(tmpl.Allocations)),
	}

	for _, alloc := range tmpl.Allocations {
		strategy, ok, err := allocate(alloc, agg, pricer)
		if err != nil {
			return sc, err
		}
		if ok {
			sc.Strategies = append(sc.Strategies, strategy)
		}
	}
	return sc, nil
}

// allocate turns one template allocation into a strategy sized from the full
// hour basis. It reports false only when the allocation has no hours.
// Reserved, savings and on-demand capacity with no eligible workload covers
// every scoped workload; spot never covers work that cannot be interrupted.
func allocate(alloc Allocation, agg *Aggregate, pricer Pricer) (domain.PurchaseStrategy, bool, error) {
	var basisHours float64
	familyHours := make(map[string]float64)
	scopedHours := make(map[string]float64)
	covered := make([]string, 0)
	scoped := make([]string, 0)

	for _, u := range agg.Usage {
		if alloc.Scope != nil && !alloc.Scope(u) {
			continue
		}
		h := alloc.Basis(u)
		basisHours += h
		scoped = append(scoped, u.Workload.ID)
		scopedHours[u.Family] += h
		if alloc.Eligible(u) {
			covered = append(covered, u.Workload.ID)
			familyHours[u.Family] += h
		}
	}

	hours := basisHours * alloc.Share
	if hours <= 0 {
		return domain.PurchaseStrategy{}, false, nil
	}
	if len(covered) == 0 {
		familyHours = scopedHours
		if alloc.Category != domain.Spot {
			covered = scoped
		}
	}

	family := dominantFamily(familyHours)
	term := alloc.Commitment
	payment := alloc.Payment
	if alloc.Category == domain.Spot || alloc.Category == domain.OnDemand {
		term = domain.NoCommitment
		payment = domain.NoPayment
	}

	cost, err := pricer.Price(family, alloc.Category, term)
	if err != nil {
		return domain.PurchaseStrategy{}, false, err
	}

	return domain.PurchaseStrategy{
		InstanceFamily:       family,
		Quantity:             int(math.Ceil(hours / HoursPerMonth)),
		Category:             alloc.Category,
		Commitment:           term,
		Payment:              payment,
		HourlyCost:           cost,
		EstimatedUtilization: alloc.Utilization,
		Purpose:              alloc.Purpose,
		CoveredWorkloads:     covered,
		Risk:                 alloc.Risk,
	}, true, nil
}
