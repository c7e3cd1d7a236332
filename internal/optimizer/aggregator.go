// Package optimizer implements the consumption-planning engine. It turns
// recurring workload patterns into candidate purchase scenarios, filters them
// against caller constraints, scores them on cost, risk, flexibility,
// reliability and specialization, and accounts for cost, savings and risk of
// the winner.
package optimizer

import (
	"fmt"
	"sort"

	"github.com/commitment-planner/internal/domain"
)

// Calendar and weighting constants used by the aggregation
const (
	DaysPerMonth  = 30
	HoursPerMonth = 24 * DaysPerMonth

	PredictableWeight   = 0.8 // share of critical/non-interruptible hours treated as committed baseline
	BurstOverheadWeight = 0.3 // extra hours provisioned for burst-enabled workloads
)

// WorkloadUsage is a workload together with its derived monthly usage
type WorkloadUsage struct {
	Workload     domain.WorkloadPattern
	MonthlyHours float64
	BurstHours   float64
	Family       string
}

// Aggregate holds monthly resource-hour totals for a workload set
type Aggregate struct {
	TotalHours         float64
	PredictableHours   float64
	InterruptibleHours float64
	GPUHours           float64
	BurstHours         float64
	FamilyHours        map[string]float64
	Usage              []WorkloadUsage
}

// HasBurst reports whether any workload is burst-enabled
func (a *Aggregate) HasBurst() bool {
	for _, u := range a.Usage {
		if u.Workload.BurstEnabled() {
			return true
		}
	}
	return false
}

// Workloads returns the aggregated workloads in input order
func (a *Aggregate) Workloads() []domain.WorkloadPattern {
	result := make([]domain.WorkloadPattern, len(a.Usage))
	for i, u := range a.Usage {
		result[i] = u.Workload
	}
	return result
}

// DominantFamily returns the family with the most hours. Ties resolve by name.
func (a *Aggregate) DominantFamily() string {
	return dominantFamily(a.FamilyHours)
}

func dominantFamily(hours map[string]float64) string {
	families := make([]string, 0, len(hours))
	for f := range hours {
		families = append(families, f)
	}
	sort.Strings(families)

	best := ""
	bestHours := -1.0
	for _, f := range families {
		if hours[f] > bestHours {
			best = f
			bestHours = hours[f]
		}
	}
	return best
}

// Aggregator converts workload patterns into monthly resource-hour totals
type Aggregator struct {
	catalog domain.InstanceCatalog
}

// NewAggregator creates a new aggregator
func NewAggregator(catalog domain.InstanceCatalog) *Aggregator {
	return &Aggregator{catalog: catalog}
}

// Aggregate validates the workloads and accumulates their monthly hours
func (a *Aggregator) Aggregate(workloads []domain.WorkloadPattern) (*Aggregate, error) {
	if err := ValidateWorkloads(workloads); err != nil {
		return nil, err
	}

	agg := &Aggregate{
		FamilyHours: make(map[string]float64),
		Usage:       make([]WorkloadUsage, 0, len(workloads)),
	}

	for _, w := range workloads {
		hours := MonthlyHours(w)
		usage := WorkloadUsage{
			Workload:     w,
			MonthlyHours: hours,
			Family:       a.catalog.ResolveFamily(w.Resources),
		}

		agg.TotalHours += hours
		if w.IsPredictable() {
			agg.PredictableHours += hours * PredictableWeight
		}
		if w.Interruptible {
			agg.InterruptibleHours += hours
		}
		if w.Resources.GPURequired {
			agg.GPUHours += hours
		}
		if w.BurstEnabled() {
			usage.BurstHours = hours * BurstOverheadWeight
			agg.BurstHours += usage.BurstHours
		}
		agg.FamilyHours[usage.Family] += hours

		agg.Usage = append(agg.Usage, usage)
	}

	return agg, nil
}

// MonthlyHours returns the seasonally adjusted monthly run hours of a workload
func MonthlyHours(w domain.WorkloadPattern) float64 {
	hours := w.RunsPerDay * (w.DaysPerWeek / 7) * DaysPerMonth * w.AvgDurationHours
	return hours * SeasonalMultiplier(w.Seasonality)
}

// SeasonalMultiplier averages peak and normal demand for non-steady workloads.
// A missing peak multiplier counts as 1.
func SeasonalMultiplier(s domain.Seasonality) float64 {
	if s.IsSteady() || s.PeakMultiplier <= 0 {
		return 1
	}
	return (s.PeakMultiplier + 1) / 2
}

// ValidateWorkloads checks that the list is non-empty and every workload is usable
func ValidateWorkloads(workloads []domain.WorkloadPattern) error {
	if len(workloads) == 0 {
		return domain.NewValidationError("workloads", "at least one workload is required")
	}

	seen := make(map[string]bool, len(workloads))
	for i, w := range workloads {
		field := func(name string) string {
			return fmt.Sprintf("workloads[%d].%s", i, name)
		}
		switch {
		case w.ID == "":
			return domain.NewValidationError(field("id"), "must be specified")
		case seen[w.ID]:
			return domain.NewValidationError(field("id"), fmt.Sprintf("duplicate workload id %q", w.ID))
		case w.Resources.VCPU <= 0:
			return domain.NewValidationError(field("resources.vcpu"), "must be greater than 0")
		case w.Resources.MemoryGiB <= 0:
			return domain.NewValidationError(field("resources.memory_gib"), "must be greater than 0")
		case w.AvgDurationHours <= 0:
			return domain.NewValidationError(field("avg_duration_hours"), "must be greater than 0")
		case w.RunsPerDay <= 0:
			return domain.NewValidationError(field("runs_per_day"), "must be greater than 0")
		case w.DaysPerWeek <= 0 || w.DaysPerWeek > 7:
			return domain.NewValidationError(field("days_per_week"), "must be between 1 and 7")
		}
		seen[w.ID] = true
	}
	return nil
}
