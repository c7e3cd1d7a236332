package optimizer

import "github.com/commitment-planner/internal/domain"

// Archetype identifiers
const (
	Conservative     = "conservative"
	Aggressive       = "aggressive"
	Balanced         = "balanced"
	GPUSpecialized   = "gpu-specialized"
	BurstSpecialized = "burst-specialized"
)

// WorkloadPredicate selects workloads
type WorkloadPredicate func(u WorkloadUsage) bool

// HourBasis returns the hours a workload contributes to an allocation
type HourBasis func(u WorkloadUsage) float64

// Allocation is one purchase category inside a template. The allocated hours
// are Share of the Basis hours summed over workloads in Scope; the family is
// the dominant family among scoped workloads that are Eligible.
type Allocation struct {
	Category    domain.PurchaseCategory
	Share       float64
	Scope       WorkloadPredicate
	Eligible    WorkloadPredicate
	Basis       HourBasis
	Commitment  domain.CommitmentTerm
	Payment     domain.PaymentOption
	Utilization float64
	Risk        domain.RiskLevel
	Purpose     string
}

// Template is a declarative scenario archetype
type Template struct {
	ID          string
	Name        string
	Enabled     func(agg *Aggregate) bool
	Allocations []Allocation
}

// Estimated utilization per category
const (
	ReservedUtilization = 85.0
	SavingsUtilization  = 80.0
	SpotUtilization     = 70.0
	OnDemandUtilization = 60.0
)

// Eligibility predicates
var (
	reservedEligible WorkloadPredicate = func(u WorkloadUsage) bool {
		return u.Workload.IsCritical() || !u.Workload.Interruptible
	}
	spotEligible WorkloadPredicate = func(u WorkloadUsage) bool {
		return u.Workload.Interruptible
	}
	savingsEligible WorkloadPredicate = func(u WorkloadUsage) bool {
		return !u.Workload.Interruptible && !u.Workload.Resources.GPURequired
	}
	onDemandEligible WorkloadPredicate = func(u WorkloadUsage) bool {
		return u.Workload.IsCritical() || u.Workload.BurstEnabled() || !u.Workload.Interruptible
	}
	burstEligible WorkloadPredicate = func(u WorkloadUsage) bool {
		return u.Workload.BurstEnabled()
	}

	allWorkloads WorkloadPredicate = func(WorkloadUsage) bool { return true }
	gpuWorkloads WorkloadPredicate = func(u WorkloadUsage) bool {
		return u.Workload.Resources.GPURequired
	}
	nonGPUWorkloads WorkloadPredicate = func(u WorkloadUsage) bool {
		return !u.Workload.Resources.GPURequired
	}

	monthlyHours HourBasis = func(u WorkloadUsage) float64 { return u.MonthlyHours }
	burstHours   HourBasis = func(u WorkloadUsage) float64 { return u.BurstHours }
)

func always(*Aggregate) bool { return true }

// DefaultTemplates returns the built-in archetypes in generation order
func DefaultTemplates() []Template {
	return []Template{
		{
			ID:      Conservative,
			Name:    "Conservative",
			Enabled: always,
			Allocations: []Allocation{
				reserved(0.70, domain.ThreeYear, domain.PartialUpfront, "Committed baseline for steady workloads"),
				spot(0.20, domain.RiskMedium, "Spot capacity for fault-tolerant batch jobs"),
				onDemand(0.10, "On-demand headroom for critical and unplanned work"),
			},
		},
		{
			ID:      Aggressive,
			Name:    "Aggressive",
			Enabled: always,
			Allocations: []Allocation{
				reserved(0.40, domain.OneYear, domain.NoUpfront, "Minimal committed baseline"),
				spot(0.50, domain.RiskHigh, "Maximize spot usage for interruptible jobs"),
				onDemand(0.10, "On-demand fallback when spot capacity is reclaimed"),
			},
		},
		{
			ID:      Balanced,
			Name:    "Balanced",
			Enabled: always,
			Allocations: []Allocation{
				reserved(0.50, domain.OneYear, domain.PartialUpfront, "Reserved baseline for predictable workloads"),
				{
					Category:    domain.SavingsCommitment,
					Share:       0.15,
					Scope:       allWorkloads,
					Eligible:    savingsEligible,
					Basis:       monthlyHours,
					Commitment:  domain.OneYear,
					Payment:     domain.NoUpfront,
					Utilization: SavingsUtilization,
					Risk:        domain.RiskLow,
					Purpose:     "Flexible spend commitment across instance families",
				},
				spot(0.30, domain.RiskMedium, "Spot capacity for fault-tolerant batch jobs"),
				onDemand(0.05, "On-demand headroom for critical work"),
			},
		},
		{
			ID:   GPUSpecialized,
			Name: "GPU Specialized",
			Enabled: func(agg *Aggregate) bool {
				return agg.GPUHours > 0
			},
			Allocations: []Allocation{
				{
					Category:    domain.Reserved,
					Share:       0.70,
					Scope:       gpuWorkloads,
					Eligible:    reservedEligible,
					Basis:       monthlyHours,
					Commitment:  domain.OneYear,
					Payment:     domain.PartialUpfront,
					Utilization: ReservedUtilization,
					Risk:        domain.RiskLow,
					Purpose:     "Reserved GPU capacity for ML training",
				},
				{
					Category:    domain.Spot,
					Share:       0.30,
					Scope:       gpuWorkloads,
					Eligible:    spotEligible,
					Basis:       monthlyHours,
					Utilization: SpotUtilization,
					Risk:        domain.RiskHigh,
					Purpose:     "Spot GPU capacity for checkpointed training runs",
				},
				{
					Category:    domain.Reserved,
					Share:       0.60,
					Scope:       nonGPUWorkloads,
					Eligible:    reservedEligible,
					Basis:       monthlyHours,
					Commitment:  domain.OneYear,
					Payment:     domain.NoUpfront,
					Utilization: ReservedUtilization,
					Risk:        domain.RiskLow,
					Purpose:     "Reserved general capacity for steady CPU workloads",
				},
				{
					Category:    domain.Spot,
					Share:       0.30,
					Scope:       nonGPUWorkloads,
					Eligible:    spotEligible,
					Basis:       monthlyHours,
					Utilization: SpotUtilization,
					Risk:        domain.RiskMedium,
					Purpose:     "Spot capacity for CPU batch jobs",
				},
				onDemand(0.10, "On-demand headroom for critical work"),
			},
		},
		{
			ID:      BurstSpecialized,
			Name:    "Burst Specialized",
			Enabled: (*Aggregate).HasBurst,
			Allocations: []Allocation{
				reserved(0.45, domain.OneYear, domain.NoUpfront, "Reserved baseline below burst peaks"),
				spot(0.25, domain.RiskMedium, "Spot capacity for interruptible work between bursts"),
				onDemand(0.30, "On-demand capacity for scaling through demand spikes"),
				{
					Category:    domain.OnDemand,
					Share:       1.0,
					Scope:       burstEligible,
					Eligible:    burstEligible,
					Basis:       burstHours,
					Utilization: OnDemandUtilization,
					Risk:        domain.RiskLow,
					Purpose:     "Elastic burst capacity for concurrent job spikes",
				},
			},
		},
	}
}

func reserved(share float64, term domain.CommitmentTerm, payment domain.PaymentOption, purpose string) Allocation {
	return Allocation{
		Category:    domain.Reserved,
		Share:       share,
		Scope:       allWorkloads,
		Eligible:    reservedEligible,
		Basis:       monthlyHours,
		Commitment:  term,
		Payment:     payment,
		Utilization: ReservedUtilization,
		Risk:        domain.RiskLow,
		Purpose:     purpose,
	}
}

func spot(share float64, risk domain.RiskLevel, purpose string) Allocation {
	return Allocation{
		Category:    domain.Spot,
		Share:       share,
		Scope:       allWorkloads,
		Eligible:    spotEligible,
		Basis:       monthlyHours,
		Utilization: SpotUtilization,
		Risk:        risk,
		Purpose:     purpose,
	}
}

func onDemand(share float64, purpose string) Allocation {
	return Allocation{
		Category:    domain.OnDemand,
		Share:       share,
		Scope:       allWorkloads,
		Eligible:    onDemandEligible,
		Basis:       monthlyHours,
		Utilization: OnDemandUtilization,
		Risk:        domain.RiskLow,
		Purpose:     purpose,
	}
}
