// Package domain contains the core domain models for the commitment planner.
// These models are provider-agnostic and represent the business entities
// shared by the optimizer, the budget ledger and the service surfaces.
package domain

import (
	"strings"
	"time"
)

// PurchaseCategory represents how capacity is bought
type PurchaseCategory string

const (
	Reserved          PurchaseCategory = "reserved"
	SavingsCommitment PurchaseCategory = "savings-commitment"
	Spot              PurchaseCategory = "spot"
	OnDemand          PurchaseCategory = "on-demand"
)

// AllPurchaseCategories lists categories in reporting order
var AllPurchaseCategories = []PurchaseCategory{Reserved, SavingsCommitment, Spot, OnDemand}

// String returns the string representation of the category
func (c PurchaseCategory) String() string {
	return string(c)
}

// IsValid checks if the category is a known purchase category
func (c PurchaseCategory) IsValid() bool {
	switch c {
	case Reserved, SavingsCommitment, Spot, OnDemand:
		return true
	default:
		return false
	}
}

// CommitmentTerm is the length of a reserved or savings commitment
type CommitmentTerm string

const (
	NoCommitment CommitmentTerm = ""
	OneYear      CommitmentTerm = "1yr"
	ThreeYear    CommitmentTerm = "3yr"
)

// ParseCommitmentTerm parses a string into a CommitmentTerm.
// Unknown values yield NoCommitment.
func ParseCommitmentTerm(s string) CommitmentTerm {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1yr", "1y", "1-year", "one-year":
		return OneYear
	case "3yr", "3y", "3-year", "three-year":
		return ThreeYear
	default:
		return NoCommitment
	}
}

// Months returns the length of the term in months (0 for no commitment)
func (t CommitmentTerm) Months() int {
	switch t {
	case OneYear:
		return 12
	case ThreeYear:
		return 36
	default:
		return 0
	}
}

// PaymentOption is the upfront payment timing of a commitment
type PaymentOption string

const (
	NoPayment      PaymentOption = ""
	NoUpfront      PaymentOption = "no-upfront"
	PartialUpfront PaymentOption = "partial-upfront"
	AllUpfront     PaymentOption = "all-upfront"
)

// Rank orders payment options by how much is paid upfront
func (p PaymentOption) Rank() int {
	switch p {
	case NoUpfront:
		return 1
	case PartialUpfront:
		return 2
	case AllUpfront:
		return 3
	default:
		return 0
	}
}

// RiskLevel is a coarse risk tier
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Priority of a workload
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// SeasonalityCategory describes how demand varies over the year
type SeasonalityCategory string

const (
	Steady      SeasonalityCategory = "steady"
	Seasonal    SeasonalityCategory = "seasonal"
	Cyclical    SeasonalityCategory = "cyclical"
	EventDriven SeasonalityCategory = "event-driven"
)

// InstanceClass is the broad hardware class an instance family belongs to
type InstanceClass string

const (
	GeneralPurpose   InstanceClass = "general_purpose"
	ComputeOptimized InstanceClass = "compute_optimized"
	MemoryOptimized  InstanceClass = "memory_optimized"
	StorageOptimized InstanceClass = "storage_optimized"
	GPUAccelerated   InstanceClass = "gpu_accelerated"
)

// IsSpecialized reports whether the class targets a specific workload shape
func (c InstanceClass) IsSpecialized() bool {
	return c != GeneralPurpose && c != ""
}

// ResourceRequirement is what a single run of a workload needs
type ResourceRequirement struct {
	VCPU             int     `json:"vcpu" yaml:"vcpu"`
	MemoryGiB        float64 `json:"memory_gib" yaml:"memory_gib"`
	GPURequired      bool    `json:"gpu_required" yaml:"gpu_required"`
	GPUCount         int     `json:"gpu_count,omitempty" yaml:"gpu_count,omitempty"`
	StorageIntensive bool    `json:"storage_intensive,omitempty" yaml:"storage_intensive,omitempty"`
	NetworkIntensive bool    `json:"network_intensive,omitempty" yaml:"network_intensive,omitempty"`
}

// MemoryPerVCPU returns the memory to vCPU ratio (0 when vCPU is unset)
func (r ResourceRequirement) MemoryPerVCPU() float64 {
	if r.VCPU <= 0 {
		return 0
	}
	return r.MemoryGiB / float64(r.VCPU)
}

// Seasonality describes demand variation
type Seasonality struct {
	Category       SeasonalityCategory `json:"category" yaml:"category"`
	PeakMonths     []int               `json:"peak_months,omitempty" yaml:"peak_months,omitempty"`
	LowMonths      []int               `json:"low_months,omitempty" yaml:"low_months,omitempty"`
	PeakMultiplier float64             `json:"peak_multiplier,omitempty" yaml:"peak_multiplier,omitempty"`
}

// IsSteady reports whether demand is flat across the year
func (s Seasonality) IsSteady() bool {
	return s.Category == "" || s.Category == Steady
}

// BurstCapacity describes short recurring demand spikes
type BurstCapacity struct {
	MaxConcurrentJobs  int     `json:"max_concurrent_jobs" yaml:"max_concurrent_jobs"`
	BurstDurationHours float64 `json:"burst_duration_hours" yaml:"burst_duration_hours"`
	FrequencyPerMonth  int     `json:"frequency_per_month" yaml:"frequency_per_month"`
}

// WorkloadPattern is a recurring compute workload. Immutable input.
type WorkloadPattern struct {
	ID               string              `json:"id" yaml:"id"`
	Name             string              `json:"name" yaml:"name"`
	AvgDurationHours float64             `json:"avg_duration_hours" yaml:"avg_duration_hours"`
	RunsPerDay       float64             `json:"runs_per_day" yaml:"runs_per_day"`
	DaysPerWeek      float64             `json:"days_per_week" yaml:"days_per_week"`
	Resources        ResourceRequirement `json:"resources" yaml:"resources"`
	Seasonality      Seasonality         `json:"seasonality" yaml:"seasonality"`
	Priority         Priority            `json:"priority" yaml:"priority"`
	Interruptible    bool                `json:"interruptible" yaml:"interruptible"`
	Burst            *BurstCapacity      `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// IsCritical reports whether the workload has critical priority
func (w WorkloadPattern) IsCritical() bool {
	return w.Priority == PriorityCritical
}

// IsPredictable reports whether the workload is a candidate for committed capacity
func (w WorkloadPattern) IsPredictable() bool {
	return w.IsCritical() || !w.Interruptible
}

// BurstEnabled reports whether the workload declares burst capacity
func (w WorkloadPattern) BurstEnabled() bool {
	return w.Burst != nil && w.Burst.MaxConcurrentJobs > 0
}

// PurchaseStrategy is a single purchase recommendation
type PurchaseStrategy struct {
	ID                   string           `json:"id"`
	InstanceFamily       string           `json:"instance_family"`
	Quantity             int              `json:"quantity"`
	Category             PurchaseCategory `json:"category"`
	Commitment           CommitmentTerm   `json:"commitment,omitempty"`
	Payment              PaymentOption    `json:"payment,omitempty"`
	HourlyCost           float64          `json:"hourly_cost"`
	EstimatedUtilization float64          `json:"estimated_utilization"`
	Purpose              string           `json:"purpose"`
	CoveredWorkloads     []string         `json:"covered_workloads"`
	Risk                 RiskLevel        `json:"risk"`
}

// Covers reports whether the strategy covers the given workload
func (s PurchaseStrategy) Covers(workloadID string) bool {
	for _, id := range s.CoveredWorkloads {
		if id == workloadID {
			return true
		}
	}
	return false
}

// Scenario is one candidate set of purchase strategies built from an archetype
type Scenario struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Order      int                `json:"order"`
	Strategies []PurchaseStrategy `json:"strategies"`
}

// Categories returns the distinct purchase categories in the scenario
func (s Scenario) Categories() []PurchaseCategory {
	seen := make(map[PurchaseCategory]bool)
	result := make([]PurchaseCategory, 0, 4)
	for _, st := range s.Strategies {
		if !seen[st.Category] {
			seen[st.Category] = true
			result = append(result, st.Category)
		}
	}
	return result
}

// ScoreBreakdown provides detailed scenario scoring information
type ScoreBreakdown struct {
	CostScore           float64 `json:"cost_score"`
	RiskScore           float64 `json:"risk_score"`
	FlexibilityScore    float64 `json:"flexibility_score"`
	ReliabilityScore    float64 `json:"reliability_score"`
	SpecializationScore float64 `json:"specialization_score"`
	Bonus               float64 `json:"bonus"`
	MonthlyCost         float64 `json:"monthly_cost"`
	Total               float64 `json:"total"`
}

// ScoredScenario pairs a scenario with its score
type ScoredScenario struct {
	Scenario Scenario       `json:"scenario"`
	Score    ScoreBreakdown `json:"score"`
}

// DiscountProfile holds negotiated discounts. Immutable configuration.
type DiscountProfile struct {
	EDPDiscount      float64            `json:"edp_discount,omitempty" yaml:"edp_discount,omitempty"`
	PPADiscounts     map[string]float64 `json:"ppa_discounts,omitempty" yaml:"ppa_discounts,omitempty"`
	AvailableCredits float64            `json:"available_credits,omitempty" yaml:"available_credits,omitempty"`
	MonthlyBudget    float64            `json:"monthly_budget,omitempty" yaml:"monthly_budget,omitempty"`
	VolumeDiscounts  map[string]float64 `json:"volume_discounts,omitempty" yaml:"volume_discounts,omitempty"`
}

// OptimizationConstraints are hard caller constraints. Unset fields are unconstrained.
type OptimizationConstraints struct {
	MaxCommitment         CommitmentTerm `json:"max_commitment,omitempty" yaml:"max_commitment,omitempty"`
	MaxUpfrontPayment     PaymentOption  `json:"max_upfront_payment,omitempty" yaml:"max_upfront_payment,omitempty"`
	PrioritizeCost        bool           `json:"prioritize_cost,omitempty" yaml:"prioritize_cost,omitempty"`
	RiskTolerance         RiskLevel      `json:"risk_tolerance,omitempty" yaml:"risk_tolerance,omitempty"`
	FlexibilityRequired   bool           `json:"flexibility_required,omitempty" yaml:"flexibility_required,omitempty"`
	ReliabilityRequired   bool           `json:"reliability_required,omitempty" yaml:"reliability_required,omitempty"`
	SpotInstancesAllowed  *bool          `json:"spot_instances_allowed,omitempty" yaml:"spot_instances_allowed,omitempty"`
	MinReservedPercentage float64        `json:"min_reserved_percentage,omitempty" yaml:"min_reserved_percentage,omitempty"`
	MaxSpotPercentage     *float64       `json:"max_spot_percentage,omitempty" yaml:"max_spot_percentage,omitempty"`
}

// SpotAllowed reports whether spot capacity may be recommended
func (c OptimizationConstraints) SpotAllowed() bool {
	return c.SpotInstancesAllowed == nil || *c.SpotInstancesAllowed
}

// CostSavings is the savings triple versus all on-demand
type CostSavings struct {
	MonthlySavings    float64 `json:"monthly_savings"`
	AnnualSavings     float64 `json:"annual_savings"`
	SavingsPercentage float64 `json:"savings_percentage"`
}

// RiskAssessment summarizes the risk of a scenario
type RiskAssessment struct {
	Overall          RiskLevel `json:"overall"`
	SpotInterruption float64   `json:"spot_interruption"`
	CostVariability  RiskLevel `json:"cost_variability"`
	CommitmentRisk   RiskLevel `json:"commitment_risk"`
}

// ResultMetrics are aggregate metrics over the chosen strategy set
type ResultMetrics struct {
	StrategyCount      int                      `json:"strategy_count"`
	CategoryHistogram  map[PurchaseCategory]int `json:"category_histogram"`
	AverageUtilization float64                  `json:"average_utilization"`
	RiskHistogram      map[RiskLevel]int        `json:"risk_histogram"`
}

// ScenarioSummary is a compact description of an alternative scenario
type ScenarioSummary struct {
	ScenarioID  string             `json:"scenario_id"`
	Name        string             `json:"name"`
	Score       float64            `json:"score"`
	MonthlyCost float64            `json:"monthly_cost"`
	Strategies  []PurchaseStrategy `json:"strategies"`
}

// OptimizationResult is the optimizer output
type OptimizationResult struct {
	ID               string             `json:"id"`
	SelectedScenario string             `json:"selected_scenario"`
	OptimalStrategy  []PurchaseStrategy `json:"optimal_strategy"`
	Alternatives     []ScenarioSummary  `json:"alternatives"`
	Evaluated        int                `json:"scenarios_evaluated"`
	CostSavings      CostSavings        `json:"cost_savings"`
	RiskAssessment   RiskAssessment     `json:"risk_assessment"`
	Recommendations  []string           `json:"recommendations"`
	ConfidenceLevel  float64            `json:"confidence_level"`
	Metrics          ResultMetrics      `json:"metrics"`
	Score            ScoreBreakdown     `json:"score"`
	CostBreakdown    CostBreakdown      `json:"cost_breakdown"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

// CostLine is a monthly/annual cost pair
type CostLine struct {
	MonthlyCost float64 `json:"monthly_cost"`
	AnnualCost  float64 `json:"annual_cost"`
}

// CostBreakdown holds per-category and total cost
type CostBreakdown struct {
	ByCategory map[PurchaseCategory]CostLine `json:"by_category"`
	Total      CostLine                      `json:"total"`
	Baseline   CostLine                      `json:"baseline"`
}

// SavingsSummary compares the plan against running everything on-demand
type SavingsSummary struct {
	Monthly    float64 `json:"monthly"`
	Annual     float64 `json:"annual"`
	Percentage float64 `json:"percentage"`
}

// ConsumptionPlan is the orchestrator output
type ConsumptionPlan struct {
	ID                   string             `json:"id"`
	Name                 string             `json:"name"`
	PlanningHorizon      CommitmentTerm     `json:"planning_horizon"`
	CreatedAt            time.Time          `json:"created_at"`
	Workloads            []WorkloadPattern  `json:"workloads"`
	RecommendedPurchases []PurchaseStrategy `json:"recommended_purchases"`
	CostBreakdown        CostBreakdown      `json:"cost_breakdown"`
	NetMonthlyCost       float64            `json:"net_monthly_cost"`
	VsAllOnDemandSavings SavingsSummary     `json:"vs_all_on_demand_savings"`
	Risk                 RiskAssessment     `json:"risk"`
	Recommendations      []string           `json:"recommendations"`
	Insights             []string           `json:"insights"`
	Warnings             []string           `json:"warnings"`
	Optimization         OptimizationResult `json:"optimization"`
	BudgetImpact         *BudgetImpact      `json:"budget_impact,omitempty"`
}

// BudgetImpact compares plan cost with the active grant budget period
type BudgetImpact struct {
	GrantID               string  `json:"grant_id"`
	PeriodID              string  `json:"period_id"`
	MonthlyAllocation     float64 `json:"monthly_allocation"`
	PlanMonthlyCost       float64 `json:"plan_monthly_cost"`
	ProjectedUtilization  float64 `json:"projected_utilization"`
	ExceedsAllocation     bool    `json:"exceeds_allocation"`
	RemainingAfterPlanPct float64 `json:"remaining_after_plan_pct"`
}
