package optimizer

import (
	"math"

	"github.com/commitment-planner/internal/domain"
	"github.com/commitment-planner/internal/provider"
)

// Heuristic per-vCPU on-demand rates used for the all-on-demand baseline
const (
	BaselineGPURate     = 3.0
	BaselineComputeRate = 0.15
	BaselineMemoryRate  = 0.12
	BaselineGeneralRate = 0.10

	// MaxSavingsPercentage keeps the savings percentage strictly below 100
	MaxSavingsPercentage = 99.99
)

// CostAccountant computes plan cost and savings
type CostAccountant struct{}

// NewCostAccountant creates a new cost accountant
func NewCostAccountant() *CostAccountant {
	return &CostAccountant{}
}

// StrategyMonthlyCost is hourly × 720 × max(quantity, 1) × utilization
func StrategyMonthlyCost(s domain.PurchaseStrategy) float64 {
	qty := s.Quantity
	if qty < 1 {
		qty = 1
	}
	return s.HourlyCost * HoursPerMonth * float64(qty) * (s.EstimatedUtilization / 100)
}

// MonthlyCost sums the monthly cost of a strategy set
func (a *CostAccountant) MonthlyCost(strategies []domain.PurchaseStrategy) float64 {
	var total float64
	for _, s := range strategies {
		total += StrategyMonthlyCost(s)
	}
	return total
}

// Breakdown returns per-category and total cost, with the baseline set
func (a *CostAccountant) Breakdown(strategies []domain.PurchaseStrategy, baseline float64) domain.CostBreakdown {
	byCategory := make(map[domain.PurchaseCategory]domain.CostLine)
	var total float64
	for _, s := range strategies {
		monthly := StrategyMonthlyCost(s)
		line := byCategory[s.Category]
		line.MonthlyCost += monthly
		byCategory[s.Category] = line
		total += monthly
	}

	for cat, line := range byCategory {
		line.MonthlyCost = roundCents(line.MonthlyCost)
		line.AnnualCost = line.MonthlyCost * 12
		byCategory[cat] = line
	}

	return domain.CostBreakdown{
		ByCategory: byCategory,
		Total:      costLine(total),
		Baseline:   costLine(baseline),
	}
}

// Baseline is the all-on-demand cost of the workloads, priced per vCPU
func (a *CostAccountant) Baseline(agg *Aggregate) float64 {
	var total float64
	for _, u := range agg.Usage {
		res := u.Workload.Resources
		total += BaselineRate(res) * float64(res.VCPU) * u.MonthlyHours
	}
	return total
}

// BaselineRate picks the per-vCPU hourly rate for a requirement
func BaselineRate(req domain.ResourceRequirement) float64 {
	switch {
	case req.GPURequired:
		return BaselineGPURate
	case req.VCPU >= provider.ComputeVCPUThreshold:
		return BaselineComputeRate
	case req.MemoryPerVCPU() > provider.MemoryRatioThreshold:
		return BaselineMemoryRate
	default:
		return BaselineGeneralRate
	}
}

// Savings compares the optimized monthly cost against the baseline.
// Annual savings are always exactly twelve times monthly savings.
func (a *CostAccountant) Savings(baseline, optimized float64) domain.CostSavings {
	monthly := roundCents(math.Max(0, baseline-optimized))
	pct := 0.0
	if baseline > 0 {
		pct = math.Min(monthly/baseline*100, MaxSavingsPercentage)
	}
	return domain.CostSavings{
		MonthlySavings:    monthly,
		AnnualSavings:     monthly * 12,
		SavingsPercentage: roundCents(pct),
	}
}

func costLine(monthly float64) domain.CostLine {
	m := roundCents(monthly)
	return domain.CostLine{MonthlyCost: m, AnnualCost: m * 12}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
