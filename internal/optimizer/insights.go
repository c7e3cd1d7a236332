package optimizer

import (
	"fmt"
	"strings"

	"github.com/commitment-planner/internal/domain"
)

// InsightGenerator produces human-readable recommendations, insights and warnings
type InsightGenerator struct{}

// NewInsightGenerator creates a new insight generator
func NewInsightGenerator() *InsightGenerator {
	return &InsightGenerator{}
}

// Recommendations describes what to buy and what it saves
func (g *InsightGenerator) Recommendations(
	strategies []domain.PurchaseStrategy,
	savings domain.CostSavings,
	risk domain.RiskAssessment,
) []string {
	recs := make([]string, 0, len(strategies)+2)

	for _, s := range strategies {
		recs = append(recs, describeStrategy(s))
	}

	// Savings level
	switch {
	case savings.SavingsPercentage >= 50:
		recs = append(recs, fmt.Sprintf("Excellent savings: $%.2f/month (%.1f%%) versus all on-demand", savings.MonthlySavings, savings.SavingsPercentage))
	case savings.SavingsPercentage >= 20:
		recs = append(recs, fmt.Sprintf("Good savings: $%.2f/month (%.1f%%) versus all on-demand", savings.MonthlySavings, savings.SavingsPercentage))
	case savings.SavingsPercentage > 0:
		recs = append(recs, fmt.Sprintf("Modest savings of %.1f%% - review workload schedules before committing", savings.SavingsPercentage))
	default:
		recs = append(recs, "No savings versus on-demand - consider staying on-demand until usage stabilizes")
	}

	if risk.SpotInterruption > 0 {
		recs = append(recs, "Design spot workloads for interruption: checkpoint progress and use multiple availability zones")
	}

	return recs
}

func describeStrategy(s domain.PurchaseStrategy) string {
	switch s.Category {
	case domain.Reserved, domain.SavingsCommitment:
		terms := []string{string(s.Commitment)}
		if s.Payment != domain.NoPayment {
			terms = append(terms, string(s.Payment))
		}
		return fmt.Sprintf("Purchase %d x %s %s (%s) - %s",
			s.Quantity, s.InstanceFamily, s.Category, strings.Join(terms, ", "), s.Purpose)
	case domain.Spot:
		return fmt.Sprintf("Run up to %d x %s on spot at $%.4f/hr - %s",
			s.Quantity, s.InstanceFamily, s.HourlyCost, s.Purpose)
	default:
		return fmt.Sprintf("Keep %d x %s on-demand - %s", s.Quantity, s.InstanceFamily, s.Purpose)
	}
}

// Insights explains the shape of the workload set and the chosen plan
func (g *InsightGenerator) Insights(
	agg *Aggregate,
	selected domain.ScoredScenario,
	discounts domain.DiscountProfile,
) []string {
	insights := make([]string, 0)

	if agg.TotalHours > 0 {
		insights = append(insights, fmt.Sprintf("%.0f monthly compute hours across %d workloads (%.0f%% predictable, %.0f%% interruptible)",
			agg.TotalHours, len(agg.Usage),
			agg.PredictableHours/PredictableWeight/agg.TotalHours*100,
			agg.InterruptibleHours/agg.TotalHours*100))
	}

	if agg.GPUHours > 0 {
		insights = append(insights, fmt.Sprintf("GPU workloads account for %.0f hours/month", agg.GPUHours))
	}
	if agg.BurstHours > 0 {
		insights = append(insights, fmt.Sprintf("Burst workloads add %.0f overhead hours/month", agg.BurstHours))
	}

	if family := agg.DominantFamily(); family != "" {
		insights = append(insights, fmt.Sprintf("Dominant instance family is %s (%.0f hours/month)", family, agg.FamilyHours[family]))
	}

	insights = append(insights, fmt.Sprintf("Selected %s scenario (score %.1f)", selected.Scenario.Name, selected.Score.Total))

	if discounts.EDPDiscount > 0 {
		insights = append(insights, fmt.Sprintf("EDP discount of %.0f%% applied to reserved capacity", discounts.EDPDiscount*100))
	}
	if len(discounts.PPADiscounts) > 0 {
		insights = append(insights, fmt.Sprintf("PPA discounts applied to on-demand capacity for %d families", len(discounts.PPADiscounts)))
	}
	if discounts.AvailableCredits > 0 && selected.Score.MonthlyCost > 0 {
		insights = append(insights, fmt.Sprintf("Available credits of $%.2f cover %.1f months of this plan",
			discounts.AvailableCredits, discounts.AvailableCredits/selected.Score.MonthlyCost))
	}

	return insights
}

// Warnings identifies potential issues with the chosen plan
func (g *InsightGenerator) Warnings(
	agg *Aggregate,
	strategies []domain.PurchaseStrategy,
	risk domain.RiskAssessment,
	discounts domain.DiscountProfile,
	monthlyCost float64,
) []string {
	warnings := make([]string, 0)

	if risk.Overall == domain.RiskHigh {
		warnings = append(warnings, "More than half of purchased capacity is spot - expect interruptions during capacity crunches")
	}
	if risk.CostVariability == domain.RiskHigh {
		warnings = append(warnings, "High spot share makes monthly cost variable - budget for on-demand fallback")
	}
	if risk.CommitmentRisk == domain.RiskMedium {
		warnings = append(warnings, "3-year commitments lock in capacity - verify workloads will persist for the full term")
	}

	// Critical workloads riding only on spot
	for _, u := range agg.Usage {
		if !u.Workload.IsCritical() {
			continue
		}
		if !coveredBy(strategies, u.Workload.ID, domain.Reserved, domain.OnDemand, domain.SavingsCommitment) {
			warnings = append(warnings, fmt.Sprintf("Critical workload %s is not covered by committed or on-demand capacity", u.Workload.ID))
		}
	}

	for _, s := range strategies {
		if s.Category == domain.Spot && len(s.CoveredWorkloads) == 0 {
			warnings = append(warnings, fmt.Sprintf("Spot %s capacity has no interruptible workload to run - move that share to on-demand", s.InstanceFamily))
		}
		if s.Category == domain.Reserved && s.Quantity > 0 {
			needed := agg.TotalHours / HoursPerMonth
			if float64(s.Quantity) > needed*2 && needed > 0 {
				warnings = append(warnings, fmt.Sprintf("Reserved %s quantity (%d) exceeds twice the average concurrent demand", s.InstanceFamily, s.Quantity))
			}
		}
	}

	if discounts.MonthlyBudget > 0 && monthlyCost > discounts.MonthlyBudget {
		warnings = append(warnings, fmt.Sprintf("Plan cost $%.2f/month exceeds the monthly budget of $%.2f", monthlyCost, discounts.MonthlyBudget))
	}

	return warnings
}

func coveredBy(strategies []domain.PurchaseStrategy, workloadID string, categories ...domain.PurchaseCategory) bool {
	for _, s := range strategies {
		for _, c := range categories {
			if s.Category == c && s.Covers(workloadID) {
				return true
			}
		}
	}
	return false
}

// Summary creates a one-line summary of a plan
func (g *InsightGenerator) Summary(plan *domain.ConsumptionPlan) string {
	if len(plan.RecommendedPurchases) == 0 {
		return "No purchase strategy could be recommended. Try relaxing constraints."
	}
	return fmt.Sprintf(
		"%s: %d purchases, $%.2f/month (baseline $%.2f), saving %.1f%% with %s risk",
		plan.Optimization.SelectedScenario,
		len(plan.RecommendedPurchases),
		plan.CostBreakdown.Total.MonthlyCost,
		plan.CostBreakdown.Baseline.MonthlyCost,
		plan.VsAllOnDemandSavings.Percentage,
		plan.Risk.Overall,
	)
}
