package optimizer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/commitment-planner/internal/budget"
	"github.com/commitment-planner/internal/domain"
)

// PlanRequest is the input of a consumption plan
type PlanRequest struct {
	Name            string                         `json:"name" yaml:"name"`
	Workloads       []domain.WorkloadPattern       `json:"workloads" yaml:"workloads"`
	Constraints     domain.OptimizationConstraints `json:"constraints" yaml:"constraints"`
	Discounts       *domain.DiscountProfile        `json:"discounts,omitempty" yaml:"discounts,omitempty"`
	PlanningHorizon domain.CommitmentTerm          `json:"planning_horizon,omitempty" yaml:"planning_horizon,omitempty"`
	Grant           *domain.Grant                  `json:"grant,omitempty" yaml:"grant,omitempty"`
}

// Orchestrator composes the optimizer into a consumption plan
type Orchestrator struct {
	optimizer        *Optimizer
	defaultHorizon   domain.CommitmentTerm
	defaultDiscounts domain.DiscountProfile
}

// NewOrchestrator creates an orchestrator. An empty horizon defaults to 1yr.
func NewOrchestrator(optimizer *Optimizer, defaultHorizon domain.CommitmentTerm, defaultDiscounts domain.DiscountProfile) *Orchestrator {
	if defaultHorizon == domain.NoCommitment {
		defaultHorizon = domain.OneYear
	}
	return &Orchestrator{
		optimizer:        optimizer,
		defaultHorizon:   defaultHorizon,
		defaultDiscounts: defaultDiscounts,
	}
}

// CreatePlan optimizes the workloads and assembles the plan record.
// The request grant is never mutated; budget impact is computed on a copy.
func (o *Orchestrator) CreatePlan(ctx context.Context, req PlanRequest) (*domain.ConsumptionPlan, error) {
	horizon := req.PlanningHorizon
	if horizon == domain.NoCommitment {
		horizon = o.defaultHorizon
	}
	discounts := o.defaultDiscounts
	if req.Discounts != nil {
		discounts = *req.Discounts
	}

	ev, err := o.optimizer.evaluate(ctx, Request{
		Workloads:       req.Workloads,
		Constraints:     req.Constraints,
		Discounts:       discounts,
		PlanningHorizon: horizon,
	})
	if err != nil {
		return nil, err
	}

	result := ev.result
	selected := ev.ranked[0]
	breakdown := result.CostBreakdown
	insights := o.optimizer.insights

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s plan", selected.Scenario.Name)
	}

	plan := &domain.ConsumptionPlan{
		ID:                   o.optimizer.ids.NewID("plan"),
		Name:                 name,
		PlanningHorizon:      horizon,
		CreatedAt:            result.GeneratedAt,
		Workloads:            ev.agg.Workloads(),
		RecommendedPurchases: result.OptimalStrategy,
		CostBreakdown:        breakdown,
		NetMonthlyCost:       NetMonthlyCost(breakdown.Total.MonthlyCost, discounts.AvailableCredits, horizon),
		VsAllOnDemandSavings: domain.SavingsSummary{
			Monthly:    result.CostSavings.MonthlySavings,
			Annual:     result.CostSavings.AnnualSavings,
			Percentage: result.CostSavings.SavingsPercentage,
		},
		Risk:            result.RiskAssessment,
		Recommendations: result.Recommendations,
		Insights:        insights.Insights(ev.agg, selected, discounts),
		Warnings:        insights.Warnings(ev.agg, result.OptimalStrategy, result.RiskAssessment, discounts, breakdown.Total.MonthlyCost),
		Optimization:    *result,
	}

	if req.Grant != nil {
		impact, warning := BudgetImpact(req.Grant.Clone(), plan.NetMonthlyCost, result.GeneratedAt)
		plan.BudgetImpact = impact
		if warning != "" {
			plan.Warnings = append(plan.Warnings, warning)
		}
	}

	return plan, nil
}

// NetMonthlyCost spreads available credits over the planning horizon
func NetMonthlyCost(monthly, credits float64, horizon domain.CommitmentTerm) float64 {
	months := horizon.Months()
	if months == 0 || credits <= 0 {
		return monthly
	}
	return roundCents(math.Max(0, monthly-credits/float64(months)))
}

// BudgetImpact compares the plan's monthly cost with the grant's current period.
// It returns a warning when the plan does not fit.
func BudgetImpact(grant *domain.Grant, planMonthly float64, now time.Time) (*domain.BudgetImpact, string) {
	period := budget.CurrentPeriod(grant, now)
	if period == nil {
		return nil, fmt.Sprintf("Grant %s has no budget periods; budget impact not evaluated", grant.ID)
	}

	months := period.LengthDays() / DaysPerMonth
	monthlyAllocation := period.AllocatedAmount / months

	impact := &domain.BudgetImpact{
		GrantID:           grant.ID,
		PeriodID:          period.ID,
		MonthlyAllocation: roundCents(monthlyAllocation),
		PlanMonthlyCost:   planMonthly,
	}
	if monthlyAllocation > 0 {
		impact.ProjectedUtilization = roundCents(planMonthly / monthlyAllocation * 100)
	}
	impact.ExceedsAllocation = planMonthly > monthlyAllocation

	remainingMonths := 0.0
	if period.Contains(now) {
		remainingMonths = period.EndDate.Sub(now).Hours() / 24 / DaysPerMonth
	} else if now.Before(period.StartDate) {
		remainingMonths = months
	}
	if period.AllocatedAmount > 0 {
		after := period.AvailableBudget() - planMonthly*remainingMonths
		impact.RemainingAfterPlanPct = roundCents(after / period.AllocatedAmount * 100)
	}

	if impact.ExceedsAllocation {
		return impact, fmt.Sprintf("Plan cost $%.2f/month exceeds the %s monthly allocation of $%.2f",
			planMonthly, period.Name, impact.MonthlyAllocation)
	}
	return impact, ""
}
