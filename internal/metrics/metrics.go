// Package metrics exposes Prometheus metrics for planning and budget tracking.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/commitment-planner/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names
const (
	PlansGeneratedTotal    = "planner_plans_generated_total"
	PlanFailuresTotal      = "planner_plan_failures_total"
	ScenariosEvaluated     = "planner_scenarios_evaluated_total"
	PlanDurationSeconds    = "planner_plan_duration_seconds"
	LastPlanSavingsPercent = "planner_last_plan_savings_percentage"
	BudgetAlertsTotal      = "planner_budget_alerts_total"
	PeriodUtilization      = "planner_period_utilization_percentage"
)

// Label names
const (
	LabelHorizon  = "horizon"
	LabelReason   = "reason"
	LabelType     = "type"
	LabelSeverity = "severity"
	LabelGrant    = "grant"
	LabelPeriod   = "period"
)

// Recorder owns the planner collectors. A nil *Recorder records nothing.
type Recorder struct {
	plansGenerated     *prometheus.CounterVec
	planFailures       *prometheus.CounterVec
	scenariosEvaluated prometheus.Counter
	planDuration       prometheus.Histogram
	lastSavings        prometheus.Gauge
	alerts             *prometheus.CounterVec
	utilization        *prometheus.GaugeVec
}

// NewRecorder creates the collectors and registers them with registry
func NewRecorder(registry prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		plansGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: PlansGeneratedTotal,
				Help: "Total number of consumption plans generated",
			},
			[]string{LabelHorizon},
		),
		planFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: PlanFailuresTotal,
				Help: "Total number of plan requests that failed",
			},
			[]string{LabelReason},
		),
		scenariosEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: ScenariosEvaluated,
			Help: "Total number of candidate scenarios scored",
		}),
		planDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    PlanDurationSeconds,
			Help:    "Time spent producing a consumption plan",
			Buckets: prometheus.DefBuckets,
		}),
		lastSavings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: LastPlanSavingsPercent,
			Help: "Savings percentage versus all on-demand of the last generated plan",
		}),
		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: BudgetAlertsTotal,
				Help: "Total number of budget alerts raised by spend updates",
			},
			[]string{LabelType, LabelSeverity},
		),
		utilization: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: PeriodUtilization,
				Help: "Utilization of a grant budget period after the last spend update",
			},
			[]string{LabelGrant, LabelPeriod},
		),
	}

	collectors := map[string]prometheus.Collector{
		PlansGeneratedTotal:    r.plansGenerated,
		PlanFailuresTotal:      r.planFailures,
		ScenariosEvaluated:     r.scenariosEvaluated,
		PlanDurationSeconds:    r.planDuration,
		LastPlanSavingsPercent: r.lastSavings,
		BudgetAlertsTotal:      r.alerts,
		PeriodUtilization:      r.utilization,
	}
	for _, name := range []string{
		PlansGeneratedTotal, PlanFailuresTotal, ScenariosEvaluated, PlanDurationSeconds,
		LastPlanSavingsPercent, BudgetAlertsTotal, PeriodUtilization,
	} {
		if err := registry.Register(collectors[name]); err != nil {
			return nil, fmt.Errorf("failed to register %s metric: %w", name, err)
		}
	}

	return r, nil
}

// ObservePlan records a successful plan
func (r *Recorder) ObservePlan(plan *domain.ConsumptionPlan, elapsed time.Duration) {
	if r == nil || plan == nil {
		return
	}
	r.plansGenerated.WithLabelValues(string(plan.PlanningHorizon)).Inc()
	r.scenariosEvaluated.Add(float64(plan.Optimization.Evaluated))
	r.planDuration.Observe(elapsed.Seconds())
	r.lastSavings.Set(plan.VsAllOnDemandSavings.Percentage)
}

// ObservePlanFailure records a failed plan request, labelled by error class
func (r *Recorder) ObservePlanFailure(err error) {
	if r == nil || err == nil {
		return
	}
	r.planFailures.WithLabelValues(FailureReason(err)).Inc()
}

// ObserveSpend records the alerts and resulting utilization of a spend update
func (r *Recorder) ObserveSpend(period *domain.GrantBudgetPeriod, alerts []domain.BudgetAlert) {
	if r == nil || period == nil {
		return
	}
	for _, a := range alerts {
		r.alerts.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
	}
	r.utilization.WithLabelValues(period.GrantID, period.ID).Set(period.UtilizationRate)
}

// FailureReason maps an error to a low-cardinality label value
func FailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrConstraintConflict):
		return "constraint_conflict"
	case errors.Is(err, domain.ErrInvalidInput):
		return "validation"
	case errors.Is(err, domain.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrPricingUnavailable):
		return "pricing"
	default:
		return "internal"
	}
}
