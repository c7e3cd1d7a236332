package domain

import (
	"strings"
	"time"
)

// BudgetPeriodType is the granularity of grant budget periods
type BudgetPeriodType string

const (
	MonthlyPeriods     BudgetPeriodType = "monthly"
	QuarterlyPeriods   BudgetPeriodType = "quarterly"
	AnnualPeriods      BudgetPeriodType = "annual"
	ProjectYearPeriods BudgetPeriodType = "project-year"
)

// ParseBudgetPeriodType parses a string into a BudgetPeriodType.
// Returns MonthlyPeriods as default if the string doesn't match.
func ParseBudgetPeriodType(s string) BudgetPeriodType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quarterly", "quarter":
		return QuarterlyPeriods
	case "annual", "yearly":
		return AnnualPeriods
	case "project-year", "project_year", "projectyear":
		return ProjectYearPeriods
	default:
		return MonthlyPeriods
	}
}

// Months returns the nominal length of a period in months
func (t BudgetPeriodType) Months() int {
	switch t {
	case QuarterlyPeriods:
		return 3
	case AnnualPeriods, ProjectYearPeriods:
		return 12
	default:
		return 1
	}
}

// Default alert thresholds, in percent of the period allocation
const (
	DefaultWarningThreshold  = 80.0
	DefaultCriticalThreshold = 90.0
)

// PeriodStatus summarizes a period's health
type PeriodStatus string

const (
	PeriodOnTrack  PeriodStatus = "on_track"
	PeriodWarning  PeriodStatus = "warning"
	PeriodCritical PeriodStatus = "critical"
	PeriodExceeded PeriodStatus = "exceeded"
)

// Grant is a time-boxed funding allocation
type Grant struct {
	ID                    string               `json:"id" yaml:"id"`
	Name                  string               `json:"name" yaml:"name"`
	StartDate             time.Time            `json:"start_date" yaml:"start_date"`
	EndDate               time.Time            `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	ProjectDurationMonths int                  `json:"project_duration_months" yaml:"project_duration_months"`
	BudgetPeriodType      BudgetPeriodType     `json:"budget_period_type" yaml:"budget_period_type"`
	TotalBudget           float64              `json:"total_budget,omitempty" yaml:"total_budget,omitempty"`
	CloudComputeBudget    float64              `json:"cloud_compute_budget" yaml:"cloud_compute_budget"`
	Periods               []*GrantBudgetPeriod `json:"periods,omitempty" yaml:"periods,omitempty"`
}

// Clone returns a deep copy of the grant so callers can evaluate without mutating
func (g *Grant) Clone() *Grant {
	if g == nil {
		return nil
	}
	cp := *g
	cp.Periods = make([]*GrantBudgetPeriod, len(g.Periods))
	for i, p := range g.Periods {
		pc := *p
		cp.Periods[i] = &pc
	}
	return &cp
}

// GrantBudgetPeriod is one contiguous budget window of a grant.
// StartDate is inclusive, EndDate exclusive.
type GrantBudgetPeriod struct {
	ID                string       `json:"id" yaml:"id"`
	GrantID           string       `json:"grant_id" yaml:"grant_id"`
	Index             int          `json:"index" yaml:"index"`
	Name              string       `json:"name" yaml:"name"`
	StartDate         time.Time    `json:"start_date" yaml:"start_date"`
	EndDate           time.Time    `json:"end_date" yaml:"end_date"`
	AllocatedAmount   float64      `json:"allocated_amount" yaml:"allocated_amount"`
	SpentAmount       float64      `json:"spent_amount" yaml:"spent_amount"`
	CommittedAmount   float64      `json:"committed_amount" yaml:"committed_amount"`
	PendingAmount     float64      `json:"pending_amount" yaml:"pending_amount"`
	RemainingBudget   float64      `json:"remaining_budget" yaml:"remaining_budget"`
	UtilizationRate   float64      `json:"utilization_rate" yaml:"utilization_rate"`
	BurnRate          float64      `json:"burn_rate" yaml:"burn_rate"`
	ProjectedSpend    float64      `json:"projected_spend" yaml:"projected_spend"`
	WarningThreshold  float64      `json:"warning_threshold" yaml:"warning_threshold"`
	CriticalThreshold float64      `json:"critical_threshold" yaml:"critical_threshold"`
	Status            PeriodStatus `json:"status" yaml:"status"`
}

// Contains reports whether t falls within [StartDate, EndDate)
func (p *GrantBudgetPeriod) Contains(t time.Time) bool {
	return !t.Before(p.StartDate) && t.Before(p.EndDate)
}

// LengthDays returns the period length in days (at least 1)
func (p *GrantBudgetPeriod) LengthDays() float64 {
	days := p.EndDate.Sub(p.StartDate).Hours() / 24
	if days < 1 {
		return 1
	}
	return days
}

// AvailableBudget is what remains after spend, commitments and pending charges
func (p *GrantBudgetPeriod) AvailableBudget() float64 {
	return p.RemainingBudget - p.CommittedAmount - p.PendingAmount
}

// AlertType distinguishes threshold crossings from projections
type AlertType string

const (
	ThresholdAlert  AlertType = "threshold"
	ProjectionAlert AlertType = "projection"
)

// AlertSeverity of a budget alert
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// BudgetAlert is emitted by spend updates. It is a value, not stored state.
type BudgetAlert struct {
	ID                 string        `json:"id"`
	GrantID            string        `json:"grant_id"`
	PeriodID           string        `json:"period_id"`
	Type               AlertType     `json:"type"`
	Severity           AlertSeverity `json:"severity"`
	Message            string        `json:"message"`
	CurrentUtilization float64       `json:"current_utilization"`
	ProjectedSpend     float64       `json:"projected_spend"`
	Threshold          float64       `json:"threshold"`
	SuggestedActions   []string      `json:"suggested_actions"`
	CreatedAt          time.Time     `json:"created_at"`
}

// MonthlySpend is one month of observed spend
type MonthlySpend struct {
	Month           string             `json:"month" yaml:"month"` // YYYY-MM
	GrantBreakdown  map[string]float64 `json:"grant_breakdown,omitempty" yaml:"grant_breakdown,omitempty"`
	TotalSpent      float64            `json:"total_spent" yaml:"total_spent"`
	UtilizationRate float64            `json:"utilization_rate,omitempty" yaml:"utilization_rate,omitempty"`
}

// ForecastInput is everything a forecaster needs
type ForecastInput struct {
	GrantID         string         `json:"grant_id" yaml:"grant_id"`
	History         []MonthlySpend `json:"history" yaml:"history"`
	CurrentSpent    float64        `json:"current_spent" yaml:"current_spent"`
	RemainingMonths float64        `json:"remaining_months" yaml:"remaining_months"`
	Allocation      float64        `json:"allocation" yaml:"allocation"`
	AsOf            time.Time      `json:"as_of" yaml:"as_of"`
}

// ForecastScenario is one weighted branch of a forecast
type ForecastScenario struct {
	Name               string   `json:"name"`
	Multiplier         float64  `json:"multiplier"`
	Probability        float64  `json:"probability"`
	ProjectedTotal     float64  `json:"projected_total"`
	RecommendedActions []string `json:"recommended_actions"`
}

// BudgetForecast is a forecaster output
type BudgetForecast struct {
	GrantID           string             `json:"grant_id"`
	Method            string             `json:"method"`
	AvgMonthlySpend   float64            `json:"avg_monthly_spend"`
	ProjectedTotal    float64            `json:"projected_total"`
	WeightedProjected float64            `json:"weighted_projected"`
	Confidence        float64            `json:"confidence"`
	Scenarios         []ForecastScenario `json:"scenarios"`
	ExceedsAllocation bool               `json:"exceeds_allocation"`
	ExhaustionDate    *time.Time         `json:"exhaustion_date,omitempty"`
	GeneratedAt       time.Time          `json:"generated_at"`
}

// GrantSummary aggregates a grant's periods
type GrantSummary struct {
	GrantID         string  `json:"grant_id"`
	Periods         int     `json:"periods"`
	TotalAllocated  float64 `json:"total_allocated"`
	TotalSpent      float64 `json:"total_spent"`
	TotalCommitted  float64 `json:"total_committed"`
	TotalRemaining  float64 `json:"total_remaining"`
	UtilizationRate float64 `json:"utilization_rate"`
	AtRiskPeriods   int     `json:"at_risk_periods"`
}
