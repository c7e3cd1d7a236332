// Package budget implements the grant budget-period ledger and spend forecasting.
package budget

import (
	"fmt"
	"math"
	"time"

	"github.com/commitment-planner/internal/domain"
	"github.com/commitment-planner/internal/identity"
	"github.com/shopspring/decimal"
)

// Ledger generates budget periods and applies spend to them.
// It holds no grant state; callers serialize updates per grant.
type Ledger struct {
	ids      domain.IDGenerator
	clock    domain.Clock
	logger   domain.Logger
	warning  float64
	critical float64
}

// LedgerOption configures a Ledger
type LedgerOption func(*Ledger)

// WithThresholds overrides the default warning/critical thresholds for new periods
func WithThresholds(warning, critical float64) LedgerOption {
	return func(l *Ledger) {
		l.warning = warning
		l.critical = critical
	}
}

// WithLogger sets the ledger logger
func WithLogger(logger domain.Logger) LedgerOption {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// NewLedger creates a ledger. Nil ids/clock fall back to UUIDs and time.Now.
func NewLedger(ids domain.IDGenerator, clock domain.Clock, opts ...LedgerOption) *Ledger {
	if ids == nil {
		ids = identity.NewUUIDGenerator()
	}
	if clock == nil {
		clock = time.Now
	}
	l := &Ledger{
		ids:      ids,
		clock:    clock,
		logger:   domain.NopLogger{},
		warning:  domain.DefaultWarningThreshold,
		critical: domain.DefaultCriticalThreshold,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GeneratePeriods builds the grant's contiguous budget periods and stores them on the grant.
// Allocations are split in cents; the last period absorbs rounding so they sum to the budget.
func (l *Ledger) GeneratePeriods(grant *domain.Grant) ([]*domain.GrantBudgetPeriod, error) {
	if err := validateGrant(grant); err != nil {
		return nil, err
	}
	if len(grant.Periods) > 0 {
		return nil, domain.NewValidationError("periods", "grant already has budget periods")
	}

	periodType := grant.BudgetPeriodType
	if periodType == "" {
		periodType = domain.MonthlyPeriods
	}
	duration := grant.ProjectDurationMonths
	length := periodType.Months()
	count := (duration + length - 1) / length

	end := grant.EndDate
	if end.IsZero() {
		end = AddMonths(grant.StartDate, duration)
	}

	if !end.After(AddMonths(grant.StartDate, (count-1)*length)) {
		return nil, domain.NewValidationError("end_date", "ends before the final budget period starts")
	}

	budget := decimal.NewFromFloat(grant.CloudComputeBudget)
	allocated := decimal.Zero

	periods := make([]*domain.GrantBudgetPeriod, 0, count)
	for i := 0; i < count; i++ {
		months := length
		if remaining := duration - i*length; remaining < length {
			months = remaining
		}

		start := AddMonths(grant.StartDate, i*length)
		periodEnd := AddMonths(grant.StartDate, i*length+months)
		if i == count-1 || periodEnd.After(end) {
			periodEnd = end
		}

		amount := budget.Mul(decimal.NewFromInt(int64(months))).
			Div(decimal.NewFromInt(int64(duration))).
			Round(2)
		if i == count-1 {
			amount = budget.Sub(allocated)
		}
		allocated = allocated.Add(amount)

		alloc := amount.InexactFloat64()
		periods = append(periods, &domain.GrantBudgetPeriod{
			ID:                l.ids.NewID("period"),
			GrantID:           grant.ID,
			Index:             i,
			Name:              periodName(periodType, i),
			StartDate:         start,
			EndDate:           periodEnd,
			AllocatedAmount:   alloc,
			RemainingBudget:   alloc,
			WarningThreshold:  l.warning,
			CriticalThreshold: l.critical,
			Status:            domain.PeriodOnTrack,
		})
	}

	grant.BudgetPeriodType = periodType
	grant.EndDate = end
	grant.Periods = periods

	l.logger.Info("Generated %d %s budget periods for grant %s", len(periods), periodType, grant.ID)
	return periods, nil
}

// AddMonths moves t forward by months, clamping the day to the last day of
// the target month: Jan 31 + 1 month is Feb 28 (29 in leap years).
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func validateGrant(grant *domain.Grant) error {
	if grant == nil {
		return domain.NewValidationError("grant", "must be specified")
	}
	if grant.StartDate.IsZero() {
		return domain.NewValidationError("start_date", "must be specified")
	}
	if grant.ProjectDurationMonths <= 0 {
		return domain.NewValidationError("project_duration_months", "must be greater than 0")
	}
	if invalidAmount(grant.CloudComputeBudget) {
		return domain.NewValidationError("cloud_compute_budget", "must be a non-negative number")
	}
	if !grant.EndDate.IsZero() && !grant.EndDate.After(grant.StartDate) {
		return domain.NewValidationError("end_date", "must be after start_date")
	}
	return nil
}

func periodName(t domain.BudgetPeriodType, i int) string {
	switch t {
	case domain.QuarterlyPeriods:
		return fmt.Sprintf("Quarter %d", i+1)
	case domain.AnnualPeriods:
		return fmt.Sprintf("Year %d", i+1)
	case domain.ProjectYearPeriods:
		return fmt.Sprintf("Project Year %d", i+1)
	default:
		return fmt.Sprintf("Month %d", i+1)
	}
}

// CurrentPeriod returns the first period containing now, else the first period.
// It returns nil only when the grant has no periods.
func CurrentPeriod(grant *domain.Grant, now time.Time) *domain.GrantBudgetPeriod {
	if grant == nil || len(grant.Periods) == 0 {
		return nil
	}
	for _, p := range grant.Periods {
		if p.Contains(now) {
			return p
		}
	}
	return grant.Periods[0]
}

// UpdateSpending adds spend to a period, recomputes its derived fields and
// returns any alerts the update raised
func (l *Ledger) UpdateSpending(period *domain.GrantBudgetPeriod, amount float64) ([]domain.BudgetAlert, error) {
	if period == nil {
		return nil, domain.NewValidationError("period", "must be specified")
	}
	if invalidAmount(amount) {
		return nil, domain.NewValidationError("amount", "must be a non-negative number")
	}

	now := l.clock()
	spent := decimal.NewFromFloat(period.SpentAmount).Add(decimal.NewFromFloat(amount)).Round(2)
	period.SpentAmount = spent.InexactFloat64()
	l.recompute(period, now)

	alerts := l.checkThresholds(period, now)
	if len(alerts) > 0 {
		l.logger.Warn("Period %s of grant %s raised %d budget alerts (utilization %.1f%%)",
			period.ID, period.GrantID, len(alerts), period.UtilizationRate)
	}
	return alerts, nil
}

// UpdateGrantSpending applies spend to the grant's current period
func (l *Ledger) UpdateGrantSpending(grant *domain.Grant, amount float64) (*domain.GrantBudgetPeriod, []domain.BudgetAlert, error) {
	if grant == nil {
		return nil, nil, domain.NewValidationError("grant", "must be specified")
	}
	period := CurrentPeriod(grant, l.clock())
	if period == nil {
		return nil, nil, domain.NewNotFoundError("budget period", grant.ID)
	}
	alerts, err := l.UpdateSpending(period, amount)
	if err != nil {
		return nil, nil, err
	}
	return period, alerts, nil
}

// RecordCommitment reserves budget for purchased commitments in a period
func (l *Ledger) RecordCommitment(period *domain.GrantBudgetPeriod, amount float64) error {
	if period == nil {
		return domain.NewValidationError("period", "must be specified")
	}
	if invalidAmount(amount) {
		return domain.NewValidationError("amount", "must be a non-negative number")
	}
	period.CommittedAmount = addMoney(period.CommittedAmount, amount)
	return nil
}

// RecordPending tracks charges that are incurred but not yet billed
func (l *Ledger) RecordPending(period *domain.GrantBudgetPeriod, amount float64) error {
	if period == nil {
		return domain.NewValidationError("period", "must be specified")
	}
	if invalidAmount(amount) {
		return domain.NewValidationError("amount", "must be a non-negative number")
	}
	period.PendingAmount = addMoney(period.PendingAmount, amount)
	return nil
}

// recompute refreshes remaining budget, utilization, burn rate, projection and status
func (l *Ledger) recompute(p *domain.GrantBudgetPeriod, now time.Time) {
	allocated := decimal.NewFromFloat(p.AllocatedAmount)
	spent := decimal.NewFromFloat(p.SpentAmount)

	p.RemainingBudget = allocated.Sub(spent).Round(2).InexactFloat64()

	switch {
	case allocated.IsPositive():
		p.UtilizationRate = spent.Div(allocated).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	case spent.IsPositive():
		p.UtilizationRate = 100
	default:
		p.UtilizationRate = 0
	}

	days := now.Sub(p.StartDate).Hours() / 24
	length := p.LengthDays()
	days = math.Max(1, math.Min(days, length))

	p.BurnRate = p.SpentAmount / days
	p.ProjectedSpend = math.Round(p.BurnRate*length*100) / 100
	p.Status = periodStatus(p)
}

func periodStatus(p *domain.GrantBudgetPeriod) domain.PeriodStatus {
	switch {
	case p.UtilizationRate >= 100:
		return domain.PeriodExceeded
	case p.UtilizationRate >= p.CriticalThreshold:
		return domain.PeriodCritical
	case p.UtilizationRate >= p.WarningThreshold:
		return domain.PeriodWarning
	default:
		return domain.PeriodOnTrack
	}
}

// checkThresholds emits a critical or warning threshold alert and an
// independent projection alert
func (l *Ledger) checkThresholds(p *domain.GrantBudgetPeriod, now time.Time) []domain.BudgetAlert {
	alerts := make([]domain.BudgetAlert, 0, 2)

	switch {
	case p.UtilizationRate >= p.CriticalThreshold:
		alerts = append(alerts, l.newAlert(p, now, domain.ThresholdAlert, domain.SeverityCritical, p.CriticalThreshold,
			fmt.Sprintf("%s has used %.1f%% of its allocation", p.Name, p.UtilizationRate),
			[]string{
				"Pause non-critical workloads",
				"Move interruptible jobs to spot capacity",
				"Request a budget reallocation from later periods",
			}))
	case p.UtilizationRate >= p.WarningThreshold:
		alerts = append(alerts, l.newAlert(p, now, domain.ThresholdAlert, domain.SeverityWarning, p.WarningThreshold,
			fmt.Sprintf("%s has used %.1f%% of its allocation", p.Name, p.UtilizationRate),
			[]string{
				"Review upcoming workload schedule",
				"Check for idle or oversized instances",
			}))
	}

	if p.ProjectedSpend > p.AllocatedAmount {
		alerts = append(alerts, l.newAlert(p, now, domain.ProjectionAlert, domain.SeverityWarning, 100,
			fmt.Sprintf("%s is projected to spend $%.2f against an allocation of $%.2f", p.Name, p.ProjectedSpend, p.AllocatedAmount),
			[]string{
				"Reduce burn rate to stay within the allocation",
				"Shift flexible work into the next period",
			}))
	}

	return alerts
}

func (l *Ledger) newAlert(
	p *domain.GrantBudgetPeriod,
	now time.Time,
	alertType domain.AlertType,
	severity domain.AlertSeverity,
	threshold float64,
	message string,
	actions []string,
) domain.BudgetAlert {
	return domain.BudgetAlert{
		ID:                 l.ids.NewID("alert"),
		GrantID:            p.GrantID,
		PeriodID:           p.ID,
		Type:               alertType,
		Severity:           severity,
		Message:            message,
		CurrentUtilization: p.UtilizationRate,
		ProjectedSpend:     p.ProjectedSpend,
		Threshold:          threshold,
		SuggestedActions:   actions,
		CreatedAt:          now.UTC(),
	}
}

// Summarize totals a grant's periods
func Summarize(grant *domain.Grant) domain.GrantSummary {
	summary := domain.GrantSummary{GrantID: grant.ID, Periods: len(grant.Periods)}

	var allocated, spent, committed, remaining decimal.Decimal
	for _, p := range grant.Periods {
		allocated = allocated.Add(decimal.NewFromFloat(p.AllocatedAmount))
		spent = spent.Add(decimal.NewFromFloat(p.SpentAmount))
		committed = committed.Add(decimal.NewFromFloat(p.CommittedAmount))
		remaining = remaining.Add(decimal.NewFromFloat(p.RemainingBudget))
		if p.Status != domain.PeriodOnTrack && p.Status != "" {
			summary.AtRiskPeriods++
		}
	}

	summary.TotalAllocated = allocated.Round(2).InexactFloat64()
	summary.TotalSpent = spent.Round(2).InexactFloat64()
	summary.TotalCommitted = committed.Round(2).InexactFloat64()
	summary.TotalRemaining = remaining.Round(2).InexactFloat64()
	if allocated.IsPositive() {
		summary.UtilizationRate = spent.Div(allocated).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	return summary
}

func addMoney(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

func invalidAmount(v float64) bool {
	return v < 0 || math.IsNaN(v) || math.IsInf(v, 0)
}
