package budget

import (
	"math"
	"sort"
	"time"

	"github.com/commitment-planner/internal/domain"
)

// Forecast defaults
const (
	DefaultForecastWindow = 3
	TrailingAverageMethod = "trailing-average"

	minForecastConfidence = 60.0
	maxForecastConfidence = 100.0
	daysPerMonth          = 30
)

// ScenarioBranch is a fixed forecast branch
type ScenarioBranch struct {
	Name        string
	Multiplier  float64
	Probability float64
	Actions     []string
}

// DefaultBranches returns the conservative, expected and high-activity branches
func DefaultBranches() []ScenarioBranch {
	return []ScenarioBranch{
		{
			Name:        "conservative",
			Multiplier:  0.8,
			Probability: 0.3,
			Actions: []string{
				"Maintain current commitment levels",
				"Carry projected surplus into later periods",
			},
		},
		{
			Name:        "expected",
			Multiplier:  1.0,
			Probability: 0.5,
			Actions: []string{
				"Review spend against allocation monthly",
				"Right-size reserved capacity at renewal",
			},
		},
		{
			Name:        "high-activity",
			Multiplier:  1.3,
			Probability: 0.2,
			Actions: []string{
				"Shift interruptible workloads to spot capacity",
				"Defer non-critical jobs to the next period",
				"Request a budget reallocation before exhaustion",
			},
		},
	}
}

// TrailingAverageForecaster projects spend from the mean of the trailing months.
// It implements domain.Forecaster.
type TrailingAverageForecaster struct {
	window   int
	branches []ScenarioBranch
	clock    domain.Clock
}

// NewTrailingAverageForecaster creates a forecaster. A window <= 0 uses DefaultForecastWindow.
func NewTrailingAverageForecaster(window int, clock domain.Clock) *TrailingAverageForecaster {
	if window <= 0 {
		window = DefaultForecastWindow
	}
	if clock == nil {
		clock = time.Now
	}
	return &TrailingAverageForecaster{window: window, branches: DefaultBranches(), clock: clock}
}

// Method names the forecasting model
func (f *TrailingAverageForecaster) Method() string {
	return TrailingAverageMethod
}

// Project forecasts total spend at the end of the remaining months
func (f *TrailingAverageForecaster) Project(input domain.ForecastInput) (*domain.BudgetForecast, error) {
	if len(input.History) == 0 {
		return nil, domain.NewInsufficientDataError("forecast", "spend history is empty")
	}
	if input.RemainingMonths < 0 {
		return nil, domain.NewValidationError("remaining_months", "must not be negative")
	}

	trailing := f.trailing(input.History)
	avg, variance := meanVariance(trailing)

	now := input.AsOf
	if now.IsZero() {
		now = f.clock()
	}

	forecast := &domain.BudgetForecast{
		GrantID:         input.GrantID,
		Method:          f.Method(),
		AvgMonthlySpend: roundCents(avg),
		ProjectedTotal:  roundCents(input.CurrentSpent + avg*input.RemainingMonths),
		Confidence:      confidence(avg, variance),
		Scenarios:       make([]domain.ForecastScenario, 0, len(f.branches)),
		GeneratedAt:     now.UTC(),
	}

	var weighted float64
	for _, b := range f.branches {
		projected := input.CurrentSpent + avg*b.Multiplier*input.RemainingMonths
		weighted += b.Probability * projected
		forecast.Scenarios = append(forecast.Scenarios, domain.ForecastScenario{
			Name:               b.Name,
			Multiplier:         b.Multiplier,
			Probability:        b.Probability,
			ProjectedTotal:     roundCents(projected),
			RecommendedActions: b.Actions,
		})
	}
	forecast.WeightedProjected = roundCents(weighted)

	if input.Allocation > 0 && forecast.ProjectedTotal > input.Allocation {
		forecast.ExceedsAllocation = true
		exhaustion := exhaustionDate(now, input.CurrentSpent, input.Allocation, avg)
		forecast.ExhaustionDate = &exhaustion
	}

	return forecast, nil
}

// trailing returns the last window months in chronological order
func (f *TrailingAverageForecaster) trailing(history []domain.MonthlySpend) []domain.MonthlySpend {
	sorted := make([]domain.MonthlySpend, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Month < sorted[j].Month
	})
	if len(sorted) > f.window {
		sorted = sorted[len(sorted)-f.window:]
	}
	return sorted
}

// meanVariance returns the mean and population variance of monthly totals
func meanVariance(history []domain.MonthlySpend) (float64, float64) {
	var sum float64
	for _, h := range history {
		sum += h.TotalSpent
	}
	mean := sum / float64(len(history))

	var sq float64
	for _, h := range history {
		d := h.TotalSpent - mean
		sq += d * d
	}
	return mean, sq / float64(len(history))
}

// confidence is 100 - variance/avg*100 clamped to [60, 100]
func confidence(avg, variance float64) float64 {
	if avg <= 0 {
		if variance == 0 {
			return maxForecastConfidence
		}
		return minForecastConfidence
	}
	c := 100 - variance/avg*100
	return roundCents(math.Max(minForecastConfidence, math.Min(maxForecastConfidence, c)))
}

// exhaustionDate estimates when spend reaches the allocation at the average rate
func exhaustionDate(asOf time.Time, spent, allocation, avg float64) time.Time {
	if spent >= allocation || avg <= 0 {
		return asOf.UTC()
	}
	months := (allocation - spent) / avg
	return asOf.Add(time.Duration(months * daysPerMonth * 24 * float64(time.Hour))).UTC()
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
