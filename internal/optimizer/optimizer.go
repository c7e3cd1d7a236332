package optimizer

import (
	"context"
	"math"
	"time"

	"github.com/commitment-planner/internal/domain"
	"github.com/commitment-planner/internal/identity"
)

// Confidence heuristic bounds
const (
	MinConfidence  = 60.0
	MaxConfidence  = 95.0
	baseConfidence = 75.0
)

// Options configures an Optimizer
type Options struct {
	Pricing   domain.PricingCatalog
	Instances domain.InstanceCatalog
	IDs       domain.IDGenerator
	Clock     domain.Clock
	Logger    domain.Logger
	Templates []Template
	Weights   Weights
}

// Request is the optimizer input
type Request struct {
	Workloads       []domain.WorkloadPattern       `json:"workloads" yaml:"workloads"`
	Constraints     domain.OptimizationConstraints `json:"constraints" yaml:"constraints"`
	Discounts       domain.DiscountProfile         `json:"discounts" yaml:"discounts"`
	PlanningHorizon domain.CommitmentTerm          `json:"planning_horizon,omitempty" yaml:"planning_horizon,omitempty"`
}

// Optimizer selects a purchase strategy for a workload set
type Optimizer struct {
	aggregator *Aggregator
	generator  *Generator
	filter     *ConstraintFilter
	scorer     *Scorer
	accountant *CostAccountant
	assessor   *RiskAssessor
	insights   *InsightGenerator
	ids        domain.IDGenerator
	clock      domain.Clock
	logger     domain.Logger
}

// New creates an optimizer. Pricing and Instances are required.
func New(opts Options) *Optimizer {
	if opts.IDs == nil {
		opts.IDs = identity.NewUUIDGenerator()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = domain.NopLogger{}
	}

	accountant := NewCostAccountant()
	return &Optimizer{
		aggregator: NewAggregator(opts.Instances),
		generator:  NewGenerator(opts.Pricing, opts.IDs, opts.Templates),
		filter:     NewConstraintFilter(opts.Pricing, opts.Logger),
		scorer:     NewScorer(opts.Instances, accountant, opts.Weights),
		accountant: accountant,
		assessor:   NewRiskAssessor(),
		insights:   NewInsightGenerator(),
		ids:        opts.IDs,
		clock:      opts.Clock,
		logger:     opts.Logger,
	}
}

// evaluation carries intermediate state shared with the orchestrator
type evaluation struct {
	agg      *Aggregate
	ranked   []domain.ScoredScenario
	baseline float64
	result   *domain.OptimizationResult
}

// Optimize runs aggregation, generation, filtering, scoring and accounting
func (o *Optimizer) Optimize(ctx context.Context, req Request) (*domain.OptimizationResult, error) {
	ev, err := o.evaluate(ctx, req)
	if err != nil {
		return nil, err
	}
	return ev.result, nil
}

func (o *Optimizer) evaluate(ctx context.Context, req Request) (*evaluation, error) {
	if err := validateRequest(req); err != nil {
		return nil, domain.NewAnalysisError("validation", err)
	}

	agg, err := o.aggregator.Aggregate(o.normalize(req.Workloads))
	if err != nil {
		return nil, domain.NewAnalysisError("aggregate", err)
	}

	scenarios, err := o.generator.Generate(ctx, agg, req.Discounts)
	if err != nil {
		return nil, domain.NewAnalysisError("generate", err)
	}

	candidates, err := o.filter.Apply(scenarios, req.Constraints, req.PlanningHorizon, req.Discounts)
	if err != nil {
		return nil, domain.NewAnalysisError("filter", err)
	}
	o.logger.Debug("Generated %d scenarios, %d satisfy constraints", len(scenarios), len(candidates))

	ranked := o.scorer.Rank(candidates, agg, req.Constraints)
	best := ranked[0]
	strategies := best.Scenario.Strategies

	baseline := o.accountant.Baseline(agg)
	breakdown := o.accountant.Breakdown(strategies, baseline)
	savings := o.accountant.Savings(baseline, breakdown.Total.MonthlyCost)
	risk := o.assessor.Assess(strategies)

	result := &domain.OptimizationResult{
		ID:               o.ids.NewID("opt"),
		SelectedScenario: best.Scenario.ID,
		OptimalStrategy:  strategies,
		Alternatives:     alternatives(ranked),
		Evaluated:        len(scenarios),
		CostSavings:      savings,
		RiskAssessment:   risk,
		Recommendations:  o.insights.Recommendations(strategies, savings, risk),
		ConfidenceLevel:  Confidence(len(agg.Usage), risk, savings),
		Metrics:          resultMetrics(strategies),
		Score:            best.Score,
		CostBreakdown:    breakdown,
		GeneratedAt:      o.clock().UTC(),
	}

	o.logger.Info("Selected %s scenario: $%.2f/month, %.1f%% savings, confidence %.0f",
		result.SelectedScenario, breakdown.Total.MonthlyCost, savings.SavingsPercentage, result.ConfidenceLevel)

	return &evaluation{agg: agg, ranked: ranked, baseline: baseline, result: result}, nil
}

// normalize copies the workloads and fills in missing identities
func (o *Optimizer) normalize(workloads []domain.WorkloadPattern) []domain.WorkloadPattern {
	result := make([]domain.WorkloadPattern, len(workloads))
	copy(result, workloads)
	for i := range result {
		if result[i].ID == "" {
			result[i].ID = o.ids.NewID("workload")
		}
	}
	return result
}

func validateRequest(req Request) error {
	if err := ValidateConstraints(req.Constraints); err != nil {
		return err
	}
	if err := ValidateDiscounts(req.Discounts); err != nil {
		return err
	}
	switch req.PlanningHorizon {
	case domain.NoCommitment, domain.OneYear, domain.ThreeYear:
		return nil
	default:
		return domain.NewValidationError("planning_horizon", "must be 1yr or 3yr")
	}
}

// Confidence scores how much the result can be trusted, within [60, 95]
func Confidence(workloads int, risk domain.RiskAssessment, savings domain.CostSavings) float64 {
	c := baseConfidence + math.Min(10, 2*float64(workloads))

	switch risk.Overall {
	case domain.RiskHigh:
		c -= 10
	case domain.RiskMedium:
		c -= 5
	}

	if savings.SavingsPercentage > 20 {
		c += 5
	}

	return math.Max(MinConfidence, math.Min(MaxConfidence, c))
}

func alternatives(ranked []domain.ScoredScenario) []domain.ScenarioSummary {
	result := make([]domain.ScenarioSummary, 0, MaxAlternatives)
	for _, r := range ranked[1:] {
		if len(result) == MaxAlternatives {
			break
		}
		result = append(result, domain.ScenarioSummary{
			ScenarioID:  r.Scenario.ID,
			Name:        r.Scenario.Name,
			Score:       r.Score.Total,
			MonthlyCost: roundCents(r.Score.MonthlyCost),
			Strategies:  r.Scenario.Strategies,
		})
	}
	return result
}

func resultMetrics(strategies []domain.PurchaseStrategy) domain.ResultMetrics {
	metrics := domain.ResultMetrics{
		StrategyCount:     len(strategies),
		CategoryHistogram: make(map[domain.PurchaseCategory]int),
		RiskHistogram:     make(map[domain.RiskLevel]int),
	}
	var util float64
	for _, s := range strategies {
		metrics.CategoryHistogram[s.Category]++
		metrics.RiskHistogram[s.Risk]++
		util += s.EstimatedUtilization
	}
	if len(strategies) > 0 {
		metrics.AverageUtilization = util / float64(len(strategies))
	}
	return metrics
}
