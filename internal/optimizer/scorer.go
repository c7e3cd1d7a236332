package optimizer

import (
	"math"
	"sort"
	"strings"

	"github.com/commitment-planner/internal/domain"
)

// Weights for the scenario scoring algorithm
type Weights struct {
	Cost           float64 `json:"cost" yaml:"cost"`
	Risk           float64 `json:"risk" yaml:"risk"`
	Flexibility    float64 `json:"flexibility" yaml:"flexibility"`
	Reliability    float64 `json:"reliability" yaml:"reliability"`
	Specialization float64 `json:"specialization" yaml:"specialization"`
}

// Preference overrides applied on top of the base weights
const (
	PrioritizedCostWeight = 0.40
	LowRiskWeight         = 0.30
	FlexibilityWeight     = 0.30
	ReliabilityWeight     = 0.30

	GPUBonus   = 20.0
	BurstBonus = 15.0

	// MaxAlternatives is how many runner-up scenarios a result carries
	MaxAlternatives = 3
)

// DefaultWeights returns the default scoring weights
func DefaultWeights() Weights {
	return Weights{
		Cost:           0.25,
		Risk:           0.15,
		Flexibility:    0.15,
		Reliability:    0.15,
		Specialization: 0.30,
	}
}

// Per-strategy sub-score weights
var (
	riskWeights = map[domain.RiskLevel]float64{
		domain.RiskLow:    1.0,
		domain.RiskMedium: 0.7,
		domain.RiskHigh:   0.3,
	}
	flexibilityWeights = map[domain.PurchaseCategory]float64{
		domain.OnDemand:          1.0,
		domain.Spot:              0.8,
		domain.SavingsCommitment: 0.6,
		domain.Reserved:          0.4,
	}
	reliabilityWeights = map[domain.PurchaseCategory]float64{
		domain.Reserved:          1.0,
		domain.SavingsCommitment: 0.9,
		domain.OnDemand:          0.8,
		domain.Spot:              0.5,
	}

	// Purpose keywords that signal a specialized strategy
	specializationKeywords = []string{"gpu", "burst", "ml ", "machine learning", "training", "scaling"}
)

// Scorer scores and ranks scenarios
type Scorer struct {
	catalog    domain.InstanceCatalog
	accountant *CostAccountant
	base       Weights
}

// NewScorer creates a scorer. A zero base uses DefaultWeights.
func NewScorer(catalog domain.InstanceCatalog, accountant *CostAccountant, base Weights) *Scorer {
	if base == (Weights{}) {
		base = DefaultWeights()
	}
	return &Scorer{catalog: catalog, accountant: accountant, base: base}
}

// WeightsFor shifts the base weights toward the caller's preferences
func (s *Scorer) WeightsFor(c domain.OptimizationConstraints) Weights {
	w := s.base
	if c.PrioritizeCost {
		w.Cost = PrioritizedCostWeight
	}
	if c.RiskTolerance == domain.RiskLow {
		w.Risk = LowRiskWeight
	}
	if c.FlexibilityRequired {
		w.Flexibility = FlexibilityWeight
	}
	if c.ReliabilityRequired {
		w.Reliability = ReliabilityWeight
	}
	return w
}

// Score calculates a composite score for a scenario
func (s *Scorer) Score(sc domain.Scenario, agg *Aggregate, c domain.OptimizationConstraints) domain.ScoreBreakdown {
	breakdown := domain.ScoreBreakdown{}
	w := s.WeightsFor(c)

	// 1. Cost (0-100): cheaper is better
	breakdown.MonthlyCost = s.accountant.MonthlyCost(sc.Strategies)
	breakdown.CostScore = math.Max(0, 100-breakdown.MonthlyCost/100)

	// 2-4. Means of per-strategy weights
	breakdown.RiskScore = meanScore(sc.Strategies, func(st domain.PurchaseStrategy) float64 {
		return riskWeights[st.Risk]
	})
	breakdown.FlexibilityScore = meanScore(sc.Strategies, func(st domain.PurchaseStrategy) float64 {
		return flexibilityWeights[st.Category]
	})
	breakdown.ReliabilityScore = meanScore(sc.Strategies, func(st domain.PurchaseStrategy) float64 {
		return reliabilityWeights[st.Category]
	})

	// 5. Specialization fit
	breakdown.SpecializationScore = s.specializationScore(sc)

	// Archetype bonus when the matching need is present
	switch {
	case sc.ID == GPUSpecialized && agg.GPUHours > 0:
		breakdown.Bonus = GPUBonus
	case sc.ID == BurstSpecialized && agg.HasBurst():
		breakdown.Bonus = BurstBonus
	}

	breakdown.Total = breakdown.CostScore*w.Cost +
		breakdown.RiskScore*w.Risk +
		breakdown.FlexibilityScore*w.Flexibility +
		breakdown.ReliabilityScore*w.Reliability +
		breakdown.SpecializationScore*w.Specialization +
		breakdown.Bonus

	return breakdown
}

func (s *Scorer) specializationScore(sc domain.Scenario) float64 {
	score := 50.0

	for _, st := range sc.Strategies {
		if s.catalog.Class(st.InstanceFamily).IsSpecialized() {
			score += 20
			break
		}
	}

	for _, st := range sc.Strategies {
		if signalsSpecialization(st.Purpose) {
			score += 20
			break
		}
	}

	if len(sc.Categories()) >= 3 {
		score += 10
	}

	return math.Min(score, 100)
}

func signalsSpecialization(purpose string) bool {
	p := strings.ToLower(purpose) + " "
	for _, kw := range specializationKeywords {
		if strings.Contains(p, kw) {
			return true
		}
	}
	return false
}

func meanScore(strategies []domain.PurchaseStrategy, weight func(domain.PurchaseStrategy) float64) float64 {
	if len(strategies) == 0 {
		return 0
	}
	var sum float64
	for _, st := range strategies {
		sum += weight(st)
	}
	return sum / float64(len(strategies)) * 100
}

// Rank scores every scenario and sorts by total descending.
// Equal totals keep generation order.
func (s *Scorer) Rank(scenarios []domain.Scenario, agg *Aggregate, c domain.OptimizationConstraints) []domain.ScoredScenario {
	ranked := make([]domain.ScoredScenario, len(scenarios))
	for i, sc := range scenarios {
		ranked[i] = domain.ScoredScenario{Scenario: sc, Score: s.Score(sc, agg, c)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score.Total > ranked[j].Score.Total
	})

	return ranked
}
