package optimizer

import (
	"math"

	"github.com/commitment-planner/internal/domain"
)

// Risk thresholds on the spot share of purchased capacity
const (
	HighRiskSpotFraction       = 0.50
	MediumRiskSpotFraction     = 0.20
	CostVariabilitySpotCeiling = 0.30
	MaxSpotInterruption        = 0.15
)

// RiskAssessor derives a risk profile from a strategy set
type RiskAssessor struct{}

// NewRiskAssessor creates a new risk assessor
func NewRiskAssessor() *RiskAssessor {
	return &RiskAssessor{}
}

// Assess computes overall, interruption, variability and commitment risk
func (r *RiskAssessor) Assess(strategies []domain.PurchaseStrategy) domain.RiskAssessment {
	fraction := SpotCapacityFraction(strategies)

	assessment := domain.RiskAssessment{
		Overall:          domain.RiskLow,
		SpotInterruption: math.Min(fraction, MaxSpotInterruption),
		CostVariability:  domain.RiskLow,
		CommitmentRisk:   domain.RiskLow,
	}

	switch {
	case fraction > HighRiskSpotFraction:
		assessment.Overall = domain.RiskHigh
	case fraction > MediumRiskSpotFraction:
		assessment.Overall = domain.RiskMedium
	}

	if fraction > CostVariabilitySpotCeiling {
		assessment.CostVariability = domain.RiskHigh
	}

	for _, s := range strategies {
		if s.Commitment == domain.ThreeYear {
			assessment.CommitmentRisk = domain.RiskMedium
			break
		}
	}

	return assessment
}

// SpotCapacityFraction is spot quantity over total quantity (0 when nothing is quantified)
func SpotCapacityFraction(strategies []domain.PurchaseStrategy) float64 {
	var spot, total int
	for _, s := range strategies {
		total += s.Quantity
		if s.Category == domain.Spot {
			spot += s.Quantity
		}
	}
	if total == 0 {
		return 0
	}
	return float64(spot) / float64(total)
}
