package optimizer

import (
	"errors"
	"testing"

	"github.com/commitment-planner/internal/domain"
	"github.com/commitment-planner/internal/provider"
)

func strategy(category domain.PurchaseCategory, qty int) domain.PurchaseStrategy {
	return domain.PurchaseStrategy{
		InstanceFamily:       "m5",
		Quantity:             qty,
		Category:             category,
		HourlyCost:           0.1,
		EstimatedUtilization: 80,
		Risk:                 domain.RiskLow,
	}
}

func TestConstraintFilterApply(t *testing.T) {
	filter := NewConstraintFilter(provider.NewStaticCatalog(), nil)

	threeYear := strategy(domain.Reserved, 4)
	threeYear.Commitment = domain.ThreeYear
	threeYear.Payment = domain.AllUpfront

	base := domain.Scenario{
		ID: "mixed",
		Strategies: []domain.PurchaseStrategy{
			threeYear,
			strategy(domain.Spot, 2),
			strategy(domain.Spot, 1),
			strategy(domain.OnDemand, 1),
		},
	}

	tests := []struct {
		name        string
		constraints domain.OptimizationConstraints
		horizon     domain.CommitmentTerm
		check       func(t *testing.T, sc domain.Scenario)
	}{
		{
			name:        "Unconstrained keeps everything",
			constraints: domain.OptimizationConstraints{},
			check: func(t *testing.T, sc domain.Scenario) {
				if len(sc.Strategies) != 4 {
					t.Errorf("got %d strategies, want 4", len(sc.Strategies))
				}
				if sc.Strategies[0].Commitment != domain.ThreeYear {
					t.Error("3yr commitment should be kept")
				}
			},
		},
		{
			name:        "Spot disallowed drops spot",
			constraints: domain.OptimizationConstraints{SpotInstancesAllowed: boolPtr(false)},
			check: func(t *testing.T, sc domain.Scenario) {
				for _, st := range sc.Strategies {
					if st.Category == domain.Spot {
						t.Error("spot strategy survived")
					}
				}
				if len(sc.Strategies) != 2 {
					t.Errorf("got %d strategies, want 2", len(sc.Strategies))
				}
			},
		},
		{
			name:        "Max commitment clamps and reprices",
			constraints: domain.OptimizationConstraints{MaxCommitment: domain.OneYear},
			check: func(t *testing.T, sc domain.Scenario) {
				st := sc.Strategies[0]
				if st.Commitment != domain.OneYear {
					t.Errorf("commitment = %s, want 1yr", st.Commitment)
				}
				if !almostEqual(st.HourlyCost, 0.192*0.62) {
					t.Errorf("hourly = %v, want 1yr list rate %v", st.HourlyCost, 0.192*0.62)
				}
			},
		},
		{
			name:        "One year horizon clamps like max commitment",
			constraints: domain.OptimizationConstraints{},
			horizon:     domain.OneYear,
			check: func(t *testing.T, sc domain.Scenario) {
				if sc.Strategies[0].Commitment != domain.OneYear {
					t.Errorf("commitment = %s, want 1yr", sc.Strategies[0].Commitment)
				}
			},
		},
		{
			name:        "Upfront payment ceiling",
			constraints: domain.OptimizationConstraints{MaxUpfrontPayment: domain.PartialUpfront},
			check: func(t *testing.T, sc domain.Scenario) {
				if sc.Strategies[0].Payment != domain.PartialUpfront {
					t.Errorf("payment = %s, want partial-upfront", sc.Strategies[0].Payment)
				}
			},
		},
		{
			name:        "Max spot percentage keeps first spot strategies",
			constraints: domain.OptimizationConstraints{MaxSpotPercentage: floatPtr(25)},
			check: func(t *testing.T, sc domain.Scenario) {
				// floor(25% of 4) = 1 spot strategy
				var spots []domain.PurchaseStrategy
				for _, st := range sc.Strategies {
					if st.Category == domain.Spot {
						spots = append(spots, st)
					}
				}
				if len(spots) != 1 || spots[0].Quantity != 2 {
					t.Errorf("spot strategies = %+v, want the first one", spots)
				}
				if len(sc.Strategies) != 3 {
					t.Errorf("got %d strategies, want 3", len(sc.Strategies))
				}
			},
		},
		{
			name:        "Spot share under the ceiling is untouched",
			constraints: domain.OptimizationConstraints{MaxSpotPercentage: floatPtr(50)},
			check: func(t *testing.T, sc domain.Scenario) {
				if len(sc.Strategies) != 4 {
					t.Errorf("got %d strategies, want 4", len(sc.Strategies))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := filter.Apply([]domain.Scenario{base}, tt.constraints, tt.horizon, domain.DiscountProfile{})
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if len(result) != 1 {
				t.Fatalf("got %d scenarios, want 1", len(result))
			}
			tt.check(t, result[0])
		})
	}

	// Input is never mutated
	if base.Strategies[0].Commitment != domain.ThreeYear || len(base.Strategies) != 4 {
		t.Error("Apply mutated its input")
	}
}

func TestConstraintFilterIsEligible(t *testing.T) {
	filter := NewConstraintFilter(provider.NewStaticCatalog(), nil)

	tests := []struct {
		name         string
		scenario     domain.Scenario
		constraints  domain.OptimizationConstraints
		wantEligible bool
	}{
		{
			name:         "Empty scenario",
			scenario:     domain.Scenario{ID: "empty"},
			wantEligible: false,
		},
		{
			name: "Reserved share meets minimum",
			scenario: domain.Scenario{Strategies: []domain.PurchaseStrategy{
				strategy(domain.Reserved, 3), strategy(domain.Spot, 1),
			}},
			constraints:  domain.OptimizationConstraints{MinReservedPercentage: 75},
			wantEligible: true,
		},
		{
			name: "Reserved share below minimum",
			scenario: domain.Scenario{Strategies: []domain.PurchaseStrategy{
				strategy(domain.Reserved, 1), strategy(domain.Spot, 3),
			}},
			constraints:  domain.OptimizationConstraints{MinReservedPercentage: 50},
			wantEligible: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eligible, reasons := filter.IsEligible(tt.scenario, tt.constraints)
			if eligible != tt.wantEligible {
				t.Errorf("IsEligible() = %v (reasons %v), want %v", eligible, reasons, tt.wantEligible)
			}
			if !eligible && len(reasons) == 0 {
				t.Error("ineligible scenario should carry a reason")
			}
		})
	}
}

func TestConstraintFilterAllEliminated(t *testing.T) {
	filter := NewConstraintFilter(provider.NewStaticCatalog(), nil)
	scenarios := []domain.Scenario{
		{ID: "a", Strategies: []domain.PurchaseStrategy{strategy(domain.Spot, 2)}},
		{ID: "b", Strategies: []domain.PurchaseStrategy{strategy(domain.Spot, 1)}},
	}

	_, err := filter.Apply(scenarios, domain.OptimizationConstraints{SpotInstancesAllowed: boolPtr(false)}, "", domain.DiscountProfile{})

	var conflict *domain.ConstraintConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Apply() error = %v, want ConstraintConflictError", err)
	}
	if conflict.Scenarios != 2 {
		t.Errorf("Scenarios = %d, want 2", conflict.Scenarios)
	}
	if !errors.Is(err, domain.ErrConstraintConflict) {
		t.Error("error should wrap ErrConstraintConflict")
	}
}

func TestValidateConstraints(t *testing.T) {
	tests := []struct {
		name    string
		c       domain.OptimizationConstraints
		wantErr bool
	}{
		{name: "Empty", c: domain.OptimizationConstraints{}},
		{name: "Valid", c: domain.OptimizationConstraints{MaxCommitment: domain.OneYear, RiskTolerance: domain.RiskLow, MaxSpotPercentage: floatPtr(30)}},
		{name: "Bad commitment", c: domain.OptimizationConstraints{MaxCommitment: "5yr"}, wantErr: true},
		{name: "Bad risk", c: domain.OptimizationConstraints{RiskTolerance: "extreme"}, wantErr: true},
		{name: "Bad payment", c: domain.OptimizationConstraints{MaxUpfrontPayment: "half"}, wantErr: true},
		{name: "Spot over 100", c: domain.OptimizationConstraints{MaxSpotPercentage: floatPtr(120)}, wantErr: true},
		{name: "Negative reserved", c: domain.OptimizationConstraints{MinReservedPercentage: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConstraints(tt.c)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConstraints() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
