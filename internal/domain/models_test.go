package domain

import (
	"testing"
	"time"
)

func TestParseCommitmentTerm(t *testing.T) {
	tests := []struct {
		input    string
		expected CommitmentTerm
		months   int
	}{
		{"1yr", OneYear, 12},
		{"1-year", OneYear, 12},
		{" 3YR ", ThreeYear, 36},
		{"three-year", ThreeYear, 36},
		{"", NoCommitment, 0},
		{"5yr", NoCommitment, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			term := ParseCommitmentTerm(tt.input)
			if term != tt.expected {
				t.Errorf("ParseCommitmentTerm(%q) = %v, want %v", tt.input, term, tt.expected)
			}
			if term.Months() != tt.months {
				t.Errorf("Months() = %d, want %d", term.Months(), tt.months)
			}
		})
	}
}

func TestPurchaseCategoryIsValid(t *testing.T) {
	for _, c := range AllPurchaseCategories {
		if !c.IsValid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if PurchaseCategory("dedicated").IsValid() {
		t.Error("unknown category should be invalid")
	}
}

func TestPaymentOptionRank(t *testing.T) {
	if !(NoPayment.Rank() < NoUpfront.Rank() && NoUpfront.Rank() < PartialUpfront.Rank() && PartialUpfront.Rank() < AllUpfront.Rank()) {
		t.Error("payment options should rank by upfront share")
	}
}

func TestResourceRequirementMemoryPerVCPU(t *testing.T) {
	if got := (ResourceRequirement{VCPU: 8, MemoryGiB: 64}).MemoryPerVCPU(); got != 8 {
		t.Errorf("MemoryPerVCPU() = %v, want 8", got)
	}
	if got := (ResourceRequirement{MemoryGiB: 64}).MemoryPerVCPU(); got != 0 {
		t.Errorf("MemoryPerVCPU() without vCPU = %v, want 0", got)
	}
}

func TestWorkloadPredicates(t *testing.T) {
	tests := []struct {
		name        string
		workload    WorkloadPattern
		critical    bool
		predictable bool
		burst       bool
	}{
		{"Critical interruptible", WorkloadPattern{Priority: PriorityCritical, Interruptible: true}, true, true, false},
		{"Normal steady", WorkloadPattern{Priority: PriorityNormal}, false, true, false},
		{"Interruptible batch", WorkloadPattern{Interruptible: true}, false, false, false},
		{"Burst", WorkloadPattern{Interruptible: true, Burst: &BurstCapacity{MaxConcurrentJobs: 4}}, false, false, true},
		{"Empty burst", WorkloadPattern{Burst: &BurstCapacity{}}, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.workload.IsCritical(); got != tt.critical {
				t.Errorf("IsCritical() = %v, want %v", got, tt.critical)
			}
			if got := tt.workload.IsPredictable(); got != tt.predictable {
				t.Errorf("IsPredictable() = %v, want %v", got, tt.predictable)
			}
			if got := tt.workload.BurstEnabled(); got != tt.burst {
				t.Errorf("BurstEnabled() = %v, want %v", got, tt.burst)
			}
		})
	}
}

func TestScenarioCategories(t *testing.T) {
	s := Scenario{Strategies: []PurchaseStrategy{
		{Category: Reserved, CoveredWorkloads: []string{"a"}},
		{Category: Spot, CoveredWorkloads: []string{"b"}},
		{Category: Reserved, CoveredWorkloads: []string{"c"}},
	}}

	got := s.Categories()
	if len(got) != 2 || got[0] != Reserved || got[1] != Spot {
		t.Errorf("Categories() = %v, want [reserved spot]", got)
	}
	if !s.Strategies[1].Covers("b") || s.Strategies[1].Covers("a") {
		t.Error("Covers() mismatch")
	}
}

func TestConstraintsSpotAllowed(t *testing.T) {
	no := false
	if !(OptimizationConstraints{}).SpotAllowed() {
		t.Error("spot should be allowed by default")
	}
	if (OptimizationConstraints{SpotInstancesAllowed: &no}).SpotAllowed() {
		t.Error("spot should be disallowed when set to false")
	}
}

func TestInstanceClassIsSpecialized(t *testing.T) {
	if GeneralPurpose.IsSpecialized() || InstanceClass("").IsSpecialized() {
		t.Error("general purpose should not be specialized")
	}
	if !GPUAccelerated.IsSpecialized() {
		t.Error("GPU class should be specialized")
	}
}

func TestParseBudgetPeriodType(t *testing.T) {
	tests := []struct {
		input    string
		expected BudgetPeriodType
		months   int
	}{
		{"monthly", MonthlyPeriods, 1},
		{"Quarter", QuarterlyPeriods, 3},
		{"yearly", AnnualPeriods, 12},
		{"project_year", ProjectYearPeriods, 12},
		{"", MonthlyPeriods, 1},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseBudgetPeriodType(tt.input)
			if got != tt.expected || got.Months() != tt.months {
				t.Errorf("ParseBudgetPeriodType(%q) = %v (%d months), want %v (%d)", tt.input, got, got.Months(), tt.expected, tt.months)
			}
		})
	}
}

func TestGrantClone(t *testing.T) {
	g := &Grant{ID: "g", Periods: []*GrantBudgetPeriod{{ID: "p1", SpentAmount: 10}}}
	cp := g.Clone()
	cp.Periods[0].SpentAmount = 99
	cp.Periods = append(cp.Periods, &GrantBudgetPeriod{ID: "p2"})

	if g.Periods[0].SpentAmount != 10 || len(g.Periods) != 1 {
		t.Error("Clone() shares period state with the original")
	}
	var nilGrant *Grant
	if nilGrant.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}

func TestGrantBudgetPeriod(t *testing.T) {
	p := &GrantBudgetPeriod{
		StartDate:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		RemainingBudget: 500,
		CommittedAmount: 120,
		PendingAmount:   30,
	}

	if !p.Contains(p.StartDate) {
		t.Error("start date should be inclusive")
	}
	if p.Contains(p.EndDate) {
		t.Error("end date should be exclusive")
	}
	if p.LengthDays() != 31 {
		t.Errorf("LengthDays() = %v, want 31", p.LengthDays())
	}
	if p.AvailableBudget() != 350 {
		t.Errorf("AvailableBudget() = %v, want 350", p.AvailableBudget())
	}

	empty := &GrantBudgetPeriod{StartDate: p.StartDate, EndDate: p.StartDate}
	if empty.LengthDays() != 1 {
		t.Errorf("zero-length period LengthDays() = %v, want 1", empty.LengthDays())
	}
}
