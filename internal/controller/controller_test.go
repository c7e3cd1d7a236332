package controller

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/commitment-planner/internal/config"
	"github.com/commitment-planner/internal/domain"
	"github.com/commitment-planner/internal/logging"
	"github.com/commitment-planner/internal/metrics"
	"github.com/commitment-planner/internal/optimizer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var fixedTime = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func quietLogger(t *testing.T) *logging.Logger {
	t.Helper()
	l, err := logging.New(logging.Config{Level: logging.ERROR, Output: io.Discard})
	if err != nil {
		t.Fatalf("logging.New() error = %v", err)
	}
	return l
}

func newTestController(t *testing.T) (*Controller, *prometheus.Registry) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Optimizer.DeterministicIDs = true

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	ctrl := New(cfg,
		WithClock(func() time.Time { return fixedTime }),
		WithLogger(quietLogger(t)),
		WithRecorder(recorder),
	)
	t.Cleanup(ctrl.Close)
	return ctrl, registry
}

func labGrant() *domain.Grant {
	return &domain.Grant{
		ID:                    "grant-lab",
		Name:                  "Lab compute",
		StartDate:             time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ProjectDurationMonths: 12,
		BudgetPeriodType:      domain.MonthlyPeriods,
		CloudComputeBudget:    12000,
	}
}

func workloads() []domain.WorkloadPattern {
	return []domain.WorkloadPattern{
		{
			ID: "genomics", AvgDurationHours: 8, RunsPerDay: 2, DaysPerWeek: 5,
			Resources: domain.ResourceRequirement{VCPU: 16, MemoryGiB: 64}, Interruptible: true,
		},
		{
			ID: "ml-training", AvgDurationHours: 4, RunsPerDay: 1, DaysPerWeek: 7,
			Resources: domain.ResourceRequirement{VCPU: 8, MemoryGiB: 32, GPURequired: true, GPUCount: 1},
			Priority:  domain.PriorityHigh,
		},
		{
			ID: "always-on", AvgDurationHours: 1, RunsPerDay: 24, DaysPerWeek: 7,
			Resources: domain.ResourceRequirement{VCPU: 4, MemoryGiB: 16}, Priority: domain.PriorityCritical,
		},
	}
}

func TestNewController(t *testing.T) {
	ctrl, _ := newTestController(t)
	if ctrl.orchestrator == nil || ctrl.ledger == nil || ctrl.forecaster == nil {
		t.Fatal("controller is missing collaborators")
	}
	if ctrl.cache != nil {
		t.Error("spot-rate cache should only exist with live rates enabled")
	}
	if got := ctrl.CacheStatus(); got.Items != 0 {
		t.Errorf("CacheStatus() = %+v", got)
	}

	families := ctrl.Families()
	if len(families) == 0 {
		t.Fatal("Families() is empty")
	}
	for i := 1; i < len(families); i++ {
		if families[i-1].Family > families[i].Family {
			t.Errorf("Families() not sorted: %s before %s", families[i-1].Family, families[i].Family)
		}
	}
}

func TestPlan(t *testing.T) {
	ctrl, registry := newTestController(t)

	resp, err := ctrl.Plan(context.Background(), PlanRequest{
		PlanRequest: optimizer.PlanRequest{Workloads: workloads()},
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if !resp.Success || resp.Plan == nil {
		t.Fatalf("Plan() response = %+v", resp)
	}
	if resp.Plan.ID != "plan-1" {
		t.Errorf("plan ID = %s, want plan-1 with deterministic IDs", resp.Plan.ID)
	}
	if resp.Plan.PlanningHorizon != domain.OneYear {
		t.Errorf("horizon = %s, want config default 1yr", resp.Plan.PlanningHorizon)
	}
	if resp.Summary == "" {
		t.Error("Summary is empty")
	}

	if n, err := testutil.GatherAndCount(registry, metrics.PlansGeneratedTotal); err != nil || n != 1 {
		t.Errorf("plans generated series = %d (err %v), want 1", n, err)
	}
	if n, _ := testutil.GatherAndCount(registry, metrics.PlanFailuresTotal); n != 0 {
		t.Errorf("plan failure series = %d, want 0", n)
	}
}

func TestPlanErrors(t *testing.T) {
	ctrl, registry := newTestController(t)

	_, err := ctrl.Plan(context.Background(), PlanRequest{})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty workloads error = %v, want ErrInvalidInput", err)
	}

	_, err = ctrl.Plan(context.Background(), PlanRequest{
		PlanRequest: optimizer.PlanRequest{Workloads: workloads()},
		GrantID:     "unknown",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown grant error = %v, want ErrNotFound", err)
	}

	// validation and not_found
	if n, _ := testutil.GatherAndCount(registry, metrics.PlanFailuresTotal); n != 2 {
		t.Errorf("plan failure series = %d, want 2", n)
	}
}

func TestGrantLifecycle(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx := context.Background()

	created, err := ctrl.CreateGrant(ctx, labGrant())
	if err != nil {
		t.Fatalf("CreateGrant() error = %v", err)
	}
	if len(created.Grant.Periods) != 12 {
		t.Fatalf("got %d periods, want 12", len(created.Grant.Periods))
	}
	if created.Summary.TotalAllocated != 12000 {
		t.Errorf("TotalAllocated = %v", created.Summary.TotalAllocated)
	}
	if ids := ctrl.ListGrants(); len(ids) != 1 || ids[0] != "grant-lab" {
		t.Errorf("ListGrants() = %v", ids)
	}

	// March is the current period; 95% of its 1000 allocation is critical
	spend, err := ctrl.RecordSpend(ctx, SpendRequest{GrantID: "grant-lab", Amount: 950})
	if err != nil {
		t.Fatalf("RecordSpend() error = %v", err)
	}
	if spend.Period.Index != 2 || spend.Period.SpentAmount != 950 {
		t.Errorf("period = %+v", spend.Period)
	}
	var critical bool
	for _, a := range spend.Alerts {
		if a.Type == domain.ThresholdAlert && a.Severity == domain.SeverityCritical {
			critical = true
		}
	}
	if !critical {
		t.Errorf("expected a critical threshold alert, got %+v", spend.Alerts)
	}

	committed, err := ctrl.RecordSpend(ctx, SpendRequest{GrantID: "grant-lab", Amount: 20, Kind: SpendCommitted})
	if err != nil {
		t.Fatalf("RecordSpend(committed) error = %v", err)
	}
	if committed.Period.CommittedAmount != 20 || len(committed.Alerts) != 0 {
		t.Errorf("committed period = %+v alerts = %v", committed.Period, committed.Alerts)
	}

	// Spend is persisted between calls
	got, err := ctrl.GetGrant(ctx, "grant-lab")
	if err != nil {
		t.Fatalf("GetGrant() error = %v", err)
	}
	if got.Summary.TotalSpent != 950 || got.Summary.TotalCommitted != 20 {
		t.Errorf("summary = %+v", got.Summary)
	}

	// A plan against the grant reports budget impact
	plan, err := ctrl.Plan(ctx, PlanRequest{
		PlanRequest: optimizer.PlanRequest{Workloads: workloads()},
		GrantID:     "grant-lab",
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	impact := plan.Plan.BudgetImpact
	if impact == nil || impact.GrantID != "grant-lab" || impact.PeriodID != got.Grant.Periods[2].ID {
		t.Fatalf("BudgetImpact = %+v", impact)
	}
	if !impact.ExceedsAllocation {
		t.Error("research workloads should exceed a 1000/month allocation")
	}
	// Planning never mutates the stored grant
	after, _ := ctrl.GetGrant(ctx, "grant-lab")
	if after.Summary.TotalSpent != 950 {
		t.Errorf("planning changed stored spend to %v", after.Summary.TotalSpent)
	}
}

func TestRecordSpendErrors(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx := context.Background()
	if _, err := ctrl.CreateGrant(ctx, labGrant()); err != nil {
		t.Fatalf("CreateGrant() error = %v", err)
	}

	tests := []struct {
		name    string
		req     SpendRequest
		wantErr error
	}{
		{"Missing grant ID", SpendRequest{Amount: 1}, domain.ErrInvalidInput},
		{"Unknown grant", SpendRequest{GrantID: "nope", Amount: 1}, domain.ErrNotFound},
		{"Negative amount", SpendRequest{GrantID: "grant-lab", Amount: -5}, domain.ErrInvalidInput},
		{"Unknown kind", SpendRequest{GrantID: "grant-lab", Amount: 5, Kind: "refund"}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ctrl.RecordSpend(ctx, tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("RecordSpend() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := ctrl.CreateGrant(ctx, nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("CreateGrant(nil) error = %v", err)
	}
}

func TestForecast(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx := context.Background()
	if _, err := ctrl.CreateGrant(ctx, labGrant()); err != nil {
		t.Fatalf("CreateGrant() error = %v", err)
	}
	if _, err := ctrl.RecordSpend(ctx, SpendRequest{GrantID: "grant-lab", Amount: 500}); err != nil {
		t.Fatalf("RecordSpend() error = %v", err)
	}

	resp, err := ctrl.Forecast(ctx, ForecastRequest{domain.ForecastInput{
		GrantID: "grant-lab",
		History: []domain.MonthlySpend{
			{Month: "2025-01", TotalSpent: 900},
			{Month: "2025-02", TotalSpent: 900},
			{Month: "2025-03", TotalSpent: 900},
		},
	}})
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	f := resp.Forecast
	if f.GrantID != "grant-lab" || f.AvgMonthlySpend != 900 || f.Confidence != 100 {
		t.Errorf("forecast = %+v", f)
	}
	// 500 spent plus 900/month until 2026-01-01
	remaining := RemainingMonths(labGrantWithEnd(), fixedTime)
	want := 500 + 900*remaining
	if diff := f.ProjectedTotal - want; diff > 0.01 || diff < -0.01 {
		t.Errorf("ProjectedTotal = %v, want %v", f.ProjectedTotal, want)
	}
	if f.ExceedsAllocation {
		t.Error("forecast should stay within the 12000 budget")
	}

	if _, err := ctrl.Forecast(ctx, ForecastRequest{domain.ForecastInput{GrantID: "grant-lab"}}); !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("empty history error = %v, want ErrInsufficientData", err)
	}
}

func labGrantWithEnd() *domain.Grant {
	g := labGrant()
	g.EndDate = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return g
}

func TestRemainingMonths(t *testing.T) {
	g := labGrantWithEnd()

	if got := RemainingMonths(g, time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)); got != 1 {
		t.Errorf("RemainingMonths(Dec 2) = %v, want 1", got)
	}
	if got := RemainingMonths(g, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)); got != 0 {
		t.Errorf("RemainingMonths after end = %v, want 0", got)
	}

	// Without an end date the last period bounds the grant
	noEnd := labGrant()
	noEnd.Periods = []*domain.GrantBudgetPeriod{{EndDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)}}
	if got := RemainingMonths(noEnd, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)); got != 1 {
		t.Errorf("RemainingMonths from periods = %v, want 1", got)
	}
}
