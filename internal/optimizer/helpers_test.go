package optimizer

import (
	"time"

	"github.com/commitment-planner/internal/domain"
	"github.com/commitment-planner/internal/identity"
	"github.com/commitment-planner/internal/provider"
)

var fixedTime = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

// researchWorkloads is the genomics / GPU training / always-on mix
func researchWorkloads() []domain.WorkloadPattern {
	return []domain.WorkloadPattern{
		{
			ID:               "genomics",
			Name:             "Genomics batch pipeline",
			AvgDurationHours: 8,
			RunsPerDay:       2,
			DaysPerWeek:      5,
			Resources:        domain.ResourceRequirement{VCPU: 16, MemoryGiB: 64},
			Priority:         domain.PriorityNormal,
			Interruptible:    true,
		},
		{
			ID:               "ml-training",
			Name:             "GPU model training",
			AvgDurationHours: 4,
			RunsPerDay:       1,
			DaysPerWeek:      7,
			Resources:        domain.ResourceRequirement{VCPU: 8, MemoryGiB: 32, GPURequired: true, GPUCount: 1},
			Priority:         domain.PriorityHigh,
			Interruptible:    false,
		},
		{
			ID:               "always-on",
			Name:             "Critical API",
			AvgDurationHours: 1,
			RunsPerDay:       24,
			DaysPerWeek:      7,
			Resources:        domain.ResourceRequirement{VCPU: 4, MemoryGiB: 16},
			Priority:         domain.PriorityCritical,
			Interruptible:    false,
		},
	}
}

func newTestOptimizer() *Optimizer {
	catalog := provider.NewStaticCatalog()
	return New(Options{
		Pricing:   catalog,
		Instances: catalog,
		IDs:       identity.NewSequenceGenerator(),
		Clock:     fixedClock,
	})
}

// batchWorkloads has no critical or non-interruptible members
func batchWorkloads() []domain.WorkloadPattern {
	return []domain.WorkloadPattern{
		{
			ID:               "alignment",
			Name:             "Sequence alignment",
			AvgDurationHours: 8,
			RunsPerDay:       2,
			DaysPerWeek:      5,
			Resources:        domain.ResourceRequirement{VCPU: 16, MemoryGiB: 64},
			Priority:         domain.PriorityNormal,
			Interruptible:    true,
		},
	}
}

// serviceWorkloads has only critical, uninterruptible members
func serviceWorkloads() []domain.WorkloadPattern {
	return []domain.WorkloadPattern{
		{
			ID:               "portal",
			Name:             "Data portal",
			AvgDurationHours: 1,
			RunsPerDay:       24,
			DaysPerWeek:      7,
			Resources:        domain.ResourceRequirement{VCPU: 4, MemoryGiB: 16},
			Priority:         domain.PriorityCritical,
		},
		{
			ID:               "scheduler",
			Name:             "Job scheduler",
			AvgDurationHours: 1,
			RunsPerDay:       24,
			DaysPerWeek:      7,
			Resources:        domain.ResourceRequirement{VCPU: 2, MemoryGiB: 8},
			Priority:         domain.PriorityHigh,
		},
	}
}
