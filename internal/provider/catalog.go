// Package provider contains the pricing and instance catalogs consumed by the
// optimizer. The static catalog carries list prices for the representative
// instance size of each family; live spot rates can be layered on top.
package provider

import (
	"fmt"
	"strings"
	"sync"

	"github.com/commitment-planner/internal/domain"
)

// Default families chosen for each hardware class
const (
	GeneralFamily = "m5"
	ComputeFamily = "c5"
	MemoryFamily  = "r5"
	StorageFamily = "i3"
	GPUFamily     = "p3"
)

// Thresholds used to pick a family for a resource requirement
const (
	ComputeVCPUThreshold  = 16
	MemoryRatioThreshold  = 6.0
	DefaultCommitmentTerm = domain.OneYear
)

// FamilySpec describes the representative size of a family
type FamilySpec struct {
	Family             string               `json:"family" yaml:"family"`
	InstanceType       string               `json:"instance_type" yaml:"instance_type"`
	VCPU               int                  `json:"vcpu" yaml:"vcpu"`
	MemoryGiB          float64              `json:"memory_gib" yaml:"memory_gib"`
	GPUCount           int                  `json:"gpu_count,omitempty" yaml:"gpu_count,omitempty"`
	Class              domain.InstanceClass `json:"class" yaml:"class"`
	OnDemandHourlyRate float64              `json:"on_demand_hourly_rate" yaml:"on_demand_hourly_rate"`
}

// Discount multipliers applied to the on-demand rate
var categoryMultipliers = map[domain.PurchaseCategory]map[domain.CommitmentTerm]float64{
	domain.Reserved: {
		domain.OneYear:   0.62,
		domain.ThreeYear: 0.40,
	},
	domain.SavingsCommitment: {
		domain.OneYear:   0.72,
		domain.ThreeYear: 0.52,
	},
	domain.Spot: {
		domain.NoCommitment: 0.30,
	},
	domain.OnDemand: {
		domain.NoCommitment: 1.0,
	},
}

// DefaultFamilies is the built-in us-east-1 Linux list price table
func DefaultFamilies() []FamilySpec {
	return []FamilySpec{
		{Family: "m5", InstanceType: "m5.xlarge", VCPU: 4, MemoryGiB: 16, Class: domain.GeneralPurpose, OnDemandHourlyRate: 0.192},
		{Family: "m6i", InstanceType: "m6i.xlarge", VCPU: 4, MemoryGiB: 16, Class: domain.GeneralPurpose, OnDemandHourlyRate: 0.192},
		{Family: "c5", InstanceType: "c5.4xlarge", VCPU: 16, MemoryGiB: 32, Class: domain.ComputeOptimized, OnDemandHourlyRate: 0.68},
		{Family: "c6i", InstanceType: "c6i.4xlarge", VCPU: 16, MemoryGiB: 32, Class: domain.ComputeOptimized, OnDemandHourlyRate: 0.68},
		{Family: "r5", InstanceType: "r5.2xlarge", VCPU: 8, MemoryGiB: 64, Class: domain.MemoryOptimized, OnDemandHourlyRate: 0.504},
		{Family: "i3", InstanceType: "i3.2xlarge", VCPU: 8, MemoryGiB: 61, Class: domain.StorageOptimized, OnDemandHourlyRate: 0.624},
		{Family: "p3", InstanceType: "p3.2xlarge", VCPU: 8, MemoryGiB: 61, GPUCount: 1, Class: domain.GPUAccelerated, OnDemandHourlyRate: 3.06},
		{Family: "g4dn", InstanceType: "g4dn.2xlarge", VCPU: 8, MemoryGiB: 32, GPUCount: 1, Class: domain.GPUAccelerated, OnDemandHourlyRate: 0.752},
	}
}

// StaticCatalog implements domain.PricingCatalog and domain.InstanceCatalog
// from an in-memory family table
type StaticCatalog struct {
	mu       sync.RWMutex
	families map[string]FamilySpec
}

// NewStaticCatalog creates a catalog with the default family table
func NewStaticCatalog() *StaticCatalog {
	return NewStaticCatalogFrom(DefaultFamilies())
}

// NewStaticCatalogFrom creates a catalog from the given family table
func NewStaticCatalogFrom(specs []FamilySpec) *StaticCatalog {
	c := &StaticCatalog{families: make(map[string]FamilySpec, len(specs))}
	for _, s := range specs {
		c.families[strings.ToLower(s.Family)] = s
	}
	return c
}

// Register adds or replaces a family
func (c *StaticCatalog) Register(spec FamilySpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.families[strings.ToLower(spec.Family)] = spec
}

// Family returns the spec for a family
func (c *StaticCatalog) Family(family string) (FamilySpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	spec, ok := c.families[strings.ToLower(ExtractSeries(family))]
	return spec, ok
}

// Rate returns the hourly cost of one representative instance
func (c *StaticCatalog) Rate(family string, category domain.PurchaseCategory, commitment domain.CommitmentTerm) (float64, error) {
	spec, ok := c.Family(family)
	if !ok {
		return 0, domain.NewPricingError(family, category, domain.ErrNotFound)
	}

	multipliers, ok := categoryMultipliers[category]
	if !ok {
		return 0, domain.NewPricingError(family, category, fmt.Errorf("%w: unknown category", domain.ErrInvalidInput))
	}

	term := commitment
	switch category {
	case domain.Reserved, domain.SavingsCommitment:
		if term == domain.NoCommitment {
			term = DefaultCommitmentTerm
		}
	default:
		term = domain.NoCommitment
	}

	return spec.OnDemandHourlyRate * multipliers[term], nil
}

// ResolveFamily picks a family for a resource requirement:
// GPU first, then compute (>=16 vCPU), memory (>6 GiB per vCPU), storage, general.
func (c *StaticCatalog) ResolveFamily(req domain.ResourceRequirement) string {
	switch {
	case req.GPURequired:
		return GPUFamily
	case req.VCPU >= ComputeVCPUThreshold:
		return ComputeFamily
	case req.MemoryPerVCPU() > MemoryRatioThreshold:
		return MemoryFamily
	case req.StorageIntensive:
		return StorageFamily
	default:
		return GeneralFamily
	}
}

// Class returns the hardware class of a family, falling back to its letter prefix
func (c *StaticCatalog) Class(family string) domain.InstanceClass {
	if spec, ok := c.Family(family); ok {
		return spec.Class
	}
	return ClassFromPrefix(family)
}

// RepresentativeType returns the instance type priced for a family
func (c *StaticCatalog) RepresentativeType(family string) string {
	if spec, ok := c.Family(family); ok {
		return spec.InstanceType
	}
	return ExtractSeries(family) + ".xlarge"
}

// Families lists the registered family names
func (c *StaticCatalog) Families() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]string, 0, len(c.families))
	for name := range c.families {
		result = append(result, name)
	}
	return result
}

// ExtractSeries strips the size from an instance type: "m5.xlarge" -> "m5"
func ExtractSeries(instanceType string) string {
	name := strings.ToLower(strings.TrimSpace(instanceType))
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}

// ExtractPrefix returns the letters before the generation digit: "c6i" -> "c", "im4gn" -> "im"
func ExtractPrefix(family string) string {
	name := ExtractSeries(family)
	for i, c := range name {
		if c >= '0' && c <= '9' {
			return name[:i]
		}
	}
	return name
}

// ClassFromPrefix maps an AWS family prefix to a hardware class
func ClassFromPrefix(family string) domain.InstanceClass {
	switch ExtractPrefix(family) {
	case "c", "hpc":
		return domain.ComputeOptimized
	case "r", "x", "z", "u":
		return domain.MemoryOptimized
	case "i", "im", "is", "d", "h":
		return domain.StorageOptimized
	case "p", "g", "inf", "trn", "dl":
		return domain.GPUAccelerated
	default:
		return domain.GeneralPurpose
	}
}
