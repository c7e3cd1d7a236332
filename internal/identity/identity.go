// Package identity provides ID generators for plans, strategies, periods and alerts.
package identity

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// UUIDGenerator issues random UUID based identities
type UUIDGenerator struct{}

// NewUUIDGenerator creates a generator backed by google/uuid
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID returns "<prefix>-<uuid>", or a bare UUID when prefix is empty
func (g *UUIDGenerator) NewID(prefix string) string {
	id := uuid.New().String()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// SequenceGenerator issues monotonic, per-prefix identities.
// Output is fully deterministic, which makes plan output reproducible.
type SequenceGenerator struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewSequenceGenerator creates a new sequence generator
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{counters: make(map[string]int)}
}

// NewID returns "<prefix>-<n>" with n starting at 1 for each prefix
func (g *SequenceGenerator) NewID(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[prefix]++
	return fmt.Sprintf("%s-%d", prefix, g.counters[prefix])
}

// Reset clears all counters
func (g *SequenceGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters = make(map[string]int)
}
