package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/commitment-planner/internal/domain"
)

type stubSpotSource struct {
	rate      float64
	err       error
	available bool
	calls     int
}

func (s *stubSpotSource) SpotRate(ctx context.Context, family string) (float64, error) {
	s.calls++
	return s.rate, s.err
}

func (s *stubSpotSource) IsAvailable() bool { return s.available }

func TestSpotAwareCatalog(t *testing.T) {
	base := NewStaticCatalog()
	listSpot, _ := base.Rate("m5", domain.Spot, domain.NoCommitment)

	tests := []struct {
		name      string
		source    *stubSpotSource
		category  domain.PurchaseCategory
		want      float64
		wantCalls int
	}{
		{"Live spot rate", &stubSpotSource{rate: 0.041, available: true}, domain.Spot, 0.041, 1},
		{"Non-spot bypasses source", &stubSpotSource{rate: 0.041, available: true}, domain.OnDemand, 0.192, 0},
		{"Unavailable source", &stubSpotSource{rate: 0.041}, domain.Spot, listSpot, 0},
		{"Source error falls back", &stubSpotSource{err: errors.New("throttled"), available: true}, domain.Spot, listSpot, 1},
		{"Zero rate falls back", &stubSpotSource{available: true}, domain.Spot, listSpot, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := NewSpotAwareCatalog(base, tt.source, 0, nil)
			got, err := catalog.Rate("m5", tt.category, domain.NoCommitment)
			if err != nil {
				t.Fatalf("Rate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Rate() = %v, want %v", got, tt.want)
			}
			if tt.source.calls != tt.wantCalls {
				t.Errorf("source calls = %d, want %d", tt.source.calls, tt.wantCalls)
			}
		})
	}
}
