// Package aws provides live EC2 spot rates for the pricing catalog.
package aws

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/commitment-planner/internal/domain"
)

// Cache key prefix for spot rates
const cacheKeySpotRate = "aws:spot_rate:"

// maxPricePoints caps how much history one lookup reads
const maxPricePoints = 2000

// TypeResolver maps a family to the instance type that is priced
type TypeResolver interface {
	RepresentativeType(family string) string
}

// SpotRateProvider implements domain.SpotRateSource with DescribeSpotPriceHistory
type SpotRateProvider struct {
	client       ec2.DescribeSpotPriceHistoryAPIClient
	region       string
	lookback     time.Duration
	ttlSeconds   int
	types        TypeResolver
	cache        domain.CacheProvider
	available    bool
	productDescs []string
}

// Options configures a SpotRateProvider
type Options struct {
	Region       string
	LookbackDays int
	CacheTTL     time.Duration
}

// NewSpotRateProvider creates a provider with default AWS credentials.
// A provider is always returned; it reports IsAvailable()==false when
// credentials are missing or the probe call fails.
func NewSpotRateProvider(ctx context.Context, opts Options, resolver TypeResolver, cache domain.CacheProvider) *SpotRateProvider {
	p := newProvider(nil, opts, resolver, cache)

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return p
	}
	client := ec2.NewFromConfig(cfg)

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = client.DescribeSpotPriceHistory(probeCtx, &ec2.DescribeSpotPriceHistoryInput{
		MaxResults: aws.Int32(1),
	})
	if err != nil {
		return p
	}

	p.client = client
	p.available = true
	return p
}

// NewSpotRateProviderWithClient creates a provider around an existing client
func NewSpotRateProviderWithClient(client ec2.DescribeSpotPriceHistoryAPIClient, opts Options, resolver TypeResolver, cache domain.CacheProvider) *SpotRateProvider {
	p := newProvider(client, opts, resolver, cache)
	p.available = client != nil
	return p
}

func newProvider(client ec2.DescribeSpotPriceHistoryAPIClient, opts Options, resolver TypeResolver, cache domain.CacheProvider) *SpotRateProvider {
	lookback := opts.LookbackDays
	if lookback <= 0 {
		lookback = 7
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &SpotRateProvider{
		client:       client,
		region:       opts.Region,
		lookback:     time.Duration(lookback) * 24 * time.Hour,
		ttlSeconds:   int(ttl.Seconds()),
		types:        resolver,
		cache:        cache,
		productDescs: []string{"Linux/UNIX"},
	}
}

// IsAvailable returns true if AWS credentials are configured and working
func (p *SpotRateProvider) IsAvailable() bool {
	return p.available
}

// SpotRate returns the mean spot price of the family's representative type
// across availability zones over the lookback window
func (p *SpotRateProvider) SpotRate(ctx context.Context, family string) (float64, error) {
	if !p.available {
		return 0, domain.ErrPricingUnavailable
	}

	instanceType := p.types.RepresentativeType(family)
	cacheKey := fmt.Sprintf("%s%s_%s", cacheKeySpotRate, p.region, instanceType)
	if p.cache != nil {
		if cached, ok := p.cache.Get(cacheKey); ok {
			return cached.(float64), nil
		}
	}

	endTime := time.Now()
	input := &ec2.DescribeSpotPriceHistoryInput{
		InstanceTypes:       []types.InstanceType{types.InstanceType(instanceType)},
		ProductDescriptions: p.productDescs,
		StartTime:           aws.Time(endTime.Add(-p.lookback)),
		EndTime:             aws.Time(endTime),
		MaxResults:          aws.Int32(1000),
	}

	var prices []types.SpotPrice
	paginator := ec2.NewDescribeSpotPriceHistoryPaginator(p.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, domain.NewPricingError(family, domain.Spot, err)
		}
		prices = append(prices, page.SpotPriceHistory...)
		if len(prices) >= maxPricePoints {
			break
		}
	}

	rate, err := meanSpotPrice(prices)
	if err != nil {
		return 0, domain.NewPricingError(family, domain.Spot, err)
	}

	if p.cache != nil {
		p.cache.Set(cacheKey, rate, p.ttlSeconds)
	}
	return rate, nil
}

// meanSpotPrice averages the latest observation of every availability zone
func meanSpotPrice(prices []types.SpotPrice) (float64, error) {
	latest := make(map[string]types.SpotPrice)
	for _, sp := range prices {
		if sp.SpotPrice == nil || sp.Timestamp == nil {
			continue
		}
		az := aws.ToString(sp.AvailabilityZone)
		if cur, ok := latest[az]; !ok || sp.Timestamp.After(*cur.Timestamp) {
			latest[az] = sp
		}
	}
	if len(latest) == 0 {
		return 0, domain.ErrNotFound
	}

	zones := make([]string, 0, len(latest))
	for az := range latest {
		zones = append(zones, az)
	}
	sort.Strings(zones)

	var sum float64
	var n int
	for _, az := range zones {
		v, err := strconv.ParseFloat(aws.ToString(latest[az].SpotPrice), 64)
		if err != nil {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, domain.ErrNotFound
	}
	return sum / float64(n), nil
}
