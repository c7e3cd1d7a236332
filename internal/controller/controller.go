// Package controller provides programmatic API access to consumption planning
// and grant budget tracking. It exposes the same functionality as the web API
// and the Lambda handler for direct Go code integration.
package controller

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/commitment-planner/internal/budget"
	"github.com/commitment-planner/internal/config"
	"github.com/commitment-planner/internal/domain"
	"github.com/commitment-planner/internal/identity"
	"github.com/commitment-planner/internal/logging"
	"github.com/commitment-planner/internal/metrics"
	"github.com/commitment-planner/internal/optimizer"
	"github.com/commitment-planner/internal/provider"
	awsprovider "github.com/commitment-planner/internal/provider/aws"
)

// Spend kinds accepted by RecordSpend
const (
	SpendActual    = "spent"
	SpendCommitted = "committed"
	SpendPending   = "pending"
)

// Controller provides programmatic access to the planner APIs
type Controller struct {
	cfg          *config.Config
	logger       *logging.Logger
	catalog      *provider.StaticCatalog
	cache        *provider.InMemoryCache
	orchestrator *optimizer.Orchestrator
	summarizer   *optimizer.InsightGenerator
	ledger       *budget.Ledger
	forecaster   domain.Forecaster
	grants       domain.GrantRepository
	locks        budget.KeyedMutex
	recorder     *metrics.Recorder
	ids          domain.IDGenerator
	clock        domain.Clock
}

// Option customizes a Controller
type Option func(*options)

type options struct {
	pricing  domain.PricingCatalog
	ids      domain.IDGenerator
	clock    domain.Clock
	grants   domain.GrantRepository
	recorder *metrics.Recorder
	logger   *logging.Logger
}

// WithPricing replaces the pricing catalog
func WithPricing(p domain.PricingCatalog) Option {
	return func(o *options) { o.pricing = p }
}

// WithIDs replaces the ID generator
func WithIDs(ids domain.IDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

// WithClock replaces the clock
func WithClock(clock domain.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithGrantRepository replaces the in-memory grant store
func WithGrantRepository(r domain.GrantRepository) Option {
	return func(o *options) { o.grants = r }
}

// WithRecorder enables Prometheus metrics
func WithRecorder(r *metrics.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithLogger replaces the logger
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a new Controller. A nil cfg uses config.Get().
func New(cfg *config.Config, opts ...Option) *Controller {
	if cfg == nil {
		cfg = config.Get()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = NewLogger(cfg, "controller")
	}
	clock := o.clock
	if clock == nil {
		clock = time.Now
	}
	ids := o.ids
	if ids == nil {
		if cfg.Optimizer.DeterministicIDs {
			ids = identity.NewSequenceGenerator()
		} else {
			ids = identity.NewUUIDGenerator()
		}
	}
	grants := o.grants
	if grants == nil {
		grants = budget.NewMemoryStore()
	}

	c := &Controller{
		cfg:        cfg,
		logger:     logger,
		catalog:    provider.NewStaticCatalog(),
		summarizer: optimizer.NewInsightGenerator(),
		grants:     grants,
		recorder:   o.recorder,
		ids:        ids,
		clock:      clock,
	}

	pricing := o.pricing
	if pricing == nil {
		pricing = c.buildPricing()
	}

	opt := optimizer.New(optimizer.Options{
		Pricing:   pricing,
		Instances: c.catalog,
		IDs:       ids,
		Clock:     clock,
		Logger:    logger.Component("optimizer"),
		Weights:   weightsFromConfig(cfg.Optimizer.Weights),
	})
	c.orchestrator = optimizer.NewOrchestrator(opt, domain.CommitmentTerm(cfg.Optimizer.PlanningHorizon), cfg.Discounts)
	c.ledger = budget.NewLedger(ids, clock,
		budget.WithThresholds(cfg.Budget.WarningThreshold, cfg.Budget.CriticalThreshold),
		budget.WithLogger(logger.Component("ledger")),
	)
	c.forecaster = budget.NewTrailingAverageForecaster(cfg.Budget.ForecastWindow, clock)

	return c
}

// NewLogger builds a component logger from the logging config
func NewLogger(cfg *config.Config, component string) *logging.Logger {
	return NewLoggerTo(cfg, component, nil)
}

// NewLoggerTo is NewLogger with console output sent to out (stdout when nil)
func NewLoggerTo(cfg *config.Config, component string, out io.Writer) *logging.Logger {
	lc := cfg.Logging
	rolling := logging.DefaultRollingConfig()
	rolling.MaxSize = int64(lc.MaxSizeMB) * 1024 * 1024
	rolling.MaxBackups = lc.MaxBackups
	rolling.MaxAge = lc.MaxAgeDays
	rolling.Compress = lc.Compress

	logger, err := logging.New(logging.Config{
		Level:       logging.ParseLevel(lc.Level),
		Component:   component,
		LogDir:      lc.LogDir,
		EnableFile:  lc.EnableFile,
		EnableColor: lc.EnableColor,
		JSON:        lc.EnableJSON,
		Rolling:     rolling,
		Output:      out,
	})
	if err != nil || logger == nil {
		return logging.GetDefault().Component(component)
	}
	return logger
}

// buildPricing layers live EC2 spot rates over the static catalog when enabled
func (c *Controller) buildPricing() domain.PricingCatalog {
	if !c.cfg.Pricing.LiveSpotRates {
		return c.catalog
	}

	c.cache = provider.NewInMemoryCache(c.cfg.Cache.CleanupInterval)
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Pricing.LookupTimeout+5*time.Second)
	defer cancel()

	source := awsprovider.NewSpotRateProvider(ctx, awsprovider.Options{
		Region:       c.cfg.Pricing.Region,
		LookbackDays: c.cfg.Pricing.LookbackDays,
		CacheTTL:     c.cfg.Cache.TTL,
	}, c.catalog, c.cache)
	if !source.IsAvailable() {
		c.logger.Warn("EC2 spot price history unavailable in %s, using list prices", c.cfg.Pricing.Region)
	} else {
		c.logger.Info("Using live EC2 spot rates from %s", c.cfg.Pricing.Region)
	}
	return provider.NewSpotAwareCatalog(c.catalog, source, c.cfg.Pricing.LookupTimeout, c.logger.Component("pricing"))
}

func weightsFromConfig(w config.ScoringWeights) optimizer.Weights {
	return optimizer.Weights{
		Cost:           w.Cost,
		Risk:           w.Risk,
		Flexibility:    w.Flexibility,
		Reliability:    w.Reliability,
		Specialization: w.Specialization,
	}
}

// Close releases background resources
func (c *Controller) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

// PlanRequest represents a consumption plan request. GrantID refers to a
// grant created with CreateGrant; an inline Grant takes precedence.
type PlanRequest struct {
	optimizer.PlanRequest `yaml:",inline"`
	GrantID               string `json:"grant_id,omitempty" yaml:"grant_id,omitempty"`
}

// PlanResponse represents the plan result
type PlanResponse struct {
	Success bool                    `json:"success"`
	Plan    *domain.ConsumptionPlan `json:"plan,omitempty"`
	Summary string                  `json:"summary"`
	Error   string                  `json:"error,omitempty"`
}

// Plan generates a consumption plan
func (c *Controller) Plan(ctx context.Context, req PlanRequest) (*PlanResponse, error) {
	start := time.Now()
	c.logger.Info("Starting plan: workloads=%d horizon=%s", len(req.Workloads), req.PlanningHorizon)

	planReq := req.PlanRequest
	if planReq.Grant == nil && req.GrantID != "" {
		grant, err := c.grants.Get(req.GrantID)
		if err != nil {
			c.recorder.ObservePlanFailure(err)
			return nil, err
		}
		planReq.Grant = grant
	}

	plan, err := c.orchestrator.CreatePlan(ctx, planReq)
	if err != nil {
		c.logger.Warn("Plan failed: %v", err)
		c.recorder.ObservePlanFailure(err)
		return nil, err
	}

	elapsed := time.Since(start)
	c.recorder.ObservePlan(plan, elapsed)
	c.logger.WithFields(logging.Fields{
		"plan":     plan.ID,
		"scenario": plan.Optimization.SelectedScenario,
		"elapsed":  elapsed.Round(time.Millisecond),
	}).Info("Plan generated: $%.2f/month, %.1f%% savings", plan.CostBreakdown.Total.MonthlyCost, plan.VsAllOnDemandSavings.Percentage)

	return &PlanResponse{
		Success: true,
		Plan:    plan,
		Summary: c.summarizer.Summary(plan),
	}, nil
}

// GrantResponse represents a grant and its totals
type GrantResponse struct {
	Success bool                `json:"success"`
	Grant   *domain.Grant       `json:"grant"`
	Summary domain.GrantSummary `json:"summary"`
}

// CreateGrant generates the grant's budget periods and stores it
func (c *Controller) CreateGrant(ctx context.Context, grant *domain.Grant) (*GrantResponse, error) {
	if grant == nil {
		return nil, domain.NewValidationError("grant", "must be specified")
	}
	g := grant.Clone()
	if g.ID == "" {
		g.ID = c.ids.NewID("grant")
	}

	unlock := c.locks.Lock(g.ID)
	defer unlock()

	if _, err := c.ledger.GeneratePeriods(g); err != nil {
		return nil, err
	}
	if err := c.grants.Save(g); err != nil {
		return nil, err
	}

	c.logger.Info("Created grant %s with %d %s periods", g.ID, len(g.Periods), g.BudgetPeriodType)
	return &GrantResponse{Success: true, Grant: g, Summary: budget.Summarize(g)}, nil
}

// GetGrant returns a stored grant with its totals
func (c *Controller) GetGrant(ctx context.Context, grantID string) (*GrantResponse, error) {
	g, err := c.grants.Get(grantID)
	if err != nil {
		return nil, err
	}
	return &GrantResponse{Success: true, Grant: g, Summary: budget.Summarize(g)}, nil
}

// ListGrants returns the stored grant IDs
func (c *Controller) ListGrants() []string {
	return c.grants.List()
}

// SpendRequest records spend against a grant's current period
type SpendRequest struct {
	GrantID string  `json:"grant_id" yaml:"grant_id"`
	Amount  float64 `json:"amount" yaml:"amount"`
	Kind    string  `json:"kind,omitempty" yaml:"kind,omitempty"` // spent (default), committed, pending
}

// SpendResponse represents the updated period and any alerts
type SpendResponse struct {
	Success bool                      `json:"success"`
	Period  *domain.GrantBudgetPeriod `json:"period"`
	Alerts  []domain.BudgetAlert      `json:"alerts"`
	Summary domain.GrantSummary       `json:"summary"`
}

// RecordSpend applies spend to the current period of a stored grant.
// Updates to one grant are serialized.
func (c *Controller) RecordSpend(ctx context.Context, req SpendRequest) (*SpendResponse, error) {
	if req.GrantID == "" {
		return nil, domain.NewValidationError("grant_id", "must be specified")
	}

	unlock := c.locks.Lock(req.GrantID)
	defer unlock()

	grant, err := c.grants.Get(req.GrantID)
	if err != nil {
		return nil, err
	}

	var (
		period *domain.GrantBudgetPeriod
		alerts []domain.BudgetAlert
	)
	switch req.Kind {
	case "", SpendActual:
		period, alerts, err = c.ledger.UpdateGrantSpending(grant, req.Amount)
	case SpendCommitted, SpendPending:
		period = budget.CurrentPeriod(grant, c.clock())
		if period == nil {
			return nil, domain.NewNotFoundError("budget period", grant.ID)
		}
		if req.Kind == SpendCommitted {
			err = c.ledger.RecordCommitment(period, req.Amount)
		} else {
			err = c.ledger.RecordPending(period, req.Amount)
		}
	default:
		err = domain.NewValidationError("kind", fmt.Sprintf("unknown spend kind %q", req.Kind))
	}
	if err != nil {
		return nil, err
	}

	if err := c.grants.Save(grant); err != nil {
		return nil, err
	}
	c.recorder.ObserveSpend(period, alerts)

	if alerts == nil {
		alerts = []domain.BudgetAlert{}
	}
	return &SpendResponse{Success: true, Period: period, Alerts: alerts, Summary: budget.Summarize(grant)}, nil
}

// ForecastRequest asks for a spend forecast. With a GrantID the current
// spend, allocation and remaining months are derived from the stored grant;
// otherwise the explicit fields are used.
type ForecastRequest struct {
	domain.ForecastInput `yaml:",inline"`
}

// ForecastResponse wraps a forecast
type ForecastResponse struct {
	Success  bool                   `json:"success"`
	Forecast *domain.BudgetForecast `json:"forecast"`
}

// Forecast projects grant spend
func (c *Controller) Forecast(ctx context.Context, req ForecastRequest) (*ForecastResponse, error) {
	input := req.ForecastInput
	if input.AsOf.IsZero() {
		input.AsOf = c.clock()
	}

	if input.GrantID != "" {
		grant, err := c.grants.Get(input.GrantID)
		if err != nil {
			return nil, err
		}
		summary := budget.Summarize(grant)
		input.CurrentSpent = summary.TotalSpent
		input.Allocation = summary.TotalAllocated
		input.RemainingMonths = RemainingMonths(grant, input.AsOf)
	}

	forecast, err := c.forecaster.Project(input)
	if err != nil {
		return nil, err
	}
	if forecast.ExceedsAllocation {
		c.logger.Warn("Forecast for %s exceeds allocation: projected $%.2f of $%.2f",
			input.GrantID, forecast.ProjectedTotal, input.Allocation)
	}
	return &ForecastResponse{Success: true, Forecast: forecast}, nil
}

// RemainingMonths is the time left until the grant ends, in 30-day months
func RemainingMonths(grant *domain.Grant, asOf time.Time) float64 {
	end := grant.EndDate
	if end.IsZero() && len(grant.Periods) > 0 {
		end = grant.Periods[len(grant.Periods)-1].EndDate
	}
	if !end.After(asOf) {
		return 0
	}
	months := end.Sub(asOf).Hours() / 24 / 30
	return math.Round(months*100) / 100
}

// Families lists the instance families known to the catalog
func (c *Controller) Families() []provider.FamilySpec {
	names := c.catalog.Families()
	sort.Strings(names)

	result := make([]provider.FamilySpec, 0, len(names))
	for _, name := range names {
		if spec, ok := c.catalog.Family(name); ok {
			result = append(result, spec)
		}
	}
	return result
}

// CacheStatus reports spot-rate cache statistics. Empty when live rates are off.
func (c *Controller) CacheStatus() provider.CacheStats {
	if c.cache == nil {
		return provider.CacheStats{}
	}
	return c.cache.Stats()
}
