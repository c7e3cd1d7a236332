// Package config provides centralized configuration management
// for the commitment planner. It supports loading from .env files,
// YAML files, environment variables, and AWS Secrets Manager for the
// negotiated discount profile.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/commitment-planner/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables
const (
	EnvPort            = "PLANNER_PORT"
	EnvCacheTTL        = "PLANNER_CACHE_TTL"
	EnvRegion          = "AWS_DEFAULT_REGION"
	EnvLiveSpotRates   = "PLANNER_LIVE_SPOT_RATES"
	EnvPlanningHorizon = "PLANNER_PLANNING_HORIZON"
	EnvLogLevel        = "PLANNER_LOG_LEVEL"
	EnvEDPDiscount     = "PLANNER_EDP_DISCOUNT"
	EnvDiscountSecret  = "PLANNER_DISCOUNT_SECRET"
	EnvConfigFile      = "PLANNER_CONFIG"
)

// DefaultDiscountSecret is read in Lambda when PLANNER_DISCOUNT_SECRET is unset
const DefaultDiscountSecret = "commitment-planner/discounts"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig           `yaml:"server"`
	Cache     CacheConfig            `yaml:"cache"`
	Pricing   PricingConfig          `yaml:"pricing"`
	Optimizer OptimizerConfig        `yaml:"optimizer"`
	Budget    BudgetConfig           `yaml:"budget"`
	Discounts domain.DiscountProfile `yaml:"discounts"`
	Logging   LoggingConfig          `yaml:"logging"`
}

// ServerConfig holds server-related settings
type ServerConfig struct {
	Port               int           `yaml:"port"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
}

// CacheConfig holds cache-related settings
type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// PricingConfig controls the pricing catalog
type PricingConfig struct {
	Region        string        `yaml:"region"`
	LiveSpotRates bool          `yaml:"live_spot_rates"`
	LookbackDays  int           `yaml:"lookback_days"`
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
}

// ScoringWeights are the default scenario scoring weights
type ScoringWeights struct {
	Cost           float64 `yaml:"cost"`
	Risk           float64 `yaml:"risk"`
	Flexibility    float64 `yaml:"flexibility"`
	Reliability    float64 `yaml:"reliability"`
	Specialization float64 `yaml:"specialization"`
}

// OptimizerConfig holds planning defaults
type OptimizerConfig struct {
	PlanningHorizon  string         `yaml:"planning_horizon"`
	Weights          ScoringWeights `yaml:"weights"`
	DeterministicIDs bool           `yaml:"deterministic_ids"`
}

// BudgetConfig holds ledger and forecast defaults
type BudgetConfig struct {
	WarningThreshold  float64 `yaml:"warning_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold"`
	ForecastWindow    int     `yaml:"forecast_window"`
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	EnableFile  bool   `yaml:"enable_file"`
	EnableJSON  bool   `yaml:"enable_json"`
	EnableColor bool   `yaml:"enable_color"`
	LogDir      string `yaml:"log_dir"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
	Compress    bool   `yaml:"compress"`
}

var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8000,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       60 * time.Second,
			RateLimitPerMinute: 60,
		},
		Cache: CacheConfig{
			TTL:             2 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Pricing: PricingConfig{
			Region:        "us-east-1",
			LiveSpotRates: false,
			LookbackDays:  7,
			LookupTimeout: 5 * time.Second,
		},
		Optimizer: OptimizerConfig{
			PlanningHorizon: string(domain.OneYear),
			Weights: ScoringWeights{
				Cost:           0.25,
				Risk:           0.15,
				Flexibility:    0.15,
				Reliability:    0.15,
				Specialization: 0.30,
			},
		},
		Budget: BudgetConfig{
			WarningThreshold:  domain.DefaultWarningThreshold,
			CriticalThreshold: domain.DefaultCriticalThreshold,
			ForecastWindow:    3,
		},
		Logging: LoggingConfig{
			Level:       "info",
			EnableFile:  false,
			EnableJSON:  false,
			EnableColor: true,
			LogDir:      "logs",
			MaxSizeMB:   10,
			MaxBackups:  5,
			MaxAgeDays:  7,
			Compress:    true,
		},
	}
}

// Get returns the global configuration, loading it on first use.
// Load errors fall back to defaults plus environment overrides.
func Get() *Config {
	configMu.RLock()
	cfg := globalConfig
	configMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	configMu.Lock()
	defer configMu.Unlock()
	if globalConfig == nil {
		loaded, err := Load(os.Getenv(EnvConfigFile))
		if err != nil {
			loaded = DefaultConfig()
			applyEnvOverrides(loaded)
		}
		globalConfig = loaded
	}
	return globalConfig
}

// Set replaces the global configuration
func Set(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	globalConfig = cfg
}

// Reload reloads the configuration from file and environment
func Reload() error {
	cfg, err := Load(os.Getenv(EnvConfigFile))
	if err != nil {
		return err
	}
	Set(cfg)
	return nil
}

// Load builds a configuration from defaults, a .env file, the YAML file at
// path (or the first config.yaml found when path is empty), environment
// overrides and, when configured, the discount secret.
func Load(path string) (*Config, error) {
	// A missing .env is normal
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if err := loadConfigFile(cfg, path); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if secret := discountSecretName(); secret != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := loadDiscountsFromSecretsManager(ctx, cfg, secret); err != nil && !IsLambda() {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile merges a YAML file into cfg. An explicit path must exist;
// otherwise the default locations are tried and may all be absent.
func loadConfigFile(cfg *Config, path string) error {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		return nil
	}

	paths := []string{
		"config.yaml",
		"config.yml",
		filepath.Join(getExecutableDir(), "config.yaml"),
		filepath.Join(getExecutableDir(), "config.yml"),
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", p, err)
		}
		return nil
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv(EnvPort); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if ttl := os.Getenv(EnvCacheTTL); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Cache.TTL = d
		}
	}

	if region := os.Getenv(EnvRegion); region != "" {
		cfg.Pricing.Region = region
	}

	if live := os.Getenv(EnvLiveSpotRates); live != "" {
		if b, err := strconv.ParseBool(live); err == nil {
			cfg.Pricing.LiveSpotRates = b
		}
	}

	if horizon := os.Getenv(EnvPlanningHorizon); horizon != "" {
		cfg.Optimizer.PlanningHorizon = horizon
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}

	if edp := os.Getenv(EnvEDPDiscount); edp != "" {
		if f, err := strconv.ParseFloat(edp, 64); err == nil {
			cfg.Discounts.EDPDiscount = f
		}
	}

	// Lambda has a read-only filesystem outside /tmp and CloudWatch captures stdout
	if IsLambda() {
		cfg.Logging.EnableFile = false
		cfg.Logging.EnableColor = false
		cfg.Logging.EnableJSON = true
	}
}

// Validate checks ranges and cross-field consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return domain.NewValidationError("server.port", fmt.Sprintf("must be between 1 and 65535, got %d", c.Server.Port))
	}
	switch domain.CommitmentTerm(c.Optimizer.PlanningHorizon) {
	case domain.OneYear, domain.ThreeYear:
	default:
		return domain.NewValidationError("optimizer.planning_horizon", fmt.Sprintf("must be 1yr or 3yr, got %q", c.Optimizer.PlanningHorizon))
	}
	b := c.Budget
	if b.WarningThreshold <= 0 || b.CriticalThreshold > 100 || b.WarningThreshold >= b.CriticalThreshold {
		return domain.NewValidationError("budget", "thresholds must satisfy 0 < warning < critical <= 100")
	}
	if b.ForecastWindow < 1 {
		return domain.NewValidationError("budget.forecast_window", "must be at least 1")
	}
	if c.Discounts.EDPDiscount < 0 || c.Discounts.EDPDiscount >= 1 {
		return domain.NewValidationError("discounts.edp_discount", "must be in [0, 1)")
	}
	return nil
}

// DiscountSecretPayload is the secret structure in AWS Secrets Manager
type DiscountSecretPayload struct {
	EDPDiscount      *float64           `json:"edp_discount"`
	PPADiscounts     map[string]float64 `json:"ppa_discounts"`
	AvailableCredits *float64           `json:"available_credits"`
	MonthlyBudget    *float64           `json:"monthly_budget"`
	VolumeDiscounts  map[string]float64 `json:"volume_discounts"`
}

// SecretGetter is the subset of the Secrets Manager client used here
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func discountSecretName() string {
	if name := os.Getenv(EnvDiscountSecret); name != "" {
		return name
	}
	if IsLambda() {
		return DefaultDiscountSecret
	}
	return ""
}

// loadDiscountsFromSecretsManager loads the discount profile with the default AWS credentials
func loadDiscountsFromSecretsManager(ctx context.Context, cfg *Config, secretName string) error {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Pricing.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}
	return ApplyDiscountSecret(ctx, secretsmanager.NewFromConfig(awsCfg), secretName, cfg)
}

// ApplyDiscountSecret reads a JSON discount profile from Secrets Manager and
// merges the fields it sets into cfg.Discounts
func ApplyDiscountSecret(ctx context.Context, client SecretGetter, secretName string, cfg *Config) error {
	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &secretName,
	})
	if err != nil {
		return fmt.Errorf("failed to read secret %s: %w", secretName, err)
	}
	if result.SecretString == nil {
		return nil
	}

	var payload DiscountSecretPayload
	if err := json.Unmarshal([]byte(*result.SecretString), &payload); err != nil {
		return fmt.Errorf("failed to parse secret %s: %w", secretName, err)
	}

	if payload.EDPDiscount != nil {
		cfg.Discounts.EDPDiscount = *payload.EDPDiscount
	}
	if payload.AvailableCredits != nil {
		cfg.Discounts.AvailableCredits = *payload.AvailableCredits
	}
	if payload.MonthlyBudget != nil {
		cfg.Discounts.MonthlyBudget = *payload.MonthlyBudget
	}
	if len(payload.PPADiscounts) > 0 {
		cfg.Discounts.PPADiscounts = payload.PPADiscounts
	}
	if len(payload.VolumeDiscounts) > 0 {
		cfg.Discounts.VolumeDiscounts = payload.VolumeDiscounts
	}
	return nil
}

// getExecutableDir returns the directory containing the executable
func getExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// IsLambda returns true if running in AWS Lambda
func IsLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
