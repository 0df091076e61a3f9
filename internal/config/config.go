// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Health      HealthConfig      `mapstructure:"health"`
	Feed        FeedConfig        `mapstructure:"feed"`
	Network     NetworkConfig     `mapstructure:"network"`
	Detection   DetectionConfig   `mapstructure:"detection"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Cost        CostConfig        `mapstructure:"cost"`
	Bundle      BundleConfig      `mapstructure:"bundle"`
	Ordering    OrderingConfig    `mapstructure:"ordering"`
	Attribution AttributionConfig `mapstructure:"attribution"`
	Journal     JournalConfig     `mapstructure:"journal"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFile     string `mapstructure:"log_file"`
	LogMaxSize  int    `mapstructure:"log_max_size_mb"`
	LogBackups  int    `mapstructure:"log_max_backups"`
	LogMaxAge   int    `mapstructure:"log_max_age_days"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	TraceProvider  string  `mapstructure:"trace_provider"` // zipkin, otlp-grpc, otlp-http, console, none
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string  `mapstructure:"otlp_headers"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
	PrometheusPort int     `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// FeedConfig configures snapshot ingestion.
type FeedConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	Subscribe      []string      `mapstructure:"subscribe"` // channels sent on connect
	ReplayFile     string        `mapstructure:"replay_file"`
	ReplayInterval time.Duration `mapstructure:"replay_interval"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// NetworkConfig configures the congestion source.
type NetworkConfig struct {
	Name             string             `mapstructure:"name"`     // solana, ethereum
	Provider         string             `mapstructure:"provider"` // solana, ethereum, http, static
	RPCURL           string             `mapstructure:"rpc_url"`
	FeedURL          string             `mapstructure:"feed_url"`
	RefreshInterval  time.Duration      `mapstructure:"refresh_interval"`
	RequestsPerMin   int                `mapstructure:"requests_per_min"`
	StaleAfter       time.Duration      `mapstructure:"stale_after"`
	StaticMultiplier float64            `mapstructure:"static_multiplier"`
	BaselineFee      float64            `mapstructure:"baseline_fee"` // micro-lamports per CU or gwei tip at multiplier 1
	MaxMultiplier    float64            `mapstructure:"max_multiplier"`
	FeeAccounts      []string           `mapstructure:"fee_accounts"` // writable accounts for localized fee markets
	VenueCompetition map[string]float64 `mapstructure:"venue_competition"`
}

// DetectionConfig holds opportunity detection parameters.
type DetectionConfig struct {
	MinPriceDeltaPct   float64            `mapstructure:"min_price_delta_pct"`
	MinVolumeUSD       float64            `mapstructure:"min_volume_usd"`
	Tranches           []float64          `mapstructure:"tranches"`
	SlippageBase       float64            `mapstructure:"slippage_base"`
	SlippageMultiplier float64            `mapstructure:"slippage_multiplier"`
	SafetyBuffer       float64            `mapstructure:"safety_buffer"`
	ArbitrageTTL       time.Duration      `mapstructure:"arbitrage_ttl"`
	LiquidationTTL     time.Duration      `mapstructure:"liquidation_ttl"`
	LiquidationBonus   map[string]float64 `mapstructure:"liquidation_bonus"`
	Workers            int                `mapstructure:"workers"`
}

// RiskConfig holds risk scoring parameters.
type RiskConfig struct {
	Weights        map[string]float64 `mapstructure:"weights"`
	MaxPositionUSD float64            `mapstructure:"max_position_usd"`
}

// CostConfig holds execution cost parameters.
type CostConfig struct {
	Network             string             `mapstructure:"network"`
	VenueTypes          map[string]string  `mapstructure:"venue_types"` // venue -> amm, clob, lending
	VenueUnits          map[string]uint64  `mapstructure:"venue_units"` // venue type -> compute units
	DefaultUnits        uint64             `mapstructure:"default_units"`
	LiquidationUnits    uint64             `mapstructure:"liquidation_units"`
	ComputeUnitPriceUSD float64            `mapstructure:"compute_unit_price_usd"`
	BaseFeeUSD          map[string]float64 `mapstructure:"base_fee_usd"` // network -> fee
	BasePriorityFeeUSD  float64            `mapstructure:"base_priority_fee_usd"`
	BundleDiscount      float64            `mapstructure:"bundle_discount"`
}

// BundleConfig holds bundle composition parameters.
type BundleConfig struct {
	MaxSize            int           `mapstructure:"max_size"`
	Strategy           string        `mapstructure:"strategy"`
	MaxRisk            float64       `mapstructure:"max_risk"`
	MinProfit          float64       `mapstructure:"min_profit"`
	ExhaustiveLimit    int           `mapstructure:"exhaustive_limit"`
	SynergyBonus       float64       `mapstructure:"synergy_bonus"`
	MaxBundlesPerCycle int           `mapstructure:"max_bundles_per_cycle"`
	DrainInterval      time.Duration `mapstructure:"drain_interval"`
	DrainThreshold     int           `mapstructure:"drain_threshold"`
	QueueSize          int           `mapstructure:"queue_size"`
}

// OrderingConfig holds order optimizer parameters.
type OrderingConfig struct {
	Concurrency      int           `mapstructure:"concurrency"`
	GeneticTimeout   time.Duration `mapstructure:"genetic_timeout"`
	AnnealingTimeout time.Duration `mapstructure:"annealing_timeout"`
	Population       int           `mapstructure:"population"`
	Generations      int           `mapstructure:"generations"`
	MutationRate     float64       `mapstructure:"mutation_rate"`
	InitialTemp      float64       `mapstructure:"initial_temp"`
	CoolingRate      float64       `mapstructure:"cooling_rate"`
	MinTemp          float64       `mapstructure:"min_temp"`
	DriftRate        float64       `mapstructure:"drift_rate"`
	ViolationPenalty float64       `mapstructure:"violation_penalty"`
	Seed             int64         `mapstructure:"seed"`
	MaxPermutations  int           `mapstructure:"max_permutations"`
}

// AttributionConfig holds outcome history settings.
type AttributionConfig struct {
	RedisAddr         string        `mapstructure:"redis_addr"`
	RedisPassword     string        `mapstructure:"redis_password"`
	RedisDB           int           `mapstructure:"redis_db"`
	HistoryLength     int           `mapstructure:"history_length"`
	HistoryTTL        time.Duration `mapstructure:"history_ttl"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
	MinSamples        int           `mapstructure:"min_samples"`
	StatisticalWeight float64       `mapstructure:"statistical_weight"`
	PatternWeight     float64       `mapstructure:"pattern_weight"`
	CorrelationWeight float64       `mapstructure:"correlation_weight"`
}

// JournalConfig configures the terminal-event journal.
type JournalConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

// PipelineConfig holds engine-level knobs.
type PipelineConfig struct {
	ExpirySweep time.Duration `mapstructure:"expiry_sweep"`
	QuoteMaxAge time.Duration `mapstructure:"quote_max_age"`
	EventBuffer int           `mapstructure:"event_buffer"`
	EventTime   bool          `mapstructure:"event_time"` // clock follows snapshot timestamps
	Sink        string        `mapstructure:"sink"`
}

// MinPriceDeltaPctDecimal returns the arbitrage threshold as decimal.
func (c *DetectionConfig) MinPriceDeltaPctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinPriceDeltaPct)
}

// MinVolumeUSDDecimal returns the minimum volume as decimal.
func (c *DetectionConfig) MinVolumeUSDDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinVolumeUSD)
}

// TranchesDecimal returns tranche fractions as decimals.
func (c *DetectionConfig) TranchesDecimal() []decimal.Decimal {
	out := make([]decimal.Decimal, len(c.Tranches))
	for i, f := range c.Tranches {
		out[i] = decimal.NewFromFloat(f)
	}
	return out
}

// MinProfitDecimal returns the bundle profit floor as decimal.
func (c *BundleConfig) MinProfitDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfit)
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("MEV")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "MEV_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "MEV_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "MEV_LOG_LEVEL", "LOG_LEVEL")
	v.BindEnv("app.log_file", "MEV_LOG_FILE")

	// Feed
	v.BindEnv("feed.websocket_url", "MEV_FEED_WS_URL")
	v.BindEnv("feed.replay_file", "MEV_REPLAY_FILE")

	// Network
	v.BindEnv("network.provider", "MEV_NETWORK_PROVIDER")
	v.BindEnv("network.rpc_url", "MEV_RPC_URL", "SOLANA_RPC_URL")
	v.BindEnv("network.feed_url", "MEV_CONGESTION_URL")

	// Bundle
	v.BindEnv("bundle.strategy", "MEV_BUNDLE_STRATEGY")
	v.BindEnv("bundle.max_risk", "MEV_BUNDLE_MAX_RISK")
	v.BindEnv("bundle.min_profit", "MEV_BUNDLE_MIN_PROFIT")

	// Attribution
	v.BindEnv("attribution.redis_addr", "MEV_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("attribution.redis_password", "MEV_REDIS_PASSWORD", "REDIS_PASSWORD")
	v.BindEnv("journal.path", "MEV_JOURNAL_PATH")

	// Pipeline
	v.BindEnv("pipeline.event_time", "MEV_EVENT_TIME")
	v.BindEnv("pipeline.sink", "MEV_SINK")

	// Telemetry
	v.BindEnv("telemetry.enabled", "MEV_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "MEV_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "MEV_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "MEV_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mev-bundler")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_max_size_mb", 100)
	v.SetDefault("app.log_max_backups", 5)
	v.SetDefault("app.log_max_age_days", 14)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "mev-bundler")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.prometheus_port", 9090)

	v.SetDefault("health.port", 8081)

	v.SetDefault("feed.replay_interval", "50ms")
	v.SetDefault("feed.initial_backoff", "1s")
	v.SetDefault("feed.max_backoff", "30s")

	v.SetDefault("network.name", "solana")
	v.SetDefault("network.provider", "static")
	v.SetDefault("network.refresh_interval", "2s")
	v.SetDefault("network.requests_per_min", 120)
	v.SetDefault("network.stale_after", "30s")
	v.SetDefault("network.static_multiplier", 1.0)
	v.SetDefault("network.baseline_fee", 10000)
	v.SetDefault("network.max_multiplier", 10.0)

	v.SetDefault("detection.min_price_delta_pct", 0.001)
	v.SetDefault("detection.min_volume_usd", 10)
	v.SetDefault("detection.tranches", []float64{0.10, 0.25, 0.50, 1.00})
	v.SetDefault("detection.slippage_base", 0.0005)
	v.SetDefault("detection.slippage_multiplier", 0.0002)
	v.SetDefault("detection.safety_buffer", 0.1)
	v.SetDefault("detection.arbitrage_ttl", "3s")
	v.SetDefault("detection.liquidation_ttl", "30s")
	v.SetDefault("detection.liquidation_bonus", map[string]float64{
		"stable":   0.05,
		"major":    0.075,
		"longtail": 0.10,
	})
	v.SetDefault("detection.workers", 4)

	v.SetDefault("risk.weights", map[string]float64{
		"volatility":      0.25,
		"liquidity":       0.20,
		"market_trend":    0.15,
		"position_health": 0.20,
		"position_size":   0.10,
		"competition":     0.10,
	})
	v.SetDefault("risk.max_position_usd", 50000)

	v.SetDefault("cost.network", "solana")
	v.SetDefault("cost.venue_units", map[string]uint64{
		"amm":     120000,
		"clob":    60000,
		"lending": 180000,
	})
	v.SetDefault("cost.default_units", 100000)
	v.SetDefault("cost.liquidation_units", 250000)
	v.SetDefault("cost.compute_unit_price_usd", 0.0000002)
	v.SetDefault("cost.base_fee_usd", map[string]float64{
		"solana":   0.001,
		"ethereum": 1.5,
	})
	v.SetDefault("cost.base_priority_fee_usd", 0.01)
	v.SetDefault("cost.bundle_discount", 0.10)

	v.SetDefault("bundle.max_size", 5)
	v.SetDefault("bundle.strategy", "balanced")
	v.SetDefault("bundle.max_risk", 7)
	v.SetDefault("bundle.min_profit", 0)
	v.SetDefault("bundle.exhaustive_limit", 10)
	v.SetDefault("bundle.synergy_bonus", 0.1)
	v.SetDefault("bundle.max_bundles_per_cycle", 4)
	v.SetDefault("bundle.drain_interval", "500ms")
	v.SetDefault("bundle.drain_threshold", 64)
	v.SetDefault("bundle.queue_size", 1024)

	v.SetDefault("ordering.concurrency", 3)
	v.SetDefault("ordering.genetic_timeout", "2s")
	v.SetDefault("ordering.annealing_timeout", "5s")
	v.SetDefault("ordering.population", 40)
	v.SetDefault("ordering.generations", 50)
	v.SetDefault("ordering.mutation_rate", 0.2)
	v.SetDefault("ordering.initial_temp", 10.0)
	v.SetDefault("ordering.cooling_rate", 0.995)
	v.SetDefault("ordering.min_temp", 0.001)
	v.SetDefault("ordering.drift_rate", 0.001)
	v.SetDefault("ordering.violation_penalty", 1000)
	v.SetDefault("ordering.seed", 1)
	v.SetDefault("ordering.max_permutations", 120)

	v.SetDefault("attribution.redis_db", 0)
	v.SetDefault("attribution.history_length", 100)
	v.SetDefault("attribution.history_ttl", "168h")
	v.SetDefault("attribution.refresh_interval", "30s")
	v.SetDefault("attribution.min_samples", 5)
	v.SetDefault("attribution.statistical_weight", 0.4)
	v.SetDefault("attribution.pattern_weight", 0.3)
	v.SetDefault("attribution.correlation_weight", 0.3)

	v.SetDefault("journal.path", "./data/journal")

	v.SetDefault("pipeline.expiry_sweep", "1s")
	v.SetDefault("pipeline.quote_max_age", "5s")
	v.SetDefault("pipeline.event_buffer", 256)
	v.SetDefault("pipeline.event_time", false)
	v.SetDefault("pipeline.sink", "console")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Detection.MinPriceDeltaPct < 0 {
		return fmt.Errorf("detection.min_price_delta_pct must be >= 0")
	}
	if len(c.Detection.Tranches) == 0 {
		return fmt.Errorf("detection.tranches cannot be empty")
	}
	for _, f := range c.Detection.Tranches {
		if f <= 0 || f > 1 {
			return fmt.Errorf("detection.tranches must be in (0,1], got %v", f)
		}
	}
	if c.Bundle.MaxSize < 1 {
		return fmt.Errorf("bundle.max_size must be >= 1")
	}
	if c.Bundle.MaxRisk < 1 || c.Bundle.MaxRisk > 10 {
		return fmt.Errorf("bundle.max_risk must be in [1,10], got %v", c.Bundle.MaxRisk)
	}
	if c.Cost.BundleDiscount < 0 || c.Cost.BundleDiscount >= 1 {
		return fmt.Errorf("cost.bundle_discount must be in [0,1), got %v", c.Cost.BundleDiscount)
	}
	switch c.Bundle.Strategy {
	case "greedy", "balanced", "risk_averse", "diversified", "synergistic":
	default:
		return fmt.Errorf("unknown bundle.strategy: %s", c.Bundle.Strategy)
	}
	if c.Ordering.Concurrency < 1 {
		return fmt.Errorf("ordering.concurrency must be >= 1")
	}
	if c.Detection.Workers < 1 {
		return fmt.Errorf("detection.workers must be >= 1")
	}
	switch c.Pipeline.Sink {
	case "console", "log":
	default:
		return fmt.Errorf("unknown pipeline.sink: %s", c.Pipeline.Sink)
	}
	switch c.Network.Provider {
	case "static":
	case "solana", "ethereum":
		if c.Network.RPCURL == "" {
			return fmt.Errorf("network.rpc_url is required for provider %s", c.Network.Provider)
		}
	case "http":
		if c.Network.FeedURL == "" {
			return fmt.Errorf("network.feed_url is required for provider http")
		}
	default:
		return fmt.Errorf("unknown network.provider: %s", c.Network.Provider)
	}
	if c.Feed.WebSocketURL == "" && c.Feed.ReplayFile == "" {
		return fmt.Errorf("either feed.websocket_url or feed.replay_file is required")
	}
	return nil
}
