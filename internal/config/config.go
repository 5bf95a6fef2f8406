package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Collector  CollectorConfig  `yaml:"collector" mapstructure:"collector"`
	Submit     SubmitConfig     `yaml:"submit" mapstructure:"submit"`
	Backfill   BackfillConfig   `yaml:"backfill" mapstructure:"backfill"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Dedup      DedupConfig      `yaml:"dedup" mapstructure:"dedup"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings for the vision model.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	VisionModel string `yaml:"vision_model" mapstructure:"vision_model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PricingConfig holds per-model vision pricing. Empty means built-in rates.
type PricingConfig struct {
	Vision map[string]ModelPricing `yaml:"vision" mapstructure:"vision"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// CollectorConfig configures the article list collector.
type CollectorConfig struct {
	BaseURL     string   `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int      `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgents  []string `yaml:"user_agents" mapstructure:"user_agents"`
}

// SubmitConfig configures the outbound data API.
type SubmitConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// BackfillConfig configures the backfill orchestrator.
type BackfillConfig struct {
	TotalPages       int    `yaml:"total_pages" mapstructure:"total_pages"`
	BatchSize        int    `yaml:"batch_size" mapstructure:"batch_size"`
	BatchDelaySecs   int    `yaml:"batch_delay_secs" mapstructure:"batch_delay_secs"`
	PageDelayMinSecs int    `yaml:"page_delay_min_secs" mapstructure:"page_delay_min_secs"`
	PageDelayMaxSecs int    `yaml:"page_delay_max_secs" mapstructure:"page_delay_max_secs"`
	Concurrency      int    `yaml:"concurrency" mapstructure:"concurrency"`
	OCRConcurrency   int    `yaml:"ocr_concurrency" mapstructure:"ocr_concurrency"`
	CheckpointPath   string `yaml:"checkpoint_path" mapstructure:"checkpoint_path"`
}

// StoreConfig configures the optional run ledger.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// DedupConfig configures the cross-run processed URL store.
type DedupConfig struct {
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// MonitoringConfig configures the Prometheus endpoint and run alerts.
type MonitoringConfig struct {
	MetricsAddr          string  `yaml:"metrics_addr" mapstructure:"metrics_addr"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EVDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Env-only keys must be registered or Unmarshal never sees them.
	for _, key := range []string{
		"anthropic.key",
		"submit.api_key",
		"store.database_url",
		"dedup.redis_url",
		"monitoring.metrics_addr",
		"monitoring.webhook_url",
	} {
		v.SetDefault(key, "")
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.vision_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("collector.base_url", "https://cnevdata.com")
	v.SetDefault("collector.rate_limit", 1.0)
	v.SetDefault("collector.timeout_secs", 30)
	v.SetDefault("collector.max_retries", 3)
	v.SetDefault("submit.base_url", "http://localhost:3000")
	v.SetDefault("submit.rate_limit", 5.0)
	v.SetDefault("submit.timeout_secs", 30)
	v.SetDefault("submit.max_retries", 3)
	v.SetDefault("backfill.total_pages", 120)
	v.SetDefault("backfill.batch_size", 10)
	v.SetDefault("backfill.batch_delay_secs", 60)
	v.SetDefault("backfill.page_delay_min_secs", 3)
	v.SetDefault("backfill.page_delay_max_secs", 8)
	v.SetDefault("backfill.concurrency", 4)
	v.SetDefault("backfill.ocr_concurrency", 5)
	v.SetDefault("backfill.checkpoint_path", "backfill_checkpoint.json")
	v.SetDefault("store.driver", "none")
	v.SetDefault("dedup.ttl_hours", 720)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.cost_threshold_usd", 25.0)
	v.SetDefault("monitoring.lookback_window_hours", 24)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a given command depends on.
// Mode is one of "backfill", "ocr", "runs" or "local".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "", "none", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, "store.driver must be one of none, sqlite, postgres")
	}

	switch mode {
	case "backfill":
		if c.Collector.BaseURL == "" {
			errs = append(errs, "collector.base_url is required")
		}
		if c.Submit.BaseURL == "" {
			errs = append(errs, "submit.base_url is required")
		}
		if c.Backfill.Concurrency < 0 || c.Backfill.Concurrency > 50 {
			errs = append(errs, "backfill.concurrency must be between 0 and 50")
		}
		if c.Backfill.OCRConcurrency < 0 || c.Backfill.OCRConcurrency > 20 {
			errs = append(errs, "backfill.ocr_concurrency must be between 0 and 20")
		}
		if c.Backfill.PageDelayMaxSecs < c.Backfill.PageDelayMinSecs {
			errs = append(errs, "backfill.page_delay_max_secs must be >= page_delay_min_secs")
		}
	case "ocr":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	case "runs":
		if c.Store.Driver == "" || c.Store.Driver == "none" {
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
	case "local":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
