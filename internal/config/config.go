package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the console backend configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	Polling      PollingConfig      `yaml:"polling"`
	Thresholds   ThresholdsConfig   `yaml:"thresholds"`
	RateLimits   RateLimitsConfig   `yaml:"rate_limits"`
	Integrations IntegrationsConfig `yaml:"integrations"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	BasePath string `yaml:"base_path"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PollingConfig controls the telemetry poll cycle
type PollingConfig struct {
	// Interval between poll cycles
	Interval time.Duration `yaml:"interval"`
	// Window is the time range requested from the metrics backend, e.g. "15m"
	Window string `yaml:"window"`
	// MaxPoints caps the number of samples retained per chart
	MaxPoints int `yaml:"max_points"`
	// RateWindowSize is the capacity of the smoothed-rate window
	RateWindowSize int `yaml:"rate_window_size"`
	// StalenessThreshold is how long telemetry may go without a successful
	// cycle before it is flagged stale
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`
}

// ThresholdsConfig holds fallback drift thresholds, used when the scoring
// service does not report its own
type ThresholdsConfig struct {
	Warning  float64 `yaml:"warning"`
	Critical float64 `yaml:"critical"`
}

// RateLimitsConfig represents the rate limits configuration
type RateLimitsConfig struct {
	RetrainPerMinute int `yaml:"retrain_per_minute"`
}

// IntegrationsConfig represents external collaborator configuration
type IntegrationsConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Scoring    ScoringConfig    `yaml:"scoring"`
}

// PrometheusConfig represents the metrics backend configuration
type PrometheusConfig struct {
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

// ScoringConfig represents the scoring service API configuration
type ScoringConfig struct {
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

// Load loads the configuration from environment variables and defaults
func Load() (*Config, error) {
	return loadWithDefaults("")
}

// LoadFromFile loads configuration from a YAML file, with environment variable overrides
func LoadFromFile(configPath string) (*Config, error) {
	return loadWithDefaults(configPath)
}

// loadWithDefaults loads configuration with defaults, optionally from a file
func loadWithDefaults(configPath string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:     getEnv("DW_SERVER_ADDR", "0.0.0.0:8090"),
			BasePath: getEnv("DW_SERVER_BASE_PATH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("DW_LOG_LEVEL", "info"),
			Format: getEnv("DW_LOG_FORMAT", "json"),
		},
		Polling: PollingConfig{
			Interval:           getEnvDuration("DW_POLL_INTERVAL", 5*time.Second),
			Window:             getEnv("DW_POLL_WINDOW", "15m"),
			MaxPoints:          getEnvInt("DW_POLL_MAX_POINTS", 180),
			RateWindowSize:     getEnvInt("DW_RATE_WINDOW_SIZE", 6),
			StalenessThreshold: getEnvDuration("DW_STALENESS_THRESHOLD", 12*time.Second),
		},
		Thresholds: ThresholdsConfig{
			Warning:  getEnvFloat("DW_DRIFT_WARNING", 0.5),
			Critical: getEnvFloat("DW_DRIFT_CRITICAL", 0.7),
		},
		RateLimits: RateLimitsConfig{
			RetrainPerMinute: getEnvInt("DW_RETRAIN_PER_MINUTE", 2),
		},
		Integrations: IntegrationsConfig{
			Prometheus: PrometheusConfig{
				URL:     getEnv("DW_PROMETHEUS_URL", "http://localhost:9090"),
				Timeout: getEnv("DW_PROMETHEUS_TIMEOUT", "5s"),
			},
			Scoring: ScoringConfig{
				URL:     getEnv("DW_SCORING_URL", "http://localhost:8000"),
				Timeout: getEnv("DW_SCORING_TIMEOUT", "5s"),
			},
		},
	}

	// Apply file configuration if provided, env vars still win
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
		applyEnvOverrides(cfg)
	}

	return cfg, nil
}

// applyEnvOverrides re-applies environment variables on top of file values
func applyEnvOverrides(cfg *Config) {
	cfg.Server.Addr = getEnv("DW_SERVER_ADDR", cfg.Server.Addr)
	cfg.Server.BasePath = getEnv("DW_SERVER_BASE_PATH", cfg.Server.BasePath)
	cfg.Logging.Level = getEnv("DW_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("DW_LOG_FORMAT", cfg.Logging.Format)
	cfg.Polling.Interval = getEnvDuration("DW_POLL_INTERVAL", cfg.Polling.Interval)
	cfg.Polling.Window = getEnv("DW_POLL_WINDOW", cfg.Polling.Window)
	cfg.Polling.MaxPoints = getEnvInt("DW_POLL_MAX_POINTS", cfg.Polling.MaxPoints)
	cfg.Polling.RateWindowSize = getEnvInt("DW_RATE_WINDOW_SIZE", cfg.Polling.RateWindowSize)
	cfg.Polling.StalenessThreshold = getEnvDuration("DW_STALENESS_THRESHOLD", cfg.Polling.StalenessThreshold)
	cfg.Thresholds.Warning = getEnvFloat("DW_DRIFT_WARNING", cfg.Thresholds.Warning)
	cfg.Thresholds.Critical = getEnvFloat("DW_DRIFT_CRITICAL", cfg.Thresholds.Critical)
	cfg.RateLimits.RetrainPerMinute = getEnvInt("DW_RETRAIN_PER_MINUTE", cfg.RateLimits.RetrainPerMinute)
	cfg.Integrations.Prometheus.URL = getEnv("DW_PROMETHEUS_URL", cfg.Integrations.Prometheus.URL)
	cfg.Integrations.Prometheus.Timeout = getEnv("DW_PROMETHEUS_TIMEOUT", cfg.Integrations.Prometheus.Timeout)
	cfg.Integrations.Scoring.URL = getEnv("DW_SCORING_URL", cfg.Integrations.Scoring.URL)
	cfg.Integrations.Scoring.Timeout = getEnv("DW_SCORING_TIMEOUT", cfg.Integrations.Scoring.Timeout)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if c.Polling.Interval <= 0 {
		return fmt.Errorf("polling.interval must be positive, got %s", c.Polling.Interval)
	}

	if _, err := time.ParseDuration(c.Polling.Window); err != nil {
		return fmt.Errorf("polling.window is not a valid duration: %w", err)
	}

	if c.Polling.MaxPoints <= 0 {
		return fmt.Errorf("polling.max_points must be positive, got %d", c.Polling.MaxPoints)
	}

	if c.Polling.RateWindowSize <= 0 {
		return fmt.Errorf("polling.rate_window_size must be positive, got %d", c.Polling.RateWindowSize)
	}

	if c.Polling.StalenessThreshold <= 0 {
		return fmt.Errorf("polling.staleness_threshold must be positive, got %s", c.Polling.StalenessThreshold)
	}

	// A warning threshold above critical would silently misclassify every
	// score between the two, so it is rejected up front
	if c.Thresholds.Warning > c.Thresholds.Critical {
		return fmt.Errorf("thresholds.warning (%g) must not exceed thresholds.critical (%g)",
			c.Thresholds.Warning, c.Thresholds.Critical)
	}

	if c.Integrations.Prometheus.URL == "" {
		return fmt.Errorf("integrations.prometheus.url is required")
	}

	if c.Integrations.Scoring.URL == "" {
		return fmt.Errorf("integrations.scoring.url is required")
	}

	for name, raw := range map[string]string{
		"integrations.prometheus.timeout": c.Integrations.Prometheus.Timeout,
		"integrations.scoring.timeout":    c.Integrations.Scoring.Timeout,
	} {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%s is not a valid duration: %w", name, err)
		}
	}

	return nil
}

// getEnv returns the environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvFloat returns the environment variable as a float64 or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
