package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Coinview   CoinviewConfig   `yaml:"coinview"`
	Feed       FeedConfig       `yaml:"feed"`
	Coinbase   CoinbaseConfig   `yaml:"coinbase"`
	Portfolio  PortfolioConfig  `yaml:"portfolio"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Logging    LoggingConfig    `yaml:"logging"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CoinviewConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// FeedConfig controls the websocket market data feed connection and the
// timers guarding its liveness.
type FeedConfig struct {
	URL               string        `yaml:"url"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	LivenessTimeout   time.Duration `yaml:"liveness_timeout"`
	ActivityTimeout   time.Duration `yaml:"activity_timeout"`
}

type CoinbaseConfig struct {
	RESTURL    string          `yaml:"rest_url"`
	Key        string          `yaml:"key"`
	Secret     string          `yaml:"secret"`
	Passphrase string          `yaml:"passphrase"`
	Timeout    time.Duration   `yaml:"timeout"`
	PageLimit  int             `yaml:"page_limit"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type PortfolioConfig struct {
	BaseCurrency    string        `yaml:"base_currency"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	TerminalOutput  bool          `yaml:"terminal_output"`
}

type GatewayConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Address        string `yaml:"address"`
	SnapshotBuffer int    `yaml:"snapshot_buffer"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Feed: FeedConfig{
			URL:               "wss://ws-feed.exchange.coinbase.com",
			ReconnectDelay:    5 * time.Second,
			HeartbeatInterval: 5 * time.Second,
			LivenessTimeout:   5 * time.Second,
			ActivityTimeout:   5 * time.Minute,
		},
		Coinbase: CoinbaseConfig{
			RESTURL:   "https://api.exchange.coinbase.com",
			Timeout:   15 * time.Second,
			PageLimit: 100,
		},
		Portfolio: PortfolioConfig{
			BaseCurrency:    "EUR",
			RefreshInterval: 10 * time.Second,
		},
		Gateway: GatewayConfig{
			SnapshotBuffer: 64,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Credentials come from the environment when present so the YAML file
	// can stay free of secrets.
	if v := os.Getenv("COINBASE_PRO_API_KEY"); v != "" {
		config.Coinbase.Key = strings.TrimSpace(v)
	}
	if v := os.Getenv("COINBASE_PRO_API_SECRET"); v != "" {
		config.Coinbase.Secret = strings.TrimSpace(v)
	}
	if v := os.Getenv("COINBASE_PRO_PASSPHRASE"); v != "" {
		config.Coinbase.Passphrase = strings.TrimSpace(v)
	}
	if v := os.Getenv("BASE_CURRENCY"); v != "" {
		config.Portfolio.BaseCurrency = strings.ToUpper(strings.TrimSpace(v))
	}
	if v := os.Getenv("TERMINAL_OUTPUT"); v != "" {
		config.Portfolio.TerminalOutput = strings.EqualFold(strings.TrimSpace(v), "true")
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Coinview.Name == "" {
		return fmt.Errorf("coinview.name is required")
	}

	if cfg.Coinview.Version == "" {
		return fmt.Errorf("coinview.version is required")
	}

	if cfg.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if cfg.Feed.ReconnectDelay <= 0 {
		return fmt.Errorf("feed.reconnect_delay must be greater than 0")
	}
	if cfg.Feed.HeartbeatInterval <= 0 {
		return fmt.Errorf("feed.heartbeat_interval must be greater than 0")
	}
	if cfg.Feed.LivenessTimeout <= 0 {
		return fmt.Errorf("feed.liveness_timeout must be greater than 0")
	}
	if cfg.Feed.ActivityTimeout <= 0 {
		return fmt.Errorf("feed.activity_timeout must be greater than 0")
	}

	if cfg.Coinbase.RESTURL == "" {
		return fmt.Errorf("coinbase.rest_url is required")
	}
	if cfg.Coinbase.PageLimit <= 0 {
		return fmt.Errorf("coinbase.page_limit must be greater than 0")
	}

	if cfg.Portfolio.RefreshInterval <= 0 {
		return fmt.Errorf("portfolio.refresh_interval must be greater than 0")
	}
	if cfg.Portfolio.BaseCurrency == "" {
		return fmt.Errorf("portfolio.base_currency is required")
	}

	if cfg.Gateway.Enabled && cfg.Gateway.Address == "" {
		return fmt.Errorf("gateway.address is required when the gateway is enabled")
	}
	if cfg.Gateway.SnapshotBuffer <= 0 {
		return fmt.Errorf("gateway.snapshot_buffer must be greater than 0")
	}

	return nil
}
