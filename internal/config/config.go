package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/macks-labs/coinscreen/internal/criteria"
)

// Config represents the complete application configuration
type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Screener ScreenerConfig `mapstructure:"screener"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProviderConfig holds market-data API configuration
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Convert        string        `mapstructure:"convert"`
	Limit          int           `mapstructure:"limit"`
	SortKey        string        `mapstructure:"sort_key"`
	SortDir        string        `mapstructure:"sort_dir"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// ScreenerConfig holds screening behavior configuration
type ScreenerConfig struct {
	AdjustStepPct float64 `mapstructure:"adjust_step_pct"`
	MaxRows       int     `mapstructure:"max_rows"`

	// Defaults overrides compiled criterion defaults per key. The
	// original bot variants disagree on the exact numbers, so they are
	// configuration rather than hard-wired behavior.
	Defaults map[string]float64 `mapstructure:"defaults"`
}

// TelegramConfig holds bot transport configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	UpdateTimeout  int           `mapstructure:"update_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds criteria persistence configuration
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("COINSCREEN")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Provider defaults
	v.SetDefault("provider.base_url", "https://pro-api.coinmarketcap.com")
	v.SetDefault("provider.convert", "USD")
	v.SetDefault("provider.limit", 200)
	v.SetDefault("provider.sort_key", "market_cap")
	v.SetDefault("provider.sort_dir", "asc")
	v.SetDefault("provider.timeout", "30s")
	v.SetDefault("provider.max_retries", 3)
	v.SetDefault("provider.retry_delay_base", "1s")

	// Screener defaults
	v.SetDefault("screener.adjust_step_pct", 10.0)
	v.SetDefault("screener.max_rows", 10)

	// Telegram defaults
	v.SetDefault("telegram.update_timeout", 60)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.db_path", "./data/coinscreen.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Provider config
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if c.Provider.Limit < 1 || c.Provider.Limit > 5000 {
		return fmt.Errorf("provider.limit must be between 1 and 5000")
	}
	if c.Provider.Timeout < 1*time.Second {
		return fmt.Errorf("provider.timeout must be at least 1 second")
	}
	if c.Provider.SortDir != "asc" && c.Provider.SortDir != "desc" {
		return fmt.Errorf("provider.sort_dir must be one of: asc, desc")
	}

	// Validate Screener config
	if c.Screener.AdjustStepPct <= 0 || c.Screener.AdjustStepPct > 100 {
		return fmt.Errorf("screener.adjust_step_pct must be in (0, 100]")
	}
	if c.Screener.MaxRows < 1 {
		return fmt.Errorf("screener.max_rows must be at least 1")
	}
	for key := range c.Screener.Defaults {
		if _, ok := criteria.Lookup(key); !ok {
			return fmt.Errorf("screener.defaults contains unknown criterion %q", key)
		}
	}

	// Validate Telegram config
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.UpdateTimeout < 1 {
		return fmt.Errorf("telegram.update_timeout must be at least 1 second")
	}

	// Validate Storage config
	if c.Storage.Enabled && c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required when storage is enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
