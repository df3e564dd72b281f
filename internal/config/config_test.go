package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	// Create temp config file
	content := `
provider:
  base_url: "https://pro-api.coinmarketcap.com"
  api_key: "test-key"
  limit: 250
  sort_key: market_cap
  sort_dir: asc
  timeout: 20s

screener:
  adjust_step_pct: 10
  max_rows: 10
  defaults:
    volume_24h_min: 250000
    change_24h_min: -7.5

telegram:
  bot_token: "test_token"
  update_timeout: 60

storage:
  enabled: true
  db_path: "./data/test.db"

logging:
  level: "info"
  format: "json"
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Remove(tmpfile.Name()) }()

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	// Test Load
	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify values
	if cfg.Provider.Limit != 250 {
		t.Errorf("Unexpected provider limit: %d", cfg.Provider.Limit)
	}

	if cfg.Provider.Timeout != 20*time.Second {
		t.Errorf("Unexpected provider timeout: %v", cfg.Provider.Timeout)
	}

	if cfg.Screener.Defaults["volume_24h_min"] != 250000 {
		t.Errorf("Unexpected default override: %v", cfg.Screener.Defaults)
	}

	// Defaults fill in what the file omits
	if cfg.Provider.Convert != "USD" {
		t.Errorf("Unexpected convert default: %q", cfg.Provider.Convert)
	}
	if cfg.Telegram.MaxRetries != 3 {
		t.Errorf("Unexpected telegram max_retries default: %d", cfg.Telegram.MaxRetries)
	}

	// Test Validate
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func validConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL: "https://example.com",
			Limit:   200,
			SortKey: "market_cap",
			SortDir: "asc",
			Timeout: 30 * time.Second,
		},
		Screener: ScreenerConfig{
			AdjustStepPct: 10,
			MaxRows:       10,
		},
		Telegram: TelegramConfig{
			BotToken:      "token",
			UpdateTimeout: 60,
		},
		Storage: StorageConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing bot token",
			mutate:  func(c *Config) { c.Telegram.BotToken = "" },
			wantErr: true,
		},
		{
			name:    "missing provider base URL",
			mutate:  func(c *Config) { c.Provider.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "provider limit too large",
			mutate:  func(c *Config) { c.Provider.Limit = 10000 },
			wantErr: true,
		},
		{
			name:    "bad sort direction",
			mutate:  func(c *Config) { c.Provider.SortDir = "sideways" },
			wantErr: true,
		},
		{
			name:    "zero adjust step",
			mutate:  func(c *Config) { c.Screener.AdjustStepPct = 0 },
			wantErr: true,
		},
		{
			name:    "unknown criterion in defaults",
			mutate:  func(c *Config) { c.Screener.Defaults = map[string]float64{"bogus": 1} },
			wantErr: true,
		},
		{
			name: "storage enabled without path",
			mutate: func(c *Config) {
				c.Storage.Enabled = true
				c.Storage.DBPath = ""
			},
			wantErr: true,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
