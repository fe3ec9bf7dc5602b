package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

const minimalConfig = `coinview:
  name: "TestApp"
  version: "1.0"
portfolio:
  base_currency: "EUR"
  refresh_interval: 10s
`

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Coinview.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Coinview.Name)
	}
	if cfg.Feed.URL != "wss://ws-feed.exchange.coinbase.com" {
		t.Errorf("unexpected default feed url: %s", cfg.Feed.URL)
	}
	if cfg.Feed.HeartbeatInterval != 5*time.Second {
		t.Errorf("unexpected default heartbeat interval: %s", cfg.Feed.HeartbeatInterval)
	}
	if cfg.Portfolio.RefreshInterval != 10*time.Second {
		t.Errorf("unexpected refresh interval: %s", cfg.Portfolio.RefreshInterval)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)
	defer os.Remove(path)

	t.Setenv("COINBASE_PRO_API_KEY", "key-from-env")
	t.Setenv("COINBASE_PRO_API_SECRET", "secret-from-env")
	t.Setenv("COINBASE_PRO_PASSPHRASE", "phrase-from-env")
	t.Setenv("BASE_CURRENCY", "usd")
	t.Setenv("TERMINAL_OUTPUT", "TRUE")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Coinbase.Key != "key-from-env" {
		t.Errorf("expected key override, got %q", cfg.Coinbase.Key)
	}
	if cfg.Coinbase.Secret != "secret-from-env" {
		t.Errorf("expected secret override, got %q", cfg.Coinbase.Secret)
	}
	if cfg.Coinbase.Passphrase != "phrase-from-env" {
		t.Errorf("expected passphrase override, got %q", cfg.Coinbase.Passphrase)
	}
	if cfg.Portfolio.BaseCurrency != "USD" {
		t.Errorf("expected base currency USD, got %q", cfg.Portfolio.BaseCurrency)
	}
	if !cfg.Portfolio.TerminalOutput {
		t.Errorf("expected terminal output enabled")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{
			name:    "missing name",
			content: "coinview:\n  version: \"1.0\"\n",
		},
		{
			name: "zero refresh interval",
			content: `coinview:
  name: "TestApp"
  version: "1.0"
portfolio:
  refresh_interval: 0s
`,
		},
		{
			name: "gateway without address",
			content: `coinview:
  name: "TestApp"
  version: "1.0"
gateway:
  enabled: true
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, tc.content)
			defer os.Remove(path)
			if _, err := LoadConfig(path); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
