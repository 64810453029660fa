package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validYAML = `
env: dev
symbols: [BTCUSDT, ETHUSDT]
market:
  restURL: https://api.test
  wsURL: wss://stream.test
  depth: 20
stream:
  maxRetries: 3
  baseBackoff: 500ms
  maxBackoff: 10s
server:
  addr: ":8080"
account:
  walletURL: https://wallet.test/graphql
  tradingURL: https://trading.test/graphql
`

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "dev" || len(cfg.Symbols) != 2 {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	if cfg.Stream.BaseBackoff != 500*time.Millisecond {
		t.Fatalf("duration not parsed: %v", cfg.Stream.BaseBackoff)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
env: dev
symbols: [BTCUSDT]
market:
  restURL: https://api.test
  wsURL: wss://stream.test
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Market.Depth != 20 || cfg.Market.TapeSize != 30 {
		t.Fatalf("market defaults not applied: %+v", cfg.Market)
	}
	if cfg.Market.KlineInterval != "1m" || cfg.Market.SeriesSize != 100 {
		t.Fatalf("kline defaults not applied: %+v", cfg.Market)
	}
	if cfg.Stream.MaxRetries != 5 || cfg.Stream.MaxBackoff != 30*time.Second {
		t.Fatalf("stream defaults not applied: %+v", cfg.Stream)
	}
	if cfg.Logger.Level != "info" {
		t.Fatalf("logger default not applied: %+v", cfg.Logger)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	t.Setenv("TERMINAL_MARKET_WS_URL", "wss://override.test")
	t.Setenv("TERMINAL_SYMBOLS", "SOLUSDT, DOGEUSDT")
	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Market.WSURL != "wss://override.test" {
		t.Fatalf("env override not applied: %+v", cfg.Market)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[0] != "SOLUSDT" || cfg.Symbols[1] != "DOGEUSDT" {
		t.Fatalf("symbol override not applied: %v", cfg.Symbols)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(AppConfig{}); err == nil {
		t.Fatalf("expected error for empty config")
	}

	cases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"no symbols", func(c *AppConfig) { c.Symbols = nil }},
		{"blank symbol", func(c *AppConfig) { c.Symbols = []string{"BTCUSDT", " "} }},
		{"no rest url", func(c *AppConfig) { c.Market.RESTURL = "" }},
		{"no ws url", func(c *AppConfig) { c.Market.WSURL = "" }},
		{"depth over limit", func(c *AppConfig) { c.Market.Depth = 5001 }},
		{"backoff inverted", func(c *AppConfig) {
			c.Stream.BaseBackoff = time.Minute
			c.Stream.MaxBackoff = time.Second
		}},
	}
	for _, tc := range cases {
		path := writeTempConfig(t, validYAML)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("%s: load base config: %v", tc.name, err)
		}
		tc.mutate(&cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
