package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"exchange-terminal-go/infrastructure/logger"
	"exchange-terminal-go/server"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string        `yaml:"env"`
	Symbols []string      `yaml:"symbols"`
	Market  MarketConfig  `yaml:"market"`
	Stream  StreamConfig  `yaml:"stream"`
	Server  server.Config `yaml:"server"`
	Metrics MetricsConfig `yaml:"metrics"`
	Account AccountConfig `yaml:"account"`
	Logger  logger.Config `yaml:"logger"`
}

// MarketConfig 行情数据源与展示参数。
type MarketConfig struct {
	RESTURL       string `yaml:"restURL"`
	WSURL         string `yaml:"wsURL"`
	Depth         int    `yaml:"depth"`
	TapeSize      int    `yaml:"tapeSize"`
	KlineInterval string `yaml:"klineInterval"`
	SeriesSize    int    `yaml:"seriesSize"`
}

// StreamConfig 流连接重连参数。
type StreamConfig struct {
	MaxRetries  int           `yaml:"maxRetries"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	MaxBackoff  time.Duration `yaml:"maxBackoff"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AccountConfig 外部 GraphQL 服务端点。认证与钱包是同一个服务，
// 交易是独立服务。
type AccountConfig struct {
	AuthURL    string `yaml:"authURL"`
	WalletURL  string `yaml:"walletURL"`
	TradingURL string `yaml:"tradingURL"`
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides endpoint fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("TERMINAL_MARKET_REST_URL"); v != "" {
		cfg.Market.RESTURL = v
	}
	if v := os.Getenv("TERMINAL_MARKET_WS_URL"); v != "" {
		cfg.Market.WSURL = v
	}
	if v := os.Getenv("TERMINAL_AUTH_URL"); v != "" {
		cfg.Account.AuthURL = v
	}
	if v := os.Getenv("TERMINAL_WALLET_URL"); v != "" {
		cfg.Account.WalletURL = v
	}
	if v := os.Getenv("TERMINAL_TRADING_URL"); v != "" {
		cfg.Account.TradingURL = v
	}
	if v := os.Getenv("TERMINAL_SYMBOLS"); v != "" {
		cfg.Symbols = splitSymbols(v)
	}
	return cfg, Validate(cfg)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Market.Depth <= 0 {
		cfg.Market.Depth = 20
	}
	if cfg.Market.TapeSize <= 0 {
		cfg.Market.TapeSize = 30
	}
	if cfg.Market.KlineInterval == "" {
		cfg.Market.KlineInterval = "1m"
	}
	if cfg.Market.SeriesSize <= 0 {
		cfg.Market.SeriesSize = 100
	}
	if cfg.Stream.MaxRetries <= 0 {
		cfg.Stream.MaxRetries = 5
	}
	if cfg.Stream.BaseBackoff <= 0 {
		cfg.Stream.BaseBackoff = time.Second
	}
	if cfg.Stream.MaxBackoff <= 0 {
		cfg.Stream.MaxBackoff = 30 * time.Second
	}
	if cfg.Stream.ReadTimeout <= 0 {
		cfg.Stream.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9100"
	}
	if cfg.Logger.Level == "" {
		cfg.Logger = logger.DefaultConfig()
	}
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if len(cfg.Symbols) == 0 {
		return errors.New("symbols list is required")
	}
	for _, s := range cfg.Symbols {
		if strings.TrimSpace(s) == "" {
			return errors.New("symbols must not contain empty entries")
		}
	}
	if cfg.Market.RESTURL == "" {
		return errors.New("market.restURL is required")
	}
	if cfg.Market.WSURL == "" {
		return errors.New("market.wsURL is required")
	}
	if cfg.Market.Depth > 1000 {
		return fmt.Errorf("market.depth %d exceeds upstream limit", cfg.Market.Depth)
	}
	if cfg.Stream.BaseBackoff > cfg.Stream.MaxBackoff {
		return errors.New("stream.baseBackoff must not exceed stream.maxBackoff")
	}
	return nil
}

func splitSymbols(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
