package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Allenwang2004/Alltrader/internal/risk"
)

// LayerConfig is one ladder rung in YAML form. Fractions are strings so
// they survive the trip into decimal without float rounding.
type LayerConfig struct {
	Multiplier      string `yaml:"multiplier"`
	ReverseFraction string `yaml:"reverse_fraction"`
}

// TakeProfitConfig is one take-profit rule in YAML form.
type TakeProfitConfig struct {
	Trigger  string `yaml:"trigger"`
	Trailing string `yaml:"trailing"`
}

// Config holds every application setting. Secrets may be overridden from
// the environment after the file is parsed.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode           string  `yaml:"mode"` // sim | real
		Symbol         string  `yaml:"symbol"`
		Strategy       string  `yaml:"strategy"` // long | short | macd
		Leverage       float64 `yaml:"leverage"`
		BaseQty        string  `yaml:"base_qty"`
		FeeRate        string  `yaml:"fee_rate"`
		TickIntervalMS int     `yaml:"tick_interval_ms"`
		WindowSize     int     `yaml:"window_size"`
	} `yaml:"trading"`

	Risk struct {
		Layers     []LayerConfig      `yaml:"layers"`
		TakeProfit []TakeProfitConfig `yaml:"take_profit"`
	} `yaml:"risk"`

	Orders struct {
		MaxRetries     int `yaml:"max_retries"`
		RetryDelayMS   int `yaml:"retry_delay_ms"`
		PollIntervalMS int `yaml:"poll_interval_ms"`
		FillTimeoutMS  int `yaml:"fill_timeout_ms"`
	} `yaml:"orders"`

	API struct {
		OKX struct {
			RestURL       string `yaml:"rest_url"`
			WSPublicURL   string `yaml:"ws_public_url"`
			WSBusinessURL string `yaml:"ws_business_url"`
			APIKey        string `yaml:"api_key"`
			APISecret     string `yaml:"api_secret"`
			Passphrase    string `yaml:"passphrase"`
		} `yaml:"okx"`
	} `yaml:"api"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text | json
	} `yaml:"logging"`
}

// LoadConfig reads, parses and validates the config file. Environment
// variables override file-borne secrets.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Trading.Mode == "" {
		c.Trading.Mode = "sim"
	}
	if c.Trading.Strategy == "" {
		c.Trading.Strategy = "long"
	}
	if c.Trading.Leverage == 0 {
		c.Trading.Leverage = 1
	}
	if c.Trading.BaseQty == "" {
		c.Trading.BaseQty = "1"
	}
	if c.Trading.FeeRate == "" {
		c.Trading.FeeRate = "0.0005"
	}
	if c.Trading.TickIntervalMS == 0 {
		c.Trading.TickIntervalMS = 1000
	}
	if c.Trading.WindowSize == 0 {
		c.Trading.WindowSize = 100
	}
	if c.Orders.MaxRetries == 0 {
		c.Orders.MaxRetries = 3
	}
	if c.Orders.RetryDelayMS == 0 {
		c.Orders.RetryDelayMS = 1000
	}
	if c.Orders.PollIntervalMS == 0 {
		c.Orders.PollIntervalMS = 1000
	}
	if c.Orders.FillTimeoutMS == 0 {
		c.Orders.FillTimeoutMS = 10000
	}
	if c.API.OKX.RestURL == "" {
		c.API.OKX.RestURL = "https://www.okx.com"
	}
	if c.API.OKX.WSPublicURL == "" {
		c.API.OKX.WSPublicURL = "wss://ws.okx.com:8443/ws/v5/public"
	}
	if c.API.OKX.WSBusinessURL == "" {
		c.API.OKX.WSBusinessURL = "wss://ws.okx.com:8443/ws/v5/business"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = "localhost:9090"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate rejects configurations the risk engine must never run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Trading.Mode) {
	case "sim", "real":
	default:
		return fmt.Errorf("trading mode must be sim or real, got %q", c.Trading.Mode)
	}

	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading symbol is required")
	}
	switch c.Trading.Strategy {
	case "long", "short", "macd":
	default:
		return fmt.Errorf("strategy must be long, short or macd, got %q", c.Trading.Strategy)
	}
	if c.Trading.Leverage < 1 {
		return fmt.Errorf("leverage %v must be >= 1", c.Trading.Leverage)
	}
	if qty, err := decimal.NewFromString(c.Trading.BaseQty); err != nil || !qty.IsPositive() {
		return fmt.Errorf("base_qty %q must be a positive decimal", c.Trading.BaseQty)
	}
	if fee, err := decimal.NewFromString(c.Trading.FeeRate); err != nil || fee.IsNegative() {
		return fmt.Errorf("fee_rate %q must be a non-negative decimal", c.Trading.FeeRate)
	}
	if c.Orders.MaxRetries < 1 {
		return fmt.Errorf("orders.max_retries must be >= 1")
	}

	tables, err := c.RiskTables()
	if err != nil {
		return err
	}
	return tables.Validate()
}

// RiskTables materializes the ladder schedule. An empty risk section means
// the built-in production schedule.
func (c *Config) RiskTables() (risk.Tables, error) {
	if len(c.Risk.Layers) == 0 {
		return risk.DefaultTables(), nil
	}

	t := risk.Tables{}
	for i, l := range c.Risk.Layers {
		mult, err := decimal.NewFromString(l.Multiplier)
		if err != nil {
			return t, fmt.Errorf("risk.layers[%d].multiplier %q: %w", i, l.Multiplier, err)
		}
		rev, err := decimal.NewFromString(l.ReverseFraction)
		if err != nil {
			return t, fmt.Errorf("risk.layers[%d].reverse_fraction %q: %w", i, l.ReverseFraction, err)
		}
		t.Layers = append(t.Layers, risk.Layer{Multiplier: mult, ReverseFraction: rev})
	}
	for i, r := range c.Risk.TakeProfit {
		trigger, err := decimal.NewFromString(r.Trigger)
		if err != nil {
			return t, fmt.Errorf("risk.take_profit[%d].trigger %q: %w", i, r.Trigger, err)
		}
		trailing, err := decimal.NewFromString(r.Trailing)
		if err != nil {
			return t, fmt.Errorf("risk.take_profit[%d].trailing %q: %w", i, r.Trailing, err)
		}
		t.TakeProfit = append(t.TakeProfit, risk.TakeProfitRule{Trigger: trigger, Trailing: trailing})
	}
	return t, nil
}

// Leverage returns the configured leverage as a decimal.
func (c *Config) Leverage() decimal.Decimal {
	return decimal.NewFromFloat(c.Trading.Leverage)
}

// BaseQty returns the configured base order size. Validate has already
// proven it parses.
func (c *Config) BaseQty() decimal.Decimal {
	return decimal.RequireFromString(c.Trading.BaseQty)
}

// FeeRate returns the configured taker fee rate.
func (c *Config) FeeRate() decimal.Decimal {
	return decimal.RequireFromString(c.Trading.FeeRate)
}

// TickInterval is the Risk-state polling cadence.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Trading.TickIntervalMS) * time.Millisecond
}

// overrideWithEnv lets the environment win over file-borne secrets.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("OKX_API_KEY"); key != "" {
		cfg.API.OKX.APIKey = key
	}
	if secret := os.Getenv("OKX_API_SECRET"); secret != "" {
		cfg.API.OKX.APISecret = secret
	}
	if pass := os.Getenv("OKX_API_PASSPHRASE"); pass != "" {
		cfg.API.OKX.Passphrase = pass
	}
}
