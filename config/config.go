// Package config loads and validates run configuration from YAML or JSON
// files. Configuration errors fail fast: an invalid config never starts a
// day loop.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quantsim/market"
	"quantsim/portfolio"
)

const dateLayout = "2006-01-02"

// Config is the complete configuration of one backtest run.
type Config struct {
	InitialCapital       float64 `json:"initial_capital" yaml:"initial_capital"`
	CommissionRate       float64 `json:"commission_rate" yaml:"commission_rate"`
	SlippageRate         float64 `json:"slippage_rate" yaml:"slippage_rate"`
	ForceCloseMarginRate float64 `json:"force_close_margin_rate" yaml:"force_close_margin_rate"`
	RiskFreeRate         float64 `json:"risk_free_rate" yaml:"risk_free_rate"`

	// MaxAllocation caps allocated capital as a fraction of equity;
	// zero disables the ceiling.
	MaxAllocation float64 `json:"max_allocation" yaml:"max_allocation"`

	StartDate string   `json:"start_date" yaml:"start_date"`
	EndDate   string   `json:"end_date" yaml:"end_date"`
	Symbols   []string `json:"symbols" yaml:"symbols"`

	// Assets overrides classification and settlement parameters per
	// symbol. Required for symbols the pattern classifier cannot place.
	Assets map[string]AssetConfig `json:"assets,omitempty" yaml:"assets,omitempty"`

	Journal JournalConfig `json:"journal" yaml:"journal"`
}

// AssetConfig is a per-symbol override of type and settlement parameters.
// Zero-valued fields fall back to the asset-type defaults.
type AssetConfig struct {
	Type       string  `json:"type" yaml:"type"`
	Multiplier float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	MarginRate float64 `json:"margin_rate,omitempty" yaml:"margin_rate,omitempty"`
	TickSize   float64 `json:"tick_size,omitempty" yaml:"tick_size,omitempty"`
}

// JournalConfig selects the persistence backend.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
}

// LoadFromFile loads configuration from a YAML or JSON file and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML (.yaml/.yml) or JSON.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration. Every failure here belongs to the
// fail-fast class: the run must not execute at all.
func (c *Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive")
	}
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return fmt.Errorf("commission_rate must be in [0, 1)")
	}
	if c.SlippageRate < 0 || c.SlippageRate >= 1 {
		return fmt.Errorf("slippage_rate must be in [0, 1)")
	}
	if c.ForceCloseMarginRate < 0 || c.ForceCloseMarginRate >= 1 {
		return fmt.Errorf("force_close_margin_rate must be in [0, 1)")
	}
	if c.MaxAllocation < 0 || c.MaxAllocation > 1 {
		return fmt.Errorf("max_allocation must be in [0, 1]")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must not be empty")
	}

	start, end, err := c.Window()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("end_date %s is before start_date %s", c.EndDate, c.StartDate)
	}

	for symbol, ac := range c.Assets {
		at := market.AssetType(ac.Type)
		if !at.Valid() {
			return fmt.Errorf("assets.%s: unknown asset type %q", symbol, ac.Type)
		}
		if at == market.Futures {
			rate := ac.MarginRate
			if rate == 0 {
				rate = market.DefaultParams(market.Futures).MarginRate
			}
			if rate <= c.ForceCloseMarginRate {
				return fmt.Errorf("assets.%s: margin_rate %.4f must exceed force_close_margin_rate %.4f",
					symbol, rate, c.ForceCloseMarginRate)
			}
		}
	}

	// every symbol must classify or carry an explicit asset entry
	for _, symbol := range c.Symbols {
		if _, ok := c.Assets[symbol]; ok {
			continue
		}
		at, err := market.Classify(symbol)
		if err != nil {
			return fmt.Errorf("symbol %s: %w (add an assets entry with an explicit type)", symbol, err)
		}
		if at == market.Futures && market.DefaultParams(at).MarginRate <= c.ForceCloseMarginRate {
			return fmt.Errorf("symbol %s: default margin rate does not exceed force_close_margin_rate", symbol)
		}
	}

	switch c.Journal.Type {
	case "", "none":
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite journal")
		}
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal.trades_file and journal.equity_file required for csv journal")
		}
	default:
		return fmt.Errorf("journal.type must be none, csv or sqlite")
	}
	return nil
}

// Window parses the configured simulation date range.
func (c *Config) Window() (start, end time.Time, err error) {
	start, err = time.Parse(dateLayout, c.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad start_date %q: %w", c.StartDate, err)
	}
	end, err = time.Parse(dateLayout, c.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad end_date %q: %w", c.EndDate, err)
	}
	return start, end, nil
}

// Portfolio maps the account-level fields onto a portfolio configuration.
func (c *Config) Portfolio() portfolio.Config {
	return portfolio.Config{
		InitialCash:          c.InitialCapital,
		CommissionRate:       c.CommissionRate,
		SlippageRate:         c.SlippageRate,
		ForceCloseMarginRate: c.ForceCloseMarginRate,
		MaxAllocation:        c.MaxAllocation,
	}
}

// Params resolves the settlement parameters for symbol: explicit override
// fields win, everything else falls back to the asset-type defaults.
func (c *Config) Params(symbol string, at market.AssetType) market.AssetParams {
	params := market.DefaultParams(at)
	ac, ok := c.Assets[symbol]
	if !ok {
		return params
	}
	if ac.Multiplier > 0 {
		params.Multiplier = ac.Multiplier
	}
	if ac.MarginRate > 0 {
		params.MarginRate = ac.MarginRate
	}
	if ac.TickSize > 0 {
		params.TickSize = ac.TickSize
	}
	return params
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		InitialCapital:       1_000_000,
		CommissionRate:       0.0003,
		SlippageRate:         0.001,
		ForceCloseMarginRate: 0.03,
		RiskFreeRate:         0.02,
		MaxAllocation:        0.95,
		StartDate:            "2023-01-01",
		EndDate:              "2023-12-31",
		Symbols:              []string{"600519.SH"},
		Journal:              JournalConfig{Type: "none"},
	}
}
