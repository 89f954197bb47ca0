// Package config loads the YAML configuration for the paper-trading daemon
// and applies environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"strategy-lab/internal/domain"
)

// Config is the top-level configuration.
type Config struct {
	Storage  Storage       `yaml:"storage"`
	Server   Server        `yaml:"server"`
	Data     Data          `yaml:"data"`
	Risk     Risk          `yaml:"risk"`
	Friction Friction      `yaml:"friction"`
	Runners  []RunnerEntry `yaml:"runners"`
}

// Storage holds persistence backends. Empty DSNs select the in-memory
// stores.
type Storage struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Server holds the metrics/health listener configuration.
type Server struct {
	MetricsAddr string `yaml:"metrics_addr"`
}

// Data configures the live bar source.
type Data struct {
	WebsocketURL string `yaml:"websocket_url"`
}

// Risk defines sizing and protective-exit parameters shared by all runners.
type Risk struct {
	RiskPerTrade     float64 `yaml:"risk_per_trade"`
	MaxPositionSize  float64 `yaml:"max_position_size"`
	MaxTotalExposure float64 `yaml:"max_total_exposure"`
	MaxDailyLoss     float64 `yaml:"max_daily_loss"`
	StopLossPct      float64 `yaml:"stop_loss_pct"`
	TakeProfitPct    float64 `yaml:"take_profit_pct"`
}

// Friction defines the execution cost model shared by all runners.
type Friction struct {
	FeeRate          float64 `yaml:"fee_rate"`
	SlippageRate     float64 `yaml:"slippage_rate"`
	HighVolMult      float64 `yaml:"high_vol_mult"`
	HighVolThreshold float64 `yaml:"high_vol_threshold"`
	PartialFillProb  float64 `yaml:"partial_fill_prob"`
	MinFillRatio     float64 `yaml:"min_fill_ratio"`
	Seed             int64   `yaml:"seed"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "15m"
// as well as raw nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RunnerEntry configures one paper-trading runner.
type RunnerEntry struct {
	StrategyType   string   `yaml:"strategy_type"`
	Symbol         string   `yaml:"symbol"`
	Interval       Duration `yaml:"interval"`
	InitialCapital float64  `yaml:"initial_capital"`
	FlattenOnStop  bool     `yaml:"flatten_on_stop"`

	FastPeriod     *int     `yaml:"fast_period,omitempty"`
	SlowPeriod     *int     `yaml:"slow_period,omitempty"`
	LookbackPeriod *int     `yaml:"lookback_period,omitempty"`
	Threshold      *float64 `yaml:"threshold,omitempty"`
}

// StrategyConfig converts the entry to the domain strategy config.
func (e RunnerEntry) StrategyConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		StrategyType:   e.StrategyType,
		FastPeriod:     e.FastPeriod,
		SlowPeriod:     e.SlowPeriod,
		LookbackPeriod: e.LookbackPeriod,
		Threshold:      e.Threshold,
	}
}

// RiskLimits converts to the domain risk limits.
func (r Risk) RiskLimits() domain.RiskLimits {
	return domain.RiskLimits{
		RiskPerTrade:     r.RiskPerTrade,
		MaxPositionSize:  r.MaxPositionSize,
		MaxTotalExposure: r.MaxTotalExposure,
		MaxDailyLoss:     r.MaxDailyLoss,
		StopLossPct:      r.StopLossPct,
		TakeProfitPct:    r.TakeProfitPct,
	}
}

// FrictionConfig converts to the domain friction config.
func (f Friction) FrictionConfig() domain.FrictionConfig {
	return domain.FrictionConfig{
		FeeRate:          f.FeeRate,
		SlippageRate:     f.SlippageRate,
		HighVolMult:      f.HighVolMult,
		HighVolThreshold: f.HighVolThreshold,
		PartialFillProb:  f.PartialFillProb,
		MinFillRatio:     f.MinFillRatio,
		Seed:             f.Seed,
	}
}

// Load reads the YAML configuration file at the given path, parses it,
// applies environment variable overrides, and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if v := os.Getenv("BARS_WS_URL"); v != "" {
		cfg.Data.WebsocketURL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.MetricsAddr == "" {
		cfg.Server.MetricsAddr = ":9100"
	}
	if cfg.Risk == (Risk{}) {
		limits := domain.DefaultRiskLimits()
		cfg.Risk = Risk{
			RiskPerTrade:     limits.RiskPerTrade,
			MaxPositionSize:  limits.MaxPositionSize,
			MaxTotalExposure: limits.MaxTotalExposure,
			MaxDailyLoss:     limits.MaxDailyLoss,
			StopLossPct:      limits.StopLossPct,
			TakeProfitPct:    limits.TakeProfitPct,
		}
	}
	if cfg.Friction == (Friction{}) {
		f := domain.DefaultFriction()
		cfg.Friction = Friction{
			FeeRate:          f.FeeRate,
			SlippageRate:     f.SlippageRate,
			HighVolMult:      f.HighVolMult,
			HighVolThreshold: f.HighVolThreshold,
			PartialFillProb:  f.PartialFillProb,
			MinFillRatio:     f.MinFillRatio,
			Seed:             f.Seed,
		}
	}
	for i := range cfg.Runners {
		if cfg.Runners[i].Interval == 0 {
			cfg.Runners[i].Interval = Duration(time.Hour)
		}
		if cfg.Runners[i].InitialCapital == 0 {
			cfg.Runners[i].InitialCapital = 10_000
		}
	}
}

func (c *Config) validate() error {
	for i, r := range c.Runners {
		if r.StrategyType == "" {
			return fmt.Errorf("runner %d: strategy_type is required", i)
		}
		if r.Symbol == "" {
			return fmt.Errorf("runner %d: symbol is required", i)
		}
		if r.Interval <= 0 {
			return fmt.Errorf("runner %d: interval must be positive", i)
		}
		if r.InitialCapital <= 0 {
			return fmt.Errorf("runner %d: initial_capital must be positive", i)
		}
	}
	return nil
}
