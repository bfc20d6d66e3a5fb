// Package config provides configuration management for the backtest application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"

	apperrors "flowtrader/internal/errors"
)

// StopStrategy is the closed set of protective-stop policies. Selection
// is resolved once at config time; the engine dispatches through a
// function table, never by comparing strings per bar.
type StopStrategy string

const (
	StopStatic     StopStrategy = "static"
	StopTimeDecay  StopStrategy = "time_decay"
	StopVolRegime  StopStrategy = "vol_regime"
	StopATRDynamic StopStrategy = "atr_dynamic"
	StopPctTrail   StopStrategy = "pct_trail"
)

// StopStrategies lists every valid stop strategy.
var StopStrategies = []StopStrategy{
	StopStatic,
	StopTimeDecay,
	StopVolRegime,
	StopATRDynamic,
	StopPctTrail,
}

// Valid reports whether s names a known strategy.
func (s StopStrategy) Valid() bool {
	for _, k := range StopStrategies {
		if s == k {
			return true
		}
	}
	return false
}

// Config holds all application configuration.
type Config struct {
	Risk     RiskConfig     `mapstructure:"risk"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// RiskConfig holds the risk parameters that drive sizing, stops and exits.
type RiskConfig struct {
	RiskPctPerTrade    float64      `mapstructure:"risk_pct_per_trade"`
	StopStrategy       StopStrategy `mapstructure:"stop_strategy"`
	TimeStopBars       int          `mapstructure:"time_stop_bars"`
	ProfitTargetR      float64      `mapstructure:"profit_target_r"`
	ProfitTakeFraction float64      `mapstructure:"profit_take_fraction"`
	TrailingWindowBars int          `mapstructure:"trailing_window_bars"`
	TrailPct           float64      `mapstructure:"trail_pct"`
}

// BacktestConfig holds simulation-level settings.
type BacktestConfig struct {
	InitialEquity float64 `mapstructure:"initial_equity"`
	Workers       int     `mapstructure:"workers"` // 0 means NumCPU
}

// DatabaseConfig holds data store settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/flowtrader"
	}
	return filepath.Join(home, ".config", "flowtrader")
}

// Default returns the baseline configuration used when no file exists.
func Default() *Config {
	return &Config{
		Risk: RiskConfig{
			RiskPctPerTrade:    0.0075,
			StopStrategy:       StopStatic,
			TimeStopBars:       20,
			ProfitTargetR:      2.0,
			ProfitTakeFraction: 0.5,
			TrailingWindowBars: 10,
			TrailPct:           0.08,
		},
		Backtest: BacktestConfig{
			InitialEquity: 500000,
			Workers:       0,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(DefaultConfigDir(), "flowtrader.db"),
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    true,
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if werr := writeTemplateConfig(configDir); werr != nil {
				return nil, fmt.Errorf("creating config template: %w", werr)
			}
		} else {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(configDir, "flowtrader.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FLOWTRADER_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FLOWTRADER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FLOWTRADER_RISK_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Risk.RiskPctPerTrade = f
		}
	}
	if v := os.Getenv("FLOWTRADER_STOP_STRATEGY"); v != "" {
		cfg.Risk.StopStrategy = StopStrategy(v)
	}
}

// Validate validates the configuration. Malformed risk parameters are
// fatal: the engine refuses to run rather than silently default.
func (c *Config) Validate() error {
	r := c.Risk

	if r.RiskPctPerTrade <= 0 || r.RiskPctPerTrade > 0.05 {
		return apperrors.NewValidationError("risk.risk_pct_per_trade", r.RiskPctPerTrade,
			"must be in (0, 0.05]")
	}
	if !r.StopStrategy.Valid() {
		return apperrors.NewValidationError("risk.stop_strategy", string(r.StopStrategy),
			"must be one of static, time_decay, vol_regime, atr_dynamic, pct_trail")
	}
	if r.TimeStopBars < 0 {
		return apperrors.NewValidationError("risk.time_stop_bars", r.TimeStopBars,
			"must be >= 0 (0 disables the time stop)")
	}
	if r.ProfitTargetR <= 0 {
		return apperrors.NewValidationError("risk.profit_target_r", r.ProfitTargetR,
			"must be positive")
	}
	if r.ProfitTakeFraction <= 0 || r.ProfitTakeFraction >= 1 {
		return apperrors.NewValidationError("risk.profit_take_fraction", r.ProfitTakeFraction,
			"must be in (0, 1)")
	}
	if r.TrailingWindowBars < 1 {
		return apperrors.NewValidationError("risk.trailing_window_bars", r.TrailingWindowBars,
			"must be >= 1")
	}
	if r.StopStrategy == StopPctTrail && (r.TrailPct <= 0 || r.TrailPct >= 1) {
		return apperrors.NewValidationError("risk.trail_pct", r.TrailPct,
			"must be in (0, 1) when stop_strategy is pct_trail")
	}

	if c.Backtest.InitialEquity <= 0 {
		return apperrors.NewValidationError("backtest.initial_equity", c.Backtest.InitialEquity,
			"must be positive")
	}
	if c.Backtest.Workers < 0 {
		return apperrors.NewValidationError("backtest.workers", c.Backtest.Workers,
			"must be >= 0 (0 means NumCPU)")
	}

	return nil
}
