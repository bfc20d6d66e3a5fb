package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Flowtrader Configuration

[risk]
# Fraction of account equity risked per trade (0 < x <= 0.05)
risk_pct_per_trade = 0.0075
# Stop strategy: static, time_decay, vol_regime, atr_dynamic, pct_trail
# static is the validated default; the others are pluggable policies.
stop_strategy = "static"
# Force-exit after N bars if the trade has not reached +1R (0 disables)
time_stop_bars = 20
# R-multiple at which partial profit is taken
profit_target_r = 2.0
# Fraction of shares sold at the profit target
profit_take_fraction = 0.5
# Rolling-low window used to seed and advance the trailing stop
trailing_window_bars = 10
# Trail width for the pct_trail strategy
trail_pct = 0.08

[backtest]
# Starting account equity for simulations
initial_equity = 500000.0
# Parallel workers for batch runs (0 = number of CPUs)
workers = 0

[database]
# SQLite database path (empty = default under the config dir)
path = ""

[logging]
# Log level: debug, info, warn, error
level = "info"
console = true
file = true
`

// writeTemplateConfig writes a commented config template so a first run
// leaves something editable behind.
func writeTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return os.WriteFile(path, []byte(configTemplate), 0644)
}
