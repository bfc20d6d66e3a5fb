package cli

import (
	"time"

	"github.com/spf13/cobra"

	"flowtrader/internal/backtest"
	"flowtrader/internal/config"
	"flowtrader/internal/models"
	"flowtrader/internal/store"
)

// newRunCmd creates the single-instrument backtest command.
func newRunCmd(app *App) *cobra.Command {
	var (
		instrument string
		strategy   string
		exportPath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Backtest a single instrument",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)

			cfg := *app.Config
			if strategy != "" {
				cfg.Risk.StopStrategy = config.StopStrategy(strategy)
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			series, err := app.Store.GetFeatureSeries(cmd.Context(), instrument)
			if err != nil {
				return err
			}

			engine := backtest.NewEngine(cfg.Risk, cfg.Backtest.InitialEquity, app.Logger)
			trades, err := engine.Run(cmd.Context(), series)
			if err != nil {
				return err
			}

			summary := backtest.Aggregate(trades, cfg.Backtest.InitialEquity)

			runID, err := app.Store.SaveRun(cmd.Context(), &store.RunRecord{
				CreatedAt:     time.Now(),
				StopStrategy:  string(cfg.Risk.StopStrategy),
				RiskPct:       cfg.Risk.RiskPctPerTrade,
				InitialEquity: cfg.Backtest.InitialEquity,
				Summary:       summary,
			})
			if err != nil {
				return err
			}
			if err := app.Store.SaveTrades(cmd.Context(), runID, trades); err != nil {
				return err
			}

			if exportPath != "" {
				if err := store.ExportTradesCSV(exportPath, trades); err != nil {
					return err
				}
				out.Info("Trades exported to %s", exportPath)
			}

			if out.IsJSON() {
				return out.JSON(map[string]interface{}{
					"run_id":  runID,
					"trades":  trades,
					"summary": summary,
				})
			}

			printTrades(out, trades)
			printSummary(out, summary)
			out.Success("Run %d saved (%d trades)", runID, len(trades))
			return nil
		},
	}

	cmd.Flags().StringVarP(&instrument, "instrument", "i", "", "Instrument symbol (required)")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "Override stop strategy for this run")
	cmd.Flags().StringVar(&exportPath, "export", "", "Export trade ledger to CSV file")
	cmd.MarkFlagRequired("instrument")

	return cmd
}

// printTrades renders a trade ledger table.
func printTrades(out *Output, trades []models.Trade) {
	if len(trades) == 0 {
		out.Warning("No trades")
		return
	}

	out.Bold("%-10s %-12s %10s %-12s %10s %-14s %5s %8s %9s %7s",
		"INSTRUMENT", "ENTRY", "PRICE", "EXIT", "PRICE", "TYPE", "BARS", "R", "RETURN", "SHARES")
	for _, t := range trades {
		r := FormatR(t.RMultiple)
		if t.RMultiple >= 0 {
			r = out.Green(r)
		} else {
			r = out.Red(r)
		}
		partial := ""
		if t.Partial {
			partial = " *"
		}
		out.Printf("%-10s %-12s %10.2f %-12s %10.2f %-14s %5d %8s %9s %6d%s\n",
			t.Instrument, FormatDate(t.EntryDate), t.EntryPrice,
			FormatDate(t.ExitDate), t.ExitPrice, t.ExitType, t.BarsHeld,
			r, FormatPercent(t.ProfitPct), t.ShareCount, partial)
	}
}

// printSummary renders aggregate statistics.
func printSummary(out *Output, summary models.Summary) {
	out.Println()
	out.Bold("Summary")
	out.Printf("  Trades:         %d\n", summary.TotalTrades)
	out.Printf("  Win rate:       %.1f%%\n", summary.WinRate*100)
	out.Printf("  Median return:  %s\n", FormatPercent(summary.MedianReturn))
	out.Printf("  Mean return:    %s\n", FormatPercent(summary.MeanReturn))
	out.Printf("  Profit factor:  %s\n", FormatRatio(summary.ProfitFactor))
	out.Printf("  Expectancy:     %s\n", FormatR(summary.Expectancy))
	out.Printf("  Max drawdown:   %.2f%%\n", summary.MaxDrawdown*100)

	if len(summary.ExitTypeCount) > 0 {
		out.Printf("  Exits:          ")
		first := true
		for _, exitType := range models.ExitTypes {
			count := summary.ExitTypeCount[exitType]
			if count == 0 {
				continue
			}
			if !first {
				out.Printf(", ")
			}
			out.Printf("%s=%d", exitType, count)
			first = false
		}
		out.Println()
	}
}
