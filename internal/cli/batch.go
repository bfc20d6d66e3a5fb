package cli

import (
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"flowtrader/internal/backtest"
	"flowtrader/internal/store"
)

// newBatchCmd creates the multi-instrument backtest command.
func newBatchCmd(app *App) *cobra.Command {
	var (
		instruments string
		all         bool
		exportPath  string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Backtest many instruments in parallel",
		Long: `Runs the simulation for every requested instrument across a worker
pool. An instrument that fails is reported alongside the results; it
never aborts the rest of the batch. Ctrl-C abandons the remaining
instruments without losing trades already recorded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)

			// SIGINT abandons remaining instruments; completed ledgers
			// are kept.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var symbols []string
			if all {
				var err error
				symbols, err = app.Store.ListInstruments(ctx)
				if err != nil {
					return err
				}
			} else {
				for _, s := range strings.Split(instruments, ",") {
					if s = strings.TrimSpace(s); s != "" {
						symbols = append(symbols, s)
					}
				}
			}
			if len(symbols) == 0 {
				out.Warning("No instruments to simulate")
				return nil
			}

			runner := backtest.NewBatchRunner(app.Config, app.Store, app.Logger)
			result, err := runner.Run(ctx, symbols)
			if err != nil {
				return err
			}

			runID, err := app.Store.SaveRun(cmd.Context(), &store.RunRecord{
				CreatedAt:     time.Now(),
				StopStrategy:  string(app.Config.Risk.StopStrategy),
				RiskPct:       app.Config.Risk.RiskPctPerTrade,
				InitialEquity: app.Config.Backtest.InitialEquity,
				Summary:       result.Summary,
			})
			if err != nil {
				return err
			}
			if err := app.Store.SaveTrades(cmd.Context(), runID, result.Trades); err != nil {
				return err
			}
			if err := app.Store.SaveFailures(cmd.Context(), runID, result.Failures); err != nil {
				return err
			}

			if exportPath != "" {
				if err := store.ExportTradesCSV(exportPath, result.Trades); err != nil {
					return err
				}
				out.Info("Trades exported to %s", exportPath)
			}

			if out.IsJSON() {
				return out.JSON(map[string]interface{}{
					"run_id":   runID,
					"trades":   result.Trades,
					"failures": result.Failures,
					"summary":  result.Summary,
				})
			}

			printTrades(out, result.Trades)
			printSummary(out, result.Summary)

			if len(result.Failures) > 0 {
				out.Println()
				out.Warning("Failures (%d)", len(result.Failures))
				for _, f := range result.Failures {
					out.Printf("  %-10s %s\n", f.Instrument, f.Message)
				}
			}

			out.Success("Run %d saved: %d instruments, %d trades, %d failures",
				runID, len(symbols), len(result.Trades), len(result.Failures))
			return nil
		},
	}

	cmd.Flags().StringVarP(&instruments, "instruments", "i", "", "Comma-separated instrument symbols")
	cmd.Flags().BoolVar(&all, "all", false, "Simulate every stored instrument")
	cmd.Flags().StringVar(&exportPath, "export", "", "Export combined trade ledger to CSV file")

	return cmd
}
