package cli

import (
	"github.com/spf13/cobra"

	"flowtrader/internal/store"
)

// newReportCmd creates the stored-run report command.
func newReportCmd(app *App) *cobra.Command {
	var (
		runID      int64
		instrument string
		exportPath string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the trade ledger and summary for a stored run",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			ctx := cmd.Context()

			var run *store.RunRecord
			var err error
			if runID > 0 {
				run, err = app.Store.GetRun(ctx, runID)
			} else {
				run, err = app.Store.GetLatestRun(ctx)
			}
			if err != nil {
				return err
			}

			trades, err := app.Store.GetTrades(ctx, store.TradeFilter{
				RunID:      run.ID,
				Instrument: instrument,
			})
			if err != nil {
				return err
			}

			for _, t := range trades {
				run.Summary.ExitTypeCount[t.ExitType]++
			}

			failures, err := app.Store.GetFailures(ctx, run.ID)
			if err != nil {
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
					"run":      run,
					"trades":   trades,
					"failures": failures,
				})
			}

			out.Bold("Run %d  (%s, strategy=%s, risk=%.2f%%, equity=%s)",
				run.ID, FormatDate(run.CreatedAt), run.StopStrategy,
				run.RiskPct*100, FormatCurrency(run.InitialEquity))
			out.Println()
			printTrades(out, trades)
			printSummary(out, run.Summary)

			if len(failures) > 0 {
				out.Println()
				out.Warning("Failures (%d)", len(failures))
				for _, f := range failures {
					out.Printf("  %-10s %s\n", f.Instrument, f.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&runID, "run", 0, "Run ID (default: latest)")
	cmd.Flags().StringVarP(&instrument, "instrument", "i", "", "Filter by instrument")
	cmd.Flags().StringVar(&exportPath, "export", "", "Export trade ledger to CSV file")

	return cmd
}
