package cli

import (
	"github.com/spf13/cobra"

	"flowtrader/internal/store"
)

// newImportCmd creates the feature-table import command.
func newImportCmd(app *App) *cobra.Command {
	var (
		file       string
		instrument string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a precomputed feature table from CSV",
		Long: `Loads a per-session feature table (OHLCV, indicators and signal
flags, already computed by the feature pipeline) into the local store.
Columns prefixed Entry_ or Exit_ are treated as named signal flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)

			series, err := store.ImportFeatureCSV(cmd.Context(), app.Store, file, instrument)
			if err != nil {
				return err
			}

			if out.IsJSON() {
				return out.JSON(map[string]interface{}{
					"instrument": series.Instrument,
					"rows":       series.Len(),
				})
			}

			out.Success("Imported %d sessions for %s", series.Len(), series.Instrument)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Feature table CSV path (required)")
	cmd.Flags().StringVarP(&instrument, "instrument", "i", "", "Instrument symbol (required)")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("instrument")

	return cmd
}
