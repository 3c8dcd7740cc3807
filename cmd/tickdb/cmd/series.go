package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// seriesCmd represents the series command
var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "List the instruments in the store",
	Long: `List every market and code that holds at least one tick.

Examples:
  tickdb series
  tickdb series -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("output")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		series, err := store.Series(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list series: %w", err)
		}
		return outputSeries(cmd.OutOrStdout(), format, series)
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count the ticks and instruments in the store",
	Long: `Print the tick count, instrument count, chunk duration and disk usage
of the store. Counting reads every key.

Examples:
  tickdb stats
  tickdb stats -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("output")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read stats: %w", err)
		}
		return outputStats(cmd.OutOrStdout(), format, st)
	},
}

func init() {
	rootCmd.AddCommand(seriesCmd)
	seriesCmd.Flags().StringP("output", "o", "table", "Output format (table or json)")

	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringP("output", "o", "table", "Output format (table or json)")
}
