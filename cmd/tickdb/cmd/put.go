package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put",
	Short: "Store one tick",
	Long: `Store one tick in the TickDB store. A tick with the same instrument,
time and sequence number is replaced.

Example:
  tickdb put --market S --code 600000 --time 2024-01-02T09:30:00.000123Z --price 1050 --qty 200 --side B`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tick, err := tickFromFlags(cmd)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Put(tick); err != nil {
			return fmt.Errorf("failed to store tick: %w", err)
		}

		cmd.Printf("Stored tick %s %s at %s seq %d\n",
			string(tick.Market), tick.Code, tick.Time.Format(time.RFC3339Nano), tick.Seq)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
	addTickFlags(putCmd)
}
