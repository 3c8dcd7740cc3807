package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// chunksCmd represents the chunks command
var chunksCmd = &cobra.Command{
	Use:   "chunks <market> <code>",
	Short: "List or delete the chunks of an instrument",
	Long: `List the chunk bases that hold ticks for one instrument. With --delete,
remove every tick in the chunk starting at the given base instead.

Examples:
  tickdb chunks S 600000
  tickdb chunks S 600000 --delete 1704187800000`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		market, code, err := parseSeriesArgs(args)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("output")
		del, _ := cmd.Flags().GetString("delete")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if del != "" {
			base, err := strconv.ParseUint(del, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chunk base %q: %w", del, err)
			}
			if err := store.DeleteChunk(market, code, base); err != nil {
				return fmt.Errorf("failed to delete chunk: %w", err)
			}
			cmd.Printf("Deleted chunk %d of %s %s\n", base, string(market), code)
			return nil
		}

		bases, err := store.Chunks(cmd.Context(), market, code)
		if err != nil {
			return fmt.Errorf("failed to list chunks: %w", err)
		}
		return outputChunks(cmd.OutOrStdout(), format, bases, store.Chunker().Duration())
	},
}

func init() {
	rootCmd.AddCommand(chunksCmd)
	chunksCmd.Flags().String("delete", "", "Delete the chunk with this base in Unix milliseconds")
	chunksCmd.Flags().StringP("output", "o", "table", "Output format (table or json)")
}
