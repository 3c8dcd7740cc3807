package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/ssargent/tickdb/pkg/api"
	"github.com/ssargent/tickdb/pkg/storage"
)

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Print the binary encoding of a tick",
	Long: `Print the hex encoded Key+Qual, Qualifier and Value a tick would be
stored under. The chunk duration comes from --chunk or the config, and
defaults to 1h. Nothing is written.

Example:
  tickdb encode --market S --code 600000 --time 2023-11-14T22:13:00.001Z --chunk 1m --seq 7 --price -1050 --qty 200`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tick, err := tickFromFlags(cmd)
		if err != nil {
			return err
		}
		d := cfg.StorageOptions(logger).ChunkDuration
		if d == 0 {
			d = storage.DefaultChunkDuration
		}
		chunker, err := storage.NewChunker(d)
		if err != nil {
			return err
		}
		enc, err := api.EncodeTick(chunker, tick)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintf(w, "Chunk base:\t%d\n", enc.ChunkBaseMs)
		fmt.Fprintf(w, "Micro offset:\t%d\n", enc.MicroOffset)
		fmt.Fprintf(w, "Key:\t%s\n", enc.Key)
		fmt.Fprintf(w, "Qualifier:\t%s\n", enc.Qualifier)
		fmt.Fprintf(w, "Value:\t%s\n", enc.Value)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	addTickFlags(encodeCmd)
}
