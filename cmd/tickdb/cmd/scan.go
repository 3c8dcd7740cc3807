package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/ssargent/tickdb/pkg/api"
	"github.com/ssargent/tickdb/pkg/codec"
	"github.com/ssargent/tickdb/pkg/query"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <market> <code>",
	Short: "Print the ticks of an instrument in a time range",
	Long: `Print the ticks of one instrument with from <= time < to, in time order.

Examples:
  tickdb scan S 600000 --from 2024-01-02T09:30:00Z --to 2024-01-02T10:00:00Z
  tickdb scan S 600000 --from 2024-01-02T09:30:00Z --to 2024-01-02T10:00:00Z --side B --limit 10
  tickdb scan S 600000 --from 2024-01-02T09:30:00Z --to 2024-01-02T10:00:00Z --limit 100 --offset 100
  tickdb scan S 600000 --from 2024-01-02T09:30:00Z --to 2024-01-02T10:00:00Z --summary -o json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := queryFromFlags(cmd, args)
		if err != nil {
			return err
		}
		summary, _ := cmd.Flags().GetBool("summary")
		format, _ := cmd.Flags().GetString("output")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		engine := query.NewEngine(store)
		if summary {
			sum, err := engine.Summarize(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("summary failed: %w", err)
			}
			return outputSummary(cmd.OutOrStdout(), format, sum)
		}

		ticks, err := engine.Execute(cmd.Context(), q)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		return outputTicks(cmd.OutOrStdout(), format, ticks)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	f := scanCmd.Flags()
	f.String("from", "", "Start time in RFC3339 (required)")
	f.String("to", "", "End time in RFC3339, exclusive (required)")
	f.String("side", "", "Only ticks with this side")
	f.String("min-price", "", "Only ticks priced at or above this raw price")
	f.String("max-price", "", "Only ticks priced at or below this raw price")
	f.Int("limit", 0, "Maximum number of ticks, 0 for all")
	f.Int("offset", 0, "Matching ticks to skip before printing")
	f.Bool("summary", false, "Print an aggregate instead of the ticks")
	f.StringP("output", "o", "table", "Output format (table or json)")
	_ = scanCmd.MarkFlagRequired("from")
	_ = scanCmd.MarkFlagRequired("to")
}

func parseSeriesArgs(args []string) (byte, codec.Code, error) {
	if len(args[0]) != 1 {
		return 0, codec.Code{}, fmt.Errorf("market must be a single character, got %q", args[0])
	}
	code, err := codec.NewCode(args[1])
	if err != nil {
		return 0, codec.Code{}, err
	}
	return args[0][0], code, nil
}

func queryFromFlags(cmd *cobra.Command, args []string) (query.TickQuery, error) {
	market, code, err := parseSeriesArgs(args)
	if err != nil {
		return query.TickQuery{}, err
	}
	q := query.TickQuery{Market: market, Code: code}
	f := cmd.Flags()

	from, _ := f.GetString("from")
	if q.From, err = time.Parse(time.RFC3339Nano, from); err != nil {
		return q, fmt.Errorf("invalid --from: %w", err)
	}
	to, _ := f.GetString("to")
	if q.To, err = time.Parse(time.RFC3339Nano, to); err != nil {
		return q, fmt.Errorf("invalid --to: %w", err)
	}
	if v, _ := f.GetString("side"); v != "" {
		side, err := api.ParseSide(v)
		if err != nil {
			return q, err
		}
		q.Side = &side
	}
	if v, _ := f.GetString("min-price"); v != "" {
		p, err := parsePrice(v)
		if err != nil {
			return q, fmt.Errorf("invalid --min-price: %w", err)
		}
		q.MinPrice = &p
	}
	if v, _ := f.GetString("max-price"); v != "" {
		p, err := parsePrice(v)
		if err != nil {
			return q, fmt.Errorf("invalid --max-price: %w", err)
		}
		q.MaxPrice = &p
	}
	q.Limit, _ = f.GetInt("limit")
	q.Offset, _ = f.GetInt("offset")
	return q, nil
}

func parsePrice(v string) (int32, error) {
	p, err := strconv.ParseInt(v, 10, 32)
	return int32(p), err
}
