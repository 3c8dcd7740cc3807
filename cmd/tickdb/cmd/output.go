package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/ssargent/tickdb/pkg/api"
	"github.com/ssargent/tickdb/pkg/query"
	"github.com/ssargent/tickdb/pkg/storage"
)

const formatJSON = "json"

func outputJSON(out io.Writer, v interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// outputTicks displays ticks as a table or a JSON array
func outputTicks(out io.Writer, format string, ticks []storage.Tick) error {
	if format == formatJSON {
		payloads := make([]api.TickPayload, 0, len(ticks))
		for _, t := range ticks {
			payloads = append(payloads, api.PayloadFromTick(t))
		}
		return outputJSON(out, payloads)
	}

	if len(ticks) == 0 {
		fmt.Fprintln(out, "No ticks found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "TIME\tSEQ\tPRICE\tQTY\tCHANNEL\tSIDE\tORDER\tTICK")
	for _, t := range ticks {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\t%d\t%d\n",
			t.Time.Format(time.RFC3339Nano),
			t.Seq,
			t.Price,
			t.Qty,
			t.Channel,
			formatSide(t.Side),
			t.OrderNo,
			t.TickNo)
	}
	return nil
}

// outputSummary displays an aggregate of a range
func outputSummary(out io.Writer, format string, sum query.Summary) error {
	if format == formatJSON {
		return outputJSON(out, sum)
	}
	if sum.Count == 0 {
		fmt.Fprintln(out, "No ticks found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Count:\t%d\n", sum.Count)
	if sum.FirstTime != nil && sum.LastTime != nil {
		fmt.Fprintf(w, "First:\t%s\n", sum.FirstTime.Format(time.RFC3339Nano))
		fmt.Fprintf(w, "Last:\t%s\n", sum.LastTime.Format(time.RFC3339Nano))
	}
	fmt.Fprintf(w, "Open:\t%d\n", sum.Open)
	fmt.Fprintf(w, "High:\t%d\n", sum.High)
	fmt.Fprintf(w, "Low:\t%d\n", sum.Low)
	fmt.Fprintf(w, "Close:\t%d\n", sum.Close)
	fmt.Fprintf(w, "Total qty:\t%d\n", sum.TotalQty)

	sides := make([]int, 0, len(sum.BySide))
	for side := range sum.BySide {
		sides = append(sides, int(side))
	}
	sort.Ints(sides)
	for _, side := range sides {
		s := sum.BySide[uint8(side)]
		fmt.Fprintf(w, "Side %s:\t%d ticks, qty %d\n", formatSide(uint8(side)), s.Count, s.TotalQty)
	}
	return nil
}

// outputSeries displays stored instruments
func outputSeries(out io.Writer, format string, series []storage.SeriesID) error {
	infos := make([]api.SeriesInfo, 0, len(series))
	for _, id := range series {
		infos = append(infos, api.SeriesInfo{Market: string([]byte{id.Market}), Code: id.Code.String()})
	}
	if format == formatJSON {
		return outputJSON(out, infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "No series found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "MARKET\tCODE")
	for _, s := range infos {
		fmt.Fprintf(w, "%s\t%s\n", s.Market, s.Code)
	}
	return nil
}

// outputStats displays store statistics
func outputStats(out io.Writer, format string, st storage.Stats) error {
	if format == formatJSON {
		return outputJSON(out, st)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Path:\t%s\n", st.Path)
	fmt.Fprintf(w, "Chunk duration:\t%s\n", st.ChunkDuration)
	fmt.Fprintf(w, "Series:\t%d\n", st.SeriesCount)
	fmt.Fprintf(w, "Ticks:\t%d\n", st.TickCount)
	fmt.Fprintf(w, "Disk bytes:\t%d\n", st.DiskSpaceBytes)
	return nil
}

// outputChunks displays chunk bases with their time span
func outputChunks(out io.Writer, format string, bases []uint64, d time.Duration) error {
	infos := make([]api.ChunkInfo, 0, len(bases))
	for _, b := range bases {
		infos = append(infos, api.ChunkInfo{BaseMs: b, Start: time.UnixMilli(int64(b)).UTC()})
	}
	if format == formatJSON {
		return outputJSON(out, infos)
	}

	if len(infos) == 0 {
		fmt.Fprintln(out, "No chunks found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "BASE\tSTART\tEND")
	for _, c := range infos {
		fmt.Fprintf(w, "%d\t%s\t%s\n", c.BaseMs, c.Start.Format(time.RFC3339), c.Start.Add(d).Format(time.RFC3339))
	}
	return nil
}

// outputStreamTick prints one streamed tick per line
func outputStreamTick(out io.Writer, format string, p api.TickPayload) error {
	if format == formatJSON {
		return json.NewEncoder(out).Encode(p)
	}
	_, err := fmt.Fprintf(out, "%s %s %s seq=%d price=%d qty=%d side=%s order=%d tick=%d\n",
		p.Time.Format(time.RFC3339Nano), p.Market, p.Code, p.Seq, p.Price, p.Qty,
		formatSide(p.Side), p.OrderNo, p.TickNo)
	return err
}

// formatSide prints printable side bytes as characters.
func formatSide(side uint8) string {
	if side > ' ' && side < 0x7f {
		return string(rune(side))
	}
	return fmt.Sprintf("%d", side)
}
