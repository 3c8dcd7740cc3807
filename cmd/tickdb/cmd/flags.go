package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/ssargent/tickdb/pkg/api"
	"github.com/ssargent/tickdb/pkg/storage"
)

// addTickFlags registers the flags describing a single tick.
func addTickFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("market", "", "Market byte, a single character (required)")
	f.String("code", "", "Instrument code, at most 9 bytes (required)")
	f.String("time", "", "Tick time in RFC3339 (default now)")
	f.Uint16("seq", 0, "Sequence number within the same microsecond")
	f.Int32("price", 0, "Raw price")
	f.Uint32("qty", 0, "Quantity")
	f.Uint8("channel", 0, "Channel number")
	f.String("side", "0", "Side as a character or number")
	f.Uint64("order-no", 0, "Order number")
	f.Uint64("tick-no", 0, "Tick number")
	_ = cmd.MarkFlagRequired("market")
	_ = cmd.MarkFlagRequired("code")
}

// tickFromFlags builds a tick from the flags registered by addTickFlags.
func tickFromFlags(cmd *cobra.Command) (storage.Tick, error) {
	f := cmd.Flags()
	p := api.TickPayload{}
	p.Market, _ = f.GetString("market")
	p.Code, _ = f.GetString("code")
	p.Seq, _ = f.GetUint16("seq")
	p.Price, _ = f.GetInt32("price")
	p.Qty, _ = f.GetUint32("qty")
	p.Channel, _ = f.GetUint8("channel")
	p.OrderNo, _ = f.GetUint64("order-no")
	p.TickNo, _ = f.GetUint64("tick-no")

	side, _ := f.GetString("side")
	s, err := api.ParseSide(side)
	if err != nil {
		return storage.Tick{}, err
	}
	p.Side = s

	p.Time = time.Now().UTC()
	if v, _ := f.GetString("time"); v != "" {
		if p.Time, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return storage.Tick{}, fmt.Errorf("invalid --time: %w", err)
		}
	}
	return p.ToTick()
}
