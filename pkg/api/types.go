package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ssargent/tickdb/pkg/codec"
	"github.com/ssargent/tickdb/pkg/storage"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// TickPayload is the JSON form of a tick.
type TickPayload struct {
	Market  string    `json:"market"`
	Code    string    `json:"code"`
	Time    time.Time `json:"time"`
	Seq     uint16    `json:"seq"`
	Price   int32     `json:"price"`
	Qty     uint32    `json:"qty"`
	Channel uint8     `json:"channel"`
	Side    uint8     `json:"side"`
	OrderNo uint64    `json:"order_no"`
	TickNo  uint64    `json:"tick_no"`
}

// IngestResponse is returned after a batch of ticks has been stored.
type IngestResponse struct {
	BatchID string `json:"batch_id"`
	Count   int    `json:"count"`
}

// SeriesInfo names one stored instrument.
type SeriesInfo struct {
	Market string `json:"market"`
	Code   string `json:"code"`
}

// ChunkInfo describes one stored chunk.
type ChunkInfo struct {
	BaseMs uint64    `json:"base_ms"`
	Start  time.Time `json:"start"`
}

// EncodeResponse shows the binary layout of a tick.
type EncodeResponse struct {
	ChunkBaseMs uint64 `json:"chunk_base_ms"`
	MicroOffset uint32 `json:"micro_offset"`
	Key         string `json:"key"`
	Qualifier   string `json:"qualifier"`
	Value       string `json:"value"`
}

// Stream message types.
const (
	StreamSubscribed = "subscribed"
	StreamTick       = "tick"
)

// StreamMessage is one websocket message of a live tick stream.
type StreamMessage struct {
	Type           string       `json:"type"`
	SubscriptionID string       `json:"subscription_id,omitempty"`
	Tick           *TickPayload `json:"tick,omitempty"`
	// Dropped counts ticks this subscriber has lost so far.
	Dropped uint64 `json:"dropped,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port   int
	Bind   string
	APIKey string
	// MetricsInterval controls how often store gauges are refreshed.
	MetricsInterval time.Duration
	Logger          *slog.Logger
	Registerer      prometheus.Registerer
}

// ToTick converts the payload into a storage tick.
func (p TickPayload) ToTick() (storage.Tick, error) {
	if len(p.Market) != 1 {
		return storage.Tick{}, fmt.Errorf("market must be a single character, got %q", p.Market)
	}
	code, err := codec.NewCode(p.Code)
	if err != nil {
		return storage.Tick{}, err
	}
	if p.Time.IsZero() {
		return storage.Tick{}, fmt.Errorf("time is required")
	}
	return storage.Tick{
		Market: p.Market[0],
		Code:   code,
		Time:   p.Time,
		Seq:    p.Seq,
		TickValue: codec.TickValue{
			Price:   p.Price,
			Qty:     p.Qty,
			Channel: p.Channel,
			Side:    p.Side,
			OrderNo: p.OrderNo,
			TickNo:  p.TickNo,
		},
	}, nil
}

// PayloadFromTick converts a stored tick to its JSON form.
func PayloadFromTick(t storage.Tick) TickPayload {
	return TickPayload{
		Market:  string([]byte{t.Market}),
		Code:    t.Code.String(),
		Time:    t.Time,
		Seq:     t.Seq,
		Price:   t.Price,
		Qty:     t.Qty,
		Channel: t.Channel,
		Side:    t.Side,
		OrderNo: t.OrderNo,
		TickNo:  t.TickNo,
	}
}
