package query

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/tickdb/pkg/storage"
)

// Engine runs tick queries against a store.
type Engine struct {
	store TickScanner
}

// NewEngine creates a new query engine
func NewEngine(store TickScanner) *Engine {
	return &Engine{store: store}
}

// Execute returns the ticks matching q in time order.
func (e *Engine) Execute(ctx context.Context, q TickQuery) ([]storage.Tick, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var results []storage.Tick
	skip := q.Offset
	err := e.store.Scan(ctx, q.scanRange(), func(t storage.Tick) error {
		if !q.Match(t) {
			return nil
		}
		if skip > 0 {
			skip--
			return nil
		}
		results = append(results, t)
		if q.Limit > 0 && len(results) >= q.Limit {
			return storage.ErrStopScan
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "execute query")
	}
	return results, nil
}

// Summarize aggregates the ticks matching q. Limit and Offset are ignored.
func (e *Engine) Summarize(ctx context.Context, q TickQuery) (Summary, error) {
	q.Limit = 0
	q.Offset = 0
	if err := q.Validate(); err != nil {
		return Summary{}, err
	}

	sum := Summary{BySide: make(map[uint8]*SideSummary)}
	err := e.store.Scan(ctx, q.scanRange(), func(t storage.Tick) error {
		if !q.Match(t) {
			return nil
		}
		at := t.Time
		if sum.Count == 0 {
			sum.FirstTime = &at
			sum.Open = t.Price
			sum.High = t.Price
			sum.Low = t.Price
		}
		sum.Count++
		sum.LastTime = &at
		sum.Close = t.Price
		sum.High = max(sum.High, t.Price)
		sum.Low = min(sum.Low, t.Price)
		sum.TotalQty += uint64(t.Qty)

		side, ok := sum.BySide[t.Side]
		if !ok {
			side = &SideSummary{}
			sum.BySide[t.Side] = side
		}
		side.Count++
		side.TotalQty += uint64(t.Qty)
		return nil
	})
	if err != nil {
		return Summary{}, errors.Wrap(err, "summarize query")
	}
	return sum, nil
}
