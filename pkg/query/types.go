package query

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/tickdb/pkg/codec"
	"github.com/ssargent/tickdb/pkg/storage"
)

var ErrInvalidQuery = errors.New("invalid query")

// TickScanner is the part of the tick store a query needs.
type TickScanner interface {
	Scan(ctx context.Context, r storage.ScanRange, fn func(storage.Tick) error) error
}

// TickQuery selects ticks of one instrument in [From, To) with optional filters.
type TickQuery struct {
	Market   byte
	Code     codec.Code
	From     time.Time
	To       time.Time
	Side     *uint8
	MinPrice *int32
	MaxPrice *int32
	// Limit caps the number of ticks returned, 0 means no limit.
	Limit int
	// Offset skips that many matching ticks, for paging with Limit.
	Offset int
}

// Validate checks if the query is properly formed
func (q *TickQuery) Validate() error {
	if q.Market == 0 {
		return errors.Wrap(ErrInvalidQuery, "market cannot be empty")
	}
	if q.Code == (codec.Code{}) {
		return errors.Wrap(ErrInvalidQuery, "code cannot be empty")
	}
	if q.From.IsZero() || q.To.IsZero() {
		return errors.Wrap(ErrInvalidQuery, "from and to are required")
	}
	if !q.From.Before(q.To) {
		return errors.Wrapf(ErrInvalidQuery, "from %s must be before to %s",
			q.From.Format(time.RFC3339Nano), q.To.Format(time.RFC3339Nano))
	}
	if q.Limit < 0 {
		return errors.Wrapf(ErrInvalidQuery, "limit must be >= 0, got %d", q.Limit)
	}
	if q.Offset < 0 {
		return errors.Wrapf(ErrInvalidQuery, "offset must be >= 0, got %d", q.Offset)
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return errors.Wrapf(ErrInvalidQuery, "min price %d above max price %d", *q.MinPrice, *q.MaxPrice)
	}
	return nil
}

// Match reports whether t passes the side and price filters.
func (q *TickQuery) Match(t storage.Tick) bool {
	if q.Side != nil && t.Side != *q.Side {
		return false
	}
	if q.Offset < 0 {
		return errors.Wrapf(ErrInvalidQuery, "offset must be >= 0, got %d", q.Offset)
	}
	if q.MinPrice != nil && t.Price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && t.Price > *q.MaxPrice {
		return false
	}
	return true
}

func (q *TickQuery) scanRange() storage.ScanRange {
	return storage.ScanRange{Market: q.Market, Code: q.Code, From: q.From, To: q.To}
}

// SideSummary aggregates the ticks of one side.
type SideSummary struct {
	Count    int    `json:"count"`
	TotalQty uint64 `json:"total_qty"`
}

// Summary aggregates the ticks matched by a query. Prices are raw integers.
// FirstTime and LastTime are nil when nothing matched.
type Summary struct {
	Count     int                    `json:"count"`
	FirstTime *time.Time             `json:"first_time,omitempty"`
	LastTime  *time.Time             `json:"last_time,omitempty"`
	Open      int32                  `json:"open"`
	High      int32                  `json:"high"`
	Low       int32                  `json:"low"`
	Close     int32                  `json:"close"`
	TotalQty  uint64                 `json:"total_qty"`
	BySide    map[uint8]*SideSummary `json:"by_side"`
}
