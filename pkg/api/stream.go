package api

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ssargent/tickdb/pkg/codec"
	"github.com/ssargent/tickdb/pkg/storage"
)

// defaultStreamBuffer is the number of ticks queued per subscriber before
// new ticks are dropped.
const defaultStreamBuffer = 256

type seriesKey struct {
	market byte
	code   codec.Code
}

// Subscription receives the ticks ingested for one instrument.
type Subscription struct {
	ID uuid.UUID
	C  <-chan storage.Tick

	ch      chan storage.Tick
	key     seriesKey
	hub     *Hub
	dropped atomic.Uint64
	once    sync.Once
}

// Dropped returns how many ticks were discarded because C was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes. C is closed afterwards.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub fans ingested ticks out to live subscribers. Publishing never blocks:
// a subscriber that falls behind loses ticks.
type Hub struct {
	mu     sync.RWMutex
	subs   map[seriesKey]map[uuid.UUID]*Subscription
	closed bool
	logger *slog.Logger

	onDrop func()
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[seriesKey]map[uuid.UUID]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a subscriber for one instrument. A buffer of zero or
// less uses the default size.
func (h *Hub) Subscribe(market byte, code codec.Code, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}
	ch := make(chan storage.Tick, buffer)
	sub := &Subscription{
		ID:  uuid.New(),
		C:   ch,
		ch:  ch,
		key: seriesKey{market: market, code: code},
		hub: h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.once.Do(func() { close(ch) })
		return sub
	}
	m, ok := h.subs[sub.key]
	if !ok {
		m = make(map[uuid.UUID]*Subscription)
		h.subs[sub.key] = m
	}
	m[sub.ID] = sub
	h.logger.Debug("stream subscribed", "id", sub.ID, "market", string(market), "code", code.String())
	return sub
}

// Publish delivers ticks to the subscribers of their instruments.
func (h *Hub) Publish(ticks []storage.Tick) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.subs) == 0 {
		return
	}
	for _, t := range ticks {
		for _, sub := range h.subs[seriesKey{market: t.Market, code: t.Code}] {
			select {
			case sub.ch <- t:
			default:
				sub.dropped.Add(1)
				if h.onDrop != nil {
					h.onDrop()
				}
			}
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, m := range h.subs {
		n += len(m)
	}
	return n
}

// Close ends every subscription. Later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for key, m := range h.subs {
		for _, sub := range m {
			sub.once.Do(func() { close(sub.ch) })
		}
		delete(h.subs, key)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[sub.key]; ok {
		delete(m, sub.ID)
		if len(m) == 0 {
			delete(h.subs, sub.key)
		}
	}
	sub.once.Do(func() { close(sub.ch) })
}
