package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/segmentio/ksuid"
	"github.com/ssargent/tickdb/pkg/codec"
	"github.com/ssargent/tickdb/pkg/query"
	"github.com/ssargent/tickdb/pkg/storage"
)

// maxIngestBytes bounds the request body of a tick batch.
const maxIngestBytes = 8 << 20

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server holds the API server state
type Server struct {
	store   TickStore
	engine  *query.Engine
	hub     *Hub
	config  ServerConfig
	metrics *Metrics
	logger  *slog.Logger
}

// NewServer creates a new API server
func NewServer(store TickStore, config ServerConfig, metrics *Metrics) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := NewHub(logger)
	hub.onDrop = metrics.RecordStreamDropped
	return &Server{
		store:   store,
		engine:  query.NewEngine(store),
		hub:     hub,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Get the health status of the API
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/health [get]
//	@Security		ApiKeyAuth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleIngest godoc
//
//	@Summary		Ingest a batch of ticks
//	@Description	Store ticks atomically. Ticks with an existing key are replaced.
//	@Tags			ticks
//	@Accept			json
//	@Produce		json
//	@Param			ticks	body		[]TickPayload	true	"Ticks"
//	@Success		200		{object}	IngestResponse
//	@Failure		400		{object}	map[string]string
//	@Failure		500		{object}	map[string]string
//	@Router			/ticks [post]
//	@Security		ApiKeyAuth
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var payloads []TickPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBytes)).Decode(&payloads); err != nil {
		s.metrics.RecordStoreOperation("put_batch", false, time.Since(start))
		sendError(w, fmt.Sprintf("Invalid JSON in request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(payloads) == 0 {
		s.metrics.RecordStoreOperation("put_batch", false, time.Since(start))
		sendError(w, "At least one tick is required", http.StatusBadRequest)
		return
	}

	ticks := make([]storage.Tick, 0, len(payloads))
	for i, p := range payloads {
		t, err := p.ToTick()
		if err != nil {
			s.metrics.RecordStoreOperation("put_batch", false, time.Since(start))
			sendError(w, fmt.Sprintf("Invalid tick %d: %v", i, err), http.StatusBadRequest)
			return
		}
		ticks = append(ticks, t)
	}

	if err := s.store.PutBatch(ticks); err != nil {
		s.metrics.RecordStoreOperation("put_batch", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to store ticks: %v", err), statusFor(err))
		return
	}

	batchID := ksuid.New().String()
	s.metrics.RecordStoreOperation("put_batch", true, time.Since(start))
	s.metrics.RecordTicksIngested(len(ticks))
	s.hub.Publish(ticks)
	s.logger.Debug("ticks ingested", "batch_id", batchID, "count", len(ticks))

	sendSuccess(w, IngestResponse{BatchID: batchID, Count: len(ticks)})
}

// handleQuery godoc
//
//	@Summary		Query ticks
//	@Description	List ticks of one instrument in [from, to), optionally filtered by side and price
//	@Tags			ticks
//	@Produce		json
//	@Param			market		path		string	true	"Market byte"
//	@Param			code		path		string	true	"Instrument code"
//	@Param			from		query		string	true	"Start time (RFC3339)"
//	@Param			to			query		string	true	"End time, exclusive (RFC3339)"
//	@Param			side		query		string	false	"Side as a character or number"
//	@Param			min_price	query		int		false	"Minimum raw price"
//	@Param			max_price	query		int		false	"Maximum raw price"
//	@Param			limit		query		int		false	"Maximum number of ticks"
//	@Param			offset		query		int		false	"Matching ticks to skip before the first returned"
//	@Success		200			{array}		TickPayload
//	@Failure		400			{object}	map[string]string
//	@Failure		500			{object}	map[string]string
//	@Router			/ticks/{market}/{code} [get]
//	@Security		ApiKeyAuth
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, err := parseTickQuery(r)
	if err != nil {
		s.metrics.RecordStoreOperation("query", false, time.Since(start))
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ticks, err := s.engine.Execute(r.Context(), q)
	if err != nil {
		s.metrics.RecordStoreOperation("query", false, time.Since(start))
		sendError(w, fmt.Sprintf("Query failed: %v", err), statusFor(err))
		return
	}

	out := make([]TickPayload, 0, len(ticks))
	for _, t := range ticks {
		out = append(out, PayloadFromTick(t))
	}
	s.metrics.RecordStoreOperation("query", true, time.Since(start))
	sendSuccess(w, out)
}

// handleSummary godoc
//
//	@Summary		Summarize ticks
//	@Description	Aggregate count, open/high/low/close and quantities for a time range
//	@Tags			ticks
//	@Produce		json
//	@Param			market	path		string	true	"Market byte"
//	@Param			code	path		string	true	"Instrument code"
//	@Param			from	query		string	true	"Start time (RFC3339)"
//	@Param			to		query		string	true	"End time, exclusive (RFC3339)"
//	@Success		200		{object}	query.Summary
//	@Failure		400		{object}	map[string]string
//	@Router			/ticks/{market}/{code}/summary [get]
//	@Security		ApiKeyAuth
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, err := parseTickQuery(r)
	if err != nil {
		s.metrics.RecordStoreOperation("summary", false, time.Since(start))
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sum, err := s.engine.Summarize(r.Context(), q)
	if err != nil {
		s.metrics.RecordStoreOperation("summary", false, time.Since(start))
		sendError(w, fmt.Sprintf("Summary failed: %v", err), statusFor(err))
		return
	}

	s.metrics.RecordStoreOperation("summary", true, time.Since(start))
	sendSuccess(w, sum)
}

// handleStream godoc
//
//	@Summary		Stream ticks
//	@Description	Upgrade to a websocket that receives every tick ingested for the instrument from now on
//	@Tags			ticks
//	@Produce		json
//	@Param			market	path	string	true	"Market byte"
//	@Param			code	path	string	true	"Instrument code"
//	@Param			api_key	query	string	false	"API key for clients that cannot set headers"
//	@Success		101		{object}	StreamMessage
//	@Failure		400		{object}	map[string]string
//	@Router			/ticks/{market}/{code}/stream [get]
//	@Security		ApiKeyAuth
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	market, code, err := parseSeries(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied with an HTTP error.
		s.logger.Debug("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe(market, code, 0)
	s.metrics.SetStreamSubscribers(s.hub.Subscribers())
	defer func() {
		sub.Close()
		s.metrics.SetStreamSubscribers(s.hub.Subscribers())
	}()

	// Clients send nothing; reading only notices when they go away.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := s.writeStream(conn, StreamMessage{Type: StreamSubscribed, SubscriptionID: sub.ID.String()}); err != nil {
		return
	}

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case t, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(streamWriteTimeout))
				return
			}
			p := PayloadFromTick(t)
			if err := s.writeStream(conn, StreamMessage{Type: StreamTick, Tick: &p, Dropped: sub.Dropped()}); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeStream(conn *websocket.Conn, msg StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("stream write failed", "error", err)
		return err
	}
	return nil
}

// handleListSeries godoc
//
//	@Summary		List instruments
//	@Description	List every market and code that holds at least one tick
//	@Tags			series
//	@Produce		json
//	@Success		200	{array}		SeriesInfo
//	@Failure		500	{object}	map[string]string
//	@Router			/series [get]
//	@Security		ApiKeyAuth
func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	series, err := s.store.Series(r.Context())
	if err != nil {
		s.metrics.RecordStoreOperation("series", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to list series: %v", err), statusFor(err))
		return
	}

	out := make([]SeriesInfo, 0, len(series))
	for _, id := range series {
		out = append(out, SeriesInfo{Market: string([]byte{id.Market}), Code: id.Code.String()})
	}
	s.metrics.RecordStoreOperation("series", true, time.Since(start))
	sendSuccess(w, out)
}

// handleListChunks godoc
//
//	@Summary		List chunks
//	@Description	List the chunk bases that hold ticks for an instrument
//	@Tags			chunks
//	@Produce		json
//	@Param			market	path		string	true	"Market byte"
//	@Param			code	path		string	true	"Instrument code"
//	@Success		200		{array}		ChunkInfo
//	@Router			/chunks/{market}/{code} [get]
//	@Security		ApiKeyAuth
func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	market, code, err := parseSeries(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	bases, err := s.store.Chunks(r.Context(), market, code)
	if err != nil {
		s.metrics.RecordStoreOperation("chunks", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to list chunks: %v", err), statusFor(err))
		return
	}

	out := make([]ChunkInfo, 0, len(bases))
	for _, b := range bases {
		out = append(out, ChunkInfo{BaseMs: b, Start: time.UnixMilli(int64(b)).UTC()})
	}
	s.metrics.RecordStoreOperation("chunks", true, time.Since(start))
	sendSuccess(w, out)
}

// handleDeleteChunk godoc
//
//	@Summary		Delete a chunk
//	@Description	Remove every tick of an instrument in one chunk
//	@Tags			chunks
//	@Produce		json
//	@Param			market	path		string	true	"Market byte"
//	@Param			code	path		string	true	"Instrument code"
//	@Param			base	path		int		true	"Chunk base in Unix milliseconds"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{object}	map[string]string
//	@Router			/chunks/{market}/{code}/{base} [delete]
//	@Security		ApiKeyAuth
func (s *Server) handleDeleteChunk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	market, code, err := parseSeries(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	base, err := strconv.ParseUint(chi.URLParam(r, "base"), 10, 64)
	if err != nil {
		sendError(w, "Invalid chunk base", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteChunk(market, code, base); err != nil {
		s.metrics.RecordStoreOperation("delete_chunk", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to delete chunk: %v", err), statusFor(err))
		return
	}

	s.metrics.RecordStoreOperation("delete_chunk", true, time.Since(start))
	sendSuccess(w, map[string]string{"message": "Chunk deleted successfully"})
}

// handleEncode godoc
//
//	@Summary		Encode a tick
//	@Description	Show the hex encoding of the key, qualifier and value of a tick without storing it
//	@Tags			codec
//	@Accept			json
//	@Produce		json
//	@Param			tick	body		TickPayload	true	"Tick"
//	@Success		200		{object}	EncodeResponse
//	@Failure		400		{object}	map[string]string
//	@Router			/codec/encode [post]
//	@Security		ApiKeyAuth
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var p TickPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBytes)).Decode(&p); err != nil {
		sendError(w, "Invalid JSON in request body", http.StatusBadRequest)
		return
	}
	t, err := p.ToTick()
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := EncodeTick(s.store.Chunker(), t)
	if err != nil {
		sendError(w, err.Error(), statusFor(err))
		return
	}
	sendSuccess(w, resp)
}

// handleStats godoc
//
//	@Summary		Get store statistics
//	@Description	Tick and instrument counts, disk usage and chunk configuration
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{object}	storage.Stats
//	@Failure		500	{object}	map[string]string
//	@Router			/stats [get]
//	@Security		ApiKeyAuth
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.metrics.RecordStoreOperation("stats", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to read stats: %v", err), statusFor(err))
		return
	}
	s.metrics.RecordStoreOperation("stats", true, time.Since(start))
	s.metrics.UpdateStoreStats(stats.DiskSpaceBytes)
	sendSuccess(w, stats)
}

// EncodeTick produces the hex encodings a tick would be stored under.
func EncodeTick(chunker *storage.Chunker, t storage.Tick) (EncodeResponse, error) {
	base, off, err := chunker.Split(t.Time)
	if err != nil {
		return EncodeResponse{}, err
	}
	key, err := codec.EncodeKeyQual(t.Market, t.Code[:], base)
	if err != nil {
		return EncodeResponse{}, err
	}
	qual := codec.EncodeQualifier(off, t.Seq)
	val := codec.EncodeValue(t.TickValue)

	return EncodeResponse{
		ChunkBaseMs: base,
		MicroOffset: off,
		Key:         hex.EncodeToString(key[:]),
		Qualifier:   hex.EncodeToString(qual[:]),
		Value:       hex.EncodeToString(val[:]),
	}, nil
}

// startMetricsUpdater periodically updates store metrics
func (s *Server) startMetricsUpdater(ctx context.Context) {
	interval := s.config.MetricsInterval
	if interval <= 0 {
		interval = defaultMetricsInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.metrics.UpdateStoreStats(s.store.DiskUsage())
		}
	}
}

func parseSeries(r *http.Request) (byte, codec.Code, error) {
	market := chi.URLParam(r, "market")
	if len(market) != 1 {
		return 0, codec.Code{}, fmt.Errorf("market must be a single character")
	}
	rawCode, err := url.PathUnescape(chi.URLParam(r, "code"))
	if err != nil {
		return 0, codec.Code{}, fmt.Errorf("invalid code encoding")
	}
	code, err := codec.NewCode(rawCode)
	if err != nil {
		return 0, codec.Code{}, err
	}
	return market[0], code, nil
}

func parseTickQuery(r *http.Request) (query.TickQuery, error) {
	market, code, err := parseSeries(r)
	if err != nil {
		return query.TickQuery{}, err
	}
	q := query.TickQuery{Market: market, Code: code}
	values := r.URL.Query()

	if q.From, err = parseTime(values.Get("from")); err != nil {
		return q, fmt.Errorf("invalid from: %w", err)
	}
	if q.To, err = parseTime(values.Get("to")); err != nil {
		return q, fmt.Errorf("invalid to: %w", err)
	}

	if v := values.Get("side"); v != "" {
		side, err := ParseSide(v)
		if err != nil {
			return q, err
		}
		q.Side = &side
	}
	if v := values.Get("min_price"); v != "" {
		p, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return q, fmt.Errorf("invalid min_price: %w", err)
		}
		minPrice := int32(p)
		q.MinPrice = &minPrice
	}
	if v := values.Get("max_price"); v != "" {
		p, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return q, fmt.Errorf("invalid max_price: %w", err)
		}
		maxPrice := int32(p)
		q.MaxPrice = &maxPrice
	}
	if v := values.Get("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil {
			return q, fmt.Errorf("invalid limit: %w", err)
		}
	}
	if v := values.Get("offset"); v != "" {
		if q.Offset, err = strconv.Atoi(v); err != nil {
			return q, fmt.Errorf("invalid offset: %w", err)
		}
	}
	return q, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("value is required")
	}
	return time.Parse(time.RFC3339Nano, v)
}

// ParseSide accepts a decimal byte value or a single non-digit character.
func ParseSide(v string) (uint8, error) {
	if n, err := strconv.ParseUint(v, 10, 8); err == nil {
		return uint8(n), nil
	}
	if len(v) == 1 {
		return v[0], nil
	}
	return 0, fmt.Errorf("invalid side %q", v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, query.ErrInvalidQuery),
		errors.Is(err, codec.ErrLengthMismatch),
		errors.Is(err, codec.ErrInvalidCode),
		errors.Is(err, storage.ErrInvalidTimestamp):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
