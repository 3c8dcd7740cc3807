package storage

import (
	"context"
	"encoding/binary"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/ssargent/tickdb/pkg/codec"
)

// TickStore persists ticks in Pebble using the codec key and value layout.
// Operations hold mu for reading so that Close never races an open iterator
// or write.
type TickStore struct {
	mu        sync.RWMutex
	db        *pebble.DB
	closed    bool
	path      string
	chunker   *Chunker
	writeOpts *pebble.WriteOptions
	logger    *slog.Logger
}

// pebbleLogger routes Pebble's own messages into slog at debug level.
type pebbleLogger struct {
	logger *slog.Logger
}

func (l pebbleLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "pebble")
}

func (l pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "pebble")
	os.Exit(1)
}

// Open opens or creates a tick store at path. A new store records its
// chunk duration; reopening it with a different non-zero duration fails
// with ErrChunkMismatch, and a zero duration adopts the recorded one.
func Open(path string, opts Options) (*TickStore, error) {
	if opts.ChunkDuration != 0 {
		if err := ValidateChunkDuration(opts.ChunkDuration); err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := pebble.Open(path, &pebble.Options{Logger: pebbleLogger{logger: logger}})
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble at %s", path)
	}

	d, err := resolveChunkDuration(db, opts.ChunkDuration)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	chunker, err := NewChunker(d)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	writeOpts := pebble.NoSync
	if opts.Sync {
		writeOpts = pebble.Sync
	}

	logger.Debug("tick store opened", "path", path, "chunk", chunker.Duration())
	return &TickStore{
		db:        db,
		path:      path,
		chunker:   chunker,
		writeOpts: writeOpts,
		logger:    logger,
	}, nil
}

func resolveChunkDuration(db *pebble.DB, want time.Duration) (time.Duration, error) {
	data, closer, err := db.Get(metaChunkKey)
	switch {
	case err == nil:
		defer closer.Close()
		if len(data) != 8 {
			return 0, errors.Newf("chunk metadata of %d bytes", len(data))
		}
		stored := time.Duration(binary.BigEndian.Uint64(data)) * time.Millisecond
		if want != 0 && want != stored {
			return 0, errors.Wrapf(ErrChunkMismatch, "store uses %s, requested %s", stored, want)
		}
		return stored, nil
	case errors.Is(err, pebble.ErrNotFound):
	default:
		return 0, errors.Wrap(err, "read chunk metadata")
	}

	if want == 0 {
		want = DefaultChunkDuration
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(want/time.Millisecond))
	if err := db.Set(metaChunkKey, buf[:], pebble.Sync); err != nil {
		return 0, errors.Wrap(err, "write chunk metadata")
	}
	return want, nil
}

// Chunker returns the chunking used by this store.
func (s *TickStore) Chunker() *Chunker {
	return s.chunker
}

// Put stores a single tick, replacing any tick with the same key.
func (s *TickStore) Put(t Tick) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	key, err := s.encodeKey(t.Market, t.Code, t.Time, t.Seq)
	if err != nil {
		return err
	}
	val := codec.EncodeValue(t.TickValue)
	if err := s.db.Set(key, val[:], s.writeOpts); err != nil {
		return errors.Wrap(err, "put tick")
	}
	return nil
}

// PutBatch stores ticks atomically.
func (s *TickStore) PutBatch(ticks []Tick) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	b := s.db.NewBatch()
	defer b.Close()

	for i, t := range ticks {
		key, err := s.encodeKey(t.Market, t.Code, t.Time, t.Seq)
		if err != nil {
			return errors.Wrapf(err, "tick %d", i)
		}
		val := codec.EncodeValue(t.TickValue)
		if err := b.Set(key, val[:], nil); err != nil {
			return errors.Wrapf(err, "batch set tick %d", i)
		}
	}
	if err := b.Commit(s.writeOpts); err != nil {
		return errors.Wrap(err, "commit batch")
	}
	s.logger.Debug("tick batch committed", "count", len(ticks))
	return nil
}

// Get loads the tick stored for the given instrument, time and sequence.
func (s *TickStore) Get(market byte, code codec.Code, at time.Time, seq uint16) (Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Tick{}, ErrClosed
	}
	key, err := s.encodeKey(market, code, at, seq)
	if err != nil {
		return Tick{}, err
	}
	data, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Tick{}, ErrNotFound
		}
		return Tick{}, errors.Wrap(err, "get tick")
	}
	defer closer.Close()

	return s.decode(key, data)
}

// Scan calls fn for every tick in r, in time order. Returning ErrStopScan
// from fn ends the scan without error.
func (s *TickStore) Scan(ctx context.Context, r ScanRange, fn func(Tick) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	prefix := seriesPrefix(r.Market, r.Code)
	lower := prefix
	upper := prefixUpperBound(prefix)
	if !r.From.IsZero() {
		k, err := s.encodeKey(r.Market, r.Code, r.From, 0)
		if err != nil {
			return err
		}
		lower = k
	}
	if !r.To.IsZero() {
		k, err := s.encodeKey(r.Market, r.Code, r.To, 0)
		if err != nil {
			return err
		}
		upper = k
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return errors.Wrap(err, "new iterator")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, err := s.decode(iter.Key(), iter.Value())
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			if errors.Is(err, ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return iter.Error()
}

// Chunks lists the chunk bases that hold data for an instrument.
func (s *TickStore) Chunks(ctx context.Context, market byte, code codec.Code) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	prefix := seriesPrefix(market, code)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, errors.Wrap(err, "new iterator")
	}
	defer iter.Close()

	var bases []uint64
	for valid := iter.First(); valid; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		base, err := codec.DecodeChunkTimestamp(iter.Key()[:codec.KeyQualSize])
		if err != nil {
			return nil, err
		}
		bases = append(bases, base)
		if base == ^uint64(0) {
			break
		}
		valid = iter.SeekGE(chunkKey(prefix, base+1))
	}
	return bases, iter.Error()
}

// DeleteChunk removes every tick in one chunk of an instrument.
func (s *TickStore) DeleteChunk(market byte, code codec.Code, baseMs uint64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	prefix := seriesPrefix(market, code)
	start := chunkKey(prefix, baseMs)
	end := prefixUpperBound(prefix)
	if baseMs != ^uint64(0) {
		end = chunkKey(prefix, baseMs+1)
	}
	if err := s.db.DeleteRange(start, end, s.writeOpts); err != nil {
		return errors.Wrapf(err, "delete chunk %d", baseMs)
	}
	s.logger.Info("chunk deleted", "market", string(market), "code", code.String(), "base", baseMs)
	return nil
}

// Series lists every instrument that holds at least one tick, in key order.
func (s *TickStore) Series(ctx context.Context) ([]SeriesID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "new iterator")
	}
	defer iter.Close()

	var out []SeriesID
	for valid := iter.First(); valid; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := iter.Key()
		if len(key) != keySize {
			valid = iter.Next()
			continue
		}
		id := SeriesID{Market: key[0]}
		copy(id.Code[:], key[1:seriesSize])
		out = append(out, id)

		upper := prefixUpperBound(key[:seriesSize])
		if upper == nil {
			break
		}
		valid = iter.SeekGE(upper)
	}
	return out, iter.Error()
}

// Stats counts the stored ticks and instruments and reports disk usage.
// It reads every key.
func (s *TickStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{ChunkDuration: s.chunker.Duration(), Path: s.path}
	if s.closed {
		return st, ErrClosed
	}
	st.DiskSpaceBytes = s.db.Metrics().DiskSpaceUsage()

	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return st, errors.Wrap(err, "new iterator")
	}
	defer iter.Close()

	var last []byte
	for valid := iter.First(); valid; valid = iter.Next() {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		key := iter.Key()
		if len(key) != keySize {
			continue
		}
		st.TickCount++
		if !bytes.Equal(last, key[:seriesSize]) {
			st.SeriesCount++
			last = append(last[:0], key[:seriesSize]...)
		}
	}
	return st, iter.Error()
}

// DiskUsage reports the bytes used on disk without reading any keys.
func (s *TickStore) DiskUsage() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return s.db.Metrics().DiskSpaceUsage()
}

// Close flushes and closes the underlying database. It waits for running
// operations to finish.
func (s *TickStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *TickStore) encodeKey(market byte, code codec.Code, at time.Time, seq uint16) ([]byte, error) {
	base, off, err := s.chunker.Split(at)
	if err != nil {
		return nil, err
	}
	key := make([]byte, keySize)
	if err := codec.PutKeyQual(key[:codec.KeyQualSize], market, code[:], base); err != nil {
		return nil, err
	}
	if err := codec.PutQualifier(key[codec.KeyQualSize:], off, seq); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *TickStore) decode(key, value []byte) (Tick, error) {
	if len(key) != keySize {
		return Tick{}, errors.Wrapf(codec.ErrLengthMismatch, "stored key of %d bytes", len(key))
	}
	market, code, base, err := codec.DecodeKeyQual(key[:codec.KeyQualSize])
	if err != nil {
		return Tick{}, err
	}
	off, seq, err := codec.DecodeQualifier(key[codec.KeyQualSize:])
	if err != nil {
		return Tick{}, err
	}
	v, err := codec.DecodeValue(value)
	if err != nil {
		return Tick{}, errors.Wrap(err, "stored value")
	}
	return Tick{
		Market:    market,
		Code:      code,
		Time:      s.chunker.Join(base, off),
		Seq:       seq,
		TickValue: v,
	}, nil
}

func seriesPrefix(market byte, code codec.Code) []byte {
	p := make([]byte, seriesSize)
	p[0] = market
	copy(p[1:], code[:])
	return p
}

func chunkKey(prefix []byte, baseMs uint64) []byte {
	k := make([]byte, len(prefix)+8)
	copy(k, prefix)
	binary.BigEndian.PutUint64(k[len(prefix):], baseMs)
	return k
}

// prefixUpperBound returns the smallest key greater than every key with prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
