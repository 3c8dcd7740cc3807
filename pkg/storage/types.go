package storage

import (
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/tickdb/pkg/codec"
)

// keySize is the on-disk key: Key+Qual followed by the Qualifier.
const keySize = codec.KeyQualSize + codec.QualifierSize

// seriesSize is the market and code prefix shared by all keys of one instrument.
const seriesSize = codec.KeyQualSize - 8

// metaChunkKey holds the chunk duration in milliseconds. Its length differs
// from keySize so it never decodes as a tick.
var metaChunkKey = []byte("\x00\x00tickdb/chunk_ms")

var (
	ErrNotFound      = errors.New("tick not found")
	ErrStopScan      = errors.New("stop scan")
	ErrClosed        = errors.New("store is closed")
	ErrChunkMismatch = errors.New("chunk duration mismatch")
)

// Tick is one market event addressed by instrument, time and sequence.
type Tick struct {
	Market byte
	Code   codec.Code
	Time   time.Time
	Seq    uint16
	codec.TickValue
}

// Options configures a TickStore.
type Options struct {
	ChunkDuration time.Duration
	// Sync makes every write wait for the WAL to reach disk.
	Sync   bool
	Logger *slog.Logger
}

// ScanRange selects ticks of one instrument with From <= Time < To.
// A zero From or To leaves that side unbounded.
type ScanRange struct {
	Market byte
	Code   codec.Code
	From   time.Time
	To     time.Time
}

// SeriesID names one instrument.
type SeriesID struct {
	Market byte
	Code   codec.Code
}

// Stats describes the store on disk.
type Stats struct {
	TickCount      uint64        `json:"tick_count"`
	SeriesCount    int           `json:"series_count"`
	DiskSpaceBytes uint64        `json:"disk_space_bytes"`
	ChunkDuration  time.Duration `json:"chunk_duration"`
	Path           string        `json:"path"`
}
