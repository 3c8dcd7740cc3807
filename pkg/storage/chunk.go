package storage

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	// DefaultChunkDuration is used when Options.ChunkDuration is zero.
	DefaultChunkDuration = time.Hour

	// MaxChunkDuration is the longest chunk whose micro offsets fit in 32 bits.
	MaxChunkDuration = time.Duration(math.MaxUint32) * time.Microsecond
)

var (
	ErrInvalidChunkDuration = errors.New("invalid chunk duration")
	ErrInvalidTimestamp     = errors.New("timestamp before unix epoch")
)

// Chunker maps tick timestamps onto (chunk base, micro offset) pairs.
type Chunker struct {
	micros int64
}

// NewChunker validates d and returns a Chunker for it.
func NewChunker(d time.Duration) (*Chunker, error) {
	if err := ValidateChunkDuration(d); err != nil {
		return nil, err
	}
	return &Chunker{micros: d.Microseconds()}, nil
}

// ValidateChunkDuration checks that d is a positive whole number of
// milliseconds no longer than MaxChunkDuration.
func ValidateChunkDuration(d time.Duration) error {
	if d <= 0 || d%time.Millisecond != 0 {
		return errors.Wrapf(ErrInvalidChunkDuration, "%s must be a positive multiple of 1ms", d)
	}
	if d > MaxChunkDuration {
		return errors.Wrapf(ErrInvalidChunkDuration, "%s exceeds %s", d, MaxChunkDuration)
	}
	return nil
}

// Duration returns the chunk length.
func (c *Chunker) Duration() time.Duration {
	return time.Duration(c.micros) * time.Microsecond
}

// Split returns the chunk base in milliseconds and the offset of t within it.
func (c *Chunker) Split(t time.Time) (baseMs uint64, offset uint32, err error) {
	us := t.UnixMicro()
	if us < 0 {
		return 0, 0, errors.Wrapf(ErrInvalidTimestamp, "%s", t.Format(time.RFC3339Nano))
	}
	base := us - us%c.micros
	return uint64(base / 1000), uint32(us - base), nil
}

// BaseOf returns only the chunk base of t.
func (c *Chunker) BaseOf(t time.Time) (uint64, error) {
	base, _, err := c.Split(t)
	return base, err
}

// Join is the inverse of Split.
func (c *Chunker) Join(baseMs uint64, offset uint32) time.Time {
	return time.UnixMicro(int64(baseMs)*1000 + int64(offset)).UTC()
}
