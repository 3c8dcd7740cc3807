// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"github.com/ssargent/tickdb/pkg/codec"
	"github.com/ssargent/tickdb/pkg/storage"
)

// TickStore defines the store operations the API needs
type TickStore interface {
	PutBatch(ticks []storage.Tick) error
	Scan(ctx context.Context, r storage.ScanRange, fn func(storage.Tick) error) error
	Chunks(ctx context.Context, market byte, code codec.Code) ([]uint64, error)
	DeleteChunk(market byte, code codec.Code, baseMs uint64) error
	Series(ctx context.Context) ([]storage.SeriesID, error)
	Chunker() *storage.Chunker
	Stats(ctx context.Context) (storage.Stats, error)
	DiskUsage() uint64
}

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer runs the API server until ctx is cancelled
	StartServer(ctx context.Context, store TickStore, config ServerConfig) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
