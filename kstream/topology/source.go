package topology

import (
	"context"
)

// EmitFunc pushes one record into a stream.
type EmitFunc func(ctx context.Context, key, value interface{}) error

// Source adapters ingest records from outside the process and call emit for
// each of them. Ingestion errors belong to the adapter. Start must not block.
type Source interface {
	Name() string
	Start(ctx context.Context, emit EmitFunc) error
	Stop() error
}

// Sink adapters deliver records leaving a stream.
type Sink interface {
	Name() string
	Start() error
	Process(ctx context.Context, key, value interface{}) error
	Stop() error
}

// Lifecycle is implemented by nodes owning background work (window timers).
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
}
