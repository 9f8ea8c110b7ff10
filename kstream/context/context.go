package context

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tryfix/traceable-context"
)

var recordMeta = `rc_meta`

// RecordMeta describes where a record came from. Records pushed with Emit
// carry the stream name as Source and the emit time as Timestamp.
type RecordMeta struct {
	UUID      uuid.UUID
	Source    string
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
	Headers   map[string]string
}

// WithMeta attaches meta to parent, keeping its deadline and cancellation.
func WithMeta(parent context.Context, meta *RecordMeta) context.Context {
	if meta.UUID == uuid.Nil {
		meta.UUID = uuid.New()
	}

	return traceable_context.WithValue(parent, &recordMeta, meta)
}

// FromMeta starts a new traceable root context for a record ingested by a
// source adapter.
func FromMeta(meta *RecordMeta) context.Context {
	if meta.UUID == uuid.Nil {
		meta.UUID = uuid.New()
	}

	return traceable_context.WithValue(traceable_context.WithUUID(meta.UUID), &recordMeta, meta)
}

func Meta(ctx context.Context) (*RecordMeta, bool) {
	meta, ok := ctx.Value(&recordMeta).(*RecordMeta)
	return meta, ok
}

// Timestamp returns the record timestamp carried by ctx.
func Timestamp(ctx context.Context) (time.Time, bool) {
	meta, ok := Meta(ctx)
	if !ok || meta.Timestamp.IsZero() {
		return time.Time{}, false
	}

	return meta.Timestamp, true
}
