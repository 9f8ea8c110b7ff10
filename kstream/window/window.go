// Package window implements tumbling, sliding and session windows over
// keyed state stores. Open windows live in stores, so a restarted pipeline
// picks them up again. A background task per operator closes windows when
// their deadline passes on the pipeline clock.
package window

import (
	"context"
	"fmt"
	"time"

	"github.com/tryfix/errors"
	kContext "github.com/tryfix/estream/kstream/context"
)

// Key is forwarded with every window result. Intervals are half open:
// [Start, End). Session results end one nanosecond past their last event.
type Key struct {
	Key   interface{}
	Start time.Time
	End   time.Time
}

func (k Key) String() string {
	return fmt.Sprintf(`%v@[%s, %s)`, k.Key, k.Start.Format(time.RFC3339Nano), k.End.Format(time.RFC3339Nano))
}

// WindowKey identifies one window instance of a group key in a store.
type WindowKey struct {
	Key   interface{}
	Start time.Time
}

// Buffer holds the events of an open window.
type Buffer struct {
	Start  time.Time
	Events []interface{}
}

// Session holds the events of an open session.
type Session struct {
	Start  time.Time
	Last   time.Time
	Events []interface{}
}

// Func computes the result of a closed window from its events, in arrival
// order.
type Func func(ctx context.Context, key interface{}, events []interface{}) (interface{}, error)

type KeySelector func(ctx context.Context, key, value interface{}) (interface{}, error)

// TimestampExtractor returns the event time of a record.
type TimestampExtractor func(ctx context.Context, key, value interface{}) (time.Time, error)

type ErrorObserver func(err error)

// RecordTimestamp reads the timestamp attached to the record context by the
// stream instance or a source adapter.
func RecordTimestamp(ctx context.Context, _, _ interface{}) (time.Time, error) {
	ts, ok := kContext.Timestamp(ctx)
	if !ok {
		return time.Time{}, errors.New(`record timestamp not available in context`)
	}

	return ts, nil
}
