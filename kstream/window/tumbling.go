package window

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/store"
	"github.com/tryfix/estream/kstream/topology"
	"go.uber.org/multierr"
)

// TumblingWindow groups events of a key into fixed, non overlapping windows. A
// window opens with the first event of a key and closes Size later, either
// on the background task or inline when a later event arrives.
type TumblingWindow struct {
	operator
	Id          int32
	Name        string
	KeySelector KeySelector
	Size        time.Duration
	Func        Func
	// BufferStore keeps open windows by group key.
	BufferStore string
	// ResultStore optionally keeps results by WindowKey. Windows already
	// in it are not emitted again.
	ResultStore string
	Registry    store.Registry
	Options     []Option

	buffer store.Store
	result store.Store
}

func (w *TumblingWindow) Build() (topology.Node, error) {
	if w.Size <= 0 {
		return nil, errors.Errorf(`tumbling window [%s]: size must be positive`, w.Name)
	}

	if w.Func == nil {
		return nil, errors.Errorf(`tumbling window [%s]: window function cannot be nil`, w.Name)
	}

	buffer, err := resolveStore(w.Registry, w.BufferStore)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`tumbling window [%s]`, w.Name))
	}

	var result store.Store
	if w.ResultStore != `` {
		result, err = resolveStore(w.Registry, w.ResultStore)
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`tumbling window [%s]`, w.Name))
		}

		if _, ok := result.KeyEncoder().(WindowKeyEncoder); !ok {
			return nil, errors.Errorf(`tumbling window [%s]: result store [%s] key encoder must be a window.WindowKeyEncoder, got [%v]`,
				w.Name, w.ResultStore, reflect.TypeOf(result.KeyEncoder()))
		}
	}

	childs, err := w.BuildChilds()
	if err != nil {
		return nil, err
	}

	built := &TumblingWindow{
		Id:          w.Id,
		Name:        w.Name,
		KeySelector: w.KeySelector,
		Size:        w.Size,
		Func:        w.Func,
		BufferStore: w.BufferStore,
		ResultStore: w.ResultStore,
		Registry:    w.Registry,
		Options:     w.Options,
		buffer:      buffer,
		result:      result,
	}
	built.operator = newOperator(w.Name, `tumbling`, childs, buffer.KeyEncoder(), w.Options)
	built.arm(built.punctuate, built.restore)

	return built, nil
}

func (w *TumblingWindow) ID() int32 {
	return w.Id
}

func (w *TumblingWindow) Stores() []string {
	if w.ResultStore == `` {
		return []string{w.BufferStore}
	}

	return []string{w.BufferStore, w.ResultStore}
}

func (w *TumblingWindow) Run(ctx context.Context, kIn, vIn interface{}) (interface{}, interface{}, bool, error) {
	t, err := w.eventTime(ctx, kIn, vIn)
	if err != nil {
		return nil, nil, false, err
	}

	key, err := selectKey(ctx, w.KeySelector, kIn, vIn)
	if err != nil {
		return nil, nil, false, err
	}

	group, err := w.groupID(key)
	if err != nil {
		return nil, nil, false, err
	}

	w.lock.Lock([]byte(group))
	defer w.lock.Unlock([]byte(group))

	buf, open, err := w.open(ctx, key)
	if err != nil {
		return nil, nil, false, err
	}

	closed := false
	if open && !t.Before(buf.Start.Add(w.Size)) {
		if err := w.close(ctx, group, key, buf); err != nil {
			return nil, nil, false, err
		}
		open = false
		closed = true
	}

	if open && t.Before(buf.Start) {
		w.late(key, t)
		return kIn, vIn, closed, nil
	}

	if !open {
		buf = Buffer{Start: t}
	}
	buf.Events = append(buf.Events, vIn)

	if err := w.buffer.Set(ctx, key, buf, 0); err != nil {
		return nil, nil, false, err
	}

	w.index.put(entry{id: group, group: group, key: key, start: buf.Start, due: buf.Start.Add(w.Size)})

	return kIn, vIn, closed, nil
}

func (w *TumblingWindow) open(ctx context.Context, key interface{}) (Buffer, bool, error) {
	v, err := w.buffer.Get(ctx, key)
	if err != nil {
		return Buffer{}, false, err
	}

	if v == nil {
		return Buffer{}, false, nil
	}

	buf, ok := v.(Buffer)
	if !ok {
		return Buffer{}, false, errors.Errorf(`tumbling window [%s]: invalid buffer type [%v]`, w.Name, reflect.TypeOf(v))
	}

	return buf, true, nil
}

// close runs the window function, persists the result, drops the buffer and
// forwards the result. The caller holds the key lock.
func (w *TumblingWindow) close(ctx context.Context, group string, key interface{}, buf Buffer) error {
	wk := WindowKey{Key: key, Start: buf.Start}
	if w.result != nil {
		emitted, err := w.result.Has(ctx, wk)
		if err != nil {
			return err
		}

		if emitted {
			w.logger.Warn(fmt.Sprintf(`window %v already emitted, dropping buffer`, wk))
			if err := w.buffer.Delete(ctx, key); err != nil {
				return err
			}
			w.index.remove(group)
			return nil
		}
	}

	result, err := w.Func(ctx, key, buf.Events)
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`tumbling window [%s]: window function failed for key [%v]`, w.Name, key))
	}

	if w.result != nil {
		if err := w.result.Set(ctx, wk, result, 0); err != nil {
			return err
		}
	}

	if err := w.buffer.Delete(ctx, key); err != nil {
		return err
	}
	w.index.remove(group)
	w.closed()

	_, err = w.Forward(ctx, Key{Key: key, Start: buf.Start, End: buf.Start.Add(w.Size)}, result)
	return err
}

// Punctuate closes every window due at now. The background task calls it
// on each tick.
func (w *TumblingWindow) Punctuate(ctx context.Context, now time.Time) error {
	return w.punctuate(ctx, now)
}

func (w *TumblingWindow) punctuate(ctx context.Context, now time.Time) error {
	var errs error
	for _, e := range w.index.due(now, reached) {
		errs = multierr.Append(errs, w.expire(w.timerContext(ctx, now), e, now))
	}

	return errs
}

// expire re-reads the buffer under the key lock. A caller may have closed
// or replaced it since the index was read.
func (w *TumblingWindow) expire(ctx context.Context, e entry, now time.Time) error {
	w.lock.Lock([]byte(e.group))
	defer w.lock.Unlock([]byte(e.group))

	buf, open, err := w.open(ctx, e.key)
	if err != nil {
		return err
	}

	if !open {
		w.index.remove(e.id)
		return nil
	}

	if now.Before(buf.Start.Add(w.Size)) {
		w.index.put(entry{id: e.id, group: e.group, key: e.key, start: buf.Start, due: buf.Start.Add(w.Size)})
		return nil
	}

	return w.close(ctx, e.group, e.key, buf)
}

func (w *TumblingWindow) restore(ctx context.Context) error {
	return scan(ctx, w.buffer, func(k, v interface{}) error {
		buf, ok := v.(Buffer)
		if !ok {
			return errors.Errorf(`invalid buffer type [%v]`, reflect.TypeOf(v))
		}

		group, err := w.groupID(k)
		if err != nil {
			return err
		}

		w.index.put(entry{id: group, group: group, key: k, start: buf.Start, due: buf.Start.Add(w.Size)})
		return nil
	})
}
