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

// SlidingWindow keeps overlapping windows of Size that start every Advance,
// aligned to the earliest open window of the key. An event joins every open
// instance covering it. Instances hold at least one event, empty ones are
// never emitted.
type SlidingWindow struct {
	operator
	Id          int32
	Name        string
	KeySelector KeySelector
	Size        time.Duration
	Advance     time.Duration
	Func        Func
	// BufferStore keeps open instances by WindowKey and must use a
	// WindowKeyEncoder for keys.
	BufferStore string
	ResultStore string
	Registry    store.Registry
	Options     []Option

	keys   WindowKeyEncoder
	buffer store.Store
	result store.Store
}

func (w *SlidingWindow) Build() (topology.Node, error) {
	if w.Size <= 0 {
		return nil, errors.Errorf(`sliding window [%s]: size must be positive`, w.Name)
	}

	if w.Advance <= 0 || w.Advance > w.Size {
		return nil, errors.Errorf(`sliding window [%s]: advance must be within (0, %s]`, w.Name, w.Size)
	}

	if w.Func == nil {
		return nil, errors.Errorf(`sliding window [%s]: window function cannot be nil`, w.Name)
	}

	buffer, err := resolveStore(w.Registry, w.BufferStore)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`sliding window [%s]`, w.Name))
	}

	keys, ok := buffer.KeyEncoder().(WindowKeyEncoder)
	if !ok {
		return nil, errors.Errorf(`sliding window [%s]: store [%s] key encoder must be a window.WindowKeyEncoder, got [%v]`,
			w.Name, w.BufferStore, reflect.TypeOf(buffer.KeyEncoder()))
	}

	var result store.Store
	if w.ResultStore != `` {
		result, err = resolveStore(w.Registry, w.ResultStore)
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`sliding window [%s]`, w.Name))
		}

		if _, ok := result.KeyEncoder().(WindowKeyEncoder); !ok {
			return nil, errors.Errorf(`sliding window [%s]: result store [%s] key encoder must be a window.WindowKeyEncoder, got [%v]`,
				w.Name, w.ResultStore, reflect.TypeOf(result.KeyEncoder()))
		}
	}

	childs, err := w.BuildChilds()
	if err != nil {
		return nil, err
	}

	built := &SlidingWindow{
		Id:          w.Id,
		Name:        w.Name,
		KeySelector: w.KeySelector,
		Size:        w.Size,
		Advance:     w.Advance,
		Func:        w.Func,
		BufferStore: w.BufferStore,
		ResultStore: w.ResultStore,
		Registry:    w.Registry,
		Options:     w.Options,
		keys:        keys,
		buffer:      buffer,
		result:      result,
	}
	built.operator = newOperator(w.Name, `sliding`, childs, keys.Key, w.Options)
	built.arm(built.punctuate, built.restore)

	return built, nil
}

func (w *SlidingWindow) ID() int32 {
	return w.Id
}

func (w *SlidingWindow) Stores() []string {
	if w.ResultStore == `` {
		return []string{w.BufferStore}
	}

	return []string{w.BufferStore, w.ResultStore}
}

func floorDiv(a, b time.Duration) int64 {
	q := int64(a / b)
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func (w *SlidingWindow) entry(group string, key interface{}, start time.Time) (entry, error) {
	id, err := w.keys.Encode(WindowKey{Key: key, Start: start})
	if err != nil {
		return entry{}, err
	}

	return entry{id: string(id), group: group, key: key, start: start, due: start.Add(w.Size)}, nil
}

func (w *SlidingWindow) Run(ctx context.Context, kIn, vIn interface{}) (interface{}, interface{}, bool, error) {
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

	// due instances of the key close before the event is placed. Lateness
	// and inline closing follow the time of the event, which is the clock
	// reading in processing time mode.
	closed := false
	for _, e := range w.index.group(group) {
		if !reached(t, e.due) {
			continue
		}

		ok, err := w.expire(ctx, e, t)
		if err != nil {
			return nil, nil, false, err
		}
		closed = closed || ok
	}

	open := w.index.group(group)
	anchor := t
	if len(open) > 0 {
		anchor = open[0].start
	}

	isOpen := make(map[int64]bool, len(open))
	for _, e := range open {
		isOpen[e.start.UnixNano()] = true
	}

	lo := floorDiv(t.Sub(anchor)-w.Size, w.Advance) + 1
	if lo < 0 {
		lo = 0
	}
	hi := floorDiv(t.Sub(anchor), w.Advance)

	accepted := 0
	for n := lo; n <= hi; n++ {
		start := anchor.Add(time.Duration(n) * w.Advance)
		ok, err := w.accept(ctx, group, key, start, isOpen[start.UnixNano()], vIn)
		if err != nil {
			return nil, nil, false, err
		}

		if ok {
			accepted++
		}
	}

	if accepted == 0 {
		w.late(key, t)
	}

	return kIn, vIn, closed, nil
}

// accept appends v to the instance starting at start. An instance that is
// not open is only created when it was never emitted.
func (w *SlidingWindow) accept(ctx context.Context, group string, key interface{}, start time.Time, open bool, v interface{}) (bool, error) {
	wk := WindowKey{Key: key, Start: start}

	if !open {
		if w.result != nil {
			emitted, err := w.result.Has(ctx, wk)
			if err != nil {
				return false, err
			}

			if emitted {
				return false, nil
			}
		}
	}

	buf, found, err := w.instance(ctx, wk)
	if err != nil {
		return false, err
	}

	if !found {
		buf = Buffer{Start: start}
	}
	buf.Events = append(buf.Events, v)

	if err := w.buffer.Set(ctx, wk, buf, 0); err != nil {
		return false, err
	}

	e, err := w.entry(group, key, start)
	if err != nil {
		return false, err
	}
	w.index.put(e)

	return true, nil
}

func (w *SlidingWindow) instance(ctx context.Context, wk WindowKey) (Buffer, bool, error) {
	v, err := w.buffer.Get(ctx, wk)
	if err != nil {
		return Buffer{}, false, err
	}

	if v == nil {
		return Buffer{}, false, nil
	}

	buf, ok := v.(Buffer)
	if !ok {
		return Buffer{}, false, errors.Errorf(`sliding window [%s]: invalid buffer type [%v]`, w.Name, reflect.TypeOf(v))
	}

	return buf, true, nil
}

func (w *SlidingWindow) close(ctx context.Context, e entry, buf Buffer) error {
	wk := WindowKey{Key: e.key, Start: buf.Start}
	if w.result != nil {
		emitted, err := w.result.Has(ctx, wk)
		if err != nil {
			return err
		}

		if emitted {
			w.logger.Warn(fmt.Sprintf(`window %v already emitted, dropping buffer`, wk))
			if err := w.buffer.Delete(ctx, wk); err != nil {
				return err
			}
			w.index.remove(e.id)
			return nil
		}
	}

	result, err := w.Func(ctx, e.key, buf.Events)
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`sliding window [%s]: window function failed for key [%v]`, w.Name, e.key))
	}

	if w.result != nil {
		if err := w.result.Set(ctx, wk, result, 0); err != nil {
			return err
		}
	}

	if err := w.buffer.Delete(ctx, wk); err != nil {
		return err
	}
	w.index.remove(e.id)
	w.closed()

	_, err = w.Forward(ctx, Key{Key: e.key, Start: buf.Start, End: buf.Start.Add(w.Size)}, result)
	return err
}

// expire closes the instance of e when it is still open and due. The caller
// holds the key lock.
func (w *SlidingWindow) expire(ctx context.Context, e entry, now time.Time) (bool, error) {
	buf, found, err := w.instance(ctx, WindowKey{Key: e.key, Start: e.start})
	if err != nil {
		return false, err
	}

	if !found {
		w.index.remove(e.id)
		return false, nil
	}

	if !reached(now, buf.Start.Add(w.Size)) {
		return false, nil
	}

	if err := w.close(ctx, e, buf); err != nil {
		return false, err
	}

	return true, nil
}

// Punctuate closes every instance due at now.
func (w *SlidingWindow) Punctuate(ctx context.Context, now time.Time) error {
	return w.punctuate(ctx, now)
}

func (w *SlidingWindow) punctuate(ctx context.Context, now time.Time) error {
	var errs error
	for _, e := range w.index.due(now, reached) {
		errs = multierr.Append(errs, w.expireLocked(w.timerContext(ctx, now), e, now))
	}

	return errs
}

func (w *SlidingWindow) expireLocked(ctx context.Context, e entry, now time.Time) error {
	w.lock.Lock([]byte(e.group))
	defer w.lock.Unlock([]byte(e.group))

	_, err := w.expire(ctx, e, now)
	return err
}

func (w *SlidingWindow) restore(ctx context.Context) error {
	return scan(ctx, w.buffer, func(k, v interface{}) error {
		wk, ok := k.(WindowKey)
		if !ok {
			return errors.Errorf(`invalid window key type [%v]`, reflect.TypeOf(k))
		}

		if _, ok := v.(Buffer); !ok {
			return errors.Errorf(`invalid buffer type [%v]`, reflect.TypeOf(v))
		}

		group, err := w.groupID(wk.Key)
		if err != nil {
			return err
		}

		e, err := w.entry(group, wk.Key, wk.Start)
		if err != nil {
			return err
		}
		w.index.put(e)

		return nil
	})
}
