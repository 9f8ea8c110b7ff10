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

// SessionWindow groups events of a key while they arrive no more than Gap
// apart. A session closes once more than Gap has passed since its last
// event. Result End is one nanosecond past the last event, so the interval
// stays half open and still covers it.
type SessionWindow struct {
	operator
	Id          int32
	Name        string
	KeySelector KeySelector
	Gap         time.Duration
	Func        Func
	// SessionStore keeps the open session of each group key.
	SessionStore string
	Registry     store.Registry
	Options      []Option

	sessions store.Store
}

func (w *SessionWindow) Build() (topology.Node, error) {
	if w.Gap <= 0 {
		return nil, errors.Errorf(`session window [%s]: gap must be positive`, w.Name)
	}

	if w.Func == nil {
		return nil, errors.Errorf(`session window [%s]: window function cannot be nil`, w.Name)
	}

	sessions, err := resolveStore(w.Registry, w.SessionStore)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`session window [%s]`, w.Name))
	}

	childs, err := w.BuildChilds()
	if err != nil {
		return nil, err
	}

	built := &SessionWindow{
		Id:           w.Id,
		Name:         w.Name,
		KeySelector:  w.KeySelector,
		Gap:          w.Gap,
		Func:         w.Func,
		SessionStore: w.SessionStore,
		Registry:     w.Registry,
		Options:      w.Options,
		sessions:     sessions,
	}
	built.operator = newOperator(w.Name, `session`, childs, sessions.KeyEncoder(), w.Options)
	built.arm(built.punctuate, built.restore)

	return built, nil
}

func (w *SessionWindow) ID() int32 {
	return w.Id
}

func (w *SessionWindow) Stores() []string {
	return []string{w.SessionStore}
}

func expired(now, due time.Time) bool {
	return now.After(due)
}

func (w *SessionWindow) Run(ctx context.Context, kIn, vIn interface{}) (interface{}, interface{}, bool, error) {
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

	s, open, err := w.open(ctx, key)
	if err != nil {
		return nil, nil, false, err
	}

	closed := false
	if open && t.Sub(s.Last) > w.Gap {
		if err := w.close(ctx, group, key, s); err != nil {
			return nil, nil, false, err
		}
		open = false
		closed = true
	}

	// out of order events only join a session they are within Gap of
	if open && s.Start.Sub(t) > w.Gap {
		w.late(key, t)
		return kIn, vIn, closed, nil
	}

	if !open {
		s = Session{Start: t, Last: t}
	}

	if t.Before(s.Start) {
		s.Start = t
	}

	if t.After(s.Last) {
		s.Last = t
	}
	s.Events = append(s.Events, vIn)

	if err := w.sessions.Set(ctx, key, s, 0); err != nil {
		return nil, nil, false, err
	}

	w.index.put(entry{id: group, group: group, key: key, start: s.Start, due: s.Last.Add(w.Gap)})

	return kIn, vIn, closed, nil
}

func (w *SessionWindow) open(ctx context.Context, key interface{}) (Session, bool, error) {
	v, err := w.sessions.Get(ctx, key)
	if err != nil {
		return Session{}, false, err
	}

	if v == nil {
		return Session{}, false, nil
	}

	s, ok := v.(Session)
	if !ok {
		return Session{}, false, errors.Errorf(`session window [%s]: invalid session type [%v]`, w.Name, reflect.TypeOf(v))
	}

	return s, true, nil
}

func (w *SessionWindow) close(ctx context.Context, group string, key interface{}, s Session) error {
	result, err := w.Func(ctx, key, s.Events)
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`session window [%s]: window function failed for key [%v]`, w.Name, key))
	}

	if err := w.sessions.Delete(ctx, key); err != nil {
		return err
	}
	w.index.remove(group)
	w.closed()

	_, err = w.Forward(ctx, Key{Key: key, Start: s.Start, End: s.Last.Add(time.Nanosecond)}, result)
	return err
}

// Punctuate closes every session inactive for more than Gap at now.
func (w *SessionWindow) Punctuate(ctx context.Context, now time.Time) error {
	return w.punctuate(ctx, now)
}

func (w *SessionWindow) punctuate(ctx context.Context, now time.Time) error {
	var errs error
	for _, e := range w.index.due(now, expired) {
		errs = multierr.Append(errs, w.expire(w.timerContext(ctx, now), e, now))
	}

	return errs
}

func (w *SessionWindow) expire(ctx context.Context, e entry, now time.Time) error {
	w.lock.Lock([]byte(e.group))
	defer w.lock.Unlock([]byte(e.group))

	s, open, err := w.open(ctx, e.key)
	if err != nil {
		return err
	}

	if !open {
		w.index.remove(e.id)
		return nil
	}

	if !expired(now, s.Last.Add(w.Gap)) {
		w.index.put(entry{id: e.id, group: e.group, key: e.key, start: s.Start, due: s.Last.Add(w.Gap)})
		return nil
	}

	return w.close(ctx, e.group, e.key, s)
}

func (w *SessionWindow) restore(ctx context.Context) error {
	return scan(ctx, w.sessions, func(k, v interface{}) error {
		s, ok := v.(Session)
		if !ok {
			return errors.Errorf(`invalid session type [%v]`, reflect.TypeOf(v))
		}

		group, err := w.groupID(k)
		if err != nil {
			return err
		}

		w.index.put(entry{id: group, group: group, key: k, start: s.Start, due: s.Last.Add(w.Gap)})
		return nil
	})
}
