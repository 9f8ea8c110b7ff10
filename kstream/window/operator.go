package window

import (
	"context"
	"fmt"
	"time"

	"github.com/tryfix/errors"
	kContext "github.com/tryfix/estream/kstream/context"
	"github.com/tryfix/estream/kstream/encoding"
	"github.com/tryfix/estream/kstream/store"
	"github.com/tryfix/estream/kstream/topology"
	"github.com/tryfix/log"
)

// operator holds what tumbling, sliding and session windows share: the
// child chain, the per key lock shared by callers and the background task,
// the deadline index and the task itself.
type operator struct {
	topology.Chain
	name         string
	typ          string
	conf         *config
	groupEncoder encoding.Encoder
	lock         *store.KeyLock
	index        *index
	sched        *scheduler
	logger       log.Logger
	rebuild      func(ctx context.Context) error
}

func newOperator(name, typ string, childs topology.Chain, groupEncoder encoding.Encoder, opts []Option) operator {
	conf := newConfig(opts...)
	return operator{
		Chain:        childs,
		name:         name,
		typ:          typ,
		conf:         conf,
		groupEncoder: groupEncoder,
		lock:         store.NewKeyLock(conf.lockStripes),
		index:        newIndex(),
		logger:       conf.logger.NewLog(log.Prefixed(fmt.Sprintf(`window.%s`, name))),
	}
}

func (o *operator) arm(tick func(ctx context.Context, now time.Time) error, rebuild func(ctx context.Context) error) {
	o.rebuild = rebuild
	o.sched = newScheduler(o.conf.scanInterval, o.conf.clock, o.logger, o.observe, tick)
}

func (o *operator) labels() map[string]string {
	return map[string]string{`window`: o.name, `type`: o.typ}
}

func (o *operator) observe(err error) {
	o.conf.metrics.timerErrors.Count(1, o.labels())
	o.conf.observer(errors.WithPrevious(err, fmt.Sprintf(`%s window [%s]`, o.typ, o.name)))
}

func (o *operator) late(key interface{}, t time.Time) {
	o.conf.metrics.late.Count(1, o.labels())
	o.logger.Debug(fmt.Sprintf(`late event for key [%v] at %s dropped`, key, t))
}

func (o *operator) closed() {
	o.conf.metrics.closed.Count(1, o.labels())
}

func (o *operator) eventTime(ctx context.Context, k, v interface{}) (time.Time, error) {
	if o.conf.extractor == nil {
		return o.conf.clock.Now(), nil
	}

	t, err := o.conf.extractor(ctx, k, v)
	if err != nil {
		return time.Time{}, errors.WithPrevious(err, `timestamp extractor error`)
	}

	return t, nil
}

func selectKey(ctx context.Context, selector KeySelector, k, v interface{}) (interface{}, error) {
	if selector == nil {
		return k, nil
	}

	key, err := selector(ctx, k, v)
	if err != nil {
		return nil, errors.WithPrevious(err, `key selector error`)
	}

	return key, nil
}

func (o *operator) groupID(key interface{}) (string, error) {
	byt, err := o.groupEncoder.Encode(key)
	if err != nil {
		return ``, errors.WithPrevious(err, `window key encode error`)
	}

	return string(byt), nil
}

// timerContext is the record context of results closed by the background task.
func (o *operator) timerContext(ctx context.Context, now time.Time) context.Context {
	return kContext.WithMeta(ctx, &kContext.RecordMeta{Source: o.name, Timestamp: now})
}

// Start rebuilds the deadline index from the store and arms the background task.
func (o *operator) Start(ctx context.Context) error {
	if err := o.rebuild(ctx); err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`%s window [%s] recovery failed`, o.typ, o.name))
	}

	o.logger.Info(fmt.Sprintf(`%d open windows recovered`, o.index.len()))
	return o.sched.Start(ctx)
}

// Stop cancels the background task. No window closes from the task after it
// returns.
func (o *operator) Stop() error {
	o.sched.Stop()
	return nil
}

func (o *operator) Type() topology.Type {
	return topology.TypeWindow
}

// WindowType is one of tumbling, sliding or session.
func (o *operator) WindowType() string {
	return o.typ
}

func resolveStore(registry store.Registry, name string) (store.Store, error) {
	if name == `` {
		return nil, errors.New(`store name cannot be empty`)
	}

	if registry == nil {
		return nil, errors.Errorf(`no store registry to resolve [%s]`, name)
	}

	return registry.Store(name)
}

func reached(now, due time.Time) bool {
	return !now.Before(due)
}

// scan calls fn for every record of s.
func scan(ctx context.Context, s store.Store, fn func(k, v interface{}) error) error {
	i, err := s.GetAll(ctx)
	if err != nil {
		return err
	}
	defer i.Close()

	for ; i.Valid(); i.Next() {
		k, err := i.Key()
		if err != nil {
			return err
		}

		v, err := i.Value()
		if err != nil {
			return err
		}

		if err := fn(k, v); err != nil {
			return err
		}
	}

	return i.Error()
}
