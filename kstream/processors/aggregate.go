package processors

import (
	"context"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/store"
	"github.com/tryfix/estream/kstream/topology"
)

// AggregateFunc folds value into the current aggregate (nil on the first
// event of a key unless an Initializer is set). It must not return a nil
// aggregate. Aggregates are only removed through the store.
type AggregateFunc func(ctx context.Context, key, value, aggregate interface{}) (interface{}, error)

type Initializer func() interface{}

type AggregateOption func(a *Aggregator)

func WithInitializer(init Initializer) AggregateOption {
	return func(a *Aggregator) {
		a.Initializer = init
	}
}

// AggregateMaterialized forwards (groupKey, aggregate) after every update
// instead of the incoming record.
func AggregateMaterialized() AggregateOption {
	return func(a *Aggregator) {
		a.Materialized = true
	}
}

type Aggregator struct {
	topology.Chain
	Id            int32
	KeySelector   SelectKeyFunc
	AggregateFunc AggregateFunc
	Initializer   Initializer
	Store         string
	Registry      store.Registry
	Materialized  bool
	store         store.Store
}

func NewAggregator(id int32, selector SelectKeyFunc, fn AggregateFunc, storeName string, registry store.Registry, opts ...AggregateOption) *Aggregator {
	a := &Aggregator{
		Id:            id,
		KeySelector:   selector,
		AggregateFunc: fn,
		Store:         storeName,
		Registry:      registry,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *Aggregator) Build() (topology.Node, error) {
	s, err := resolveStore(a.Registry, a.Store)
	if err != nil {
		return nil, err
	}

	childs, err := a.BuildChilds()
	if err != nil {
		return nil, err
	}

	return &Aggregator{
		Chain:         childs,
		Id:            a.Id,
		KeySelector:   a.KeySelector,
		AggregateFunc: a.AggregateFunc,
		Initializer:   a.Initializer,
		Store:         a.Store,
		Registry:      a.Registry,
		Materialized:  a.Materialized,
		store:         s,
	}, nil
}

func (a *Aggregator) Run(ctx context.Context, kIn, vIn interface{}) (kOut, vOut interface{}, cont bool, err error) {
	key, err := selectKey(ctx, a.KeySelector, kIn, vIn)
	if err != nil {
		return nil, nil, false, err
	}

	agg, err := a.store.Update(ctx, key, func(current interface{}) (interface{}, error) {
		if current == nil && a.Initializer != nil {
			current = a.Initializer()
		}

		updated, err := a.AggregateFunc(ctx, key, vIn, current)
		if err != nil {
			return nil, errors.WithPrevious(err, `aggregate function error`)
		}

		if updated == nil {
			return nil, errors.Errorf(`%w: aggregate function returned nil for key [%v]`, ErrInvalidInput, key)
		}

		return updated, nil
	})
	if err != nil {
		return nil, nil, false, err
	}

	kOut, vOut = kIn, vIn
	if a.Materialized {
		kOut, vOut = key, agg
	}

	cont, err = a.Forward(ctx, kOut, vOut)
	if err != nil || !cont {
		return nil, nil, false, err
	}

	return kOut, vOut, true, nil
}

func (a *Aggregator) Type() topology.Type {
	return topology.TypeAggregate
}

func (a *Aggregator) Name() string {
	return a.Store
}

func (a *Aggregator) ID() int32 {
	return a.Id
}

func (a *Aggregator) Stores() []string {
	return []string{a.Store}
}
