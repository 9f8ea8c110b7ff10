package processors

import (
	"context"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/store"
	"github.com/tryfix/estream/kstream/topology"
)

type GroupOption func(g *GroupBy)

// GroupMaterialized forwards (groupKey, group) after every update instead of
// the incoming record.
func GroupMaterialized() GroupOption {
	return func(g *GroupBy) {
		g.Materialized = true
	}
}

// GroupBy appends each value to the list kept under its group key. The
// store value encoder must handle []interface{}.
type GroupBy struct {
	topology.Chain
	Id           int32
	KeySelector  SelectKeyFunc
	Store        string
	Registry     store.Registry
	Materialized bool
	store        store.Store
}

func NewGroupBy(id int32, selector SelectKeyFunc, storeName string, registry store.Registry, opts ...GroupOption) *GroupBy {
	g := &GroupBy{
		Id:          id,
		KeySelector: selector,
		Store:       storeName,
		Registry:    registry,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *GroupBy) Build() (topology.Node, error) {
	s, err := resolveStore(g.Registry, g.Store)
	if err != nil {
		return nil, err
	}

	childs, err := g.BuildChilds()
	if err != nil {
		return nil, err
	}

	return &GroupBy{
		Chain:        childs,
		Id:           g.Id,
		KeySelector:  g.KeySelector,
		Store:        g.Store,
		Registry:     g.Registry,
		Materialized: g.Materialized,
		store:        s,
	}, nil
}

func selectKey(ctx context.Context, selector SelectKeyFunc, k, v interface{}) (interface{}, error) {
	if selector == nil {
		return k, nil
	}

	key, err := selector(ctx, k, v)
	if err != nil {
		return nil, errors.WithPrevious(err, `key selector error`)
	}

	return key, nil
}

func (g *GroupBy) Run(ctx context.Context, kIn, vIn interface{}) (kOut, vOut interface{}, cont bool, err error) {
	key, err := selectKey(ctx, g.KeySelector, kIn, vIn)
	if err != nil {
		return nil, nil, false, err
	}

	group, err := g.store.Update(ctx, key, func(current interface{}) (interface{}, error) {
		if current == nil {
			return []interface{}{vIn}, nil
		}

		list, ok := current.([]interface{})
		if !ok {
			return nil, errors.Errorf(`%w: group store [%s] holds %T, expected []interface{}`, ErrInvalidInput, g.Store, current)
		}

		return append(list, vIn), nil
	})
	if err != nil {
		return nil, nil, false, errors.WithPrevious(err, `group by update failed`)
	}

	kOut, vOut = kIn, vIn
	if g.Materialized {
		kOut, vOut = key, group
	}

	cont, err = g.Forward(ctx, kOut, vOut)
	if err != nil || !cont {
		return nil, nil, false, err
	}

	return kOut, vOut, true, nil
}

func (g *GroupBy) Type() topology.Type {
	return topology.TypeGroupBy
}

func (g *GroupBy) Name() string {
	return g.Store
}

func (g *GroupBy) ID() int32 {
	return g.Id
}

func (g *GroupBy) Stores() []string {
	return []string{g.Store}
}
