package processors

import (
	"context"
	"time"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/store"
	"github.com/tryfix/estream/kstream/topology"
)

// Materializer writes every record into a store and forwards it. A nil value
// removes the key.
type Materializer struct {
	topology.Chain
	Id       int32
	Store    string
	Expiry   time.Duration
	Registry store.Registry
	store    store.Store
}

func resolveStore(registry store.Registry, name string) (store.Store, error) {
	if registry == nil {
		return nil, errors.Errorf(`no store registry to resolve [%s]`, name)
	}

	return registry.Store(name)
}

func (m *Materializer) Build() (topology.Node, error) {
	s, err := resolveStore(m.Registry, m.Store)
	if err != nil {
		return nil, err
	}

	childs, err := m.BuildChilds()
	if err != nil {
		return nil, err
	}

	return &Materializer{
		Chain:    childs,
		Id:       m.Id,
		Store:    m.Store,
		Expiry:   m.Expiry,
		Registry: m.Registry,
		store:    s,
	}, nil
}

func (m *Materializer) Run(ctx context.Context, kIn, vIn interface{}) (kOut, vOut interface{}, cont bool, err error) {
	if err := m.store.Set(ctx, kIn, vIn, m.Expiry); err != nil {
		return nil, nil, false, errors.WithPrevious(err, `materializer store write error`)
	}

	cont, err = m.Forward(ctx, kIn, vIn)
	if err != nil || !cont {
		return nil, nil, false, err
	}

	return kIn, vIn, true, nil
}

func (m *Materializer) Type() topology.Type {
	return topology.TypeMaterialize
}

func (m *Materializer) Name() string {
	return m.Store
}

func (m *Materializer) ID() int32 {
	return m.Id
}

func (m *Materializer) Stores() []string {
	return []string{m.Store}
}
