package processors

import (
	"context"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/topology"
)

type TransFunc func(ctx context.Context, key, value interface{}) (kOut, vOut interface{}, err error)

// Transformer maps a record to a new key and value.
type Transformer struct {
	topology.Chain
	Id        int32
	TransFunc TransFunc
}

func (t *Transformer) Build() (topology.Node, error) {
	childs, err := t.BuildChilds()
	if err != nil {
		return nil, err
	}

	return &Transformer{
		Chain:     childs,
		TransFunc: t.TransFunc,
		Id:        t.Id,
	}, nil
}

func (t *Transformer) ID() int32 {
	return t.Id
}

func (t *Transformer) Run(ctx context.Context, kIn, vIn interface{}) (kOut, vOut interface{}, next bool, err error) {
	if vIn == nil {
		return nil, nil, false, errors.Errorf(`%w: transformer received a nil value for key [%v]`, ErrInvalidInput, kIn)
	}

	k, v, err := t.TransFunc(ctx, kIn, vIn)
	if err != nil {
		return nil, nil, false, errors.WithPrevious(err, `transformer error`)
	}

	next, err = t.Forward(ctx, k, v)
	if err != nil || !next {
		return nil, nil, false, err
	}

	return k, v, true, nil
}

func (t *Transformer) Type() topology.Type {
	return topology.TypeTransformer
}

func (t *Transformer) Name() string {
	return `transformer`
}
