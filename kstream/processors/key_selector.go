package processors

import (
	"context"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/topology"
)

type SelectKeyFunc func(ctx context.Context, key, value interface{}) (kOut interface{}, err error)

type KeySelector struct {
	topology.Chain
	Id            int32
	SelectKeyFunc SelectKeyFunc
}

func (ks *KeySelector) Build() (topology.Node, error) {
	childs, err := ks.BuildChilds()
	if err != nil {
		return nil, err
	}

	return &KeySelector{
		Chain:         childs,
		SelectKeyFunc: ks.SelectKeyFunc,
		Id:            ks.Id,
	}, nil
}

func (ks *KeySelector) ID() int32 {
	return ks.Id
}

func (ks *KeySelector) Run(ctx context.Context, kIn, vIn interface{}) (kOut, vOut interface{}, cont bool, err error) {
	k, err := ks.SelectKeyFunc(ctx, kIn, vIn)
	if err != nil {
		return nil, nil, false, errors.WithPrevious(err, `error in select key function`)
	}

	cont, err = ks.Forward(ctx, k, vIn)
	if err != nil || !cont {
		return nil, nil, false, err
	}

	return k, vIn, true, nil
}

func (ks *KeySelector) Type() topology.Type {
	return topology.Type(`key_selector`)
}

func (ks *KeySelector) Name() string {
	return `key_selector`
}
