package processors

import (
	"context"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/topology"
)

type ValueTransformFunc func(ctx context.Context, key, value interface{}) (vOut interface{}, err error)

type ValueTransformer struct {
	topology.Chain
	Id                 int32
	ValueTransformFunc ValueTransformFunc
}

func (vt *ValueTransformer) Build() (topology.Node, error) {
	childs, err := vt.BuildChilds()
	if err != nil {
		return nil, err
	}

	return &ValueTransformer{
		Chain:              childs,
		ValueTransformFunc: vt.ValueTransformFunc,
		Id:                 vt.Id,
	}, nil
}

func (vt *ValueTransformer) ID() int32 {
	return vt.Id
}

func (vt *ValueTransformer) Run(ctx context.Context, kIn, vIn interface{}) (kOut, vOut interface{}, cont bool, err error) {
	if vIn == nil {
		return nil, nil, false, errors.Errorf(`%w: value transformer received a nil value for key [%v]`, ErrInvalidInput, kIn)
	}

	v, err := vt.ValueTransformFunc(ctx, kIn, vIn)
	if err != nil {
		return nil, nil, false, errors.WithPrevious(err, `error in value transform function`)
	}

	cont, err = vt.Forward(ctx, kIn, v)
	if err != nil || !cont {
		return nil, nil, false, err
	}

	return kIn, v, true, nil
}

func (vt *ValueTransformer) Type() topology.Type {
	return topology.TypeTransformer
}

func (vt *ValueTransformer) Name() string {
	return `value_transformer`
}
