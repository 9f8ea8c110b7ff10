package processors

import (
	"context"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/topology"
)

type FilterFunc func(ctx context.Context, key, value interface{}) (bool, error)

type Filter struct {
	topology.Chain
	Id         int32
	FilterFunc FilterFunc
}

func (f *Filter) Build() (topology.Node, error) {
	childs, err := f.BuildChilds()
	if err != nil {
		return nil, err
	}

	return &Filter{
		Chain:      childs,
		FilterFunc: f.FilterFunc,
		Id:         f.Id,
	}, nil
}

func (f *Filter) Name() string {
	return `filter`
}

func (f *Filter) Type() topology.Type {
	return topology.TypeFilter
}

func (f *Filter) ID() int32 {
	return f.Id
}

func (f *Filter) Run(ctx context.Context, kIn, vIn interface{}) (kOut, vOut interface{}, next bool, err error) {
	ok, err := f.FilterFunc(ctx, kIn, vIn)
	if err != nil {
		return nil, nil, false, errors.WithPrevious(err, `filter error`)
	}

	if !ok {
		return kIn, vIn, false, nil
	}

	next, err = f.Forward(ctx, kIn, vIn)
	if err != nil || !next {
		return nil, nil, false, err
	}

	return kIn, vIn, true, nil
}
