package processors

import (
	"context"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/topology"
)

type KeyValue struct {
	Key   interface{}
	Value interface{}
}

type FlatMapFunc func(ctx context.Context, key, value interface{}) ([]KeyValue, error)

// FlatMap expands one record into zero or more records, forwarded in order.
type FlatMap struct {
	topology.Chain
	Id          int32
	FlatMapFunc FlatMapFunc
}

func (fm *FlatMap) Build() (topology.Node, error) {
	childs, err := fm.BuildChilds()
	if err != nil {
		return nil, err
	}

	return &FlatMap{
		Chain:       childs,
		FlatMapFunc: fm.FlatMapFunc,
		Id:          fm.Id,
	}, nil
}

func (fm *FlatMap) ID() int32 {
	return fm.Id
}

func (fm *FlatMap) Run(ctx context.Context, kIn, vIn interface{}) (kOut, vOut interface{}, cont bool, err error) {
	kvs, err := fm.FlatMapFunc(ctx, kIn, vIn)
	if err != nil {
		return nil, nil, false, errors.WithPrevious(err, `flat map error`)
	}

	if len(kvs) == 0 {
		return kIn, vIn, false, nil
	}

	for _, kv := range kvs {
		if _, err := fm.Forward(ctx, kv.Key, kv.Value); err != nil {
			return nil, nil, false, err
		}
	}

	return kIn, vIn, true, nil
}

func (fm *FlatMap) Type() topology.Type {
	return topology.TypeFlatMap
}

func (fm *FlatMap) Name() string {
	return `flat_map`
}
