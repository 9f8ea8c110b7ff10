package join

import (
	"context"
	"fmt"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/store"
	"github.com/tryfix/estream/kstream/topology"
)

// StoreJoiner joins each record with the value a store holds for the mapped
// key. An inner join drops records without a match.
type StoreJoiner struct {
	topology.Chain
	Id          int32
	Typ         Type
	Store       string
	KeyMapper   KeyMapper
	ValueMapper ValueMapper
	Registry    store.Registry
	store       store.Store
}

func (j *StoreJoiner) Type() topology.Type {
	return topology.TypeJoiner
}

func (j *StoreJoiner) Build() (topology.Node, error) {
	if j.Registry == nil {
		return nil, errors.Errorf(`no store registry to resolve [%s]`, j.Store)
	}

	s, err := j.Registry.Store(j.Store)
	if err != nil {
		return nil, err
	}

	childs, err := j.BuildChilds()
	if err != nil {
		return nil, err
	}

	return &StoreJoiner{
		Chain:       childs,
		Id:          j.Id,
		Typ:         j.Typ,
		Store:       j.Store,
		KeyMapper:   j.KeyMapper,
		ValueMapper: j.ValueMapper,
		Registry:    j.Registry,
		store:       s,
	}, nil
}

func (j *StoreJoiner) Run(ctx context.Context, kIn, vIn interface{}) (kOut, vOut interface{}, next bool, err error) {
	joined, ok, err := j.Join(ctx, kIn, vIn)
	if err != nil {
		return nil, nil, false, err
	}

	if !ok {
		return kIn, vIn, false, nil
	}

	next, err = j.Forward(ctx, kIn, joined)
	if err != nil || !next {
		return nil, nil, false, err
	}

	return kIn, joined, true, nil
}

// Join returns ok false when an inner join finds no right side value.
func (j *StoreJoiner) Join(ctx context.Context, key interface{}, leftVal interface{}) (joinedVal interface{}, ok bool, err error) {
	k := key
	if j.KeyMapper != nil {
		k, err = j.KeyMapper(key, leftVal)
		if err != nil {
			return nil, false, errors.WithPrevious(err, `key mapper error`)
		}
	}

	rightValue, err := j.store.Get(ctx, k)
	if err != nil {
		return nil, false, errors.WithPrevious(err, fmt.Sprintf(`cannot get value from [%s] store`, j.Store))
	}

	if j.Typ == InnerJoin && rightValue == nil {
		return nil, false, nil
	}

	valJoined, err := j.ValueMapper(leftVal, rightValue)
	if err != nil {
		return nil, false, errors.WithPrevious(err, `value mapper failed`)
	}

	return valJoined, true, nil
}

func (j *StoreJoiner) Name() string {
	return j.Store
}

func (j *StoreJoiner) ID() int32 {
	return j.Id
}

func (j *StoreJoiner) Stores() []string {
	return []string{j.Store}
}
