package join

import (
	"context"

	"github.com/tryfix/estream/kstream/topology"
)

type Type int

const (
	InnerJoin Type = iota
	LeftJoin
)

func (t Type) String() string {
	if t == LeftJoin {
		return `left`
	}
	return `inner`
}

type Joiner interface {
	topology.Node
	Join(ctx context.Context, key, val interface{}) (joinedVal interface{}, ok bool, err error)
}

type KeyMapper func(key, value interface{}) (mappedKey interface{}, err error)

type ValueMapper func(left, right interface{}) (joined interface{}, err error)
