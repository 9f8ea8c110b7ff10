package kstream

import (
	"context"

	"github.com/tryfix/estream/kstream/topology"
)

type StreamOption func(s *kStream)

// WithSource attaches a source adapter. The instance starts it on Start and
// every record it emits enters the stream.
func WithSource(source topology.Source) StreamOption {
	return func(s *kStream) {
		s.source = source
	}
}

// streamNode is the root of a stream. It hands each record to the first
// operator of the stream.
type streamNode struct {
	topology.Chain
	Id   int32
	name string
}

func (sn *streamNode) Build() (topology.Node, error) {
	childs, err := sn.BuildChilds()
	if err != nil {
		return nil, err
	}

	return &streamNode{
		Chain: childs,
		Id:    sn.Id,
		name:  sn.name,
	}, nil
}

func (sn *streamNode) Run(ctx context.Context, kIn, vIn interface{}) (kOut, vOut interface{}, cont bool, err error) {
	cont, err = sn.Forward(ctx, kIn, vIn)
	if err != nil || !cont {
		return nil, nil, false, err
	}

	return kIn, vIn, true, nil
}

func (sn *streamNode) Name() string {
	return sn.name
}

func (sn *streamNode) ID() int32 {
	return sn.Id
}

func (sn *streamNode) Type() topology.Type {
	return topology.TypeSource
}
