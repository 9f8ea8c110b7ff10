package kstream

import (
	"context"
	"fmt"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/topology"
)

// sinkNode hands records to a sink adapter. It ends a stream.
type sinkNode struct {
	topology.Chain
	Id   int32
	sink topology.Sink
}

func (s *sinkNode) Build() (topology.Node, error) {
	return &sinkNode{
		Id:   s.Id,
		sink: s.sink,
	}, nil
}

func (s *sinkNode) Run(ctx context.Context, kIn, vIn interface{}) (kOut, vOut interface{}, next bool, err error) {
	if err := s.sink.Process(ctx, kIn, vIn); err != nil {
		return nil, nil, false, errors.WithPrevious(err, fmt.Sprintf(`sink [%s] failed`, s.sink.Name()))
	}

	return kIn, vIn, true, nil
}

func (s *sinkNode) Name() string {
	return s.sink.Name()
}

func (s *sinkNode) ID() int32 {
	return s.Id
}

func (*sinkNode) Type() topology.Type {
	return topology.TypeSink
}

type SinkFunc func(ctx context.Context, key, value interface{}) error

type funcSink struct {
	name string
	fn   SinkFunc
}

// NewFuncSink wraps fn as a sink adapter with no start or stop work.
func NewFuncSink(name string, fn SinkFunc) topology.Sink {
	return &funcSink{name: name, fn: fn}
}

func (f *funcSink) Name() string {
	return f.name
}

func (f *funcSink) Start() error {
	return nil
}

func (f *funcSink) Process(ctx context.Context, key, value interface{}) error {
	return f.fn(ctx, key, value)
}

func (f *funcSink) Stop() error {
	return nil
}
