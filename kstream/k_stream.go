/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package kstream

import (
	"fmt"
	"time"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/branch"
	"github.com/tryfix/estream/kstream/encoding"
	"github.com/tryfix/estream/kstream/processors"
	"github.com/tryfix/estream/kstream/processors/join"
	"github.com/tryfix/estream/kstream/topology"
	"github.com/tryfix/estream/kstream/window"
)

const (
	InnerJoin = join.InnerJoin
	LeftJoin  = join.LeftJoin
)

// Stream is a point in a pipeline. Every call appends one operator and
// returns the stream after it. A stream takes a single downstream operator,
// Branch is the only way to fan out.
type Stream interface {
	Name() string
	Filter(filter processors.FilterFunc) Stream
	Map(fn processors.TransFunc) Stream
	MapValues(fn processors.ValueTransformFunc) Stream
	SelectKey(fn processors.SelectKeyFunc) Stream
	FlatMap(fn processors.FlatMapFunc) Stream
	Process(fn processors.ProcessFunc) Stream
	GroupByKey(selector processors.SelectKeyFunc, store string, opts ...processors.GroupOption) Stream
	Aggregate(selector processors.SelectKeyFunc, fn processors.AggregateFunc, store string, opts ...processors.AggregateOption) Stream
	Join(store string, keyMapper join.KeyMapper, valMapper join.ValueMapper, typ join.Type) Stream
	Materialize(store string, expiry time.Duration) Stream
	TumblingWindow(name string, selector window.KeySelector, size time.Duration, fn window.Func, opts ...WindowOption) Stream
	SlidingWindow(name string, selector window.KeySelector, size, advance time.Duration, fn window.Func, opts ...WindowOption) Stream
	SessionWindow(name string, selector window.KeySelector, gap time.Duration, fn window.Func, opts ...WindowOption) Stream
	Branch(branches []branch.Details) []Stream
	To(sink topology.Sink)
	Foreach(fn processors.ProcessFunc)
}

type kStream struct {
	name       string
	builder    *StreamBuilder
	root       *kStream
	node       topology.NodeBuilder
	downstream bool

	// set on roots only
	source topology.Source
	sinks  []topology.Sink
}

func (s *kStream) Name() string {
	return s.name
}

// add links node below s and returns the stream after it.
func (s *kStream) add(node topology.NodeBuilder) *kStream {
	next := &kStream{
		name:    s.name,
		builder: s.builder,
		root:    s.root,
		node:    node,
	}

	if s.downstream {
		s.builder.fail(errors.Errorf(`stream [%s]: %s already has a downstream operator, use Branch to fan out`, s.name, s.node.Type()))
		return next
	}

	s.downstream = true
	s.node.AddChildBuilder(node)

	return next
}

func (s *kStream) Filter(filter processors.FilterFunc) Stream {
	return s.add(&processors.Filter{
		FilterFunc: filter,
		Id:         s.builder.nextId(),
	})
}

func (s *kStream) Map(fn processors.TransFunc) Stream {
	return s.add(&processors.Transformer{
		TransFunc: fn,
		Id:        s.builder.nextId(),
	})
}

func (s *kStream) MapValues(fn processors.ValueTransformFunc) Stream {
	return s.add(&processors.ValueTransformer{
		ValueTransformFunc: fn,
		Id:                 s.builder.nextId(),
	})
}

func (s *kStream) SelectKey(fn processors.SelectKeyFunc) Stream {
	return s.add(&processors.KeySelector{
		SelectKeyFunc: fn,
		Id:            s.builder.nextId(),
	})
}

func (s *kStream) FlatMap(fn processors.FlatMapFunc) Stream {
	return s.add(&processors.FlatMap{
		FlatMapFunc: fn,
		Id:          s.builder.nextId(),
	})
}

func (s *kStream) Process(fn processors.ProcessFunc) Stream {
	return s.add(&processors.Processor{
		ProcessFunc: fn,
		Id:          s.builder.nextId(),
	})
}

// GroupByKey appends every value to the list kept under its group key in
// store. The store must be registered before Build.
func (s *kStream) GroupByKey(selector processors.SelectKeyFunc, store string, opts ...processors.GroupOption) Stream {
	return s.add(processors.NewGroupBy(s.builder.nextId(), selector, store, s.builder.storeRegistry, opts...))
}

func (s *kStream) Aggregate(selector processors.SelectKeyFunc, fn processors.AggregateFunc, store string, opts ...processors.AggregateOption) Stream {
	return s.add(processors.NewAggregator(s.builder.nextId(), selector, fn, store, s.builder.storeRegistry, opts...))
}

// Join looks every record up in store. Inner joins drop records without a
// match, left joins forward them with a nil right value.
func (s *kStream) Join(store string, keyMapper join.KeyMapper, valMapper join.ValueMapper, typ join.Type) Stream {
	return s.add(&join.StoreJoiner{
		Id:          s.builder.nextId(),
		Typ:         typ,
		Store:       store,
		KeyMapper:   keyMapper,
		ValueMapper: valMapper,
		Registry:    s.builder.storeRegistry,
	})
}

func (s *kStream) Materialize(store string, expiry time.Duration) Stream {
	return s.add(&processors.Materializer{
		Id:       s.builder.nextId(),
		Store:    store,
		Expiry:   expiry,
		Registry: s.builder.storeRegistry,
	})
}

func (s *kStream) TumblingWindow(name string, selector window.KeySelector, size time.Duration, fn window.Func, opts ...WindowOption) Stream {
	o := s.builder.windowOptions(name, opts...)
	o.createStore(s.builder, o.bufferStore, o.keyEncoder, window.NewBufferEncoder(o.eventEncoder))
	o.createResultStore(s.builder)

	return s.add(&window.TumblingWindow{
		Id:          s.builder.nextId(),
		Name:        name,
		KeySelector: selector,
		Size:        size,
		Func:        fn,
		BufferStore: o.bufferStore,
		ResultStore: o.resultStore,
		Registry:    s.builder.storeRegistry,
		Options:     o.options,
	})
}

func (s *kStream) SlidingWindow(name string, selector window.KeySelector, size, advance time.Duration, fn window.Func, opts ...WindowOption) Stream {
	o := s.builder.windowOptions(name, opts...)
	if o.keyEncoder != nil {
		o.createStore(s.builder, o.bufferStore, window.NewWindowKeyEncoder(o.keyEncoder), window.NewBufferEncoder(o.eventEncoder))
	}
	o.createResultStore(s.builder)

	return s.add(&window.SlidingWindow{
		Id:          s.builder.nextId(),
		Name:        name,
		KeySelector: selector,
		Size:        size,
		Advance:     advance,
		Func:        fn,
		BufferStore: o.bufferStore,
		ResultStore: o.resultStore,
		Registry:    s.builder.storeRegistry,
		Options:     o.options,
	})
}

func (s *kStream) SessionWindow(name string, selector window.KeySelector, gap time.Duration, fn window.Func, opts ...WindowOption) Stream {
	o := s.builder.windowOptions(name, opts...)
	o.createStore(s.builder, o.bufferStore, o.keyEncoder, window.NewSessionEncoder(o.eventEncoder))

	return s.add(&window.SessionWindow{
		Id:           s.builder.nextId(),
		Name:         name,
		KeySelector:  selector,
		Gap:          gap,
		Func:         fn,
		SessionStore: o.bufferStore,
		Registry:     s.builder.storeRegistry,
		Options:      o.options,
	})
}

// Branch splits the stream into named branches. Each record goes to every
// branch whose predicate holds. Names are unique across the pipeline.
func (s *kStream) Branch(branches []branch.Details) []Stream {
	bs := &branch.Splitter{
		Id: s.builder.nextId(),
	}
	split := s.add(bs)

	var streams = make([]Stream, len(branches))
	for i, br := range branches {
		s.builder.registerBranch(br.Name)

		b := &branch.Branch{
			Name:      br.Name,
			Predicate: br.Predicate,
			Id:        s.builder.nextId(),
		}
		bs.AddChildBuilder(b)

		streams[i] = &kStream{
			name:    split.name,
			builder: s.builder,
			root:    s.root,
			node:    b,
		}
	}

	return streams
}

// To ends the stream in a sink adapter. The instance starts and stops the
// sink with the pipeline.
func (s *kStream) To(sink topology.Sink) {
	if sink == nil {
		s.builder.fail(errors.Errorf(`stream [%s]: sink cannot be nil`, s.name))
		return
	}

	s.add(&sinkNode{
		Id:   s.builder.nextId(),
		sink: sink,
	})
	s.root.sinks = append(s.root.sinks, sink)
}

// Foreach ends the stream with a side effect.
func (s *kStream) Foreach(fn processors.ProcessFunc) {
	s.Process(fn)
}

type windowOptions struct {
	bufferStore   string
	resultStore   string
	keyEncoder    encoding.Builder
	eventEncoder  encoding.Builder
	resultEncoder encoding.Builder
	options       []window.Option
}

type WindowOption func(o *windowOptions)

// WindowStore names the store holding open windows. Defaults to
// <window>-buffer.
func WindowStore(name string) WindowOption {
	return func(o *windowOptions) {
		o.bufferStore = name
	}
}

// WindowResultStore keeps results keyed by window.WindowKey. Windows found
// in it are never emitted again. The store is created with resultEncoder
// when it is not registered yet.
func WindowResultStore(name string, resultEncoder encoding.Builder) WindowOption {
	return func(o *windowOptions) {
		o.resultStore = name
		o.resultEncoder = resultEncoder
	}
}

// WindowEncoders creates the window store from the group key and event
// encoders when it is not registered yet.
func WindowEncoders(key, event encoding.Builder) WindowOption {
	return func(o *windowOptions) {
		o.keyEncoder = key
		o.eventEncoder = event
	}
}

// WindowOptions passes operator options such as
// window.WithTimestampExtractor.
func WindowOptions(opts ...window.Option) WindowOption {
	return func(o *windowOptions) {
		o.options = append(o.options, opts...)
	}
}

func (o *windowOptions) createStore(b *StreamBuilder, name string, key, val encoding.Builder) {
	if o.keyEncoder == nil || o.eventEncoder == nil {
		return
	}

	if _, err := b.storeRegistry.Store(name); err == nil {
		return
	}

	if _, err := b.storeRegistry.New(name, key, val); err != nil {
		b.fail(errors.WithPrevious(err, fmt.Sprintf(`window store [%s]`, name)))
	}
}

func (o *windowOptions) createResultStore(b *StreamBuilder) {
	if o.resultStore == `` || o.resultEncoder == nil || o.keyEncoder == nil {
		return
	}

	if _, err := b.storeRegistry.Store(o.resultStore); err == nil {
		return
	}

	if _, err := b.storeRegistry.New(o.resultStore, window.NewWindowKeyEncoder(o.keyEncoder), o.resultEncoder); err != nil {
		b.fail(errors.WithPrevious(err, fmt.Sprintf(`window result store [%s]`, o.resultStore)))
	}
}
