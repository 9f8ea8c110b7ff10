/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package kstream

import (
	"fmt"
	"sync"
	"sync/atomic"

	saramaMetrics "github.com/rcrowley/go-metrics"
	"github.com/tryfix/errors"
	"github.com/tryfix/estream/backend"
	"github.com/tryfix/estream/kstream/graph"
	"github.com/tryfix/estream/kstream/store"
	"github.com/tryfix/estream/kstream/topology"
	"github.com/tryfix/estream/kstream/window"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
	"go.uber.org/multierr"
)

type StreamBuilder struct {
	config          *StreamBuilderConfig
	streams         map[string]*kStream
	order           []string
	branches        map[string]bool
	storeRegistry   store.Registry
	graph           *graph.Graph
	logger          log.Logger
	metricsReporter metrics.Reporter
	windowMetrics   *window.Metrics
	defaultBuilders *DefaultBuilders
	nodeCounter     int32

	mu   sync.Mutex
	errs error
}

type BuilderOption func(*DefaultBuilders)

func WithStoreBuilder(builder store.Builder) BuilderOption {
	return func(builders *DefaultBuilders) {
		builders.Store = builder
	}
}

func WithBackendBuilder(builder backend.Builder) BuilderOption {
	return func(builders *DefaultBuilders) {
		builders.Backend = builder
	}
}

func init() {
	saramaMetrics.UseNilMetrics = true
}

func NewStreamBuilder(config *StreamBuilderConfig, options ...BuilderOption) *StreamBuilder {
	config.defaults()
	config.DefaultBuilders.build(options...)

	b := &StreamBuilder{
		config:          config,
		streams:         make(map[string]*kStream),
		branches:        make(map[string]bool),
		logger:          config.Logger.NewLog(log.Prefixed(`stream-builder`)),
		metricsReporter: config.MetricsReporter,
		windowMetrics:   window.NewMetrics(config.MetricsReporter),
		defaultBuilders: config.DefaultBuilders,
		graph:           graph.NewGraph(),
	}

	b.storeRegistry = store.NewRegistry(&store.RegistryConfig{
		Host:           config.Store.Http.Host,
		HttpEnabled:    config.Store.Http.Enabled,
		StoreBuilder:   b.defaultBuilders.Store,
		BackendBuilder: b.defaultBuilders.Backend,
		Logger:         config.Logger,
	})

	return b
}

func (b *StreamBuilder) StoreRegistry() store.Registry {
	return b.storeRegistry
}

func (b *StreamBuilder) nextId() int32 {
	return atomic.AddInt32(&b.nodeCounter, 1)
}

// fail records a pipeline definition error. Build returns all of them.
func (b *StreamBuilder) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.errs = multierr.Append(b.errs, err)
}

func (b *StreamBuilder) registerBranch(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if name == `` {
		b.errs = multierr.Append(b.errs, errors.New(`branch name cannot be empty`))
		return
	}

	if b.branches[name] {
		b.errs = multierr.Append(b.errs, errors.Errorf(`branch [%s] already exist`, name))
		return
	}

	b.branches[name] = true
}

// NewStream starts a pipeline. The first stream created is the default
// target of StreamInstance.Emit.
func (b *StreamBuilder) NewStream(name string, options ...StreamOption) Stream {
	s := &kStream{
		name:    name,
		builder: b,
		node: &streamNode{
			Id:   b.nextId(),
			name: name,
		},
	}
	s.root = s

	for _, opt := range options {
		opt(s)
	}

	if name == `` {
		b.fail(errors.New(`stream name cannot be empty`))
		return s
	}

	if _, ok := b.streams[name]; ok {
		b.fail(errors.Errorf(`stream [%s] already exist`, name))
		return s
	}

	b.streams[name] = s
	b.order = append(b.order, name)

	return s
}

func (b *StreamBuilder) windowOptions(name string, opts ...WindowOption) *windowOptions {
	o := &windowOptions{
		bufferStore: name + `-buffer`,
		options: []window.Option{
			window.WithClock(b.config.Clock),
			window.WithScanInterval(b.config.Window.ScanInterval),
			window.WithErrorObserver(b.config.ErrorObserver),
			window.WithLogger(b.config.Logger),
			window.WithMetrics(b.windowMetrics),
			window.WithLockStripes(b.config.Store.LockStripes),
		},
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Build freezes every stream created by the builder into a StreamInstance.
// Configuration errors and pipeline definition errors are returned together.
// Passing streams limits the instance to those streams.
func (b *StreamBuilder) Build(streams ...Stream) (*StreamInstance, error) {
	errs := b.config.validate()

	b.mu.Lock()
	errs = multierr.Append(errs, b.errs)
	b.mu.Unlock()

	names := b.order
	if len(streams) > 0 {
		names = nil
		for _, s := range streams {
			names = append(names, s.Name())
		}
	}

	if len(names) == 0 {
		errs = multierr.Append(errs, errors.New(`no streams to build`))
	}

	topo := topology.New()
	for _, name := range names {
		stream, ok := b.streams[name]
		if !ok {
			errs = multierr.Append(errs, errors.WithPrevious(ErrNotFound, fmt.Sprintf(`stream [%s]`, name)))
			continue
		}

		root, err := stream.node.Build()
		if err != nil {
			errs = multierr.Append(errs, errors.WithPrevious(err, fmt.Sprintf(`stream [%s] build failed`, name)))
			continue
		}

		topo.Add(name, root)
	}

	if errs != nil {
		return nil, errs
	}

	for _, name := range topo.Names() {
		root, _ := topo.Root(name)
		info := `manual`
		if src := b.streams[name].source; src != nil {
			info = src.Name()
		}
		b.graph.RenderTopology(name, info, root)
	}

	b.logger.Info(b.graph.Build())
	b.logger.Info(fmt.Sprintf("\n%s", b.config.String(b)))

	return newStreamInstance(b, topo), nil
}
