package kstream

import (
	"context"
	nativeErrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/branch"
	kContext "github.com/tryfix/estream/kstream/context"
	"github.com/tryfix/estream/kstream/store"
	"github.com/tryfix/estream/kstream/topology"
	"github.com/tryfix/estream/kstream/window"
	"github.com/tryfix/estream/kstream/worker_pool"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

type Status int

const (
	StatusNotStarted Status = iota
	StatusRunning
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return `Running`
	case StatusStopped:
		return `Stopped`
	}

	return `NotStarted`
}

// StreamInstance runs a built pipeline. It owns the stores, the window
// timers, the source and sink adapters and, with async processing, one
// worker pool per sourced stream.
type StreamInstance struct {
	topology *topology.Topology
	registry store.Registry
	graph    string
	logger   log.Logger
	clock    window.Clock
	config   *StreamBuilderConfig

	timers   []topology.Lifecycle
	sources  map[string]topology.Source
	sinks    []topology.Sink
	branches map[string]topology.Node
	pools    map[string]*worker_pool.Pool

	emitted metrics.Counter
	latency metrics.Observer

	// lifecycle is held by Start for its whole run, so Stop waits for a
	// start in progress
	lifecycle sync.Mutex

	mu       sync.RWMutex
	status   Status
	inflight sync.WaitGroup
	cancel   context.CancelFunc
	http     *http.Server

	// components started so far, stopped in reverse on shutdown
	startedSinks   []topology.Sink
	startedSources []topology.Source

	stopOnce sync.Once
	stopErr  error
}

func newStreamInstance(b *StreamBuilder, topo *topology.Topology) *StreamInstance {
	s := &StreamInstance{
		topology: topo,
		registry: b.storeRegistry,
		graph:    b.graph.Build(),
		logger:   b.config.Logger.NewLog(log.Prefixed(`streams`)),
		clock:    b.config.Clock,
		config:   b.config,
		timers:   topo.Lifecycles(),
		sources:  make(map[string]topology.Source),
		branches: make(map[string]topology.Node),
		pools:    make(map[string]*worker_pool.Pool),
		emitted: b.metricsReporter.Counter(metrics.MetricConf{
			Path:   `estream_stream_emitted_records`,
			Labels: []string{`stream`},
		}),
		latency: b.metricsReporter.Observer(metrics.MetricConf{
			Path:   `estream_stream_emit_latency_microseconds`,
			Labels: []string{`stream`},
		}),
		http: b.storeRegistry.Http(),
	}

	for _, name := range topo.Names() {
		stream := b.streams[name]
		if stream.source != nil {
			s.sources[name] = stream.source
		}
		s.sinks = append(s.sinks, stream.sinks...)
	}

	_ = topo.Walk(func(node topology.Node, _ int) error {
		if br, ok := node.(*branch.Branch); ok {
			s.branches[br.Name] = node
		}
		return nil
	})

	return s
}

// Start moves the instance to Running. It starts the store http server,
// the sinks, the window timers and finally the sources. When any of them
// fails everything started so far is stopped and the instance ends up
// Stopped.
func (s *StreamInstance) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.status != StatusNotStarted {
		status := s.status
		s.mu.Unlock()
		return errors.Errorf(`%w: cannot start a %s instance`, ErrInvalidState, status)
	}
	s.status = StatusRunning
	s.mu.Unlock()

	if err := s.start(ctx); err != nil {
		s.logger.Error(fmt.Sprintf(`stream instance start failed due to %s`, err))
		return multierr.Append(err, s.stop())
	}

	s.logger.Info(fmt.Sprintf(`stream instance started with streams %v`, s.topology.Names()))

	return nil
}

func (s *StreamInstance) start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.http != nil {
		ln, err := net.Listen(`tcp`, s.http.Addr)
		if err != nil {
			return errors.WithPrevious(err, `store http server failed`)
		}

		go func() {
			if err := s.http.Serve(ln); err != nil && !nativeErrors.Is(err, http.ErrServerClosed) {
				s.logger.Error(fmt.Sprintf(`store http server stopped due to %s`, err))
			}
		}()
		s.logger.Info(fmt.Sprintf(`store http server listening on %s`, ln.Addr()))
	}

	var mu sync.Mutex

	g, _ := errgroup.WithContext(ctx)
	for _, sink := range s.sinks {
		sink := sink
		g.Go(func() error {
			if err := sink.Start(); err != nil {
				return errors.WithPrevious(err, fmt.Sprintf(`sink [%s] start failed`, sink.Name()))
			}

			mu.Lock()
			s.startedSinks = append(s.startedSinks, sink)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	g, _ = errgroup.WithContext(ctx)
	for _, timer := range s.timers {
		timer := timer
		g.Go(func() error {
			return timer.Start(runCtx)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if s.config.AsyncProcessing {
		for name := range s.sources {
			root, _ := s.topology.Root(name)
			s.pools[name] = worker_pool.NewPool(name, root, s.config.MetricsReporter, s.config.Logger, s.config.WorkerPool)
		}
	}

	g, _ = errgroup.WithContext(ctx)
	for name, source := range s.sources {
		name, source := name, source
		g.Go(func() error {
			if err := source.Start(runCtx, s.emitFunc(name)); err != nil {
				return errors.WithPrevious(err, fmt.Sprintf(`source [%s] start failed`, source.Name()))
			}

			mu.Lock()
			s.startedSources = append(s.startedSources, source)
			mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

// emitFunc is handed to the source adapter of stream.
func (s *StreamInstance) emitFunc(stream string) topology.EmitFunc {
	pool, async := s.pools[stream]
	if !async {
		return func(ctx context.Context, key, value interface{}) error {
			return s.EmitTo(ctx, stream, key, value)
		}
	}

	return func(ctx context.Context, key, value interface{}) error {
		if err := s.enter(); err != nil {
			return err
		}
		defer s.inflight.Done()

		return pool.Run(ctx, key, value, func(err error) {
			if err != nil {
				s.config.ErrorObserver(errors.WithPrevious(err, fmt.Sprintf(`stream [%s]`, stream)))
			}
		})
	}
}

// Stop cancels the window timers, stops the sources, waits for in flight
// records, drains the worker pools, stops the sinks and closes the stores.
// Only the first call does any work, later calls return its result. A
// Stop during Start returns once the start has finished.
func (s *StreamInstance) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	return s.stop()
}

func (s *StreamInstance) stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.status = StatusStopped
		s.mu.Unlock()

		s.stopErr = s.shutdown()
		s.logger.Info(`stream instance stopped`)
	})

	return s.stopErr
}

func (s *StreamInstance) shutdown() error {
	var errs error

	for _, timer := range s.timers {
		if err := timer.Stop(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	for _, source := range s.startedSources {
		if err := source.Stop(); err != nil {
			errs = multierr.Append(errs, errors.WithPrevious(err, fmt.Sprintf(`source [%s] stop failed`, source.Name())))
		}
	}

	s.inflight.Wait()

	for _, pool := range s.pools {
		pool.Stop()
	}

	if s.cancel != nil {
		s.cancel()
	}

	for _, sink := range s.startedSinks {
		if err := sink.Stop(); err != nil {
			errs = multierr.Append(errs, errors.WithPrevious(err, fmt.Sprintf(`sink [%s] stop failed`, sink.Name())))
		}
	}

	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			errs = multierr.Append(errs, errors.WithPrevious(err, `store http server shutdown failed`))
		}
	}

	if err := s.registry.Close(); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

// enter registers an in flight record. The caller must call
// s.inflight.Done when enter succeeds.
func (s *StreamInstance) enter() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.status != StatusRunning {
		return errors.Errorf(`%w: instance is %s`, ErrInvalidState, s.status)
	}

	s.inflight.Add(1)
	return nil
}

// Emit pushes a record into the first stream of the pipeline and runs it
// to completion on the caller's goroutine.
func (s *StreamInstance) Emit(ctx context.Context, key, value interface{}) error {
	return s.EmitTo(ctx, s.topology.Names()[0], key, value)
}

// EmitTo pushes a record into the named stream.
func (s *StreamInstance) EmitTo(ctx context.Context, stream string, key, value interface{}) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.inflight.Done()

	root, ok := s.topology.Root(stream)
	if !ok {
		return errors.WithPrevious(ErrNotFound, fmt.Sprintf(`stream [%s]`, stream))
	}

	if _, ok := kContext.Meta(ctx); !ok {
		ctx = kContext.WithMeta(ctx, &kContext.RecordMeta{
			Source:    stream,
			Timestamp: s.clock.Now(),
		})
	}

	begin := time.Now()
	_, _, _, err := root.Run(ctx, key, value)

	labels := map[string]string{`stream`: stream}
	s.emitted.Count(1, labels)
	s.latency.Observe(float64(time.Since(begin).Microseconds()), labels)

	return err
}

func (s *StreamInstance) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status
}

// Branches returns the branch heads of the pipeline keyed by branch name.
func (s *StreamInstance) Branches() map[string]topology.Node {
	branches := make(map[string]topology.Node, len(s.branches))
	for name, node := range s.branches {
		branches[name] = node
	}

	return branches
}

// Graph returns the pipeline in DOT format.
func (s *StreamInstance) Graph() string {
	return s.graph
}

func (s *StreamInstance) StoreRegistry() store.Registry {
	return s.registry
}
