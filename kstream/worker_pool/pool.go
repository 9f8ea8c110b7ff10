package worker_pool

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/topology"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

type ExecutionOrder int

const (
	OrderRandom ExecutionOrder = iota
	OrderByKey
	OrderPreserved
)

func (eo ExecutionOrder) String() string {
	order := `OrderRandom`

	if eo == OrderByKey {
		return `OrderByKey`
	}

	if eo == OrderPreserved {
		return `OrderPreserved`
	}

	return order
}

var ErrPoolStopped = errors.New(`worker pool stopped`)

type task struct {
	ctx     context.Context
	key     interface{}
	val     interface{}
	doneClb func(err error)
}

type PoolConfig struct {
	NumOfWorkers     int
	WorkerBufferSize int
	Order            ExecutionOrder
}

func (c *PoolConfig) Validate() error {
	if c.Order > OrderPreserved || c.Order < OrderRandom {
		return errors.New(`invalid WorkerPool Order`)
	}

	if c.WorkerBufferSize < 1 {
		return errors.New(`WorkerPool WorkerBufferSize should be greater than 0`)
	}

	if c.NumOfWorkers < 1 {
		return errors.New(`WorkerPool NumOfWorkers should be greater than 0`)
	}

	return nil
}

// Pool runs records through a built node on a fixed set of workers. With
// OrderByKey records of one key always land on the same worker, so they are
// processed in arrival order. OrderPreserved uses a single worker.
type Pool struct {
	id      string
	node    topology.Node
	size    int64
	workers []*worker
	logger  log.Logger
	order   ExecutionOrder
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	done    chan struct{}
}

func NewPool(id string, node topology.Node, metricsReporter metrics.Reporter, logger log.Logger, config *PoolConfig) *Pool {
	size := config.NumOfWorkers
	if config.Order == OrderPreserved {
		size = 1
	}

	p := &Pool{
		id:      id,
		node:    node,
		size:    int64(size),
		order:   config.Order,
		logger:  logger.NewLog(log.Prefixed(`pool`)),
		workers: make([]*worker, size),
		done:    make(chan struct{}),
	}

	bufferUsage := metricsReporter.Gauge(metrics.MetricConf{
		Path:   `estream_pool_worker_buffer_usage`,
		Labels: []string{`pool_id`, `worker`},
	})

	for i := 0; i < size; i++ {
		p.workers[i] = &worker{
			id:          i,
			pool:        p,
			logger:      p.logger.NewLog(log.Prefixed(fmt.Sprintf(`worker-%d`, i))),
			tasks:       make(chan task, config.WorkerBufferSize),
			bufferUsage: bufferUsage,
		}
	}

	p.wg.Add(size)
	for _, w := range p.workers {
		go w.start()
	}

	go p.reportBufferUsage()

	return p
}

// Run queues a record. It blocks while the selected worker's buffer is full.
// doneClb receives the result of the node.
func (p *Pool) Run(ctx context.Context, key, val interface{}, doneClb func(err error)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	w := p.worker(key)
	select {
	case w.tasks <- task{ctx: ctx, key: key, val: val, doneClb: doneClb}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects new records and waits for queued ones to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, w := range p.workers {
		close(w.tasks)
	}
	p.mu.Unlock()

	p.wg.Wait()
	close(p.done)
}

func (p *Pool) worker(key interface{}) *worker {
	if p.size == 1 {
		return p.workers[0]
	}

	if p.order == OrderRandom {
		return p.workers[rand.Int63n(p.size)]
	}

	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(fmt.Sprint(key)))

	return p.workers[int64(hasher.Sum32())%p.size]
}

func (p *Pool) reportBufferUsage() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			for _, w := range p.workers {
				w.bufferUsage.Count((float64(len(w.tasks))/float64(cap(w.tasks)))*100, map[string]string{
					`pool_id`: p.id,
					`worker`:  fmt.Sprint(w.id),
				})
			}
		}
	}
}

type worker struct {
	id          int
	tasks       chan task
	pool        *Pool
	logger      log.Logger
	bufferUsage metrics.Gauge
}

func (w *worker) start() {
	defer w.pool.wg.Done()

	for task := range w.tasks {
		_, _, _, err := w.pool.node.Run(task.ctx, task.key, task.val)
		if err != nil {
			w.logger.ErrorContext(task.ctx, fmt.Sprintf(`record processing failed due to %s`, err))
		}

		if task.doneClb != nil {
			task.doneClb(err)
		}
	}
}
