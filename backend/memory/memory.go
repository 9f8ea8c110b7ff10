/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package memory

import (
	"sync"
	"time"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/backend"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

var ErrClosed = errors.New(`memory backend closed`)

type memoryRecord struct {
	key       []byte
	value     []byte
	createdAt time.Time
	expiry    time.Duration
}

func (r memoryRecord) expired(now time.Time) bool {
	return r.expiry > 0 && now.Sub(r.createdAt) > r.expiry
}

type config struct {
	MetricsReporter metrics.Reporter
	Logger          log.Logger
	// Partitions spreads keys over that many memory backends when greater than one.
	Partitions    int
	CleanInterval time.Duration
}

func NewConfig() *config {
	conf := new(config)
	conf.parse()

	return conf
}

func (c *config) parse() {
	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}

	if c.CleanInterval < 1 {
		c.CleanInterval = 100 * time.Millisecond
	}
}

type memory struct {
	name          string
	records       *sync.Map
	logger        log.Logger
	expiry        time.Duration
	cleanInterval time.Duration
	closeOnce     sync.Once
	closing       chan struct{}
	closed        chan struct{}
	mu            sync.RWMutex
	isClosed      bool
	metrics       struct {
		readLatency   metrics.Observer
		updateLatency metrics.Observer
		deleteLatency metrics.Observer
		storageSize   metrics.Gauge
	}
}

func Builder(config *config) backend.Builder {
	config.parse()
	return func(name string) (backend.Backend, error) {
		if config.Partitions > 1 {
			return NewPartitionMemoryBackend(name, config.Partitions, config.Logger, config.MetricsReporter), nil
		}

		return newMemory(name, config.CleanInterval, config.Logger, config.MetricsReporter), nil
	}
}

func NewMemoryBackend(logger log.Logger, reporter metrics.Reporter) backend.Backend {
	return newMemory(`memory`, 100*time.Millisecond, logger, reporter)
}

func newMemory(name string, cleanInterval time.Duration, logger log.Logger, reporter metrics.Reporter) *memory {
	m := &memory{
		name:          name,
		logger:        logger.NewLog(log.Prefixed(`memory-backend`)),
		records:       new(sync.Map),
		cleanInterval: cleanInterval,
		closing:       make(chan struct{}),
		closed:        make(chan struct{}),
	}

	labels := []string{`name`, `type`}
	m.metrics.readLatency = reporter.Observer(metrics.MetricConf{Path: `backend_read_latency_microseconds`, Labels: labels})
	m.metrics.updateLatency = reporter.Observer(metrics.MetricConf{Path: `backend_update_latency_microseconds`, Labels: labels})
	m.metrics.storageSize = reporter.Gauge(metrics.MetricConf{Path: `backend_storage_size`, Labels: labels})
	m.metrics.deleteLatency = reporter.Observer(metrics.MetricConf{Path: `backend_delete_latency_microseconds`, Labels: labels})

	go m.runCleaner()
	return m
}

func (m *memory) labels() map[string]string {
	return map[string]string{`name`: m.name, `type`: `memory`}
}

func (m *memory) runCleaner() {
	ticker := time.NewTicker(m.cleanInterval)
	defer ticker.Stop()
	defer close(m.closed)

	for {
		select {
		case <-m.closing:
			return
		case <-ticker.C:
			now := time.Now()
			size := 0
			m.records.Range(func(key, value interface{}) bool {
				if value.(memoryRecord).expired(now) {
					m.records.Delete(key)
					return true
				}
				size++
				return true
			})
			m.metrics.storageSize.Count(float64(size), m.labels())
		}
	}
}

func (m *memory) snapshot() []backend.KeyVal {
	now := time.Now()
	records := make([]backend.KeyVal, 0)

	m.records.Range(func(key, value interface{}) bool {
		record := value.(memoryRecord)
		if record.expired(now) {
			return true
		}
		records = append(records, backend.KeyVal{Key: record.key, Value: record.value})
		return true
	})

	return records
}

func (m *memory) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.isClosed {
		return ErrClosed
	}
	return nil
}

func (m *memory) Name() string {
	return m.name
}

func (m *memory) String() string {
	return `memory`
}

func (m *memory) Persistent() bool {
	return false
}

func (m *memory) Set(key []byte, value []byte, expiry time.Duration) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	defer func(begin time.Time) {
		m.metrics.updateLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), m.labels())
	}(time.Now())

	if expiry < 1 {
		expiry = m.expiry
	}

	record := memoryRecord{
		key:       append([]byte(nil), key...),
		value:     append([]byte{}, value...),
		expiry:    expiry,
		createdAt: time.Now(),
	}

	m.records.Store(string(key), record)

	return nil
}

func (m *memory) Get(key []byte) ([]byte, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	defer func(begin time.Time) {
		m.metrics.readLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), m.labels())
	}(time.Now())

	record, ok := m.records.Load(string(key))
	if !ok {
		return nil, nil
	}

	if record.(memoryRecord).expired(time.Now()) {
		return nil, nil
	}

	return record.(memoryRecord).value, nil
}

func (m *memory) Has(key []byte) (bool, error) {
	v, err := m.Get(key)
	if err != nil {
		return false, err
	}

	return v != nil, nil
}

func (m *memory) RangeIterator(fromKy []byte, toKey []byte) backend.Iterator {
	if err := m.checkOpen(); err != nil {
		return backend.NewErrorIterator(err)
	}

	return backend.NewSliceIterator(backend.RangeOf(m.snapshot(), fromKy, toKey))
}

func (m *memory) Iterator() backend.Iterator {
	if err := m.checkOpen(); err != nil {
		return backend.NewErrorIterator(err)
	}

	return backend.NewSliceIterator(m.snapshot())
}

func (m *memory) Delete(key []byte) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	defer func(begin time.Time) {
		m.metrics.deleteLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), m.labels())
	}(time.Now())

	m.records.Delete(string(key))

	return nil
}

func (m *memory) Destroy() error {
	m.records.Range(func(key, _ interface{}) bool {
		m.records.Delete(key)
		return true
	})
	return nil
}

func (m *memory) SetExpiry(expiry time.Duration) {
	m.expiry = expiry
}

func (m *memory) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.isClosed = true
		m.mu.Unlock()

		close(m.closing)
		<-m.closed
		m.logger.Debug(`backend [` + m.name + `] closed`)
	})

	return nil
}
