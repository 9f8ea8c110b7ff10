// Package pebble is a persistent backend on top of the cockroachdb pebble
// LSM tree. Every store gets its own database directory.
package pebble

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/tryfix/estream/backend"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

type Config struct {
	Dir             string
	Sync            bool
	Logger          log.Logger
	MetricsReporter metrics.Reporter
}

func NewConfig(dir string) *Config {
	conf := &Config{Dir: dir}
	conf.parse()
	return conf
}

func (c *Config) parse() {
	if c.Dir == `` {
		c.Dir = filepath.Join(os.TempDir(), `estream`)
	}

	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}
}

type Pebble struct {
	name    string
	dir     string
	db      *pebble.DB
	opts    *pebble.WriteOptions
	logger  log.Logger
	metrics *backend.Metrics
	mu      sync.RWMutex
	closed  bool
}

func Builder(config *Config) backend.Builder {
	config.parse()
	m := backend.NewMetrics(config.MetricsReporter, `pebble`)
	return func(name string) (backend.Backend, error) {
		return open(name, config, m)
	}
}

func NewPebbleBackend(name string, config *Config) (*Pebble, error) {
	config.parse()
	return open(name, config, backend.NewMetrics(config.MetricsReporter, `pebble`))
}

func open(name string, config *Config, m *backend.Metrics) (*Pebble, error) {
	dir := filepath.Join(config.Dir, name)
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf(`failed to open %s: %w`, dir, err)
	}

	return &Pebble{
		name:    name,
		dir:     dir,
		db:      db,
		opts:    &pebble.WriteOptions{Sync: config.Sync},
		logger:  config.Logger.NewLog(log.Prefixed(`pebble-backend`)),
		metrics: m,
	}, nil
}

var errClosed = errors.New(`pebble backend closed`)

func (p *Pebble) Name() string {
	return p.name
}

func (p *Pebble) String() string {
	return `pebble`
}

func (p *Pebble) Persistent() bool {
	return true
}

func (p *Pebble) Set(key []byte, value []byte, expiry time.Duration) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errClosed
	}

	defer p.metrics.ObserveUpdate(p.name, time.Now())

	if expiry > 0 {
		p.logger.Debug(fmt.Sprintf(`expiry not supported, key written without expiry on [%s]`, p.name))
	}

	return p.db.Set(key, value, p.opts)
}

func (p *Pebble) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, errClosed
	}

	defer p.metrics.ObserveRead(p.name, time.Now())

	v, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()

	res := make([]byte, len(v))
	copy(res, v)

	return res, nil
}

func (p *Pebble) Has(key []byte) (bool, error) {
	v, err := p.Get(key)
	if err != nil {
		return false, err
	}

	return v != nil, nil
}

func (p *Pebble) RangeIterator(fromKy []byte, toKey []byte) backend.Iterator {
	return p.iterator(&pebble.IterOptions{LowerBound: fromKy, UpperBound: toKey})
}

func (p *Pebble) Iterator() backend.Iterator {
	return p.iterator(nil)
}

func (p *Pebble) iterator(opts *pebble.IterOptions) backend.Iterator {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return backend.NewErrorIterator(errClosed)
	}

	it := &iterator{iter: p.db.NewIter(opts)}
	it.SeekToFirst()
	return it
}

func (p *Pebble) Delete(key []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errClosed
	}

	defer p.metrics.ObserveDelete(p.name, time.Now())

	return p.db.Delete(key, p.opts)
}

func (p *Pebble) SetExpiry(time.Duration) {}

func (p *Pebble) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.db.Flush(); err != nil {
		p.logger.Warn(fmt.Sprintf(`flush failed on [%s]: %s`, p.name, err))
	}

	return p.db.Close()
}

func (p *Pebble) Destroy() error {
	if err := p.Close(); err != nil {
		return err
	}

	return os.RemoveAll(p.dir)
}

// iterator adapts a pebble iterator. Pebble iterators read from an implicit
// snapshot taken when they are created.
type iterator struct {
	iter  *pebble.Iterator
	valid bool
}

func (i *iterator) SeekToFirst() {
	i.valid = i.iter.First()
}

func (i *iterator) SeekToLast() {
	i.valid = i.iter.Last()
}

func (i *iterator) Seek(key []byte) {
	i.valid = i.iter.SeekGE(key)
}

func (i *iterator) Next() {
	i.valid = i.iter.Next()
}

func (i *iterator) Prev() {
	i.valid = i.iter.Prev()
}

func (i *iterator) Close() {
	_ = i.iter.Close()
}

func (i *iterator) Key() []byte {
	return i.iter.Key()
}

func (i *iterator) Value() []byte {
	return i.iter.Value()
}

func (i *iterator) Valid() bool {
	return i.valid
}

func (i *iterator) Error() error {
	return i.iter.Error()
}
