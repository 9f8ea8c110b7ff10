// Package badger is a persistent backend on top of dgraph badger. It is the
// only persistent backend with native per key expiry.
package badger

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/tryfix/estream/backend"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

type Config struct {
	Dir string
	// InMemory keeps the database off disk. Dir is ignored.
	InMemory        bool
	Logger          log.Logger
	MetricsReporter metrics.Reporter
}

func NewConfig(dir string) *Config {
	conf := &Config{Dir: dir}
	conf.parse()
	return conf
}

func (c *Config) parse() {
	if c.Dir == `` && !c.InMemory {
		c.Dir = filepath.Join(os.TempDir(), `estream`)
	}

	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}
}

var errClosed = errors.New(`badger backend closed`)

type Badger struct {
	name    string
	dir     string
	db      *badger.DB
	expiry  time.Duration
	logger  log.Logger
	metrics *backend.Metrics
	mu      sync.RWMutex
	closed  bool
}

func Builder(config *Config) backend.Builder {
	config.parse()
	m := backend.NewMetrics(config.MetricsReporter, `badger`)
	return func(name string) (backend.Backend, error) {
		return open(name, config, m)
	}
}

func NewBadgerBackend(name string, config *Config) (*Badger, error) {
	config.parse()
	return open(name, config, backend.NewMetrics(config.MetricsReporter, `badger`))
}

func open(name string, config *Config, m *backend.Metrics) (*Badger, error) {
	var opts badger.Options
	var dir string
	if config.InMemory {
		opts = badger.DefaultOptions(``).WithInMemory(true)
	} else {
		dir = filepath.Join(config.Dir, name)
		opts = badger.DefaultOptions(dir)
	}

	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf(`failed to open badger [%s]: %w`, name, err)
	}

	return &Badger{
		name:    name,
		dir:     dir,
		db:      db,
		logger:  config.Logger.NewLog(log.Prefixed(`badger-backend`)),
		metrics: m,
	}, nil
}

func (b *Badger) Name() string {
	return b.name
}

func (b *Badger) String() string {
	return `badger`
}

func (b *Badger) Persistent() bool {
	return b.dir != ``
}

func (b *Badger) Set(key []byte, value []byte, expiry time.Duration) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errClosed
	}

	defer b.metrics.ObserveUpdate(b.name, time.Now())

	if expiry < 1 {
		expiry = b.expiry
	}

	return b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, value)
		if expiry > 0 {
			entry = entry.WithTTL(expiry)
		}
		return txn.SetEntry(entry)
	})
}

func (b *Badger) Get(key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed
	}

	defer b.metrics.ObserveRead(b.name, time.Now())

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		if value == nil {
			value = []byte{}
		}
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}

	return value, err
}

func (b *Badger) Has(key []byte) (bool, error) {
	v, err := b.Get(key)
	if err != nil {
		return false, err
	}

	return v != nil, nil
}

func (b *Badger) collect(from, to []byte) backend.Iterator {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return backend.NewErrorIterator(errClosed)
	}

	var records []backend.KeyVal
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		if from != nil {
			it.Seek(from)
		} else {
			it.Rewind()
		}

		for ; it.Valid(); it.Next() {
			item := it.Item()
			if to != nil && bytes.Compare(item.Key(), to) >= 0 {
				break
			}

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			records = append(records, backend.KeyVal{Key: item.KeyCopy(nil), Value: val})
		}

		return nil
	})
	if err != nil {
		return backend.NewErrorIterator(err)
	}

	return backend.NewSliceIterator(records)
}

func (b *Badger) RangeIterator(fromKy []byte, toKey []byte) backend.Iterator {
	return b.collect(fromKy, toKey)
}

func (b *Badger) Iterator() backend.Iterator {
	return b.collect(nil, nil)
}

func (b *Badger) Delete(key []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errClosed
	}

	defer b.metrics.ObserveDelete(b.name, time.Now())

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (b *Badger) SetExpiry(expiry time.Duration) {
	b.expiry = expiry
}

func (b *Badger) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	return b.db.Close()
}

func (b *Badger) Destroy() error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if !closed {
		if err := b.db.DropAll(); err != nil {
			return err
		}
	}

	if err := b.Close(); err != nil {
		return err
	}

	if b.dir == `` {
		return nil
	}

	return os.RemoveAll(b.dir)
}
