// Package bolt is a persistent backend on top of bbolt. Each store is a
// single file holding one bucket. Expiry is kept next to the value and
// enforced on read.
package bolt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tryfix/estream/backend"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
	bolt "go.etcd.io/bbolt"
)

var bucket = []byte(`estream`)

var errClosed = errors.New(`bolt backend closed`)

type Config struct {
	Dir             string
	Timeout         time.Duration
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

	if c.Timeout < 1 {
		c.Timeout = time.Second
	}

	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}
}

type Bolt struct {
	name    string
	path    string
	db      *bolt.DB
	expiry  time.Duration
	logger  log.Logger
	metrics *backend.Metrics
	mu      sync.RWMutex
	closed  bool
}

func Builder(config *Config) backend.Builder {
	config.parse()
	m := backend.NewMetrics(config.MetricsReporter, `bolt`)
	return func(name string) (backend.Backend, error) {
		return open(name, config, m)
	}
}

func NewBoltBackend(name string, config *Config) (*Bolt, error) {
	config.parse()
	return open(name, config, backend.NewMetrics(config.MetricsReporter, `bolt`))
}

func open(name string, config *Config, m *backend.Metrics) (*Bolt, error) {
	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, fmt.Errorf(`failed to create %s: %w`, config.Dir, err)
	}

	path := filepath.Join(config.Dir, name+`.db`)
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: config.Timeout})
	if err != nil {
		return nil, fmt.Errorf(`failed to open %s: %w`, path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf(`failed to create bucket in %s: %w`, path, err)
	}

	return &Bolt{
		name:    name,
		path:    path,
		db:      db,
		logger:  config.Logger.NewLog(log.Prefixed(`bolt-backend`)),
		metrics: m,
	}, nil
}

// entries are stored as an 8 byte big endian deadline (unix nano, 0 for
// none) followed by the value
func encode(value []byte, expiry time.Duration) []byte {
	out := make([]byte, 8+len(value))
	if expiry > 0 {
		binary.BigEndian.PutUint64(out, uint64(time.Now().Add(expiry).UnixNano()))
	}
	copy(out[8:], value)
	return out
}

func decode(raw []byte, now time.Time) (value []byte, live bool) {
	if len(raw) < 8 {
		return nil, false
	}

	deadline := binary.BigEndian.Uint64(raw[:8])
	if deadline != 0 && now.UnixNano() >= int64(deadline) {
		return nil, false
	}

	value = make([]byte, len(raw)-8)
	copy(value, raw[8:])
	return value, true
}

func (b *Bolt) Name() string {
	return b.name
}

func (b *Bolt) String() string {
	return `bolt`
}

func (b *Bolt) Persistent() bool {
	return true
}

func (b *Bolt) Set(key []byte, value []byte, expiry time.Duration) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errClosed
	}

	defer b.metrics.ObserveUpdate(b.name, time.Now())

	if expiry < 1 {
		expiry = b.expiry
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, encode(value, expiry))
	})
}

func (b *Bolt) Get(key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed
	}

	defer b.metrics.ObserveRead(b.name, time.Now())

	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucket).Get(key)
		if raw == nil {
			return nil
		}

		v, live := decode(raw, time.Now())
		if live {
			value = v
		}

		return nil
	})

	return value, err
}

func (b *Bolt) Has(key []byte) (bool, error) {
	v, err := b.Get(key)
	if err != nil {
		return false, err
	}

	return v != nil, nil
}

func (b *Bolt) collect(from, to []byte) backend.Iterator {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return backend.NewErrorIterator(errClosed)
	}

	now := time.Now()
	var records []backend.KeyVal
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()

		var k, v []byte
		if from != nil {
			k, v = c.Seek(from)
		} else {
			k, v = c.First()
		}

		for ; k != nil; k, v = c.Next() {
			if to != nil && bytes.Compare(k, to) >= 0 {
				break
			}

			val, live := decode(v, now)
			if !live {
				continue
			}

			key := make([]byte, len(k))
			copy(key, k)
			records = append(records, backend.KeyVal{Key: key, Value: val})
		}

		return nil
	})
	if err != nil {
		return backend.NewErrorIterator(err)
	}

	return backend.NewSliceIterator(records)
}

func (b *Bolt) RangeIterator(fromKy []byte, toKey []byte) backend.Iterator {
	return b.collect(fromKy, toKey)
}

func (b *Bolt) Iterator() backend.Iterator {
	return b.collect(nil, nil)
}

func (b *Bolt) Delete(key []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errClosed
	}

	defer b.metrics.ObserveDelete(b.name, time.Now())

	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
}

func (b *Bolt) SetExpiry(expiry time.Duration) {
	b.expiry = expiry
}

func (b *Bolt) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	return b.db.Close()
}

func (b *Bolt) Destroy() error {
	if err := b.Close(); err != nil {
		return err
	}

	return os.Remove(b.path)
}
