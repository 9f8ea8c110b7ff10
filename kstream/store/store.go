package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/backend"
	"github.com/tryfix/estream/kstream/encoding"
	"github.com/tryfix/log"
)

type Builder func(name string, keyEncoder encoding.Builder, valEncoder encoding.Builder, options ...Options) (Store, error)

// UpdateFunc receives the current value (nil when absent) and returns the
// value to store. Returning nil deletes the key.
type UpdateFunc func(current interface{}) (interface{}, error)

type Store interface {
	Name() string
	Backend() backend.Backend
	KeyEncoder() encoding.Encoder
	ValEncoder() encoding.Encoder
	Set(ctx context.Context, key interface{}, value interface{}, expiry time.Duration) error
	Get(ctx context.Context, key interface{}) (value interface{}, err error)
	Has(ctx context.Context, key interface{}) (bool, error)
	GetAll(ctx context.Context) (Iterator, error)
	Delete(ctx context.Context, key interface{}) error
	Update(ctx context.Context, key interface{}, fn UpdateFunc) (interface{}, error)
	Close() error
	String() string
}

type store struct {
	backend    backend.Backend
	name       string
	logger     log.Logger
	keyEncoder encoding.Encoder
	valEncoder encoding.Encoder
	lock       *KeyLock
	mu         sync.RWMutex
	closed     bool
}

func DefaultBuilder(name string, keyEncoder encoding.Builder, valEncoder encoding.Builder, options ...Options) (Store, error) {
	return NewStore(name, keyEncoder(), valEncoder(), options...)
}

func NewStore(name string, keyEncoder encoding.Encoder, valEncoder encoding.Encoder, options ...Options) (Store, error) {
	opts := new(storeOptions)
	opts.apply(options...)

	if opts.backend == nil {
		bk, err := opts.backendBuilder(name)
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`store [%s] backend builder error`, name))
		}
		opts.backend = bk
	}

	s := &store{
		name:       name,
		keyEncoder: keyEncoder,
		logger:     opts.logger,
		valEncoder: valEncoder,
		backend:    opts.backend,
		lock:       NewKeyLock(opts.lockStripes),
	}

	if opts.expiry > 0 {
		s.backend.SetExpiry(opts.expiry)
	}

	opts.logger.Info(fmt.Sprintf(`store [%s] inited on backend [%s]`, name, s.backend))

	return s, nil
}

// MustGet is Get with ErrKeyNotFound for absent keys.
func MustGet(ctx context.Context, s Store, key interface{}) (interface{}, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if v == nil {
		return nil, errors.Errorf(`%w: [%v] in store [%s]`, ErrKeyNotFound, key, s.Name())
	}

	return v, nil
}

func unavailable(name, op string, err error) error {
	return errors.Errorf(`%w: store [%s] %s: %v`, ErrStoreUnavailable, name, op, err)
}

func (s *store) Name() string {
	return s.name
}

func (s *store) String() string {
	return fmt.Sprintf(`Store: %s, Backend: %s`, s.name, s.backend)
}

func (s *store) KeyEncoder() encoding.Encoder {
	return s.keyEncoder
}

func (s *store) ValEncoder() encoding.Encoder {
	return s.valEncoder
}

func (s *store) Backend() backend.Backend {
	return s.backend
}

func (s *store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.Errorf(`%w: store [%s] closed`, ErrStoreUnavailable, s.name)
	}
	return nil
}

func (s *store) encodeKey(key interface{}) ([]byte, error) {
	k, err := s.keyEncoder.Encode(key)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`store [%s] key encode error`, s.name))
	}
	return k, nil
}

func (s *store) Set(ctx context.Context, key interface{}, value interface{}, expiry time.Duration) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	k, err := s.encodeKey(key)
	if err != nil {
		return err
	}

	return s.set(k, value, expiry)
}

func (s *store) set(k []byte, value interface{}, expiry time.Duration) error {
	// nil value removes the key (tombstone)
	if value == nil {
		if err := s.backend.Delete(k); err != nil {
			return unavailable(s.name, `delete`, err)
		}
		return nil
	}

	v, err := s.valEncoder.Encode(value)
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`store [%s] value encode error`, s.name))
	}

	if err := s.backend.Set(k, v, expiry); err != nil {
		return unavailable(s.name, `set`, err)
	}

	return nil
}

func (s *store) Get(ctx context.Context, key interface{}) (value interface{}, err error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	k, err := s.encodeKey(key)
	if err != nil {
		return nil, err
	}

	return s.get(k)
}

func (s *store) get(k []byte) (interface{}, error) {
	byt, err := s.backend.Get(k)
	if err != nil {
		return nil, unavailable(s.name, `get`, err)
	}

	if byt == nil {
		return nil, nil
	}

	v, err := s.valEncoder.Decode(byt)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`store [%s] value decode error`, s.name))
	}

	return v, nil
}

func (s *store) Has(ctx context.Context, key interface{}) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	k, err := s.encodeKey(key)
	if err != nil {
		return false, err
	}

	ok, err := s.backend.Has(k)
	if err != nil {
		return false, unavailable(s.name, `has`, err)
	}

	return ok, nil
}

func (s *store) GetAll(ctx context.Context) (Iterator, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	i := s.backend.Iterator()
	if err := i.Error(); err != nil {
		return nil, unavailable(s.name, `iterate`, err)
	}
	i.SeekToFirst()

	return &iterator{
		iterator:   i,
		keyEncoder: s.keyEncoder,
		valEncoder: s.valEncoder,
	}, nil
}

func (s *store) Delete(ctx context.Context, key interface{}) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	k, err := s.encodeKey(key)
	if err != nil {
		return err
	}

	if err := s.backend.Delete(k); err != nil {
		return unavailable(s.name, `delete`, err)
	}

	return nil
}

func (s *store) Update(ctx context.Context, key interface{}, fn UpdateFunc) (interface{}, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	k, err := s.encodeKey(key)
	if err != nil {
		return nil, err
	}

	s.lock.Lock(k)
	defer s.lock.Unlock(k)

	current, err := s.get(k)
	if err != nil {
		return nil, err
	}

	updated, err := fn(current)
	if err != nil {
		return nil, err
	}

	if err := s.set(k, updated, 0); err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.logger.Debug(fmt.Sprintf(`store [%s] closing`, s.name))
	return s.backend.Close()
}
