package store

import (
	"context"
	"sync"
	"time"

	"github.com/tryfix/estream/backend"
	"github.com/tryfix/estream/kstream/encoding"
)

// MockStore is a single lock store over any backend, used in tests. Errors
// are returned as the backend and encoders produce them.
type MockStore struct {
	name     string
	backend  backend.Backend
	kEncoder encoding.Encoder
	vEncoder encoding.Encoder
	mu       sync.Mutex
}

type MockRecord struct {
	Key    interface{}
	Value  interface{}
	Expiry time.Duration
}

func NewMockStore(name string, kEncode encoding.Encoder, vEncoder encoding.Encoder, backend backend.Backend, records ...MockRecord) Store {
	store := &MockStore{
		name:     name,
		kEncoder: kEncode,
		vEncoder: vEncoder,
		backend:  backend,
	}

	for _, record := range records {
		if err := store.Set(context.Background(), record.Key, record.Value, record.Expiry); err != nil {
			panic(err)
		}
	}

	return store
}

func (s *MockStore) Name() string {
	return s.name
}

func (s *MockStore) Backend() backend.Backend {
	return s.backend
}

func (s *MockStore) KeyEncoder() encoding.Encoder {
	return s.kEncoder
}

func (s *MockStore) ValEncoder() encoding.Encoder {
	return s.vEncoder
}

func (s *MockStore) Set(ctx context.Context, key interface{}, value interface{}, expiry time.Duration) error {
	k, err := s.kEncoder.Encode(key)
	if err != nil {
		return err
	}

	if value == nil {
		return s.backend.Delete(k)
	}

	v, err := s.vEncoder.Encode(value)
	if err != nil {
		return err
	}
	return s.backend.Set(k, v, expiry)
}

func (s *MockStore) Get(ctx context.Context, key interface{}) (value interface{}, err error) {
	k, err := s.kEncoder.Encode(key)
	if err != nil {
		return nil, err
	}

	v, err := s.backend.Get(k)
	if err != nil {
		return nil, err
	}

	if v == nil {
		return nil, nil
	}

	return s.vEncoder.Decode(v)
}

func (s *MockStore) Has(ctx context.Context, key interface{}) (bool, error) {
	k, err := s.kEncoder.Encode(key)
	if err != nil {
		return false, err
	}

	return s.backend.Has(k)
}

func (s *MockStore) GetAll(ctx context.Context) (Iterator, error) {
	i := s.backend.Iterator()
	i.SeekToFirst()

	return &iterator{iterator: i, keyEncoder: s.kEncoder, valEncoder: s.vEncoder}, nil
}

func (s *MockStore) Delete(ctx context.Context, key interface{}) error {
	k, err := s.kEncoder.Encode(key)
	if err != nil {
		return err
	}

	return s.backend.Delete(k)
}

func (s *MockStore) Update(ctx context.Context, key interface{}, fn UpdateFunc) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	updated, err := fn(current)
	if err != nil {
		return nil, err
	}

	return updated, s.Set(ctx, key, updated, 0)
}

func (s *MockStore) Close() error {
	return s.backend.Close()
}

func (s *MockStore) String() string {
	return s.name
}
