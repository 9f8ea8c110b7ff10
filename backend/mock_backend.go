package backend

import (
	"errors"
	"sync"
	"time"
)

var errMockClosed = errors.New(`mock backend closed`)

type MockBackend struct {
	name   string
	data   map[string][]byte
	mu     *sync.Mutex
	expiry time.Duration
	closed bool
}

func NewMockBackend(name string, expiry time.Duration) Backend {
	b := &MockBackend{
		name: name,
		data: make(map[string][]byte),
		mu:   new(sync.Mutex),
	}

	if expiry > 0 {
		b.expiry = expiry
	}

	return b
}

func (b *MockBackend) Name() string {
	return b.name
}

func (b *MockBackend) Persistent() bool {
	return false
}

func (b *MockBackend) Set(key []byte, value []byte, expiry time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errMockClosed
	}

	if expiry < 1 {
		expiry = b.expiry
	}

	if expiry > 0 {
		k := append([]byte(nil), key...)
		time.AfterFunc(expiry, func() {
			_ = b.Delete(k)
		})
	}

	b.data[string(key)] = append([]byte{}, value...)
	return nil
}

func (b *MockBackend) Get(key []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errMockClosed
	}

	v, ok := b.data[string(key)]
	if !ok {
		return nil, nil
	}

	return v, nil
}

func (b *MockBackend) Has(key []byte) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, errMockClosed
	}

	_, ok := b.data[string(key)]
	return ok, nil
}

func (b *MockBackend) snapshot() []KeyVal {
	b.mu.Lock()
	defer b.mu.Unlock()

	records := make([]KeyVal, 0, len(b.data))
	for k, v := range b.data {
		records = append(records, KeyVal{Key: []byte(k), Value: v})
	}

	return records
}

func (b *MockBackend) RangeIterator(fromKy []byte, toKey []byte) Iterator {
	return NewSliceIterator(RangeOf(b.snapshot(), fromKy, toKey))
}

func (b *MockBackend) Iterator() Iterator {
	return NewSliceIterator(b.snapshot())
}

func (b *MockBackend) Delete(key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errMockClosed
	}

	delete(b.data, string(key))
	return nil
}

func (b *MockBackend) SetExpiry(time time.Duration) {
	b.expiry = time
}

func (b *MockBackend) String() string {
	return b.name
}

func (b *MockBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *MockBackend) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make(map[string][]byte)
	return nil
}
