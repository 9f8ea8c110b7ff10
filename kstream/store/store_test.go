package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/tryfix/estream/backend"
	"github.com/tryfix/estream/kstream/encoding"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(`test`, encoding.StringEncoder{}, encoding.IntEncoder{}, WithBackend(backend.NewMockBackend(`test`, 0)))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStore_SetGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, `a`, 1, 0); err != nil {
		t.Fatal(err)
	}

	v, err := s.Get(ctx, `a`)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Errorf(`expected 1, got %v`, v)
	}

	v, err = s.Get(ctx, `missing`)
	if err != nil || v != nil {
		t.Errorf(`expected nil, nil for absent key, got %v, %v`, v, err)
	}

	// nil value is a tombstone
	if err := s.Set(ctx, `a`, nil, 0); err != nil {
		t.Fatal(err)
	}

	if ok, _ := s.Has(ctx, `a`); ok {
		t.Error(`key still present after nil set`)
	}
}

func TestStore_Encoding_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, 1, 1, 0); err == nil {
		t.Error(`expected key encode error`)
	}

	if err := s.Set(ctx, `a`, `not-int`, 0); err == nil {
		t.Error(`expected value encode error`)
	}
}

func TestStore_HasDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, `a`, 1, 0); err != nil {
		t.Fatal(err)
	}

	ok, err := s.Has(ctx, `a`)
	if err != nil || !ok {
		t.Errorf(`expected key to exist, got %v, %v`, ok, err)
	}

	if err := s.Delete(ctx, `a`); err != nil {
		t.Fatal(err)
	}

	ok, err = s.Has(ctx, `a`)
	if err != nil || ok {
		t.Errorf(`expected key to be removed, got %v, %v`, ok, err)
	}
}

func TestStore_GetAll_Snapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, k := range []string{`c`, `a`, `b`} {
		if err := s.Set(ctx, k, i, 0); err != nil {
			t.Fatal(err)
		}
	}

	it, err := s.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()

	// writes after the snapshot are not visible
	if err := s.Set(ctx, `d`, 3, 0); err != nil {
		t.Fatal(err)
	}

	got := map[interface{}]interface{}{}
	for ; it.Valid(); it.Next() {
		k, err := it.Key()
		if err != nil {
			t.Fatal(err)
		}
		v, err := it.Value()
		if err != nil {
			t.Fatal(err)
		}
		got[k] = v
	}

	want := map[interface{}]interface{}{`c`: 0, `a`: 1, `b`: 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf(`got %v, want %v`, got, want)
	}
}

func TestStore_Update_SameKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	incr := func(current interface{}) (interface{}, error) {
		if current == nil {
			return 1, nil
		}
		return current.(int) + 1, nil
	}

	wg := sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Update(ctx, `counter`, incr); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	v, err := s.Get(ctx, `counter`)
	if err != nil {
		t.Fatal(err)
	}

	if v != 100 {
		t.Errorf(`expected 100, got %v`, v)
	}
}

func TestStore_Update_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, `a`, 5, 0); err != nil {
		t.Fatal(err)
	}

	boom := errors.New(`boom`)
	_, err := s.Update(ctx, `a`, func(current interface{}) (interface{}, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf(`expected %v, got %v`, boom, err)
	}

	v, _ := s.Get(ctx, `a`)
	if v != 5 {
		t.Errorf(`failed update changed the value to %v`, v)
	}

	updated, err := s.Update(ctx, `a`, func(current interface{}) (interface{}, error) {
		return nil, nil
	})
	if err != nil || updated != nil {
		t.Errorf(`unexpected %v, %v`, updated, err)
	}

	if ok, _ := s.Has(ctx, `a`); ok {
		t.Error(`nil update must delete the key`)
	}
}

func TestStore_Closed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if err := s.Close(); err != nil {
		t.Errorf(`second close returned %v`, err)
	}

	if err := s.Set(ctx, `a`, 1, 0); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf(`expected ErrStoreUnavailable, got %v`, err)
	}

	if _, err := s.Get(ctx, `a`); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf(`expected ErrStoreUnavailable, got %v`, err)
	}

	if _, err := s.GetAll(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf(`expected ErrStoreUnavailable, got %v`, err)
	}
}

func TestStore_BackendFailure(t *testing.T) {
	bk := backend.NewMockBackend(`failing`, 0)
	s, err := NewStore(`failing`, encoding.StringEncoder{}, encoding.IntEncoder{}, WithBackend(bk))
	if err != nil {
		t.Fatal(err)
	}

	// closing the backend under the store makes every call fail
	if err := bk.Close(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := s.Set(ctx, `a`, 1, 0); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf(`expected ErrStoreUnavailable, got %v`, err)
	}

	if _, err := s.Has(ctx, `a`); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf(`expected ErrStoreUnavailable, got %v`, err)
	}

	if _, err := s.Update(ctx, `a`, func(interface{}) (interface{}, error) { return 1, nil }); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf(`expected ErrStoreUnavailable, got %v`, err)
	}
}

func TestMustGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := MustGet(ctx, s, `missing`); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf(`expected ErrKeyNotFound, got %v`, err)
	}

	if err := s.Set(ctx, `a`, 1, 0); err != nil {
		t.Fatal(err)
	}

	v, err := MustGet(ctx, s, `a`)
	if err != nil || v != 1 {
		t.Errorf(`unexpected %v, %v`, v, err)
	}
}

func TestKeyLock_Stripes(t *testing.T) {
	l := NewKeyLock(0)
	if len(l.stripes) != DefaultLockStripes {
		t.Errorf(`expected %d stripes, got %d`, DefaultLockStripes, len(l.stripes))
	}

	// same key always maps to the same stripe
	for i := 0; i < 10; i++ {
		k := []byte(fmt.Sprint(i))
		if l.stripe(k) != l.stripe(append([]byte(nil), k...)) {
			t.Errorf(`key %s mapped to different stripes`, k)
		}
	}
}
