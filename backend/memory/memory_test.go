/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package memory

import (
	"fmt"
	"testing"
	"time"

	"github.com/tryfix/estream/backend/backendtest"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

func TestMemory_Set_Expiry(t *testing.T) {
	backend := NewMemoryBackend(log.NewNoopLogger(), metrics.NoopReporter())
	defer backend.Close()

	if err := backend.Set([]byte(`100`), []byte(`100`), 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)

	r, err := backend.Get([]byte(`100`))
	if err != nil {
		t.Error(err)
	}

	if r != nil {
		t.Error(`record exist`)
	}
}

func TestMemory_Get(t *testing.T) {
	backend := NewMemoryBackend(log.NewNoopLogger(), metrics.NoopReporter())
	defer backend.Close()

	for i := 1; i <= 1000; i++ {
		if err := backend.Set([]byte(fmt.Sprint(i)), []byte(`100`), 0); err != nil {
			t.Fatal(err)
		}
	}

	for i := 1; i <= 1000; i++ {
		val, err := backend.Get([]byte(fmt.Sprint(i)))
		if err != nil {
			t.Error(err)
		}

		if string(val) != `100` {
			t.Fail()
		}
	}
}

func TestMemory_Has(t *testing.T) {
	backend := NewMemoryBackend(log.NewNoopLogger(), metrics.NoopReporter())
	defer backend.Close()

	if err := backend.Set([]byte(`a`), []byte(`1`), 0); err != nil {
		t.Fatal(err)
	}

	ok, err := backend.Has([]byte(`a`))
	if err != nil || !ok {
		t.Errorf(`expected key a to exist, got %v %v`, ok, err)
	}

	ok, err = backend.Has([]byte(`b`))
	if err != nil || ok {
		t.Errorf(`expected key b to be absent, got %v %v`, ok, err)
	}
}

func TestMemory_Delete(t *testing.T) {
	backend := NewMemoryBackend(log.NewNoopLogger(), metrics.NoopReporter())
	defer backend.Close()

	if err := backend.Set([]byte(`100`), []byte(`100`), 0); err != nil {
		t.Fatal(err)
	}

	if err := backend.Delete([]byte(`100`)); err != nil {
		t.Fatal(err)
	}

	val, err := backend.Get([]byte(`100`))
	if err != nil {
		t.Error(err)
	}

	if val != nil {
		t.Fail()
	}
}

func TestMemory_Iterator_Snapshot(t *testing.T) {
	backend := NewMemoryBackend(log.NewNoopLogger(), metrics.NoopReporter())
	defer backend.Close()

	for _, k := range []string{`c`, `a`, `b`} {
		if err := backend.Set([]byte(k), []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}

	it := backend.Iterator()
	defer it.Close()

	// writes after the snapshot are not visible
	if err := backend.Set([]byte(`d`), []byte(`d`), 0); err != nil {
		t.Fatal(err)
	}

	var keys []string
	for it.SeekToFirst(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}

	if fmt.Sprint(keys) != `[a b c]` {
		t.Errorf(`unexpected keys %v`, keys)
	}
}

func TestMemory_RangeIterator(t *testing.T) {
	backend := NewMemoryBackend(log.NewNoopLogger(), metrics.NoopReporter())
	defer backend.Close()

	for i := 1; i <= 9; i++ {
		if err := backend.Set([]byte(fmt.Sprint(i)), []byte(`v`), 0); err != nil {
			t.Fatal(err)
		}
	}

	it := backend.RangeIterator([]byte(`3`), []byte(`6`))
	count := 0
	for ; it.Valid(); it.Next() {
		count++
	}

	if count != 3 {
		t.Errorf(`expected 3 records in range, got %d`, count)
	}
}

func TestMemory_Closed(t *testing.T) {
	backend := NewMemoryBackend(log.NewNoopLogger(), metrics.NoopReporter())
	if err := backend.Close(); err != nil {
		t.Fatal(err)
	}

	if err := backend.Set([]byte(`a`), []byte(`1`), 0); err != ErrClosed {
		t.Errorf(`expected ErrClosed, got %v`, err)
	}

	// second close is a no-op
	if err := backend.Close(); err != nil {
		t.Error(err)
	}
}

func TestPartitionMemory(t *testing.T) {
	pm := NewPartitionMemoryBackend(`test`, 4, log.NewNoopLogger(), metrics.NoopReporter())
	defer pm.Close()

	for i := 0; i < 100; i++ {
		if err := pm.Set([]byte(fmt.Sprint(i)), []byte(fmt.Sprint(i)), 0); err != nil {
			t.Fatal(err)
		}
	}

	v, err := pm.Get([]byte(`42`))
	if err != nil || string(v) != `42` {
		t.Errorf(`unexpected value %s %v`, v, err)
	}

	total := 0
	for _, it := range pm.Partitions() {
		for ; it.Valid(); it.Next() {
			total++
		}
	}

	if total != 100 {
		t.Errorf(`expected 100 records over partitions, got %d`, total)
	}

	it := pm.Iterator()
	count := 0
	for ; it.Valid(); it.Next() {
		count++
	}
	if count != 100 {
		t.Errorf(`expected 100 records, got %d`, count)
	}
}

func TestMemory_Contract(t *testing.T) {
	backendtest.Run(t, Builder(NewConfig()))
}

func TestPartitionMemory_Contract(t *testing.T) {
	conf := NewConfig()
	conf.Partitions = 4
	backendtest.Run(t, Builder(conf))
}
