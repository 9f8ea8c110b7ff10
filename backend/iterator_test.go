package backend

import (
	"errors"
	"testing"
	"time"
)

func keysOf(it Iterator) []string {
	var keys []string
	for it.SeekToFirst(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	return keys
}

func TestSliceIterator_Ordered(t *testing.T) {
	it := NewSliceIterator([]KeyVal{
		{Key: []byte(`b`)}, {Key: []byte(`c`)}, {Key: []byte(`a`)},
	})

	got := keysOf(it)
	if len(got) != 3 || got[0] != `a` || got[1] != `b` || got[2] != `c` {
		t.Errorf(`unexpected order %v`, got)
	}

	if it.Valid() || it.Key() != nil || it.Value() != nil {
		t.Error(`exhausted iterator must not be valid`)
	}
}

func TestSliceIterator_SeekAndPrev(t *testing.T) {
	it := NewSliceIterator([]KeyVal{
		{Key: []byte(`a`)}, {Key: []byte(`c`)}, {Key: []byte(`e`)},
	})

	it.Seek([]byte(`b`))
	if string(it.Key()) != `c` {
		t.Errorf(`expected c, got %s`, it.Key())
	}

	it.Prev()
	if string(it.Key()) != `a` {
		t.Errorf(`expected a, got %s`, it.Key())
	}

	it.Prev()
	if it.Valid() {
		t.Error(`iterator moved before first entry`)
	}

	it.SeekToLast()
	if string(it.Key()) != `e` {
		t.Errorf(`expected e, got %s`, it.Key())
	}

	it.Seek([]byte(`z`))
	if it.Valid() {
		t.Error(`seek past the end must not be valid`)
	}
}

func TestErrorIterator(t *testing.T) {
	err := errors.New(`boom`)
	it := NewErrorIterator(err)
	it.SeekToFirst()
	if it.Valid() {
		t.Error(`error iterator must never be valid`)
	}

	if it.Error() != err {
		t.Errorf(`expected %v, got %v`, err, it.Error())
	}
}

func TestRangeOf(t *testing.T) {
	records := []KeyVal{{Key: []byte(`a`)}, {Key: []byte(`b`)}, {Key: []byte(`c`)}, {Key: []byte(`d`)}}

	got := keysOf(NewSliceIterator(RangeOf(records, []byte(`b`), []byte(`d`))))
	if len(got) != 2 || got[0] != `b` || got[1] != `c` {
		t.Errorf(`unexpected range %v`, got)
	}

	if n := len(RangeOf(records, nil, []byte(`c`))); n != 2 {
		t.Errorf(`expected 2 records, got %d`, n)
	}

	if n := len(RangeOf(records, []byte(`c`), nil)); n != 2 {
		t.Errorf(`expected 2 records, got %d`, n)
	}
}

func TestMockBackend(t *testing.T) {
	b := NewMockBackend(`mock`, 0)
	if err := b.Set([]byte(`k`), []byte(`v`), 0); err != nil {
		t.Fatal(err)
	}

	if err := b.Set([]byte(`gone`), []byte(`v`), 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond)

	if has, _ := b.Has([]byte(`gone`)); has {
		t.Error(`expired record still present`)
	}

	if got := keysOf(b.Iterator()); len(got) != 1 || got[0] != `k` {
		t.Errorf(`unexpected keys %v`, got)
	}

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	if err := b.Set([]byte(`k`), []byte(`v`), 0); err == nil {
		t.Error(`expected error on closed backend`)
	}
}
