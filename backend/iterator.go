package backend

import (
	"bytes"
	"sort"
)

type Iterator interface {
	SeekToFirst()
	SeekToLast()
	Seek(key []byte)
	Next()
	Prev()
	Close()
	Key() []byte
	Value() []byte
	Valid() bool
	Error() error
}

// KeyVal is a single backend entry captured by a snapshot iterator.
type KeyVal struct {
	Key   []byte
	Value []byte
}

// SliceIterator iterates over a materialised, key ordered snapshot. Backends
// without a native snapshot iterator (or whose iterators are bound to a
// transaction) copy their entries into one.
type SliceIterator struct {
	records []KeyVal
	current int
	err     error
}

// NewSliceIterator sorts records by key and positions the iterator at the
// first entry.
func NewSliceIterator(records []KeyVal) *SliceIterator {
	sort.Slice(records, func(i, j int) bool {
		return bytes.Compare(records[i].Key, records[j].Key) < 0
	})

	return &SliceIterator{records: records}
}

// NewErrorIterator returns an iterator which is never valid and reports err.
func NewErrorIterator(err error) *SliceIterator {
	return &SliceIterator{err: err, current: -1}
}

// RangeOf filters records to the half open key range [from, to). A nil bound
// is unbounded.
func RangeOf(records []KeyVal, from, to []byte) []KeyVal {
	var ranged []KeyVal
	for _, r := range records {
		if from != nil && bytes.Compare(r.Key, from) < 0 {
			continue
		}
		if to != nil && bytes.Compare(r.Key, to) >= 0 {
			continue
		}
		ranged = append(ranged, r)
	}

	return ranged
}

func (i *SliceIterator) SeekToFirst() {
	i.current = 0
}

func (i *SliceIterator) SeekToLast() {
	i.current = len(i.records) - 1
}

func (i *SliceIterator) Seek(key []byte) {
	i.current = sort.Search(len(i.records), func(n int) bool {
		return bytes.Compare(i.records[n].Key, key) >= 0
	})
}

func (i *SliceIterator) Next() {
	i.current++
}

func (i *SliceIterator) Prev() {
	i.current--
}

func (i *SliceIterator) Close() {
	i.records = nil
}

func (i *SliceIterator) Key() []byte {
	if !i.Valid() {
		return nil
	}
	return i.records[i.current].Key
}

func (i *SliceIterator) Value() []byte {
	if !i.Valid() {
		return nil
	}
	return i.records[i.current].Value
}

func (i *SliceIterator) Valid() bool {
	return i.err == nil && i.current >= 0 && i.current < len(i.records)
}

func (i *SliceIterator) Error() error {
	return i.err
}
