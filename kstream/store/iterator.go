package store

import (
	"github.com/tryfix/estream/backend"
	"github.com/tryfix/estream/kstream/encoding"
)

// Iterator walks a snapshot of a store decoding keys and values on access.
type Iterator interface {
	SeekToFirst()
	SeekToLast()
	Seek(key interface{}) error
	Next()
	Prev()
	Close()
	Key() (interface{}, error)
	Value() (interface{}, error)
	Valid() bool
	Error() error
}

type iterator struct {
	iterator   backend.Iterator
	keyEncoder encoding.Encoder
	valEncoder encoding.Encoder
}

func (i *iterator) SeekToFirst() {
	i.iterator.SeekToFirst()
}

func (i *iterator) SeekToLast() {
	i.iterator.SeekToLast()
}

func (i *iterator) Seek(key interface{}) error {
	k, err := i.keyEncoder.Encode(key)
	if err != nil {
		return err
	}

	i.iterator.Seek(k)
	return nil
}

func (i *iterator) Next() {
	i.iterator.Next()
}

func (i *iterator) Prev() {
	i.iterator.Prev()
}

func (i *iterator) Close() {
	i.iterator.Close()
}

func (i *iterator) Key() (interface{}, error) {
	return i.keyEncoder.Decode(i.iterator.Key())
}

func (i *iterator) Value() (interface{}, error) {
	return i.valEncoder.Decode(i.iterator.Value())
}

func (i *iterator) Valid() bool {
	return i.iterator.Valid()
}

func (i *iterator) Error() error {
	return i.iterator.Error()
}
