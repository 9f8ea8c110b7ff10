/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package backend

import (
	"time"
)

// Builder opens (or creates) a backend for the given store name. Persistent
// builders return the same data for the same name across process restarts.
type Builder func(name string) (Backend, error)

// Backend is a byte level key value store. Get returns a nil slice and a nil
// error when the key does not exist, and a non nil empty slice for a key
// holding an empty value. Iterators are snapshots taken at call time.
type Backend interface {
	Name() string
	Set(key []byte, value []byte, expiry time.Duration) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	RangeIterator(fromKy []byte, toKey []byte) Iterator
	Iterator() Iterator
	Delete(key []byte) error
	SetExpiry(time time.Duration)
	String() string
	Persistent() bool
	Close() error
	Destroy() error
}
