package store

import "errors"

var (
	// ErrKeyNotFound is returned by MustGet and the HTTP endpoints for absent keys.
	ErrKeyNotFound = errors.New(`key not found`)
	// ErrStoreUnavailable wraps every backend failure and any call on a closed store.
	ErrStoreUnavailable = errors.New(`store unavailable`)
	ErrStoreNotFound    = errors.New(`store not found`)
)
