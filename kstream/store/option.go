package store

import (
	"time"

	"github.com/tryfix/estream/backend"
	"github.com/tryfix/estream/backend/memory"
	"github.com/tryfix/log"
)

type storeOptions struct {
	backend        backend.Backend
	backendBuilder backend.Builder
	expiry         time.Duration
	lockStripes    int
	logger         log.Logger
}

type Options func(config *storeOptions)

func (c *storeOptions) apply(options ...Options) {
	c.logger = log.NewNoopLogger()
	c.lockStripes = DefaultLockStripes
	for _, opt := range options {
		opt(c)
	}

	if c.backendBuilder == nil {
		c.backendBuilder = memory.Builder(memory.NewConfig())
	}
}

// Expire sets a default expiry for every key written without one.
func Expire(d time.Duration) Options {
	return func(options *storeOptions) {
		options.expiry = d
	}
}

// LockStripes sets the number of mutexes Update spreads keys over.
func LockStripes(n int) Options {
	return func(options *storeOptions) {
		options.lockStripes = n
	}
}

func WithBackend(backend backend.Backend) Options {
	return func(config *storeOptions) {
		config.backend = backend
	}
}

func WithBackendBuilder(builder backend.Builder) Options {
	return func(config *storeOptions) {
		config.backendBuilder = builder
	}
}

func WithLogger(logger log.Logger) Options {
	return func(config *storeOptions) {
		config.logger = logger
	}
}
