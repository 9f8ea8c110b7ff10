package kstream

import (
	"github.com/tryfix/estream/backend"
	"github.com/tryfix/estream/backend/memory"
	"github.com/tryfix/estream/kstream/encoding"
	"github.com/tryfix/estream/kstream/store"
)

type DefaultBuilders struct {
	Store   store.Builder
	Backend backend.Builder
	configs *StreamBuilderConfig
}

func (dbs *DefaultBuilders) build(options ...BuilderOption) {
	// apply options
	for _, option := range options {
		option(dbs)
	}

	if dbs.Backend != nil {
		dbs.configs.Store.BackendBuilder = dbs.Backend
	}

	// default backend builder will be memory
	if dbs.configs.Store.BackendBuilder == nil {
		backendBuilderConfig := memory.NewConfig()
		backendBuilderConfig.Logger = dbs.configs.Logger
		backendBuilderConfig.MetricsReporter = dbs.configs.MetricsReporter
		dbs.configs.Store.BackendBuilder = memory.Builder(backendBuilderConfig)
	}

	dbs.Backend = dbs.configs.Store.BackendBuilder

	if dbs.Store == nil {
		dbs.Store = func(name string, keyEncoder encoding.Builder, valEncoder encoding.Builder, options ...store.Options) (store.Store, error) {
			return store.NewStore(name, keyEncoder(), valEncoder(), append([]store.Options{
				store.WithBackendBuilder(dbs.configs.Store.BackendBuilder),
				store.WithLogger(dbs.configs.Logger),
				store.LockStripes(dbs.configs.Store.LockStripes),
			}, options...)...)
		}
	}
}
