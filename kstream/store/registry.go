package store

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/tryfix/errors"
	"github.com/tryfix/estream/backend"
	"github.com/tryfix/estream/kstream/encoding"
	"github.com/tryfix/log"
	"go.uber.org/multierr"
)

type Registry interface {
	Register(store Store) error
	New(name string, keyEncoder, valEncoder encoding.Builder, options ...Options) (Store, error)
	Store(name string) (Store, error)
	Stores() []Store
	List() []string
	// Http returns the query server, nil unless enabled in the config.
	Http() *http.Server
	Close() error
}

type registry struct {
	stores         map[string]Store
	mu             *sync.Mutex
	logger         log.Logger
	storeBuilder   Builder
	backendBuilder backend.Builder
	http           *http.Server
}

type RegistryConfig struct {
	Host        string
	HttpEnabled bool
	// StoreBuilder defaults to DefaultBuilder.
	StoreBuilder Builder
	// BackendBuilder is applied to stores created through New unless the
	// caller passes its own backend option.
	BackendBuilder backend.Builder
	Logger         log.Logger
}

func NewRegistry(config *RegistryConfig) Registry {
	if config.Logger == nil {
		config.Logger = log.NewNoopLogger()
	}

	reg := &registry{
		stores:         make(map[string]Store),
		mu:             &sync.Mutex{},
		logger:         config.Logger.NewLog(log.Prefixed(`store-registry`)),
		storeBuilder:   config.StoreBuilder,
		backendBuilder: config.BackendBuilder,
	}

	if reg.storeBuilder == nil {
		reg.storeBuilder = DefaultBuilder
	}

	if config.HttpEnabled {
		reg.http = MakeEndpoints(config.Host, reg, reg.logger.NewLog(log.Prefixed(`http`)))
	}

	return reg
}

func (r *registry) Register(store Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := store.Name()
	if _, ok := r.stores[name]; ok {
		return errors.Errorf(`store [%s] already exist`, name)
	}

	r.stores[name] = store
	return nil
}

func (r *registry) New(name string, keyEncoder encoding.Builder, valEncoder encoding.Builder, options ...Options) (Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.stores[name]; ok {
		return nil, errors.Errorf(`store [%s] already exist`, name)
	}

	opts := []Options{WithLogger(r.logger)}
	if r.backendBuilder != nil {
		opts = append(opts, WithBackendBuilder(r.backendBuilder))
	}

	s, err := r.storeBuilder(name, keyEncoder, valEncoder, append(opts, options...)...)
	if err != nil {
		return nil, err
	}

	r.stores[name] = s

	return s, nil
}

func (r *registry) Store(name string) (Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	store, ok := r.stores[name]
	if !ok {
		return nil, errors.Errorf(`%w: [%s]`, ErrStoreNotFound, name)
	}

	return store, nil
}

func (r *registry) Stores() []Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]Store, 0, len(r.stores))
	for _, stor := range r.stores {
		list = append(list, stor)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})

	return list
}

func (r *registry) List() []string {
	var list []string
	for _, stor := range r.Stores() {
		list = append(list, stor.Name())
	}

	return list
}

func (r *registry) Http() *http.Server {
	return r.http
}

func (r *registry) Close() error {
	var err error
	for _, stor := range r.Stores() {
		if e := stor.Close(); e != nil {
			err = multierr.Append(err, errors.WithPrevious(e, fmt.Sprintf(`store [%s] close failed`, stor.Name())))
		}
	}

	return err
}
