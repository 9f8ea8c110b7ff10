// Package mongo is a remote backend keeping each store in its own MongoDB
// collection. Expiry is enforced on read and by a TTL index.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tryfix/estream/backend"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var errClosed = errors.New(`mongo backend closed`)

type Config struct {
	URI      string
	Database string
	// Timeout bounds every single backend operation.
	Timeout         time.Duration
	Logger          log.Logger
	MetricsReporter metrics.Reporter
}

func NewConfig(uri string) *Config {
	conf := &Config{URI: uri}
	conf.parse()
	return conf
}

func (c *Config) parse() {
	if c.URI == `` {
		c.URI = `mongodb://localhost:27017`
	}

	if c.Database == `` {
		c.Database = `estream`
	}

	if c.Timeout < 1 {
		c.Timeout = 5 * time.Second
	}

	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}
}

type document struct {
	Key       []byte     `bson:"_id"`
	Value     []byte     `bson:"value"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

func (d document) live(now time.Time) bool {
	return d.ExpiresAt == nil || now.Before(*d.ExpiresAt)
}

type Mongo struct {
	name       string
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
	expiry     time.Duration
	logger     log.Logger
	metrics    *backend.Metrics
	mu         sync.RWMutex
	closed     bool
}

// Builder connects once and hands out one collection per store name.
func Builder(ctx context.Context, config *Config) (backend.Builder, error) {
	config.parse()
	client, err := connect(ctx, config)
	if err != nil {
		return nil, err
	}

	m := backend.NewMetrics(config.MetricsReporter, `mongo`)
	return func(name string) (backend.Backend, error) {
		return open(name, client, false, config, m)
	}, nil
}

// NewMongoBackend opens a backend with a dedicated client which is
// disconnected on Close.
func NewMongoBackend(ctx context.Context, name string, config *Config) (*Mongo, error) {
	config.parse()
	client, err := connect(ctx, config)
	if err != nil {
		return nil, err
	}

	return open(name, client, true, config, backend.NewMetrics(config.MetricsReporter, `mongo`))
}

func connect(ctx context.Context, config *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf(`failed to connect to mongodb: %w`, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf(`failed to ping mongodb: %w`, err)
	}

	return client, nil
}

func open(name string, client *mongo.Client, owned bool, config *Config, m *backend.Metrics) (*Mongo, error) {
	collection := client.Database(config.Database).Collection(name)

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: `expires_at`, Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return nil, fmt.Errorf(`failed to create ttl index on %s: %w`, name, err)
	}

	b := &Mongo{
		name:       name,
		collection: collection,
		timeout:    config.Timeout,
		logger:     config.Logger.NewLog(log.Prefixed(`mongo-backend`)),
		metrics:    m,
	}
	if owned {
		b.client = client
	}

	return b, nil
}

func (m *Mongo) Name() string {
	return m.name
}

func (m *Mongo) String() string {
	return `mongo`
}

func (m *Mongo) Persistent() bool {
	return true
}

func (m *Mongo) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.timeout)
}

func (m *Mongo) Set(key []byte, value []byte, expiry time.Duration) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errClosed
	}

	defer m.metrics.ObserveUpdate(m.name, time.Now())

	if expiry < 1 {
		expiry = m.expiry
	}

	set := bson.M{`value`: value}
	update := bson.M{`$set`: set}
	if expiry > 0 {
		set[`expires_at`] = time.Now().Add(expiry)
	} else {
		update[`$unset`] = bson.M{`expires_at`: ``}
	}

	ctx, cancel := m.ctx()
	defer cancel()

	_, err := m.collection.UpdateOne(ctx, bson.M{`_id`: key}, update, options.Update().SetUpsert(true))
	return err
}

func (m *Mongo) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed
	}

	defer m.metrics.ObserveRead(m.name, time.Now())

	ctx, cancel := m.ctx()
	defer cancel()

	var doc document
	err := m.collection.FindOne(ctx, bson.M{`_id`: key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !doc.live(time.Now()) {
		return nil, nil
	}

	if doc.Value == nil {
		return []byte{}, nil
	}

	return doc.Value, nil
}

func (m *Mongo) Has(key []byte) (bool, error) {
	v, err := m.Get(key)
	if err != nil {
		return false, err
	}

	return v != nil, nil
}

// collect loads the whole collection. BinData ordering in MongoDB is by
// length first, so ranges are applied client side.
func (m *Mongo) collect(from, to []byte) backend.Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return backend.NewErrorIterator(errClosed)
	}

	ctx, cancel := m.ctx()
	defer cancel()

	cur, err := m.collection.Find(ctx, bson.M{})
	if err != nil {
		return backend.NewErrorIterator(err)
	}
	defer cur.Close(ctx)

	now := time.Now()
	var records []backend.KeyVal
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return backend.NewErrorIterator(err)
		}

		if !doc.live(now) {
			continue
		}

		records = append(records, backend.KeyVal{Key: doc.Key, Value: doc.Value})
	}

	if err := cur.Err(); err != nil {
		return backend.NewErrorIterator(err)
	}

	return backend.NewSliceIterator(backend.RangeOf(records, from, to))
}

func (m *Mongo) RangeIterator(fromKy []byte, toKey []byte) backend.Iterator {
	return m.collect(fromKy, toKey)
}

func (m *Mongo) Iterator() backend.Iterator {
	return m.collect(nil, nil)
}

func (m *Mongo) Delete(key []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errClosed
	}

	defer m.metrics.ObserveDelete(m.name, time.Now())

	ctx, cancel := m.ctx()
	defer cancel()

	_, err := m.collection.DeleteOne(ctx, bson.M{`_id`: key})
	return err
}

func (m *Mongo) SetExpiry(expiry time.Duration) {
	m.expiry = expiry
}

func (m *Mongo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	if m.client == nil {
		return nil
	}

	ctx, cancel := m.ctx()
	defer cancel()

	return m.client.Disconnect(ctx)
}

func (m *Mongo) Destroy() error {
	ctx, cancel := m.ctx()
	defer cancel()

	if err := m.collection.Drop(ctx); err != nil {
		return err
	}

	return m.Close()
}
