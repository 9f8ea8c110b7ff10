// Command estream-demo sums integer values per key in tumbling windows.
// Records are read as "key value" lines from stdin, or from a Kafka topic
// when brokers are configured.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tryfix/estream/backend"
	"github.com/tryfix/estream/backend/badger"
	"github.com/tryfix/estream/backend/bolt"
	"github.com/tryfix/estream/backend/memory"
	"github.com/tryfix/estream/backend/mongo"
	"github.com/tryfix/estream/backend/pebble"
	"github.com/tryfix/estream/kafka"
	"github.com/tryfix/estream/kstream"
	"github.com/tryfix/estream/kstream/encoding"
	"github.com/tryfix/estream/kstream/topology"
	"github.com/tryfix/estream/kstream/window"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

func stringEncoder() encoding.Encoder { return encoding.StringEncoder{} }
func intEncoder() encoding.Encoder    { return encoding.IntEncoder{} }

func main() {
	conf := mustLoadConfig()

	logger := log.NewLog(
		log.WithLevel(log.Level(conf.LogLevel)),
		log.WithColors(true),
		log.Prefixed(`estream-demo`),
	).Log()

	reporter := metrics.PrometheusReporter(metrics.ReporterConf{System: `estream`, Subsystem: `demo`, ConstLabels: nil})

	backendBuilder, err := newBackend(conf, logger, reporter)
	if err != nil {
		logger.Fatal(fmt.Sprintf(`backend init failed due to %s`, err))
	}

	builderConfig := kstream.NewStreamBuilderConfig()
	builderConfig.ApplicationId = conf.ApplicationId
	builderConfig.Logger = logger
	builderConfig.MetricsReporter = reporter
	builderConfig.AsyncProcessing = conf.Async
	builderConfig.Store.Http.Enabled = conf.Http.Store != ``
	builderConfig.Store.Http.Host = conf.Http.Store

	builder := kstream.NewStreamBuilder(builderConfig, kstream.WithBackendBuilder(backendBuilder))

	source, err := newSource(conf, logger, reporter)
	if err != nil {
		logger.Fatal(fmt.Sprintf(`source init failed due to %s`, err))
	}

	sink, err := newSink(conf, logger, reporter)
	if err != nil {
		logger.Fatal(fmt.Sprintf(`sink init failed due to %s`, err))
	}

	builder.NewStream(`values`, kstream.WithSource(source)).
		Filter(func(ctx context.Context, key, value interface{}) (bool, error) {
			return value.(int) >= conf.Window.Min, nil
		}).
		TumblingWindow(`sums`, func(ctx context.Context, key, value interface{}) (interface{}, error) {
			return key, nil
		}, conf.Window.Size, func(ctx context.Context, key interface{}, events []interface{}) (interface{}, error) {
			sum := 0
			for _, e := range events {
				sum += e.(int)
			}
			return sum, nil
		},
			kstream.WindowEncoders(stringEncoder, intEncoder),
			kstream.WindowResultStore(`sums-results`, intEncoder),
		).
		MapValues(func(ctx context.Context, key, value interface{}) (interface{}, error) {
			k := key.(window.Key)
			logger.InfoContext(ctx, fmt.Sprintf(`%s sum %d`, k, value))
			return value, nil
		}).
		SelectKey(func(ctx context.Context, key, value interface{}) (interface{}, error) {
			return fmt.Sprint(key.(window.Key).Key), nil
		}).
		To(sink)

	instance, err := builder.Build()
	if err != nil {
		logger.Fatal(fmt.Sprintf(`stream build failed due to %s`, err))
	}

	router := mux.NewRouter()
	router.Handle(`/metrics`, promhttp.Handler())
	metricsServer := &http.Server{Addr: conf.Http.Metrics, Handler: router}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(fmt.Sprintf(`metrics server stopped due to %s`, err))
		}
	}()

	if err := instance.Start(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf(`stream start failed due to %s`, err))
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	<-signals

	if err := instance.Stop(); err != nil {
		logger.Error(fmt.Sprintf(`stream stop failed due to %s`, err))
	}
	_ = metricsServer.Close()
}

func newBackend(conf *config, logger log.Logger, reporter metrics.Reporter) (backend.Builder, error) {
	switch conf.Backend.Name {
	case `memory`:
		c := memory.NewConfig()
		c.Logger = logger
		c.MetricsReporter = reporter
		return memory.Builder(c), nil
	case `bolt`:
		c := bolt.NewConfig(conf.Backend.Dir)
		c.Logger = logger
		c.MetricsReporter = reporter
		return bolt.Builder(c), nil
	case `pebble`:
		c := pebble.NewConfig(conf.Backend.Dir)
		c.Logger = logger
		c.MetricsReporter = reporter
		return pebble.Builder(c), nil
	case `badger`:
		c := badger.NewConfig(conf.Backend.Dir)
		c.Logger = logger
		c.MetricsReporter = reporter
		return badger.Builder(c), nil
	case `mongo`:
		c := mongo.NewConfig(conf.Backend.URI)
		c.Logger = logger
		c.MetricsReporter = reporter
		return mongo.Builder(context.Background(), c)
	}

	return nil, fmt.Errorf(`unknown backend [%s]`, conf.Backend.Name)
}

func newSource(conf *config, logger log.Logger, reporter metrics.Reporter) (topology.Source, error) {
	if len(conf.Kafka.Brokers) == 0 {
		return &lineSource{reader: os.Stdin, logger: logger.NewLog(log.Prefixed(`stdin`))}, nil
	}

	c := kafka.NewSourceConfig()
	c.Id = conf.ApplicationId
	c.Topic = conf.Kafka.Input
	c.BootstrapServers = conf.Kafka.Brokers
	c.KeyEncoder = stringEncoder
	c.ValueEncoder = intEncoder
	c.Logger = logger
	c.MetricsReporter = reporter

	return kafka.NewSource(c)
}

func newSink(conf *config, logger log.Logger, reporter metrics.Reporter) (topology.Sink, error) {
	if len(conf.Kafka.Brokers) == 0 || conf.Kafka.Output == `` {
		return kstream.NewFuncSink(`log`, func(ctx context.Context, key, value interface{}) error {
			return nil
		}), nil
	}

	c := kafka.NewSinkConfig()
	c.Id = conf.ApplicationId
	c.Topic = conf.Kafka.Output
	c.BootstrapServers = conf.Kafka.Brokers
	c.KeyEncoder = stringEncoder
	c.ValueEncoder = intEncoder
	c.Logger = logger
	c.MetricsReporter = reporter

	return kafka.NewSink(c)
}
