package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/tryfix/errors"
	kContext "github.com/tryfix/estream/kstream/context"
	"github.com/tryfix/estream/kstream/encoding"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

// Sink produces every record it receives to a topic and waits for the
// broker acknowledgement.
type Sink struct {
	config      *SinkConfig
	producer    sarama.SyncProducer
	newProducer func() (sarama.SyncProducer, error)
	keyEncoder  encoding.Encoder
	valEncoder  encoding.Encoder
	logger      log.Logger
	latency     metrics.Observer
}

// NewSink connects to config.BootstrapServers on Start.
func NewSink(config *SinkConfig) (*Sink, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	s := newSink(config)
	s.newProducer = func() (sarama.SyncProducer, error) {
		return sarama.NewSyncProducer(config.BootstrapServers, config.Config)
	}

	return s, nil
}

// NewSinkFromProducer produces through an existing producer. Stop closes it.
func NewSinkFromProducer(producer sarama.SyncProducer, config *SinkConfig) *Sink {
	s := newSink(config)
	s.producer = producer

	return s
}

func newSink(config *SinkConfig) *Sink {
	if config.Logger == nil {
		config.Logger = log.NewNoopLogger()
	}

	if config.MetricsReporter == nil {
		config.MetricsReporter = metrics.NoopReporter()
	}

	return &Sink{
		config:     config,
		keyEncoder: config.KeyEncoder(),
		valEncoder: config.ValueEncoder(),
		logger:     config.Logger.NewLog(log.Prefixed(`kafka-sink`)),
		latency: config.MetricsReporter.Observer(metrics.MetricConf{
			Path:        `estream_kafka_sink_produced_latency_microseconds`,
			Labels:      []string{`topic`, `partition`},
			ConstLabels: map[string]string{`sink_id`: config.Id},
		}),
	}
}

func (s *Sink) Name() string {
	return fmt.Sprintf(`kafka:%s`, s.config.Topic)
}

func (s *Sink) Start() error {
	if s.producer != nil {
		return nil
	}

	producer, err := s.newProducer()
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`kafka sink [%s] init failed`, s.config.Id))
	}
	s.producer = producer
	s.logger.Info(fmt.Sprintf(`producing to %s`, s.config.Topic))

	return nil
}

func (s *Sink) Process(ctx context.Context, key, value interface{}) error {
	begin := time.Now()

	msg := &sarama.ProducerMessage{
		Topic:     s.config.Topic,
		Timestamp: begin,
	}

	if key != nil {
		k, err := s.keyEncoder.Encode(key)
		if err != nil {
			return errors.WithPrevious(err, `key encode failed`)
		}
		msg.Key = sarama.ByteEncoder(k)
	}

	v, err := s.valEncoder.Encode(value)
	if err != nil {
		return errors.WithPrevious(err, `value encode failed`)
	}
	msg.Value = sarama.ByteEncoder(v)

	if meta, ok := kContext.Meta(ctx); ok {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(`estream-record-id`), Value: []byte(meta.UUID.String())})
	}

	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`cannot produce to %s`, s.config.Topic))
	}

	s.latency.Observe(float64(time.Since(begin).Microseconds()), map[string]string{
		`topic`:     s.config.Topic,
		`partition`: fmt.Sprint(partition),
	})
	s.logger.TraceContext(ctx, fmt.Sprintf(`delivered message to %s[%d] at offset %d`, s.config.Topic, partition, offset))

	return nil
}

func (s *Sink) Stop() error {
	if s.producer == nil {
		return nil
	}

	if err := s.producer.Close(); err != nil {
		return errors.WithPrevious(err, `producer close failed`)
	}

	return nil
}
