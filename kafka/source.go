package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/tryfix/errors"
	kContext "github.com/tryfix/estream/kstream/context"
	"github.com/tryfix/estream/kstream/encoding"
	"github.com/tryfix/estream/kstream/topology"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

// Source consumes every partition of a topic and emits the decoded records.
// Records failing to decode or to process are logged and counted, the
// partition keeps going.
type Source struct {
	config     *SourceConfig
	consumer   sarama.Consumer
	owned      bool
	keyEncoder encoding.Encoder
	valEncoder encoding.Encoder
	logger     log.Logger
	metrics    struct {
		consumed        metrics.Counter
		failed          metrics.Counter
		endToEndLatency metrics.Observer
	}

	mu         sync.Mutex
	partitions []sarama.PartitionConsumer
	wg         sync.WaitGroup
}

// NewSource connects a consumer to config.BootstrapServers.
func NewSource(config *SourceConfig) (*Source, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	consumer, err := sarama.NewConsumer(config.BootstrapServers, config.Config)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`kafka source [%s] init failed`, config.Id))
	}

	s := NewSourceFromConsumer(consumer, config)
	s.owned = true

	return s, nil
}

// NewSourceFromConsumer reads through an existing consumer. Stop closes
// only the partition consumers it opened.
func NewSourceFromConsumer(consumer sarama.Consumer, config *SourceConfig) *Source {
	if config.Logger == nil {
		config.Logger = log.NewNoopLogger()
	}

	if config.MetricsReporter == nil {
		config.MetricsReporter = metrics.NoopReporter()
	}

	s := &Source{
		config:     config,
		consumer:   consumer,
		keyEncoder: config.KeyEncoder(),
		valEncoder: config.ValueEncoder(),
		logger:     config.Logger.NewLog(log.Prefixed(`kafka-source`)),
	}

	labels := []string{`topic`, `partition`}
	s.metrics.consumed = config.MetricsReporter.Counter(metrics.MetricConf{
		Path:        `estream_kafka_source_consumed_records`,
		Labels:      labels,
		ConstLabels: map[string]string{`source_id`: config.Id},
	})
	s.metrics.failed = config.MetricsReporter.Counter(metrics.MetricConf{
		Path:        `estream_kafka_source_failed_records`,
		Labels:      append(labels, `reason`),
		ConstLabels: map[string]string{`source_id`: config.Id},
	})
	s.metrics.endToEndLatency = config.MetricsReporter.Observer(metrics.MetricConf{
		Path:        `estream_kafka_source_end_to_end_latency_microseconds`,
		Labels:      labels,
		ConstLabels: map[string]string{`source_id`: config.Id},
	})

	return s
}

func (s *Source) Name() string {
	return fmt.Sprintf(`kafka:%s`, s.config.Topic)
}

func (s *Source) Start(ctx context.Context, emit topology.EmitFunc) error {
	partitions, err := s.consumer.Partitions(s.config.Topic)
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`cannot fetch partitions of %s`, s.config.Topic))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, partition := range partitions {
		pc, err := s.consumer.ConsumePartition(s.config.Topic, partition, s.config.Offset)
		if err != nil {
			s.closePartitions()
			return errors.WithPrevious(err, fmt.Sprintf(`cannot initiate partition consumer for %s[%d]`, s.config.Topic, partition))
		}
		s.partitions = append(s.partitions, pc)

		s.wg.Add(2)
		go s.consumeErrors(pc)
		go s.consumeRecords(ctx, pc, emit)
	}

	s.logger.Info(fmt.Sprintf(`consuming %s partitions %v`, s.config.Topic, partitions))

	return nil
}

func (s *Source) consumeErrors(pc sarama.PartitionConsumer) {
	defer s.wg.Done()

	for err := range pc.Errors() {
		s.logger.Error(fmt.Sprintf(`partition consumer error %s`, err))
	}
}

func (s *Source) consumeRecords(ctx context.Context, pc sarama.PartitionConsumer, emit topology.EmitFunc) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pc.Messages():
			if !ok {
				return
			}
			s.process(msg, emit)
		}
	}
}

func (s *Source) process(msg *sarama.ConsumerMessage, emit topology.EmitFunc) {
	labels := map[string]string{
		`topic`:     msg.Topic,
		`partition`: fmt.Sprint(msg.Partition),
	}
	s.metrics.consumed.Count(1, labels)
	if !msg.Timestamp.IsZero() {
		s.metrics.endToEndLatency.Observe(float64(time.Since(msg.Timestamp).Microseconds()), labels)
	}

	meta := &kContext.RecordMeta{
		Source:    s.Name(),
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Timestamp,
		Headers:   make(map[string]string, len(msg.Headers)),
	}
	for _, h := range msg.Headers {
		meta.Headers[string(h.Key)] = string(h.Value)
	}
	ctx := kContext.FromMeta(meta)

	fail := func(reason string, err error) {
		s.metrics.failed.Count(1, map[string]string{
			`topic`:     msg.Topic,
			`partition`: fmt.Sprint(msg.Partition),
			`reason`:    reason,
		})
		s.logger.ErrorContext(ctx, fmt.Sprintf(`record %s[%d]@%d %s failed due to %s`, msg.Topic, msg.Partition, msg.Offset, reason, err))
	}

	var key interface{}
	if msg.Key != nil {
		k, err := s.keyEncoder.Decode(msg.Key)
		if err != nil {
			fail(`key_decode`, err)
			return
		}
		key = k
	}

	val, err := s.valEncoder.Decode(msg.Value)
	if err != nil {
		fail(`value_decode`, err)
		return
	}

	if err := emit(ctx, key, val); err != nil {
		fail(`process`, err)
	}
}

// closePartitions asks every partition consumer to stop. The caller holds
// s.mu.
func (s *Source) closePartitions() {
	for _, pc := range s.partitions {
		pc.AsyncClose()
	}
	s.partitions = nil
}

// Stop closes the partition consumers and waits for the consume loops.
func (s *Source) Stop() error {
	s.mu.Lock()
	s.closePartitions()
	s.mu.Unlock()

	s.wg.Wait()

	if s.owned {
		if err := s.consumer.Close(); err != nil {
			return errors.WithPrevious(err, `consumer close failed`)
		}
	}

	s.logger.Info(fmt.Sprintf(`stopped consuming %s`, s.config.Topic))

	return nil
}
