/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

// Package kafka adapts Kafka topics to stream sources and sinks.
package kafka

import (
	"github.com/Shopify/sarama"
	saramaMetrics "github.com/rcrowley/go-metrics"
	"github.com/tryfix/errors"
	"github.com/tryfix/estream/kstream/encoding"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

func init() {
	saramaMetrics.UseNilMetrics = true
}

type SourceConfig struct {
	Id               string
	Topic            string
	BootstrapServers []string
	// Offset every partition starts from, sarama.OffsetOldest by default.
	Offset          int64
	KeyEncoder      encoding.Builder
	ValueEncoder    encoding.Builder
	Logger          log.Logger
	MetricsReporter metrics.Reporter
	*sarama.Config
}

func NewSourceConfig() *SourceConfig {
	c := &SourceConfig{
		Offset:          sarama.OffsetOldest,
		Logger:          log.NewNoopLogger(),
		MetricsReporter: metrics.NoopReporter(),
		Config:          sarama.NewConfig(),
	}
	c.Config.Version = sarama.V2_3_0_0
	c.Consumer.Return.Errors = true
	c.ChannelBufferSize = 100

	return c
}

func (c *SourceConfig) validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}

	if c.Topic == `` {
		return errors.New(`kafka.SourceConfig: Topic cannot be empty`)
	}

	if c.KeyEncoder == nil || c.ValueEncoder == nil {
		return errors.New(`kafka.SourceConfig: KeyEncoder and ValueEncoder cannot be empty`)
	}

	return nil
}

type SinkConfig struct {
	Id               string
	Topic            string
	BootstrapServers []string
	KeyEncoder       encoding.Builder
	ValueEncoder     encoding.Builder
	Logger           log.Logger
	MetricsReporter  metrics.Reporter
	*sarama.Config
}

func NewSinkConfig() *SinkConfig {
	c := &SinkConfig{
		Logger:          log.NewNoopLogger(),
		MetricsReporter: metrics.NoopReporter(),
		Config:          sarama.NewConfig(),
	}
	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Producer.Return.Errors = true
	c.Producer.Return.Successes = true
	c.Producer.Partitioner = sarama.NewHashPartitioner
	c.Producer.Compression = sarama.CompressionSnappy

	return c
}

func (c *SinkConfig) validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}

	if c.Topic == `` {
		return errors.New(`kafka.SinkConfig: Topic cannot be empty`)
	}

	if c.KeyEncoder == nil || c.ValueEncoder == nil {
		return errors.New(`kafka.SinkConfig: KeyEncoder and ValueEncoder cannot be empty`)
	}

	return nil
}
