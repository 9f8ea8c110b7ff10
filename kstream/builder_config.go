/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package kstream

import (
	"bytes"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/tryfix/errors"
	"github.com/tryfix/estream/backend"
	"github.com/tryfix/estream/kstream/window"
	"github.com/tryfix/estream/kstream/worker_pool"
	"github.com/tryfix/estream/util"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
	"go.uber.org/multierr"
)

type StreamBuilderConfig struct {
	ApplicationId string
	// AsyncProcessing hands records from source adapters to a worker pool.
	// Emit always runs on the caller's goroutine.
	AsyncProcessing bool
	WorkerPool      *worker_pool.PoolConfig
	// Clock drives every window operator of the pipeline.
	Clock  window.Clock
	Window struct {
		ScanInterval time.Duration
	}
	// ErrorObserver receives failures of background work: window timers and
	// asynchronously processed records.
	ErrorObserver window.ErrorObserver
	Store         struct {
		BackendBuilder backend.Builder
		LockStripes    int
		Http           struct {
			Enabled bool
			Host    string
		}
	}
	MetricsReporter metrics.Reporter
	Logger          log.Logger
	DefaultBuilders *DefaultBuilders
}

func NewStreamBuilderConfig() *StreamBuilderConfig {
	config := &StreamBuilderConfig{}

	//set default task execution order
	config.WorkerPool = &worker_pool.PoolConfig{
		Order:            worker_pool.OrderByKey,
		NumOfWorkers:     10,
		WorkerBufferSize: 10,
	}

	config.Clock = window.SystemClock{}
	config.Window.ScanInterval = window.DefaultScanInterval
	config.Store.LockStripes = 64
	config.Store.Http.Host = `:8080`

	// default metrics reporter
	config.MetricsReporter = metrics.NoopReporter()
	config.Logger = log.NewLog(
		log.WithColors(true),
		log.WithFilePath(true),
		log.WithLevel(log.INFO),
		log.Prefixed(`e-stream`),
	).Log()
	config.DefaultBuilders = &DefaultBuilders{configs: config}

	return config
}

func (c *StreamBuilderConfig) defaults() {
	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}

	if c.MetricsReporter == nil {
		c.MetricsReporter = metrics.NoopReporter()
	}

	if c.Clock == nil {
		c.Clock = window.SystemClock{}
	}

	if c.DefaultBuilders == nil {
		c.DefaultBuilders = &DefaultBuilders{}
	}
	c.DefaultBuilders.configs = c

	if c.ErrorObserver == nil {
		logger := c.Logger
		c.ErrorObserver = func(err error) {
			logger.Error(fmt.Sprintf(`background processing failed due to %s`, err))
		}
	}
}

func (c *StreamBuilderConfig) validate() error {
	var errs error

	if c.ApplicationId == `` {
		errs = multierr.Append(errs, errors.New(`[ApplicationId] cannot be empty`))
	}

	if c.Window.ScanInterval < 0 {
		errs = multierr.Append(errs, errors.New(`[Window.ScanInterval] cannot be negative`))
	}

	if c.Store.Http.Enabled && c.Store.Http.Host == `` {
		errs = multierr.Append(errs, errors.New(`[Store.Http.Host] cannot be empty when the store http server is enabled`))
	}

	if c.AsyncProcessing {
		if c.WorkerPool == nil {
			errs = multierr.Append(errs, errors.New(`[WorkerPool] cannot be empty when AsyncProcessing is enabled`))
		} else if err := c.WorkerPool.Validate(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *StreamBuilderConfig) String(b *StreamBuilder) string {
	data := util.StrToMap(`eStream`, c)

	data = append(data, []string{``})
	data = append(data, []string{`Stream configs`, ``})
	for _, name := range b.order {
		stream := b.streams[name]

		buf := new(bytes.Buffer)
		flowTable := tablewriter.NewWriter(buf)
		source := `manual`
		if stream.source != nil {
			source = stream.source.Name()
		}

		flowData := [][]string{
			{`source`, source},
			{`async`, fmt.Sprint(c.AsyncProcessing && stream.source != nil)},
			{`sinks`, fmt.Sprint(len(stream.sinks))},
		}

		if c.AsyncProcessing && stream.source != nil {
			flowData = append(flowData,
				[]string{`worker-pool.order`, fmt.Sprint(c.WorkerPool.Order)},
				[]string{`worker-pool.NumOfWorker`, fmt.Sprint(c.WorkerPool.NumOfWorkers)},
				[]string{`worker-pool.WorkerBufferSize`, fmt.Sprint(c.WorkerPool.WorkerBufferSize)},
			)
		}

		for _, v := range flowData {
			flowTable.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT})
			flowTable.Append(v)
		}
		flowTable.Render()
		data = append(data, []string{name, buf.String()})
	}

	data = append(data, []string{``})
	data = append(data, []string{`Stores`, ``})
	for _, s := range b.storeRegistry.Stores() {
		data = append(data, []string{s.Name(), s.Backend().Name()})
	}

	out := new(bytes.Buffer)
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Config", "Value"})

	for _, v := range data {
		table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT})
		table.Append(v)
	}
	table.Render()

	return out.String()
}
