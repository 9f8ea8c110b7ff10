package backend

import (
	"time"

	"github.com/tryfix/metrics"
)

// Metrics holds the latency observers shared by the persistent backends.
type Metrics struct {
	typ           string
	readLatency   metrics.Observer
	updateLatency metrics.Observer
	deleteLatency metrics.Observer
}

func NewMetrics(reporter metrics.Reporter, typ string) *Metrics {
	labels := []string{`name`, `type`}
	return &Metrics{
		typ:           typ,
		readLatency:   reporter.Observer(metrics.MetricConf{Path: `backend_read_latency_microseconds`, Labels: labels}),
		updateLatency: reporter.Observer(metrics.MetricConf{Path: `backend_update_latency_microseconds`, Labels: labels}),
		deleteLatency: reporter.Observer(metrics.MetricConf{Path: `backend_delete_latency_microseconds`, Labels: labels}),
	}
}

func (m *Metrics) labels(name string) map[string]string {
	return map[string]string{`name`: name, `type`: m.typ}
}

func (m *Metrics) ObserveRead(name string, begin time.Time) {
	m.readLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), m.labels(name))
}

func (m *Metrics) ObserveUpdate(name string, begin time.Time) {
	m.updateLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), m.labels(name))
}

func (m *Metrics) ObserveDelete(name string, begin time.Time) {
	m.deleteLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), m.labels(name))
}
