package window

import (
	"github.com/tryfix/metrics"
)

// Metrics is shared by every window operator of a pipeline.
type Metrics struct {
	closed      metrics.Counter
	late        metrics.Counter
	timerErrors metrics.Counter
}

func NewMetrics(reporter metrics.Reporter) *Metrics {
	labels := []string{`window`, `type`}
	return &Metrics{
		closed:      reporter.Counter(metrics.MetricConf{Path: `window_closed_total`, Labels: labels}),
		late:        reporter.Counter(metrics.MetricConf{Path: `window_late_events_total`, Labels: labels}),
		timerErrors: reporter.Counter(metrics.MetricConf{Path: `window_timer_errors_total`, Labels: labels}),
	}
}
