package window

import (
	"fmt"
	"time"

	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

const DefaultScanInterval = 100 * time.Millisecond

type config struct {
	clock        Clock
	scanInterval time.Duration
	extractor    TimestampExtractor
	logger       log.Logger
	metrics      *Metrics
	observer     ErrorObserver
	lockStripes  int
}

type Option func(c *config)

func newConfig(opts ...Option) *config {
	c := &config{
		clock:        SystemClock{},
		scanInterval: DefaultScanInterval,
		logger:       log.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.metrics == nil {
		c.metrics = NewMetrics(metrics.NoopReporter())
	}

	if c.observer == nil {
		logger := c.logger
		c.observer = func(err error) {
			logger.Error(fmt.Sprintf(`window task failed: %s`, err))
		}
	}

	return c
}

func WithClock(clock Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithScanInterval sets how often the background task looks for due windows.
func WithScanInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.scanInterval = d
		}
	}
}

// WithTimestampExtractor switches the operator from processing time to the
// event time returned by fn.
func WithTimestampExtractor(fn TimestampExtractor) Option {
	return func(c *config) {
		c.extractor = fn
	}
}

func WithLogger(logger log.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithErrorObserver receives every failure of the background task.
func WithErrorObserver(observer ErrorObserver) Option {
	return func(c *config) {
		c.observer = observer
	}
}

func WithLockStripes(n int) Option {
	return func(c *config) {
		c.lockStripes = n
	}
}
