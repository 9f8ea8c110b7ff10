package window

import (
	"context"
	"sync"
	"time"

	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

// scheduler runs tick on a fixed interval until stopped. Failures and panics
// inside tick go to the observer and never end the loop.
type scheduler struct {
	interval time.Duration
	clock    Clock
	tick     func(ctx context.Context, now time.Time) error
	observer ErrorObserver
	logger   log.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

func newScheduler(interval time.Duration, clock Clock, logger log.Logger, observer ErrorObserver, tick func(ctx context.Context, now time.Time) error) *scheduler {
	return &scheduler{
		interval: interval,
		clock:    clock,
		tick:     tick,
		observer: observer,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.New(`scheduler already stopped`)
	}

	if s.started {
		return nil
	}
	s.started = true

	go s.loop(ctx)
	return nil
}

func (s *scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a stop request wins over a pending tick
			select {
			case <-s.stop:
				return
			default:
			}
			s.run(ctx)
		}
	}
}

func (s *scheduler) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.observer(errors.Errorf(`window task panic: %v`, r))
		}
	}()

	if err := s.tick(ctx, s.clock.Now()); err != nil {
		s.observer(err)
	}
}

// Stop cancels the loop and waits for an in flight tick to return.
func (s *scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	close(s.stop)
	s.mu.Unlock()

	if started {
		<-s.done
	}
}
