package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/tryfix/estream/kstream/topology"
	"github.com/tryfix/log"
)

// lineSource emits "key value" lines as (string, int) records.
type lineSource struct {
	reader io.Reader
	logger log.Logger
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func (s *lineSource) Name() string {
	return `stdin`
}

func (s *lineSource) Start(ctx context.Context, emit topology.EmitFunc) error {
	ctx, s.cancel = context.WithCancel(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.reader)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-lines:
				if !ok {
					return
				}

				key, val, err := parseLine(line)
				if err != nil {
					s.logger.Warn(fmt.Sprintf(`skipping line [%s]: %s`, line, err))
					continue
				}

				if err := emit(ctx, key, val); err != nil {
					s.logger.Error(fmt.Sprintf(`record [%s] failed due to %s`, line, err))
				}
			}
		}
	}()

	return nil
}

func (s *lineSource) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	return nil
}

func parseLine(line string) (string, int, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return ``, 0, fmt.Errorf(`expected "key value"`)
	}

	v, err := strconv.Atoi(fields[1])
	if err != nil {
		return ``, 0, fmt.Errorf(`value is not an integer: %w`, err)
	}

	return fields[0], v, nil
}
