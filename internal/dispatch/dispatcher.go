package dispatch

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"riskradar/internal/logger"
	"riskradar/pkg/metrics"
)

const truncationMarker = "\n…(truncated)"

// Sink delivers one formatted message to a notification channel. Limit is
// the channel's maximum message length in characters (0 = unlimited); the
// dispatcher truncates before calling Send.
type Sink interface {
	Name() string
	Limit() int
	Send(ctx context.Context, text string) error
	Close() error
}

// Dispatcher fans one alert out to every configured sink concurrently.
// Each sink's failure is logged and counted without affecting the others:
// delivery is at-most-once best effort, no retries.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher over the given sinks.
func NewDispatcher(sinks []Sink, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Dispatcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Dispatcher{
		sinks:   sinks,
		timeout: timeout,
		log:     log,
		metrics: m,
	}
}

// Dispatch sends text to every sink and returns the number of failures. It
// never returns an error: the caller only learns that degradation occurred.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) int {
	if len(d.sinks) == 0 {
		return 0
	}

	var wg sync.WaitGroup
	var failed atomic.Int32

	for _, s := range d.sinks {
		wg.Add(1)
		go func(s Sink) {
			defer wg.Done()

			sctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			if err := s.Send(sctx, Truncate(text, s.Limit())); err != nil {
				d.log.Errorf("Alert send failed: sink=%s err=%v", s.Name(), err)
				d.metrics.SinkFailure(s.Name())
				failed.Add(1)
			}
		}(s)
	}

	wg.Wait()
	return int(failed.Load())
}

// Close releases all sinks.
func (d *Dispatcher) Close() error {
	var firstErr error
	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			d.log.Errorf("Failed to close sink %s: %v", s.Name(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Truncate cuts text to at most limit characters, ending with a truncation
// marker. A limit of zero or less means unlimited.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	marker := []rune(truncationMarker)
	if limit <= len(marker) {
		return string(runes[:limit])
	}
	var b strings.Builder
	b.WriteString(string(runes[:limit-len(marker)]))
	b.WriteString(truncationMarker)
	return b.String()
}
