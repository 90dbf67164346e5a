package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"riskradar/internal/logger"
)

type memorySink struct {
	name     string
	limit    int
	err      error
	received []string
	closed   bool
}

func (s *memorySink) Name() string { return s.name }
func (s *memorySink) Limit() int   { return s.limit }
func (s *memorySink) Close() error { s.closed = true; return nil }

func (s *memorySink) Send(ctx context.Context, text string) error {
	if s.err != nil {
		return s.err
	}
	s.received = append(s.received, text)
	return nil
}

func TestDispatchFansOutToAllSinks(t *testing.T) {
	a := &memorySink{name: "a"}
	b := &memorySink{name: "b"}
	d := NewDispatcher([]Sink{a, b}, time.Second, logger.Nop(), nil)

	if failed := d.Dispatch(context.Background(), "alert"); failed != 0 {
		t.Fatalf("expected 0 failures, got %d", failed)
	}
	if len(a.received) != 1 || len(b.received) != 1 {
		t.Fatalf("expected both sinks to receive the alert, got a=%d b=%d", len(a.received), len(b.received))
	}
}

func TestDispatchIsolatesFailingSink(t *testing.T) {
	bad := &memorySink{name: "bad", err: errors.New("connection refused")}
	good := &memorySink{name: "good"}
	d := NewDispatcher([]Sink{bad, good}, time.Second, logger.Nop(), nil)

	failed := d.Dispatch(context.Background(), "alert")
	if failed != 1 {
		t.Fatalf("expected 1 failure, got %d", failed)
	}
	if len(good.received) != 1 {
		t.Fatalf("healthy sink did not receive the alert")
	}
}

func TestDispatchTruncatesPerSinkLimit(t *testing.T) {
	limited := &memorySink{name: "limited", limit: 4000}
	unlimited := &memorySink{name: "unlimited"}
	d := NewDispatcher([]Sink{limited, unlimited}, time.Second, logger.Nop(), nil)

	long := strings.Repeat("x", 5000)
	if failed := d.Dispatch(context.Background(), long); failed != 0 {
		t.Fatalf("expected 0 failures, got %d", failed)
	}

	got := limited.received[0]
	if utf8.RuneCountInString(got) != 4000 {
		t.Fatalf("expected exactly 4000 characters, got %d", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, truncationMarker) {
		t.Fatalf("truncated message missing marker")
	}
	if unlimited.received[0] != long {
		t.Fatalf("unlimited sink received a modified message")
	}
}

func TestDispatchNoSinks(t *testing.T) {
	d := NewDispatcher(nil, time.Second, logger.Nop(), nil)
	if failed := d.Dispatch(context.Background(), "alert"); failed != 0 {
		t.Fatalf("expected 0 failures with no sinks, got %d", failed)
	}
}

func TestCloseClosesAllSinks(t *testing.T) {
	a := &memorySink{name: "a"}
	b := &memorySink{name: "b"}
	d := NewDispatcher([]Sink{a, b}, time.Second, logger.Nop(), nil)

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatalf("expected all sinks closed, got a=%v b=%v", a.closed, b.closed)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 100); got != "short" {
		t.Fatalf("short text modified: %q", got)
	}
	if got := Truncate("whatever", 0); got != "whatever" {
		t.Fatalf("zero limit should mean unlimited: %q", got)
	}

	// Multibyte runes must not be split.
	text := strings.Repeat("日", 50)
	got := Truncate(text, 30)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8")
	}
	if utf8.RuneCountInString(got) != 30 {
		t.Fatalf("expected 30 characters, got %d", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, truncationMarker) {
		t.Fatalf("missing truncation marker: %q", got)
	}

	// Limits smaller than the marker fall back to a hard cut.
	tiny := Truncate("abcdefghij", 3)
	if tiny != "abc" {
		t.Fatalf("expected hard cut for tiny limit, got %q", tiny)
	}
}
