package alertjson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type record struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Sink archives every dispatched alert to a JSON lines file.
type Sink struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewSink creates a JSONL sink, appending to an existing archive.
func NewSink(path string) (*Sink, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	return &Sink{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "file" }

// Limit is unlimited; the archive keeps the full text.
func (s *Sink) Limit() int { return 0 }

// Send appends one alert record.
func (s *Sink) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.encoder.Encode(record{Time: time.Now().UTC(), Text: text}); err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}
	return nil
}

// Close closes the archive file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
