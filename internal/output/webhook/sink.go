package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config configures the generic HTTP push sink.
type Config struct {
	URL     string
	Headers map[string]string
	Limit   int
	Timeout time.Duration
}

// Sink posts alerts to a remote HTTP endpoint as a JSON document.
type Sink struct {
	url     string
	headers map[string]string
	limit   int
	client  *http.Client
}

// NewSink creates a webhook sink.
func NewSink(cfg Config) (*Sink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sink{
		url:     cfg.URL,
		headers: cfg.Headers,
		limit:   cfg.Limit,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "webhook" }

// Limit is the maximum message length (0 = unlimited).
func (s *Sink) Limit() int { return s.limit }

// Send posts one alert.
func (s *Sink) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http request failed with status %s", resp.Status)
	}
	return nil
}

// Close releases HTTP resources.
func (s *Sink) Close() error { return nil }
