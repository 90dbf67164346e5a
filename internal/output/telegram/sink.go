package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config configures the Telegram Bot API sink.
type Config struct {
	BotToken string
	ChatID   string
	Limit    int
	Timeout  time.Duration
}

// Sink sends alerts as Telegram messages.
type Sink struct {
	url    string
	chatID string
	limit  int
	client *http.Client
}

// NewSink creates a Telegram sink.
func NewSink(cfg Config) (*Sink, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram bot token and chat id are required")
	}
	if cfg.Limit <= 0 {
		// Bot API rejects messages over 4096 chars; leave headroom for the
		// truncation marker.
		cfg.Limit = 4000
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Sink{
		url:    fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", cfg.BotToken),
		chatID: cfg.ChatID,
		limit:  cfg.Limit,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "telegram" }

// Limit is the maximum message length.
func (s *Sink) Limit() int { return s.limit }

// Send posts one message to the configured chat.
func (s *Sink) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": s.chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram send failed with status %s", resp.Status)
	}
	return nil
}

// Close releases HTTP resources.
func (s *Sink) Close() error { return nil }
