package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

// Config configures the Kafka sink.
type Config struct {
	Brokers string // comma-separated
	Topic   string
	Limit   int
}

// Sink publishes alerts to a Kafka topic and waits for broker ACK, so a nil
// return means the alert reached the cluster.
type Sink struct {
	topic string
	limit int
	sp    sarama.SyncProducer
}

// NewSink creates a Kafka sink.
func NewSink(cfg Config) (*Sink, error) {
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is empty")
	}
	brokers := splitCSV(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers")
	}

	scfg := sarama.NewConfig()
	scfg.Producer.RequiredAcks = sarama.WaitForAll
	scfg.Producer.Retry.Max = 3
	scfg.Producer.Retry.Backoff = 200 * time.Millisecond
	scfg.Producer.Return.Successes = true
	scfg.Producer.Return.Errors = true
	scfg.Version = sarama.V2_1_0_0

	sp, err := sarama.NewSyncProducer(brokers, scfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Sink{topic: cfg.Topic, limit: cfg.Limit, sp: sp}, nil
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "kafka" }

// Limit is the maximum message length (0 = unlimited).
func (s *Sink) Limit() int { return s.limit }

// Send publishes one alert. The sync producer doesn't accept a context, so
// cancellation is only checked around the blocking call.
func (s *Sink) Send(ctx context.Context, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.StringEncoder(text),
	}
	if _, _, err := s.sp.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka send failed: %w", err)
	}
	return nil
}

// Close shuts the producer down.
func (s *Sink) Close() error {
	return s.sp.Close()
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, x := range parts {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
