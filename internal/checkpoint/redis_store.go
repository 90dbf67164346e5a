package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"riskradar/pkg/models"
)

// RedisConfig configures Redis access for checkpoint persistence.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	ProcessedTTL time.Duration
}

// RedisStore is a Redis-backed checkpoint store. Processed event ids are
// stored as individual keys with a TTL, which bounds the resumption window
// without an explicit sweep.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore constructs a Redis-backed checkpoint store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "riskradar:checkpoint"
	}
	if cfg.ProcessedTTL <= 0 {
		cfg.ProcessedTTL = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis checkpoint: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: strings.TrimSpace(cfg.KeyPrefix),
		ttl:    cfg.ProcessedTTL,
	}, nil
}

// LastHeight returns the persisted height.
func (s *RedisStore) LastHeight(ctx context.Context) (uint64, bool, error) {
	val, err := s.client.Get(ctx, s.heightKey()).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read last height: %w", err)
	}
	h, err := strconv.ParseUint(strings.TrimSpace(val), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse last height %q: %w", val, err)
	}
	return h, true, nil
}

// SetLastHeight records the last fully-processed height.
func (s *RedisStore) SetLastHeight(ctx context.Context, height uint64) error {
	if err := s.client.Set(ctx, s.heightKey(), strconv.FormatUint(height, 10), 0).Err(); err != nil {
		return fmt.Errorf("write last height: %w", err)
	}
	return nil
}

// HasProcessed reports whether the event id was already handled.
func (s *RedisStore) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.eventKey(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("check processed event: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records the deployment under its event id.
func (s *RedisStore) MarkProcessed(ctx context.Context, dep models.Deployment) error {
	payload, err := json.Marshal(dep)
	if err != nil {
		return fmt.Errorf("encode deployment: %w", err)
	}
	if err := s.client.Set(ctx, s.eventKey(dep.EventID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("write processed event: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) heightKey() string {
	return s.prefix + ":last_height"
}

func (s *RedisStore) eventKey(eventID string) string {
	return s.prefix + ":event:" + eventID
}
