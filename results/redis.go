package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/glosings0n/Vut-Elimu/toolcall"
)

const (
	defaultTTL    = 7 * 24 * time.Hour
	defaultPrefix = "vutelimu"
)

// RedisStore keeps one Redis list of JSON score records per session.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets how long a session's results are kept after the last write.
// Set to 0 for no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "vutelimu".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed results store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    defaultTTL,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Record appends ev to its session list and refreshes the TTL in one round-trip.
func (s *RedisStore) Record(ctx context.Context, ev toolcall.ScoreEvent) error {
	if ev.SessionID == "" {
		return ErrInvalidID
	}

	data, err := json.Marshal(toRecord(ev))
	if err != nil {
		return fmt.Errorf("failed to marshal score: %w", err)
	}

	key := s.sessionKey(ev.SessionID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// List returns a session's scores in the order they were recorded.
func (s *RedisStore) List(ctx context.Context, sessionID string) ([]toolcall.ScoreEvent, error) {
	if sessionID == "" {
		return nil, ErrInvalidID
	}

	items, err := s.client.LRange(ctx, s.sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange failed: %w", err)
	}

	out := make([]toolcall.ScoreEvent, 0, len(items))
	for _, item := range items {
		var r record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal score: %w", err)
		}
		out = append(out, r.event())
	}
	return out, nil
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return fmt.Sprintf("%s:results:%s", s.prefix, sessionID)
}
