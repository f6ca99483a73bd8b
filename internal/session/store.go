package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisclient "github.com/emarket-io/emarket-backend/pkg/redis"
	redislib "github.com/redis/go-redis/v9"
)

// Store is the key-value persistence layer behind user sessions. The value is
// the whole session map; saves are all-or-nothing so the stored payload is
// never a partial write.
type Store interface {
	Load(ctx context.Context, sessionID string) (map[string]json.RawMessage, error)
	Save(ctx context.Context, sessionID string, values map[string]json.RawMessage) error
	Delete(ctx context.Context, sessionID string) error
}

type sessionBackend interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	SessionKey(sessionID string) string
}

// RedisStore persists session maps as JSON blobs in Redis.
type RedisStore struct {
	backend sessionBackend
	keyer   sessionKeyer
	ttl     time.Duration
}

// NewRedisStore constructs a session store backed by Redis.
func NewRedisStore(client *redisclient.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &RedisStore{
		backend: client,
		keyer:   client,
		ttl:     ttl,
	}, nil
}

// Load returns the session map for the given id, or an empty map when the
// session does not exist yet.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (map[string]json.RawMessage, error) {
	payload, err := s.backend.Get(ctx, s.keyer.SessionKey(sessionID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	values := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return nil, fmt.Errorf("decoding session payload: %w", err)
	}
	return values, nil
}

// Save writes the whole session map, refreshing the TTL.
func (s *RedisStore) Save(ctx context.Context, sessionID string, values map[string]json.RawMessage) error {
	if values == nil {
		values = map[string]json.RawMessage{}
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding session payload: %w", err)
	}
	if err := s.backend.Set(ctx, s.keyer.SessionKey(sessionID), payload, s.ttl); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Delete removes the session entirely.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.backend.Del(ctx, s.keyer.SessionKey(sessionID))
}
