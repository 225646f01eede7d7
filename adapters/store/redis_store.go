package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the Store interface.
// Session expiry is enforced with key TTLs.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "walletauth:session:",
	}
}

var _ ports.Store = (*RedisStore)(nil)

// Load reads and decodes a session slot
func (s *RedisStore) Load(ctx context.Context, id string) (*core.Session, error) {
	raw, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w: %v", core.ErrStoreOperationFailed, err)
	}

	var session core.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("%w: undecodable session slot", core.ErrStorageIntegrity)
	}
	if session.ID != id {
		return nil, fmt.Errorf("%w: session slot id mismatch", core.ErrStorageIntegrity)
	}
	return &session, nil
}

// Save writes a session slot with expiration
func (s *RedisStore) Save(ctx context.Context, session *core.Session, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Delete(ctx, session.ID)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.prefix+session.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w: %v", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// Delete removes a session slot
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w: %v", core.ErrStoreOperationFailed, err)
	}
	return nil
}
