package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"canteen-api/auth"
	"canteen-api/models"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

type redisPayload struct {
	UserID uint            `json:"user_id"`
	Role   models.UserRole `json:"role"`
}

// RedisStore keeps sessions as JSON values with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, p auth.Principal) (string, error) {
	data, err := json.Marshal(redisPayload{UserID: p.UserID, Role: p.Role})
	if err != nil {
		return "", err
	}
	id := newID()
	if err := s.client.Set(ctx, keyPrefix+id, data, s.ttl).Err(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*auth.Principal, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var payload redisPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &auth.Principal{UserID: payload.UserID, Role: payload.Role}, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, keyPrefix+id).Err()
}
