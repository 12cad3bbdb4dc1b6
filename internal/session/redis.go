// internal/session/redis.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "solsniper:session:"

// RedisStore хранит сессии в Redis, чтобы они переживали рестарт бота
type RedisStore struct {
	client redis.Cmdable
	closer func() error
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. Every Save refreshes the TTL.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, closer: func() error { return nil }, ttl: ttl}, nil
}

// NewRedisStoreFromURL dials redisURL and pings it once.
func NewRedisStoreFromURL(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	store, err := NewRedisStore(client, ttl)
	if err != nil {
		return nil, err
	}
	store.closer = client.Close
	return store, nil
}

func (r *RedisStore) Get(ctx context.Context, telegramID int64) (State, error) {
	raw, err := r.client.Get(ctx, sessionKey(telegramID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("get session: %w", err)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return state, nil
}

func (r *RedisStore) Save(ctx context.Context, telegramID int64, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(telegramID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, telegramID int64) error {
	if err := r.client.Del(ctx, sessionKey(telegramID)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.closer()
}

func sessionKey(telegramID int64) string {
	return keyPrefix + strconv.FormatInt(telegramID, 10)
}
