// Package cursor persists the incremental sync position so that ranged
// runs can resume from the last successful pull instead of a fixed
// window.
package cursor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoCursor is returned when no cursor has been stored yet.
var ErrNoCursor = errors.New("no sync cursor stored")

// State is the persisted position of one incremental sync stream.
type State struct {
	LastRunAt time.Time `json:"last_run_at"`
	Tally     string    `json:"tally,omitempty"`
}

// RedisStore persists cursors in Redis, one key per database ID.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "synccursor:",
	}
}

func (s *RedisStore) key(databaseID string) string {
	return s.prefix + databaseID
}

// Get returns the stored cursor for one database, or ErrNoCursor.
func (s *RedisStore) Get(ctx context.Context, databaseID string) (State, error) {
	raw, err := s.client.Get(ctx, s.key(databaseID)).Result()
	if errors.Is(err, redis.Nil) {
		return State{}, ErrNoCursor
	}
	if err != nil {
		return State{}, fmt.Errorf("get sync cursor: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return State{}, fmt.Errorf("unmarshal sync cursor: %w", err)
	}
	return state, nil
}

// Set stores the cursor for one database. Cursors do not expire.
func (s *RedisStore) Set(ctx context.Context, databaseID string, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal sync cursor: %w", err)
	}
	if err := s.client.Set(ctx, s.key(databaseID), raw, 0).Err(); err != nil {
		return fmt.Errorf("set sync cursor: %w", err)
	}
	return nil
}

// Clear removes the cursor for one database.
func (s *RedisStore) Clear(ctx context.Context, databaseID string) error {
	if err := s.client.Del(ctx, s.key(databaseID)).Err(); err != nil {
		return fmt.Errorf("clear sync cursor: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
