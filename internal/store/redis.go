package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is where the credential set lives when no key is configured
const DefaultRedisKey = "leaderboard:credentials"

// RedisStore keeps the whole credential set as one JSON value under a single
// key. A single SET replaces it atomically.
type RedisStore struct {
	client *redis.Client
	key    string
}

// OpenRedis connects to redis and pings it with a short timeout.
func OpenRedis(ctx context.Context, addr, password string, db int, key string) (*RedisStore, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}

	return NewRedisStore(client, key), nil
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Load reads the credential set. A missing key is an empty registry.
func (r *RedisStore) Load(ctx context.Context) ([]Credential, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", r.key, err)
	}

	var creds []Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", r.key, err)
	}
	return creds, nil
}

// Save overwrites the credential set
func (r *RedisStore) Save(ctx context.Context, creds []Credential) error {
	if creds == nil {
		creds = []Credential{}
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", r.key, err)
	}
	return nil
}

// Close closes the redis client
func (r *RedisStore) Close() error {
	return r.client.Close()
}
