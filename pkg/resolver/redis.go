package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash key holding the map when none is configured.
const DefaultRedisKey = "buildshift:backends"

// RedisConfig holds connection settings for a Redis-backed store.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Key      string // hash key, defaults to DefaultRedisKey
}

// RedisStore keeps the map in a single Redis hash. It exists for setups
// where several machines share one resolving effort; the blob store is
// the default for local runs.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address required")
	}
	key := cfg.Key
	if key == "" {
		key = DefaultRedisKey
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, key: key}, nil
}

// Load reads the full hash. A key that was never written yields an empty map.
func (s *RedisStore) Load(ctx context.Context) (map[string]string, error) {
	entries, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load: %w", err)
	}
	return entries, nil
}

// Save replaces the hash with entries in a single transaction, so readers
// never observe a partially written map.
func (s *RedisStore) Save(ctx context.Context, entries map[string]string) error {
	if err := validate(entries); err != nil {
		return err
	}

	flat := make([]string, 0, len(entries)*2)
	for hash, label := range entries {
		flat = append(flat, hash, label)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	if len(flat) > 0 {
		pipe.HSet(ctx, s.key, flat)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

var _ Store = (*RedisStore)(nil)
