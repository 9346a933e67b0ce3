package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore keeps values as plain Redis strings under a key prefix.
type RedisStore struct {
	Client goredis.Cmdable
	Prefix string
}

// ConnectRedis dials addr and verifies the connection with a ping.
func ConnectRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) key(k string) string { return s.Prefix + k }

// Get fetches the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.Client == nil {
		return nil, fmt.Errorf("%w: redis client is nil", ErrStorage)
	}
	data, err := s.Client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get %s: %w", ErrStorage, key, err)
	}
	return data, nil
}

// Set stores value under key without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if s.Client == nil {
		return fmt.Errorf("%w: redis client is nil", ErrStorage)
	}
	if err := s.Client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %w", ErrStorage, key, err)
	}
	return nil
}

// Remove deletes key.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if s.Client == nil {
		return fmt.Errorf("%w: redis client is nil", ErrStorage)
	}
	if err := s.Client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: redis del %s: %w", ErrStorage, key, err)
	}
	return nil
}

// Close closes the client when it owns a connection pool.
func (s *RedisStore) Close(ctx context.Context) error {
	if c, ok := s.Client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
