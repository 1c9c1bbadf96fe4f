package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// KeyPrefix namespaces analysis entries in a shared Redis.
const KeyPrefix = "modcheck:analysis:"

// RedisStore keeps analyses as JSON in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	counters
}

// NewRedisStore connects to the Redis at url and checks the connection.
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Get returns the stored analysis or ErrCacheMiss. Undecodable entries are deleted.
func (s *RedisStore) Get(ctx context.Context, key string) (*FileAnalysis, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	data, err := s.client.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.miss()
		return nil, ErrCacheMiss
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var a FileAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		s.client.Del(ctx, KeyPrefix+key)
		s.miss()
		return nil, ErrCacheMiss
	}
	s.hit()
	return &a, nil
}

// Set stores analysis under key with the store's TTL.
func (s *RedisStore) Set(ctx context.Context, key string, analysis *FileAnalysis) error {
	if key == "" {
		return ErrInvalidKey
	}
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	return s.client.Set(ctx, KeyPrefix+key, data, s.ttl).Err()
}

// Stats returns counters and the number of stored analyses.
func (s *RedisStore) Stats(ctx context.Context) (*Stats, error) {
	var n int64
	iter := s.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return s.stats(n), nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
