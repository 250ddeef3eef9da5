package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const backendRedis = "redis"

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisStore keeps the encoded document as a single string value.
type RedisStore struct {
	client redisClient
	key    string
}

func NewRedisStore(client redisClient, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func DialRedis(ctx context.Context, addr, key string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedisStore(client, key), nil
}

func (s *RedisStore) Read(ctx context.Context) (*Document, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, readError(backendRedis, fmt.Errorf("key %s not found", s.key))
	}
	if err != nil {
		return nil, readError(backendRedis, err)
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, readError(backendRedis, fmt.Errorf("parse key %s: %w", s.key, err))
	}
	return doc, nil
}

func (s *RedisStore) Write(ctx context.Context, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return writeError(backendRedis, err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return writeError(backendRedis, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
