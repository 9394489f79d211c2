package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent or expired
var ErrMiss = errors.New("cache miss")

// KV is the small key/value surface the services cache through
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RedisKV stores values in redis
type RedisKV struct {
	c *redis.Client
}

// NewRedisClient builds a redis client from connection settings
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.c.Del(ctx, keys...).Err()
}

// MemoryKV is an in-process KV used when redis is not configured
type MemoryKV struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value     string
	expiresAt time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string]memoryItem), now: time.Now}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return "", ErrMiss
	}
	if !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt) {
		delete(m.items, key)
		return "", ErrMiss
	}
	return item.value, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.items, key)
	}
	return nil
}
