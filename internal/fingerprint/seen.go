package fingerprint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces fingerprint keys in redis so the instance can be
// shared with other subsystems.
const keyPrefix = "chishiki:fp:"

// RedisSeenIndex is a SeenIndex backed by redis SET NX with a TTL, so the
// dedup window expires instead of growing without bound.
type RedisSeenIndex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSeenIndex connects to redis at url (redis://host:port/db).
func NewRedisSeenIndex(url string, ttl time.Duration) (*RedisSeenIndex, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisSeenIndex{client: redis.NewClient(opts), ttl: ttl}, nil
}

// Observe records hash with SET NX and reports whether it already existed.
func (r *RedisSeenIndex) Observe(ctx context.Context, hash string) (bool, error) {
	created, err := r.client.SetNX(ctx, keyPrefix+hash, 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return !created, nil
}

// Close releases the redis connection.
func (r *RedisSeenIndex) Close() error { return r.client.Close() }

// MemorySeenIndex is an in-process SeenIndex for tests and single-node runs.
type MemorySeenIndex struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemorySeenIndex creates an empty in-memory seen index.
func NewMemorySeenIndex() *MemorySeenIndex {
	return &MemorySeenIndex{seen: make(map[string]struct{})}
}

// Observe records hash in memory and reports prior presence.
func (m *MemorySeenIndex) Observe(ctx context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[hash]; ok {
		return true, nil
	}
	m.seen[hash] = struct{}{}
	return false, nil
}

// Close is a no-op for the memory index.
func (m *MemorySeenIndex) Close() error { return nil }

// NewSeenIndex creates a seen index from configuration: redis when url is
// set, memory otherwise.
func NewSeenIndex(url string, ttl time.Duration) (SeenIndex, error) {
	if url == "" {
		return NewMemorySeenIndex(), nil
	}
	return NewRedisSeenIndex(url, ttl)
}
