package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers logged-out token ids until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revokedKeyPrefix = "session:revoked:"

type RedisRevocations struct {
	client *redis.Client
}

// NewRedisRevocations connects to Redis and pings it once.
func NewRedisRevocations(ctx context.Context, addr, password string, db int) (*RedisRevocations, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisRevocations{client: client}, nil
}

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.client.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err()
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, revokedKeyPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisRevocations) Close() error {
	return r.client.Close()
}

// MemoryRevocations is used when Redis is not configured and in tests.
type MemoryRevocations struct {
	mu  sync.Mutex
	m   map[string]time.Time
	now func() time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{m: make(map[string]time.Time), now: time.Now}
}

func (r *MemoryRevocations) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[tokenID] = r.now().Add(ttl)
	return nil
}

func (r *MemoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.m[tokenID]
	if !ok {
		return false, nil
	}
	if r.now().After(exp) {
		delete(r.m, tokenID)
		return false, nil
	}
	return true, nil
}
