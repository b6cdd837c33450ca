package ratelimit

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBlockStore mirrors device blocks to Redis so that a multi-instance
// deployment shares block state even though per-request counters stay
// local to each instance's Limiter. It is an optional sidecar, not a
// replacement for Limiter's in-memory windows.
type RedisBlockStore struct {
	client *redis.Client
	logger *log.Logger
}

func NewRedisBlockStore(addr string) *RedisBlockStore {
	return &RedisBlockStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		logger: log.New(os.Stdout, "[RATE-LIMIT-REDIS] ", log.LstdFlags),
	}
}

func blockKey(deviceID string, tier Tier) string {
	return "wizard:ratelimit:block:" + deviceID + ":" + string(tier)
}

// Block persists a block for deviceID/tier with the given duration as the
// key's TTL.
func (s *RedisBlockStore) Block(ctx context.Context, deviceID string, tier Tier, duration time.Duration) error {
	return s.client.Set(ctx, blockKey(deviceID, tier), "1", duration).Err()
}

// Unblock removes a persisted block.
func (s *RedisBlockStore) Unblock(ctx context.Context, deviceID string, tier Tier) error {
	return s.client.Del(ctx, blockKey(deviceID, tier)).Err()
}

// IsBlocked reports whether deviceID/tier currently carries a persisted
// block, and the remaining TTL if so.
func (s *RedisBlockStore) IsBlocked(ctx context.Context, deviceID string, tier Tier) (bool, time.Duration) {
	ttl, err := s.client.TTL(ctx, blockKey(deviceID, tier)).Result()
	if err != nil || ttl <= 0 {
		return false, 0
	}
	return true, ttl
}

// Close releases the underlying Redis connection pool.
func (s *RedisBlockStore) Close() error {
	return s.client.Close()
}
