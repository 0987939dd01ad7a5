package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims expired members and counts atomically, so
// concurrent callers of one key serialize inside Redis. ZSET members are
// unique per request; score is the request's unix microsecond time.
//
// KEYS[1] = window key
// ARGV[1] = now (unix microseconds)
// ARGV[2] = window length (microseconds)
// ARGV[3] = max requests per window
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, 0, now - window)
local count = redis.call("ZCARD", key)
if count >= limit then
    return 0
end
redis.call("ZADD", key, now, now .. "-" .. math.random(1000000))
redis.call("PEXPIRE", key, math.ceil(window / 1000))
return 1
`)

// RedisStore shares one sliding window across processes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a store over an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "verdict:ratelimit:"}
}

// DialRedisStore connects to addr and builds a store.
func DialRedisStore(addr, password string, db int) *RedisStore {
	return NewRedisStore(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

// Allow runs the window script for key.
func (s *RedisStore) Allow(ctx context.Context, key string, p Policy) (bool, error) {
	if p.Requests <= 0 || p.Window <= 0 {
		return true, nil
	}
	now := time.Now().UnixMicro()
	res, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		now, p.Window.Microseconds(), p.Requests,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis script: %w", err)
	}
	return res == 1, nil
}

// Remaining prunes the key's window and reports the unused allowance.
func (s *RedisStore) Remaining(ctx context.Context, key string, p Policy) (int, error) {
	if p.Requests <= 0 || p.Window <= 0 {
		return p.Requests, nil
	}
	now := time.Now().UnixMicro()
	full := s.prefix + key
	if err := s.client.ZRemRangeByScore(ctx, full, "0",
		fmt.Sprintf("%d", now-p.Window.Microseconds())).Err(); err != nil {
		return 0, fmt.Errorf("ratelimit: redis prune: %w", err)
	}
	count, err := s.client.ZCard(ctx, full).Result()
	if err != nil {
		return 0, fmt.Errorf("ratelimit: redis count: %w", err)
	}
	if rem := p.Requests - int(count); rem > 0 {
		return rem, nil
	}
	return 0, nil
}

// Close releases the client connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
