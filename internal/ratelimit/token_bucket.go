package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// The bucket lives in one Redis hash so every instance draws from the same
// upstream budget. The script answers {allowed, retry_after_ms}.
var bucketScript = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl_ms = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now
tokens = math.min(burst, tokens + math.max(0, now - last) * rate / 1000)

local allowed = 0
local wait_ms = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait_ms = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl_ms)
return {allowed, wait_ms}
`)

var errBucketNotConfigured = errors.New("token bucket not configured")

type TokenBucket struct {
	client redis.Cmdable
}

type BucketResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

func NewTokenBucket(client redis.Cmdable) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client}
}

// Allow takes one token from the bucket at key, refilled at rate per second
// up to burst.
func (b *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (BucketResult, error) {
	if b == nil {
		return BucketResult{}, errBucketNotConfigured
	}
	if key == "" || rate <= 0 || burst <= 0 {
		return BucketResult{}, fmt.Errorf("token bucket %q: rate and burst must be positive", key)
	}

	reply, err := bucketScript.Run(ctx, b.client, []string{key}, rate, burst, bucketTTL(rate, burst).Milliseconds()).Int64Slice()
	if err != nil {
		return BucketResult{}, err
	}
	if len(reply) != 2 {
		return BucketResult{}, fmt.Errorf("token bucket %q: unexpected reply %v", key, reply)
	}
	return BucketResult{
		Allowed:    reply[0] == 1,
		RetryAfter: time.Duration(reply[1]) * time.Millisecond,
	}, nil
}

// bucketTTL keeps an idle bucket around for twice its full refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(2*float64(burst)/rate))
	return time.Duration(seconds) * time.Second
}
