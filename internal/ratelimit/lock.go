package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLockNotConfigured = errors.New("lock client not configured")
	ErrEmptyLockKey      = errors.New("lock key is empty")
	ErrInvalidLockTTL    = errors.New("lock ttl must be positive")
)

// compare-and-delete so a refresh that outlived its ttl cannot drop a lock
// another instance has since taken
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out expiring single-node Redis locks identified by a random token.
type Locker struct {
	client redis.Cmdable
}

func NewLocker(client redis.Cmdable) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

// TryLock returns the lock token and whether it was acquired. It never waits.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	switch {
	case l == nil:
		return "", false, ErrLockNotConfigured
	case key == "":
		return "", false, ErrEmptyLockKey
	case ttl <= 0:
		return "", false, ErrInvalidLockTTL
	}

	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !acquired {
		return "", false, err
	}
	return token, true, nil
}

// Release is a no-op for an empty token or a nil locker.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || key == "" || token == "" {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
}
