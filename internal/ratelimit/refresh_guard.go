package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/harvestprice/internal/config"
)

const (
	keyReferenceRefreshLock = "harvestprice:reference:refresh:%s:%s:%s"
	keyReferenceUpstream    = "harvestprice:reference:upstream"
)

// RefreshGuard coordinates reference refreshes across instances. A nil guard
// means single-instance mode: every lock is granted and upstream calls are
// only limited in-process.
type RefreshGuard struct {
	bucket  *TokenBucket
	locker  *Locker
	lockTTL time.Duration
	rate    float64
	burst   int
}

func NewRefreshGuard(client redis.Cmdable, cfg config.Config) *RefreshGuard {
	if client == nil {
		return nil
	}
	lockTTL := cfg.Reference.Timeout * 3
	if lockTTL <= 0 {
		lockTTL = 15 * time.Second
	}
	return &RefreshGuard{
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		lockTTL: lockTTL,
		rate:    cfg.Reference.RatePerSecond,
		burst:   cfg.Reference.Burst,
	}
}

func (g *RefreshGuard) Enabled() bool {
	return g != nil
}

// TryLockRefresh claims the right to refresh one cache key.
func (g *RefreshGuard) TryLockRefresh(ctx context.Context, commodity, region, district string) (string, bool, error) {
	if !g.Enabled() {
		return "", true, nil
	}
	return g.locker.TryLock(ctx, refreshKey(commodity, region, district), g.lockTTL)
}

func (g *RefreshGuard) ReleaseRefresh(ctx context.Context, commodity, region, district, token string) error {
	if !g.Enabled() {
		return nil
	}
	return g.locker.Release(ctx, refreshKey(commodity, region, district), token)
}

// AllowUpstream takes a token from the cluster-wide budget for the external source.
func (g *RefreshGuard) AllowUpstream(ctx context.Context) (bool, time.Duration, error) {
	if !g.Enabled() || g.rate <= 0 || g.burst <= 0 {
		return true, 0, nil
	}
	res, err := g.bucket.Allow(ctx, keyReferenceUpstream, g.rate, g.burst)
	if err != nil {
		return false, 0, err
	}
	return res.Allowed, res.RetryAfter, nil
}

func refreshKey(commodity, region, district string) string {
	return fmt.Sprintf(
		keyReferenceRefreshLock,
		strings.ToLower(strings.TrimSpace(commodity)),
		strings.TrimSpace(region),
		strings.TrimSpace(district),
	)
}
