package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/harvestprice/internal/signal"
)

type Service interface {
	// GetPrice serves a fresh cached entry or refreshes it from the external
	// source. It never returns an error: failures come back as a failed or
	// absent result.
	GetPrice(ctx context.Context, lookup Lookup) signal.Result[Quote]
	RefreshBatch(ctx context.Context, commodities []string) []RefreshResult
	Trending(ctx context.Context, window time.Duration, limit int) ([]TrendingCommodity, error)
}

// PriceSource fetches raw records for a lookup from the external dataset.
type PriceSource interface {
	Fetch(ctx context.Context, lookup Lookup) ([]RawRecord, error)
}

var (
	ErrInvalidCommodity    = errors.New("invalid_commodity")
	ErrInvalidWindow       = errors.New("invalid_window")
	ErrSourceUnavailable   = errors.New("reference_source_unavailable")
	ErrMalformedResponse   = errors.New("reference_source_malformed")
	ErrUpstreamRateLimited = errors.New("reference_source_rate_limited")
)
