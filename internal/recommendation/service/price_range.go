package service

import (
	"context"
	"math"

	"github.com/smallbiznis/harvestprice/internal/commodity"
	obslogger "github.com/smallbiznis/harvestprice/internal/observability/logger"
	recdomain "github.com/smallbiznis/harvestprice/internal/recommendation/domain"
	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	"go.uber.org/zap"
)

func (s *Service) PriceRange(ctx context.Context, name string) (recdomain.PriceRange, error) {
	key := commodity.Normalize(name)
	if key == "" {
		return recdomain.PriceRange{}, recdomain.ErrInvalidCommodity
	}
	return s.priceRange(ctx, key)
}

func (s *Service) ValidatePrice(ctx context.Context, name string, price, tolerance float64) (recdomain.PriceValidation, error) {
	key := commodity.Normalize(name)
	if key == "" {
		return recdomain.PriceValidation{}, recdomain.ErrInvalidCommodity
	}
	if !(price > 0) || math.IsInf(price, 0) {
		return recdomain.PriceValidation{}, recdomain.ErrInvalidPrice
	}
	if !(tolerance >= 0 && tolerance <= 1) {
		return recdomain.PriceValidation{}, recdomain.ErrInvalidTolerance
	}

	rng, err := s.priceRange(ctx, key)
	if err != nil {
		return recdomain.PriceValidation{}, err
	}

	minAllowed := rng.Min * (1 - tolerance)
	maxAllowed := rng.Max * (1 + tolerance)
	out := recdomain.PriceValidation{
		Commodity:   key,
		Price:       price,
		Tolerance:   tolerance,
		MinAllowed:  math.Round(minAllowed),
		MaxAllowed:  math.Round(maxAllowed),
		MarketPrice: rng.Current,
		Suggestion:  recdomain.SuggestionOptimal,
	}
	// compared against the unrounded bounds
	switch {
	case price < minAllowed:
		out.Suggestion = recdomain.SuggestionTooLow
	case price > maxAllowed:
		out.Suggestion = recdomain.SuggestionTooHigh
	}
	out.Valid = out.Suggestion == recdomain.SuggestionOptimal

	obslogger.WithContext(ctx, s.log).Debug("price validated",
		zap.String("commodity", key),
		zap.Float64("price", price),
		zap.String("suggestion", string(out.Suggestion)),
	)
	return out, nil
}

func (s *Service) priceRange(ctx context.Context, key string) (recdomain.PriceRange, error) {
	res := s.reference.GetPrice(ctx, refdomain.Lookup{Commodity: key})
	quote, ok := res.Get()
	if !ok {
		if err := res.Err(); err != nil {
			return recdomain.PriceRange{}, err
		}
		return recdomain.PriceRange{}, recdomain.ErrNoMarketPrice
	}
	return rangeFromQuote(key, quote), nil
}

// rangeFromQuote clamps the averaged bounds around the modal price. A zero
// bound means no market reported it.
func rangeFromQuote(key string, q refdomain.Quote) recdomain.PriceRange {
	r := recdomain.PriceRange{
		Commodity: key,
		Min:       q.MinPrice,
		Max:       q.MaxPrice,
		Current:   q.ModalPrice,
		Source:    q.Source,
	}
	if r.Min <= 0 || r.Min > r.Current {
		r.Min = r.Current
	}
	if r.Max < r.Current {
		r.Max = r.Current
	}
	return r
}
