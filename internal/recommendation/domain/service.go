package domain

import (
	"context"
	"errors"

	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	trenddomain "github.com/smallbiznis/harvestprice/internal/trend/domain"
)

type Service interface {
	// Recommend compares a seller's price against the predicted and reference
	// prices. Missing signals degrade the advice, they never fail it.
	Recommend(ctx context.Context, commodity string, currentPrice float64) (Recommendation, error)
	// PriceRange reports the reference market range for a commodity.
	PriceRange(ctx context.Context, commodity string) (PriceRange, error)
	// ValidatePrice checks price against the reference range widened by
	// tolerance on both sides.
	ValidatePrice(ctx context.Context, commodity string, price, tolerance float64) (PriceValidation, error)
}

// DefaultTolerance widens the market range by 30% each way.
const DefaultTolerance = 0.3

type Action string

const (
	ActionRaise Action = "raise"
	ActionLower Action = "lower"
	ActionKeep  Action = "keep"
	// ActionNone means there was not enough market data to compare against.
	ActionNone Action = "none"
)

type Recommendation struct {
	Commodity      string                `json:"commodity"`
	Message        string                `json:"recommendation"`
	Action         Action                `json:"action"`
	SuggestedPrice float64               `json:"suggested_price"`
	CurrentPrice   float64               `json:"current_price"`
	PredictedPrice *float64              `json:"predicted_price"`
	ReferencePrice *float64              `json:"reference_price"`
	Trend          trenddomain.Direction `json:"trend"`
	TrendChange    float64               `json:"trend_change"`
}

type Suggestion string

const (
	SuggestionTooLow  Suggestion = "too_low"
	SuggestionTooHigh Suggestion = "too_high"
	SuggestionOptimal Suggestion = "optimal"
)

// PriceRange always satisfies Min <= Current <= Max.
type PriceRange struct {
	Commodity string           `json:"commodity"`
	Min       float64          `json:"min"`
	Max       float64          `json:"max"`
	Current   float64          `json:"current"`
	Source    refdomain.Source `json:"source"`
}

type PriceValidation struct {
	Commodity   string     `json:"commodity"`
	Price       float64    `json:"price"`
	Tolerance   float64    `json:"tolerance"`
	Valid       bool       `json:"is_valid"`
	MinAllowed  float64    `json:"min_allowed"`
	MaxAllowed  float64    `json:"max_allowed"`
	MarketPrice float64    `json:"market_price"`
	Suggestion  Suggestion `json:"suggestion"`
}

var (
	ErrInvalidCommodity = errors.New("invalid_commodity")
	ErrInvalidPrice     = errors.New("invalid_price")
	ErrInvalidTolerance = errors.New("invalid_tolerance")
	ErrNoMarketPrice    = errors.New("no_market_price")
)
