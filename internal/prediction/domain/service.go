package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/harvestprice/internal/signal"
)

type Service interface {
	Predict(ctx context.Context, commodity, region string) signal.Result[Prediction]
	BatchPredict(ctx context.Context, items []BatchItem) []BatchPrediction
}

// SeasonalTable yields the monthly multiplier for a commodity.
type SeasonalTable interface {
	Multiplier(commodity string, month time.Month) float64
}

type Basis string

const (
	BasisHistory   Basis = "history"
	BasisReference Basis = "reference"
)

// Confidence reported for every batch prediction.
const DefaultConfidence = 0.75

type Prediction struct {
	Commodity          string  `json:"commodity"`
	Region             string  `json:"region,omitempty"`
	Price              float64 `json:"predicted_price"`
	Basis              Basis   `json:"basis"`
	Observations       int     `json:"observations"`
	SeasonalMultiplier float64 `json:"seasonal_multiplier"`
}

type BatchItem struct {
	ProductRef   string  `json:"product_id"`
	Commodity    string  `json:"commodity"`
	Region       string  `json:"region"`
	CurrentPrice float64 `json:"current_price"`
}

type BatchPrediction struct {
	ProductRef     string   `json:"product_id,omitempty"`
	Commodity      string   `json:"commodity"`
	CurrentPrice   float64  `json:"current_price"`
	PredictedPrice *float64 `json:"predicted_price"`
	Basis          Basis    `json:"basis,omitempty"`
	Confidence     float64  `json:"confidence"`
}

var ErrInvalidCommodity = errors.New("invalid_commodity")
