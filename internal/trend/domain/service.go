package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Compute compares the oldest and newest observation within the trailing
	// windowDays. Storage failures degrade to an unknown trend.
	Compute(ctx context.Context, commodity string, windowDays int) (Trend, error)
}

type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
	DirectionStable     Direction = "stable"
	DirectionUnknown    Direction = "unknown"
)

const DefaultWindowDays = 30

type Trend struct {
	Commodity  string    `json:"commodity"`
	Direction  Direction `json:"trend"`
	Change     float64   `json:"change"`
	DataPoints int       `json:"data_points"`
	WindowDays int       `json:"window_days"`
}

var (
	ErrInvalidCommodity = errors.New("invalid_commodity")
	ErrInvalidWindow    = errors.New("invalid_window")
)
