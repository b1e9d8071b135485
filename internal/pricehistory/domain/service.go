package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	// Record appends an observation. Failures are logged, never returned.
	Record(ctx context.Context, req RecordRequest)
	// Query returns observations for commodity recorded within the trailing
	// window, newest first.
	Query(ctx context.Context, commodity string, window time.Duration) ([]Observation, error)
	// Prune deletes observations older than retention and reports how many went.
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

type Channel string

const (
	ChannelHTTP     Channel = "http"
	ChannelKafka    Channel = "kafka"
	ChannelInternal Channel = "internal"
)

type RecordRequest struct {
	ProductRef string  `json:"product_id"`
	Commodity  string  `json:"commodity"`
	Price      float64 `json:"price"`
	Quantity   float64 `json:"quantity"`
	Region     string  `json:"region"`
	Channel    Channel `json:"-"`
}

var (
	ErrInvalidCommodity = errors.New("invalid_commodity")
	ErrInvalidWindow    = errors.New("invalid_window")
)
