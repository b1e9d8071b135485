package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, obs *Observation) error
	ListSince(ctx context.Context, db *gorm.DB, commodity string, since time.Time) ([]Observation, error)
	DeleteBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
