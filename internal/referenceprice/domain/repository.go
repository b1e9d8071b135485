package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindByKey(ctx context.Context, db *gorm.DB, key Lookup) (*Entry, error)
	Upsert(ctx context.Context, db *gorm.DB, entry *Entry) error
	TrendingSince(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]TrendingCommodity, error)
}
