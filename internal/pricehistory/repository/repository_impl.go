package repository

import (
	"context"
	"time"

	historydomain "github.com/smallbiznis/harvestprice/internal/pricehistory/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() historydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, obs *historydomain.Observation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO price_observations (
			id, product_ref, commodity, region, price, quantity, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		obs.ID,
		obs.ProductRef,
		obs.Commodity,
		obs.Region,
		obs.Price,
		obs.Quantity,
		obs.RecordedAt,
	).Error
}

func (r *repo) ListSince(ctx context.Context, db *gorm.DB, commodity string, since time.Time) ([]historydomain.Observation, error) {
	var items []historydomain.Observation
	err := db.WithContext(ctx).Raw(
		`SELECT id, product_ref, commodity, region, price, quantity, recorded_at
		 FROM price_observations
		 WHERE commodity = ? AND recorded_at >= ?
		 ORDER BY recorded_at DESC, id DESC`,
		commodity,
		since,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) DeleteBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM price_observations WHERE recorded_at < ?`,
		cutoff,
	)
	return res.RowsAffected, res.Error
}
