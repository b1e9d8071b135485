package repository

import (
	"context"
	"errors"
	"time"

	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() refdomain.Repository {
	return &repo{}
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, key refdomain.Lookup) (*refdomain.Entry, error) {
	var entry refdomain.Entry
	err := db.WithContext(ctx).
		Where("commodity = ? AND region = ? AND district = ?", key.Commodity, key.Region, key.District).
		Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Upsert replaces the entry for its key in one statement.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, entry *refdomain.Entry) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "commodity"}, {Name: "region"}, {Name: "district"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"modal_price",
			"min_price",
			"max_price",
			"variety",
			"arrival_date",
			"record_count",
			"metadata",
			"last_updated",
		}),
	}).Create(entry).Error
}

func (r *repo) TrendingSince(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]refdomain.TrendingCommodity, error) {
	var items []refdomain.TrendingCommodity
	err := db.WithContext(ctx).Raw(
		`SELECT commodity, AVG(modal_price) AS avg_price, COUNT(*) AS data_points
		 FROM reference_prices
		 WHERE last_updated >= ?
		 GROUP BY commodity
		 ORDER BY data_points DESC, commodity ASC
		 LIMIT ?`,
		since,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
