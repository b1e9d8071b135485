package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&refdomain.Entry{}))
	return db
}

func TestUpsertReplacesByKey(t *testing.T) {
	db := setupDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

	require.NoError(t, r.Upsert(ctx, db, &refdomain.Entry{
		ID: 1, Commodity: "tomato", Region: "karnataka", ModalPrice: 20, LastUpdated: now,
		Metadata: datatypes.JSONMap{"markets": []string{"Kolar"}},
	}))
	require.NoError(t, r.Upsert(ctx, db, &refdomain.Entry{
		ID: 2, Commodity: "tomato", Region: "karnataka", ModalPrice: 25, LastUpdated: now.Add(time.Hour),
	}))

	var count int64
	require.NoError(t, db.Model(&refdomain.Entry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err := r.FindByKey(ctx, db, refdomain.Lookup{Commodity: "tomato", Region: "karnataka"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 25.0, got.ModalPrice)
	assert.True(t, got.LastUpdated.Equal(now.Add(time.Hour)))
}

func TestFindByKeyMissing(t *testing.T) {
	db := setupDB(t)

	got, err := Provide().FindByKey(context.Background(), db, refdomain.Lookup{Commodity: "onion"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTrendingSince(t *testing.T) {
	db := setupDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

	entries := []refdomain.Entry{
		{ID: 1, Commodity: "tomato", Region: "karnataka", ModalPrice: 20, LastUpdated: now},
		{ID: 2, Commodity: "tomato", Region: "maharashtra", ModalPrice: 30, LastUpdated: now},
		{ID: 3, Commodity: "onion", Region: "", ModalPrice: 40, LastUpdated: now},
		{ID: 4, Commodity: "potato", Region: "", ModalPrice: 15, LastUpdated: now.Add(-10 * 24 * time.Hour)},
	}
	for i := range entries {
		require.NoError(t, r.Upsert(ctx, db, &entries[i]))
	}

	items, err := r.TrendingSince(ctx, db, now.Add(-7*24*time.Hour), 20)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "tomato", items[0].Commodity)
	assert.Equal(t, int64(2), items[0].DataPoints)
	assert.InDelta(t, 25.0, items[0].AvgPrice, 1e-9)
	assert.Equal(t, "onion", items[1].Commodity)
}
