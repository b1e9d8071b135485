package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Entry is the cached reference price for one (commodity, region, district) key.
type Entry struct {
	ID          snowflake.ID      `json:"id" gorm:"primaryKey"`
	Commodity   string            `json:"commodity" gorm:"type:varchar(128);not null;uniqueIndex:ux_reference_prices_key,priority:1"`
	Region      string            `json:"region" gorm:"type:varchar(128);not null;default:'';uniqueIndex:ux_reference_prices_key,priority:2"`
	District    string            `json:"district" gorm:"type:varchar(128);not null;default:'';uniqueIndex:ux_reference_prices_key,priority:3"`
	ModalPrice  float64           `json:"modal_price" gorm:"not null"`
	MinPrice    float64           `json:"min_price" gorm:"not null;default:0"`
	MaxPrice    float64           `json:"max_price" gorm:"not null;default:0"`
	Variety     string            `json:"variety" gorm:"type:varchar(128);not null;default:''"`
	ArrivalDate string            `json:"arrival_date" gorm:"type:varchar(32);not null;default:''"`
	RecordCount int               `json:"record_count" gorm:"not null;default:0"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	LastUpdated time.Time         `json:"last_updated" gorm:"not null;index:idx_reference_prices_last_updated"`
}

func (Entry) TableName() string { return "reference_prices" }

type Lookup struct {
	Commodity string
	Region    string
	District  string
}

type Source string

const (
	SourceCache Source = "cache"
	SourceAPI   Source = "api"
	SourceStale Source = "stale"
)

// Quote is what callers see for a reference price lookup.
type Quote struct {
	Commodity   string    `json:"commodity"`
	Region      string    `json:"region,omitempty"`
	District    string    `json:"district,omitempty"`
	ModalPrice  float64   `json:"modal_price"`
	MinPrice    float64   `json:"min_price"`
	MaxPrice    float64   `json:"max_price"`
	Variety     string    `json:"variety"`
	ArrivalDate string    `json:"arrival_date,omitempty"`
	RecordCount int       `json:"record_count"`
	Markets     []string  `json:"markets,omitempty"`
	Source      Source    `json:"source"`
	LastUpdated time.Time `json:"last_updated"`
}

type TrendingCommodity struct {
	Commodity  string  `json:"commodity"`
	AvgPrice   float64 `json:"avg_price"`
	DataPoints int64   `json:"data_points"`
}

type RefreshResult struct {
	Commodity string `json:"commodity"`
	State     string `json:"state"`
	Quote     *Quote `json:"price,omitempty"`
	Error     string `json:"error,omitempty"`
	Success   bool   `json:"success"`
}
