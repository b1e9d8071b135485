package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Observation is one completed-sale price. Rows are never updated.
type Observation struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	ProductRef string       `json:"product_ref,omitempty" gorm:"column:product_ref;type:varchar(64);index:idx_price_observations_product"`
	Commodity  string       `json:"commodity" gorm:"type:varchar(128);not null;index:idx_price_observations_commodity_recorded,priority:1"`
	Region     string       `json:"region,omitempty" gorm:"type:varchar(128);not null;default:''"`
	Price      float64      `json:"price" gorm:"not null"`
	Quantity   float64      `json:"quantity" gorm:"not null"`
	RecordedAt time.Time    `json:"recorded_at" gorm:"not null;index:idx_price_observations_commodity_recorded,priority:2,sort:desc"`
}

func (Observation) TableName() string { return "price_observations" }
