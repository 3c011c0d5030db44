package models

import (
	"time"

	"github.com/angelmondragon/trailpack-backend/pkg/enums"
)

// Product is a catalog entry. Prices are stored in minor units.
type Product struct {
	ID           int64                 `gorm:"column:id;primaryKey;autoIncrement"`
	Name         string                `gorm:"column:name;not null"`
	Description  *string               `gorm:"column:description"`
	PriceCents   int64                 `gorm:"column:price_cents;not null"`
	CategorySlug enums.ProductCategory `gorm:"column:category_slug;not null"`
	ImageURL     *string               `gorm:"column:image_url"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
