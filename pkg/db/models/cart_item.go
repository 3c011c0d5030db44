package models

import "time"

// CartItem is one product line in a cart. (cart_id, product_id) is unique.
type CartItem struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CartID    int64     `gorm:"column:cart_id;not null"`
	ProductID int64     `gorm:"column:product_id;not null"`
	Quantity  int       `gorm:"column:quantity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
