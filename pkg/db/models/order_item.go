package models

import "time"

// OrderItem freezes the product price at checkout time. ProductID becomes nil
// if the product is later removed from the catalog.
type OrderItem struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID    int64     `gorm:"column:order_id;not null"`
	ProductID  *int64    `gorm:"column:product_id"`
	Quantity   int       `gorm:"column:quantity;not null"`
	PriceCents int64     `gorm:"column:price_cents;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
