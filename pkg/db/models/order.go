package models

import (
	"time"

	"github.com/angelmondragon/trailpack-backend/pkg/enums"
)

// Order is the immutable checkout snapshot. Only status, paid_at and the
// ownership claim fields change after creation.
type Order struct {
	ID               int64             `gorm:"column:id;primaryKey;autoIncrement"`
	UserID           *int64            `gorm:"column:user_id"`
	Email            *string           `gorm:"column:email"`
	FirstName        *string           `gorm:"column:first_name"`
	LastName         *string           `gorm:"column:last_name"`
	ShippingAddress1 *string           `gorm:"column:shipping_address1"`
	ShippingAddress2 *string           `gorm:"column:shipping_address2"`
	ShippingCity     *string           `gorm:"column:shipping_city"`
	ShippingPostcode *string           `gorm:"column:shipping_postcode"`
	ShippingCountry  string            `gorm:"column:shipping_country;not null;default:UK"`
	Status           enums.OrderStatus `gorm:"column:status;not null"`
	Currency         enums.Currency    `gorm:"column:currency;not null;default:GBP"`
	SubtotalCents    int64             `gorm:"column:subtotal_cents;not null"`
	ShippingCents    int64             `gorm:"column:shipping_cents;not null"`
	TotalCents       int64             `gorm:"column:total_cents;not null"`
	GuestToken       *string           `gorm:"column:guest_token"`
	PaidAt           *time.Time        `gorm:"column:paid_at"`
	Items            []OrderItem       `gorm:"foreignKey:OrderID;references:ID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
