package payloads

import (
	"time"

	"github.com/angelmondragon/trailpack-backend/pkg/enums"
)

// OrderLine is a frozen line item as it was at checkout.
type OrderLine struct {
	ProductID  *int64 `json:"product_id,omitempty"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// OrderCreatedEvent is emitted when checkout converts a cart into an order.
type OrderCreatedEvent struct {
	OrderID       int64          `json:"order_id"`
	UserID        *int64         `json:"user_id,omitempty"`
	Guest         bool           `json:"guest"`
	Currency      enums.Currency `json:"currency"`
	SubtotalCents int64          `json:"subtotal_cents"`
	ShippingCents int64          `json:"shipping_cents"`
	TotalCents    int64          `json:"total_cents"`
	Items         []OrderLine    `json:"items"`
}

// OrderPaidEvent is emitted when a pending order is settled.
type OrderPaidEvent struct {
	OrderID    int64          `json:"order_id"`
	UserID     *int64         `json:"user_id,omitempty"`
	TotalCents int64          `json:"total_cents"`
	Currency   enums.Currency `json:"currency"`
	PaidAt     time.Time      `json:"paid_at"`
}

// OrderClaimedEvent is emitted when a guest order is attached to an account.
type OrderClaimedEvent struct {
	OrderID int64 `json:"order_id"`
	UserID  int64 `json:"user_id"`
}

// OrderStatusChangedEvent is emitted for administrative status transitions.
type OrderStatusChangedEvent struct {
	OrderID int64             `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}
