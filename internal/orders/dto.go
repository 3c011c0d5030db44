package orders

import (
	"time"

	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
	"github.com/angelmondragon/trailpack-backend/pkg/enums"
)

// DeletedProductName labels order items whose product left the catalog.
const DeletedProductName = "Deleted product"

// OrderSummary is the list representation of an order.
type OrderSummary struct {
	ID              int64             `json:"id"`
	Status          enums.OrderStatus `json:"status"`
	Currency        enums.Currency    `json:"currency"`
	SubtotalCents   int64             `json:"subtotal_cents"`
	ShippingCents   int64             `json:"shipping_cents"`
	TotalCents      int64             `json:"total_cents"`
	Email           *string           `json:"email,omitempty"`
	FirstName       *string           `json:"first_name,omitempty"`
	LastName        *string           `json:"last_name,omitempty"`
	ShippingAddress ShippingAddress   `json:"shipping_address"`
	PaidAt          *time.Time        `json:"paid_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// ShippingAddress is the frozen delivery snapshot.
type ShippingAddress struct {
	Address1 *string `json:"address1,omitempty"`
	Address2 *string `json:"address2,omitempty"`
	City     *string `json:"city,omitempty"`
	Postcode *string `json:"postcode,omitempty"`
	Country  string  `json:"country"`
}

// OrderItemDTO is one frozen line of an order.
type OrderItemDTO struct {
	ID             int64  `json:"id"`
	ProductID      *int64 `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	PriceCents     int64  `json:"price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

// OrderDetail is an order together with its items.
type OrderDetail struct {
	OrderSummary
	Items []OrderItemDTO `json:"items"`
}

// SummaryFromModel maps an order row onto its API shape.
func SummaryFromModel(o *models.Order) OrderSummary {
	return OrderSummary{
		ID:            o.ID,
		Status:        o.Status,
		Currency:      o.Currency,
		SubtotalCents: o.SubtotalCents,
		ShippingCents: o.ShippingCents,
		TotalCents:    o.TotalCents,
		Email:         o.Email,
		FirstName:     o.FirstName,
		LastName:      o.LastName,
		ShippingAddress: ShippingAddress{
			Address1: o.ShippingAddress1,
			Address2: o.ShippingAddress2,
			City:     o.ShippingCity,
			Postcode: o.ShippingPostcode,
			Country:  o.ShippingCountry,
		},
		PaidAt:    o.PaidAt,
		CreatedAt: o.CreatedAt,
	}
}

// DetailFrom combines an order with its item lines.
func DetailFrom(o *models.Order, lines []ItemLine) *OrderDetail {
	items := make([]OrderItemDTO, 0, len(lines))
	for _, line := range lines {
		items = append(items, OrderItemDTO{
			ID:             line.ID,
			ProductID:      line.ProductID,
			Name:           line.Name,
			Quantity:       line.Quantity,
			PriceCents:     line.PriceCents,
			LineTotalCents: line.LineTotal(),
		})
	}
	return &OrderDetail{OrderSummary: SummaryFromModel(o), Items: items}
}
