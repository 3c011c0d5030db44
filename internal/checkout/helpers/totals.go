package helpers

import (
	"sort"

	"github.com/angelmondragon/trailpack-backend/internal/cart"
	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
)

// ShippingCents is the flat shipping charge. The storefront does not price shipping.
const ShippingCents int64 = 0

// OrderTotals captures the computed money fields of an order.
type OrderTotals struct {
	SubtotalCents int64
	ShippingCents int64
	TotalCents    int64
	ItemCount     int
}

// ComputeTotals sums live line prices into order totals.
func ComputeTotals(lines []cart.Line) OrderTotals {
	totals := OrderTotals{ShippingCents: ShippingCents}
	for _, line := range lines {
		totals.SubtotalCents += line.LineTotal()
		totals.ItemCount += line.Quantity
	}
	totals.TotalCents = totals.SubtotalCents + totals.ShippingCents
	return totals
}

// FreezeItems converts cart lines into order items carrying the price read
// now. Items keep the order the products were first added in.
func FreezeItems(orderID int64, lines []cart.Line) []models.OrderItem {
	ordered := make([]cart.Line, len(lines))
	copy(ordered, lines)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	items := make([]models.OrderItem, 0, len(ordered))
	for _, line := range ordered {
		productID := line.ProductID
		items = append(items, models.OrderItem{
			OrderID:    orderID,
			ProductID:  &productID,
			Quantity:   line.Quantity,
			PriceCents: line.PriceCents,
		})
	}
	return items
}
