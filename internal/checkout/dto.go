package checkout

import (
	"github.com/angelmondragon/trailpack-backend/internal/checkout/helpers"
	"github.com/angelmondragon/trailpack-backend/internal/orders"
)

// CheckoutInput carries the contact and shipping snapshot for the order.
type CheckoutInput = helpers.Contact

// CheckoutResult is the created order. GuestToken is set for anonymous
// buyers and is the only way to pay for or claim the order later.
type CheckoutResult struct {
	Order      *orders.OrderDetail `json:"order"`
	GuestToken *string             `json:"guest_token,omitempty"`
}
