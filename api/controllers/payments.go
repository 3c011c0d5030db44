package controllers

import (
	"net/http"

	"github.com/angelmondragon/trailpack-backend/api/middleware"
	"github.com/angelmondragon/trailpack-backend/api/responses"
	"github.com/angelmondragon/trailpack-backend/api/validators"
	"github.com/angelmondragon/trailpack-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
)

// mockPaymentRequest also takes the camelCase keys older storefront clients send.
type mockPaymentRequest struct {
	OrderID         *int64  `json:"order_id,omitempty"`
	OrderIDCamel    *int64  `json:"orderId,omitempty"`
	GuestToken      *string `json:"guest_token,omitempty"`
	GuestTokenCamel *string `json:"guestToken,omitempty"`
}

func (req mockPaymentRequest) settleInput() payments.SettleInput {
	input := payments.SettleInput{OrderID: req.OrderID, GuestToken: req.GuestToken}
	if input.OrderID == nil {
		input.OrderID = req.OrderIDCamel
	}
	if input.GuestToken == nil {
		input.GuestToken = req.GuestTokenCamel
	}
	return input
}

// MockPayment settles a pending order without a payment gateway.
func MockPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload mockPaymentRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Settle(r.Context(), middleware.IdentityFromContext(r.Context()), payload.settleInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"order": summary})
	}
}
