package controllers

import (
	"net/http"

	"github.com/angelmondragon/trailpack-backend/api/middleware"
	"github.com/angelmondragon/trailpack-backend/api/responses"
	"github.com/angelmondragon/trailpack-backend/api/validators"
	cartsvc "github.com/angelmondragon/trailpack-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
)

type addCartItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  *int  `json:"quantity,omitempty" validate:"omitempty,min=1,max=99"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=99"`
}

// GetCart returns the caller's cart, creating it on first use.
func GetCart(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		view, identity, err := svc.GetCart(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeWithIdentity(w, r, logg, identity, http.StatusOK, view)
	}
}

// AddCartItem adds a product to the cart, summing quantities for repeats.
func AddCartItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quantity := 1
		if payload.Quantity != nil {
			quantity = *payload.Quantity
		}

		item, identity, err := svc.AddItem(r.Context(), middleware.IdentityFromContext(r.Context()), cartsvc.AddItemInput{
			ProductID: payload.ProductID,
			Quantity:  quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeWithIdentity(w, r, logg, identity, http.StatusCreated, map[string]any{"item": item})
	}
}

func UpdateCartItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		itemID, err := validators.ParsePathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, identity, err := svc.UpdateItem(r.Context(), middleware.IdentityFromContext(r.Context()), itemID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeWithIdentity(w, r, logg, identity, http.StatusOK, map[string]any{"item": item})
	}
}

func DeleteCartItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		itemID, err := validators.ParsePathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity, err := svc.RemoveItem(r.Context(), middleware.IdentityFromContext(r.Context()), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeWithIdentity(w, r, logg, identity, http.StatusOK, map[string]bool{"deleted": true})
	}
}
