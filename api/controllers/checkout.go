package controllers

import (
	"net/http"

	"github.com/angelmondragon/trailpack-backend/api/middleware"
	"github.com/angelmondragon/trailpack-backend/api/responses"
	"github.com/angelmondragon/trailpack-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/trailpack-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
)

// Checkout turns the caller's cart into a pending order. Anonymous buyers
// get the order's guest token back and keep it in their session.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutsvc.CheckoutInput
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, identity, err := svc.Execute(r.Context(), middleware.IdentityFromContext(r.Context()), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeWithIdentity(w, r, logg, identity, http.StatusCreated, result)
	}
}
