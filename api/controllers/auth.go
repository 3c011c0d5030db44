package controllers

import (
	"net/http"

	"github.com/angelmondragon/trailpack-backend/api/middleware"
	"github.com/angelmondragon/trailpack-backend/api/responses"
	"github.com/angelmondragon/trailpack-backend/api/validators"
	"github.com/angelmondragon/trailpack-backend/internal/auth"
	"github.com/angelmondragon/trailpack-backend/pkg/auth/session"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
)

// AuthRegister creates an account and signs it in, merging any guest cart.
func AuthRegister(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, identity, err := svc.Register(r.Context(), middleware.IdentityFromContext(r.Context()), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeRotated(w, r, logg, identity, http.StatusCreated, auth.UserResponse{User: user})
	}
}

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, identity, err := svc.Login(r.Context(), middleware.IdentityFromContext(r.Context()), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeRotated(w, r, logg, identity, http.StatusOK, auth.UserResponse{User: user})
	}
}

// AuthLogout signs the user out; their basket stays in a fresh guest cart.
func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := svc.Logout(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeRotated(w, r, logg, identity, http.StatusOK, map[string]bool{"ok": true})
	}
}

func AuthMe(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := svc.Me(r.Context(), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, auth.UserResponse{User: user})
	}
}

// writeRotated persists identity under a new session id. Every change of the
// signed-in user goes through here.
func writeRotated(w http.ResponseWriter, r *http.Request, logg *logger.Logger, identity session.Identity, status int, data any) {
	if err := middleware.RotateIdentity(r.Context(), identity); err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session"))
		return
	}
	responses.WriteSuccessStatus(w, status, data)
}
