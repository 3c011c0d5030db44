package controllers

import (
	"net/http"

	"github.com/angelmondragon/trailpack-backend/api/middleware"
	"github.com/angelmondragon/trailpack-backend/api/responses"
	"github.com/angelmondragon/trailpack-backend/pkg/auth/session"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
)

// writeWithIdentity stores the identity returned by a service before the
// response goes out, so the cookie is part of the same response.
func writeWithIdentity(w http.ResponseWriter, r *http.Request, logg *logger.Logger, identity session.Identity, status int, data any) {
	if err := middleware.CommitIdentity(r.Context(), identity); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, status, data)
}

func currentUserID(r *http.Request) (int64, bool) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity.UserID == nil {
		return 0, false
	}
	return *identity.UserID, true
}
