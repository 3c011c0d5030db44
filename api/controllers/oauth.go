package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/trailpack-backend/api/middleware"
	"github.com/angelmondragon/trailpack-backend/api/responses"
	"github.com/angelmondragon/trailpack-backend/internal/auth"
	pkgauth "github.com/angelmondragon/trailpack-backend/pkg/auth"
	"github.com/angelmondragon/trailpack-backend/pkg/auth/oauth"
	"github.com/angelmondragon/trailpack-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
)

// OAuthProviders resolves a configured sign-in provider by name.
type OAuthProviders interface {
	Get(name string) (oauth.Provider, error)
}

// OAuthStart redirects the browser to the provider consent page. The state
// parameter is bound to this browser's session id.
func OAuthStart(providers OAuthProviders, cfg config.OAuthConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := lookupProvider(providers, chi.URLParam(r, "provider"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID, err := middleware.SessionID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "session unavailable"))
			return
		}

		state, err := pkgauth.MintStateToken(cfg, time.Now(), pkgauth.StatePayload{
			Provider:  provider.Name(),
			SessionID: sessionID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint oauth state"))
			return
		}

		http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
	}
}

// OAuthCallback completes the code flow, signs the user in and sends the
// browser back to the storefront.
func OAuthCallback(providers OAuthProviders, svc auth.Service, cfg config.OAuthConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		provider, err := lookupProvider(providers, chi.URLParam(r, "provider"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		query := r.URL.Query()
		if denied := strings.TrimSpace(query.Get("error")); denied != "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "oauth sign-in was cancelled").
				WithDetails(map[string]any{"reason": denied}))
			return
		}

		if _, err := pkgauth.ParseStateToken(cfg, query.Get("state"), provider.Name(), middleware.PresentedSessionID(ctx)); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid oauth state"))
			return
		}

		profile, err := provider.Exchange(ctx, query.Get("code"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "oauth sign-in failed"))
			return
		}

		_, identity, err := svc.CompleteOAuth(ctx, middleware.IdentityFromContext(ctx), *profile)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := middleware.RotateIdentity(ctx, identity); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session"))
			return
		}

		http.Redirect(w, r, cfg.SuccessRedirect, http.StatusFound)
	}
}

func lookupProvider(providers OAuthProviders, name string) (oauth.Provider, error) {
	if providers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "oauth provider not available")
	}
	provider, err := providers.Get(name)
	if err != nil {
		if errors.Is(err, oauth.ErrProviderUnavailable) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "oauth provider not available")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load oauth provider")
	}
	return provider, nil
}
