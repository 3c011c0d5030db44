package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/angelmondragon/trailpack-backend/api/responses"
	"github.com/angelmondragon/trailpack-backend/pkg/auth/session"
	"github.com/angelmondragon/trailpack-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
)

// SessionStore is the persistence surface the Session middleware needs.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (session.Identity, error)
	Save(ctx context.Context, sessionID string, identity session.Identity) error
	Destroy(ctx context.Context, sessionID string) error
	TTL() time.Duration
}

type sessionState struct {
	store      SessionStore
	cookieName string
	secure     bool
	ttl        time.Duration

	// presented is the raw cookie value; id is only set once it names a
	// record we loaded or wrote (or an id minted for this response).
	presented string
	id        string
	persisted bool

	identity session.Identity
	loaded   session.Identity

	writeCookie bool
	clearCookie bool
}

// Session loads the caller's identity from the session cookie and exposes it
// through the request context. Nothing is written back unless a handler
// commits a changed identity, so anonymous browsing never creates a record.
func Session(store SessionStore, cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			st := &sessionState{
				store:      store,
				cookieName: cfg.CookieName,
				secure:     cfg.Secure,
				ttl:        store.TTL(),
			}

			if cookie, err := r.Cookie(cfg.CookieName); err == nil && cookie.Value != "" {
				st.presented = cookie.Value
				identity, loadErr := store.Load(ctx, cookie.Value)
				switch {
				case loadErr == nil:
					st.id = cookie.Value
					st.persisted = true
					st.identity = identity
					st.loaded = identity
					st.writeCookie = true
				case errors.Is(loadErr, session.ErrSessionNotFound):
				default:
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, loadErr, "load session"))
					return
				}
			}

			if logg != nil {
				if st.id != "" {
					ctx = logg.WithSessionID(ctx, st.id)
				}
				if st.identity.UserID != nil {
					ctx = logg.WithUserID(ctx, *st.identity.UserID)
				}
			}

			sw := &sessionWriter{ResponseWriter: w, state: st}
			next.ServeHTTP(sw, r.WithContext(withState(ctx, st)))
			sw.flush()
		})
	}
}

// CommitIdentity persists identity under the current session, creating the
// record and cookie on first use. An empty identity removes the session.
func CommitIdentity(ctx context.Context, identity session.Identity) error {
	return commitIdentity(ctx, identity, false)
}

// RotateIdentity persists identity under a freshly minted session id and
// drops the old record. Used whenever the signed-in user changes.
func RotateIdentity(ctx context.Context, identity session.Identity) error {
	return commitIdentity(ctx, identity, true)
}

// SessionID returns the id of the caller's session. When the request has none
// an id is minted and sent as a cookie without creating a record, which is
// enough to bind short-lived values such as OAuth state to this browser.
func SessionID(ctx context.Context) (string, error) {
	st := stateFromContext(ctx)
	if st == nil {
		return "", errors.New("session unavailable")
	}
	if st.id != "" {
		return st.id, nil
	}
	id, err := session.NewSessionID()
	if err != nil {
		return "", err
	}
	st.id = id
	st.writeCookie = true
	st.clearCookie = false
	return id, nil
}

// PresentedSessionID returns the cookie value the caller sent, whether or not
// it still names a stored session.
func PresentedSessionID(ctx context.Context) string {
	if st := stateFromContext(ctx); st != nil {
		return st.presented
	}
	return ""
}

// CurrentSessionID returns the active session id without minting one.
func CurrentSessionID(ctx context.Context) string {
	if st := stateFromContext(ctx); st != nil && st.persisted {
		return st.id
	}
	return ""
}

func commitIdentity(ctx context.Context, identity session.Identity, rotate bool) error {
	st := stateFromContext(ctx)
	if st == nil {
		return nil
	}
	if st.store == nil {
		st.identity = identity
		return nil
	}
	if !rotate && identity.Equal(st.identity) && (st.persisted || identity.IsEmpty()) {
		return nil
	}

	if rotate {
		if st.persisted {
			if err := st.store.Destroy(ctx, st.id); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "destroy session")
			}
		}
		st.id = ""
		st.persisted = false
	}

	if identity.IsEmpty() {
		if st.persisted {
			if err := st.store.Destroy(ctx, st.id); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "destroy session")
			}
		}
		st.id = ""
		st.persisted = false
		st.identity = identity
		st.writeCookie = false
		st.clearCookie = st.presented != ""
		return nil
	}

	if st.id == "" {
		id, err := session.NewSessionID()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint session id")
		}
		st.id = id
	}
	if err := st.store.Save(ctx, st.id, identity); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save session")
	}
	st.persisted = true
	st.identity = identity
	st.writeCookie = true
	st.clearCookie = false
	return nil
}

func (st *sessionState) cookie() *http.Cookie {
	c := &http.Cookie{
		Name:     st.cookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   st.secure,
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case st.writeCookie && st.id != "":
		c.Value = st.id
		c.MaxAge = int(st.ttl.Seconds())
		c.Expires = time.Now().Add(st.ttl)
	case st.clearCookie:
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	default:
		return nil
	}
	return c
}

// sessionWriter sets the session cookie right before the response headers go
// out, so handlers can commit identities up to their first write.
type sessionWriter struct {
	http.ResponseWriter
	state   *sessionState
	flushed bool
}

func (w *sessionWriter) WriteHeader(code int) {
	w.flush()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) flush() {
	if w.flushed {
		return
	}
	w.flushed = true
	if c := w.state.cookie(); c != nil {
		http.SetCookie(w.ResponseWriter, c)
	}
}
