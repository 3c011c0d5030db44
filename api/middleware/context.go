package middleware

import (
	"context"

	"github.com/angelmondragon/trailpack-backend/pkg/auth/session"
)

type contextKey string

const ctxSession contextKey = "session_state"

// IdentityFromContext returns the identity loaded for the current request.
// Requests that never passed through Session get the empty identity.
func IdentityFromContext(ctx context.Context) session.Identity {
	if st := stateFromContext(ctx); st != nil {
		return st.identity
	}
	return session.Identity{}
}

// WithIdentity seeds a request context with an identity. Handlers under test
// use it in place of the Session middleware; nothing is persisted.
func WithIdentity(ctx context.Context, identity session.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSession, &sessionState{identity: identity, loaded: identity})
}

func stateFromContext(ctx context.Context) *sessionState {
	if ctx == nil {
		return nil
	}
	if st, ok := ctx.Value(ctxSession).(*sessionState); ok {
		return st
	}
	return nil
}

func withState(ctx context.Context, st *sessionState) context.Context {
	return context.WithValue(ctx, ctxSession, st)
}
