package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// StatePayload captures the data bound into an OAuth state parameter.
type StatePayload struct {
	Provider  string
	SessionID string
	Nonce     string
}

// StateClaims is the signed form carried through the provider redirect.
type StateClaims struct {
	Provider string `json:"provider"`
	// SessionHash binds the state to the browser session that started the flow.
	SessionHash string `json:"sid_hash,omitempty"`
	jwt.RegisteredClaims
}
