package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/trailpack-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const stateIssuer = "trailpack-oauth"

var jwtSigningMethod = jwt.SigningMethodHS256

// MintStateToken issues the signed OAuth state value for a provider redirect.
func MintStateToken(cfg config.OAuthConfig, now time.Time, payload StatePayload) (string, error) {
	if cfg.StateSecret == "" {
		return "", fmt.Errorf("oauth state secret is required")
	}
	if cfg.StateTTL <= 0 {
		return "", fmt.Errorf("oauth state ttl must be positive")
	}
	provider := strings.TrimSpace(payload.Provider)
	if provider == "" {
		return "", fmt.Errorf("oauth provider is required")
	}

	nonce := strings.TrimSpace(payload.Nonce)
	if nonce == "" {
		nonce = uuid.NewString()
	}

	claims := StateClaims{
		Provider:    provider,
		SessionHash: hashSessionID(payload.SessionID),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.StateTTL)),
			ID:        nonce,
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.StateSecret))
	if err != nil {
		return "", fmt.Errorf("signing oauth state: %w", err)
	}
	return signed, nil
}

// ParseStateToken validates the state returned by the provider callback. The
// provider and session must match the ones that minted it.
func ParseStateToken(cfg config.OAuthConfig, tokenString, provider, sessionID string) (*StateClaims, error) {
	if cfg.StateSecret == "" {
		return nil, fmt.Errorf("oauth state secret is required")
	}

	claims := &StateClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.StateSecret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(stateIssuer),
	)
	if err != nil {
		return nil, err
	}

	if claims.Provider != provider {
		return nil, fmt.Errorf("oauth state issued for provider %q", claims.Provider)
	}
	if claims.SessionHash != hashSessionID(sessionID) {
		return nil, fmt.Errorf("oauth state bound to a different session")
	}
	return claims, nil
}

func hashSessionID(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:8])
}
