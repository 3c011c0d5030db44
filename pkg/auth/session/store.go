package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/trailpack-backend/pkg/config"
	redisclient "github.com/angelmondragon/trailpack-backend/pkg/redis"
	redislib "github.com/redis/go-redis/v9"
)

const sessionIDBytes = 32

// ErrSessionNotFound is returned when the session record has expired or never existed.
var ErrSessionNotFound = errors.New("session not found")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type sessionKeyer interface {
	SessionKey(sessionID string) string
}

// Store persists identities in Redis keyed by an opaque session id. Every
// successful load slides the expiry forward.
type Store struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
}

// NewStore constructs a session store backed by Redis.
func NewStore(client *redisclient.Client, cfg config.SessionConfig) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &Store{
		store: client,
		keyer: client,
		ttl:   cfg.TTL,
	}, nil
}

// TTL returns the sliding session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Load returns the identity for sessionID and refreshes its expiry.
func (s *Store) Load(ctx context.Context, sessionID string) (Identity, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Identity{}, ErrSessionNotFound
	}
	key := s.keyer.SessionKey(sessionID)
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return Identity{}, wrapNotFound(err)
	}

	var identity Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return Identity{}, fmt.Errorf("decode session: %w", err)
	}

	if _, err := s.store.Expire(ctx, key, s.ttl); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// Save writes the identity. An empty identity removes the record instead.
func (s *Store) Save(ctx context.Context, sessionID string, identity Identity) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	key := s.keyer.SessionKey(sessionID)
	if identity.IsEmpty() {
		return s.store.Del(ctx, key)
	}
	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.store.Set(ctx, key, string(payload), s.ttl)
}

// Destroy deletes the session record.
func (s *Store) Destroy(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	return s.store.Del(ctx, s.keyer.SessionKey(sessionID))
}

// NewSessionID produces an unguessable session identifier for the cookie.
func NewSessionID() (string, error) {
	bytes := make([]byte, sessionIDBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func wrapNotFound(err error) error {
	if errors.Is(err, redislib.Nil) {
		return ErrSessionNotFound
	}
	return err
}
