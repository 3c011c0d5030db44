package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/trailpack-backend/api/responses"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
)

// rateLimitBodyBytes caps how much of a body is buffered to find an email.
const rateLimitBodyBytes = 64 << 10

// RateWindowStore counts hits per key in fixed windows.
type RateWindowStore interface {
	HitWindow(ctx context.Context, key string, window time.Duration) (int64, error)
	RateLimitKey(policy, scope, subject string) string
}

// Subject is one counter of a policy. pick returns "" when the request has
// nothing to count under this subject, and that counter is skipped.
type Subject struct {
	scope     string
	limit     int
	readsBody bool
	pick      func(r *http.Request, body []byte) string
}

// ByClientIP counts per caller address.
func ByClientIP(limit int) Subject {
	return Subject{scope: "ip", limit: limit, pick: func(r *http.Request, _ []byte) string {
		return clientIP(r)
	}}
}

// ByEmail counts per hashed "email" field of a JSON body.
func ByEmail(limit int) Subject {
	return Subject{scope: "email", limit: limit, readsBody: true, pick: func(_ *http.Request, body []byte) string {
		email := normalizeEmail(extractEmail(body))
		if email == "" {
			return ""
		}
		return hashValue(email)
	}}
}

// BySession counts per hashed session cookie. It must run under Session.
func BySession(limit int) Subject {
	return Subject{scope: "session", limit: limit, pick: func(r *http.Request, _ []byte) string {
		id := PresentedSessionID(r.Context())
		if id == "" {
			id = CurrentSessionID(r.Context())
		}
		if id == "" {
			return ""
		}
		return hashValue(id)
	}}
}

// ByUser counts per signed-in user.
func ByUser(limit int) Subject {
	return Subject{scope: "user", limit: limit, pick: func(r *http.Request, _ []byte) string {
		identity := IdentityFromContext(r.Context())
		if identity.UserID == nil {
			return ""
		}
		return strconv.FormatInt(*identity.UserID, 10)
	}}
}

// RateLimitPolicy is a named fixed window shared by a set of subjects. A
// request is refused as soon as any subject is over its limit.
type RateLimitPolicy struct {
	name     string
	window   time.Duration
	subjects []Subject
}

// NewRateLimitPolicy drops subjects with a non-positive limit.
func NewRateLimitPolicy(name string, window time.Duration, subjects ...Subject) RateLimitPolicy {
	policy := RateLimitPolicy{
		name:   strings.ToLower(strings.TrimSpace(name)),
		window: window,
	}
	for _, s := range subjects {
		if s.limit > 0 && s.pick != nil {
			policy.subjects = append(policy.subjects, s)
		}
	}
	return policy
}

func (p RateLimitPolicy) enabled() bool {
	return p.name != "" && p.window > 0 && len(p.subjects) > 0
}

func (p RateLimitPolicy) readsBody() bool {
	for _, s := range p.subjects {
		if s.readsBody {
			return true
		}
	}
	return false
}

// RateLimit applies policy ahead of next. Over the limit it answers 429 with
// Retry-After set to the window length.
func RateLimit(policy RateLimitPolicy, store RateWindowStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var body []byte
			if policy.readsBody() && r.Body != nil {
				var err error
				body, err = io.ReadAll(io.LimitReader(r.Body, rateLimitBodyBytes))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
			}

			for _, subject := range policy.subjects {
				value := subject.pick(r, body)
				if value == "" {
					continue
				}
				key := store.RateLimitKey(policy.name, subject.scope, value)
				count, err := store.HitWindow(ctx, key, policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(subject.limit) {
					rejectRateLimited(ctx, logg, w, policy, subject, count)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, subject Subject, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         policy.name,
			"scope":          subject.scope,
			"attempts":       count,
			"limit":          subject.limit,
			"window_seconds": int(policy.window.Seconds()),
		}), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(policy.window.Seconds()))))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func extractEmail(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return body.Email
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
