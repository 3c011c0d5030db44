// Package oauth wraps the social sign-in handshakes.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"

	"github.com/angelmondragon/trailpack-backend/pkg/config"
)

const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"

	googleProfileURL   = "https://www.googleapis.com/oauth2/v3/userinfo"
	facebookProfileURL = "https://graph.facebook.com/me?fields=id,email,first_name,last_name"

	maxProfileBytes = 1 << 20
)

// ErrProviderUnavailable is returned for unknown or unconfigured providers.
var ErrProviderUnavailable = errors.New("oauth provider unavailable")

// Profile is the normalized identity returned by a provider.
type Profile struct {
	Provider   string
	ProviderID string
	Email      *string
	FirstName  *string
	LastName   *string
}

// Provider performs one provider's authorization code flow.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}

type profileDecoder func(body []byte) (*Profile, error)

type codeFlowProvider struct {
	name       string
	conf       *oauth2.Config
	profileURL string
	decode     profileDecoder
	httpClient *http.Client
}

func (p *codeFlowProvider) Name() string {
	return p.name
}

func (p *codeFlowProvider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *codeFlowProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("authorization code is required")
	}
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	token, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s code exchange: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.profileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.conf.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s profile request: %w", p.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
	if err != nil {
		return nil, fmt.Errorf("%s profile read: %w", p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s profile returned status %d", p.name, resp.StatusCode)
	}

	profile, err := p.decode(body)
	if err != nil {
		return nil, fmt.Errorf("%s profile decode: %w", p.name, err)
	}
	if profile.ProviderID == "" {
		return nil, fmt.Errorf("%s profile missing subject", p.name)
	}
	profile.Provider = p.name
	return profile, nil
}

// Registry holds the providers that have credentials configured.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds providers for every configured credential pair. A nil
// httpClient uses http.DefaultClient.
func NewRegistry(cfg config.OAuthConfig, httpClient *http.Client) *Registry {
	reg := &Registry{providers: map[string]Provider{}}
	if cfg.GoogleEnabled() {
		reg.Register(&codeFlowProvider{
			name: ProviderGoogle,
			conf: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				RedirectURL:  cfg.CallbackURL(ProviderGoogle),
				Scopes:       []string{"openid", "email", "profile"},
				Endpoint:     google.Endpoint,
			},
			profileURL: googleProfileURL,
			decode:     decodeGoogleProfile,
			httpClient: httpClient,
		})
	}
	if cfg.FacebookEnabled() {
		reg.Register(&codeFlowProvider{
			name: ProviderFacebook,
			conf: &oauth2.Config{
				ClientID:     cfg.FacebookClientID,
				ClientSecret: cfg.FacebookClientSecret,
				RedirectURL:  cfg.CallbackURL(ProviderFacebook),
				Scopes:       []string{"email", "public_profile"},
				Endpoint:     facebook.Endpoint,
			},
			profileURL: facebookProfileURL,
			decode:     decodeFacebookProfile,
			httpClient: httpClient,
		})
	}
	return reg
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.providers[p.Name()] = p
}

// Get returns the named provider or ErrProviderUnavailable.
func (r *Registry) Get(name string) (Provider, error) {
	if r == nil {
		return nil, ErrProviderUnavailable
	}
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrProviderUnavailable
	}
	return p, nil
}

type googleProfile struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

func decodeGoogleProfile(body []byte) (*Profile, error) {
	var raw googleProfile
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	profile := &Profile{
		ProviderID: raw.Sub,
		FirstName:  optional(raw.GivenName),
		LastName:   optional(raw.FamilyName),
	}
	if raw.EmailVerified {
		profile.Email = optional(strings.ToLower(raw.Email))
	}
	return profile, nil
}

type facebookProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func decodeFacebookProfile(body []byte) (*Profile, error) {
	var raw facebookProfile
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	return &Profile{
		ProviderID: raw.ID,
		Email:      optional(strings.ToLower(raw.Email)),
		FirstName:  optional(raw.FirstName),
		LastName:   optional(raw.LastName),
	}, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
