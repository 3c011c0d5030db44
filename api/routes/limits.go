package routes

import (
	"github.com/angelmondragon/trailpack-backend/api/middleware"
	"github.com/angelmondragon/trailpack-backend/pkg/config"
)

// storefrontLimits are the rate limit policies mounted by NewRouter.
type storefrontLimits struct {
	login    middleware.RateLimitPolicy
	register middleware.RateLimitPolicy
	claim    middleware.RateLimitPolicy
	payment  middleware.RateLimitPolicy
}

func newStorefrontLimits(cfg config.RateLimitConfig) storefrontLimits {
	return storefrontLimits{
		login: middleware.NewRateLimitPolicy("login", cfg.LoginWindow,
			middleware.ByClientIP(cfg.LoginIPLimit),
			middleware.ByEmail(cfg.LoginEmailLimit),
		),
		register: middleware.NewRateLimitPolicy("register", cfg.RegisterWindow,
			middleware.ByClientIP(cfg.RegisterIPLimit),
			middleware.ByEmail(cfg.RegisterEmailLimit),
		),
		// Counters are hit in order and stop at the first one over its limit.
		claim: middleware.NewRateLimitPolicy("claim", cfg.ClaimWindow,
			middleware.BySession(cfg.ClaimSessionLimit),
			middleware.ByUser(cfg.ClaimUserLimit),
			middleware.ByClientIP(cfg.ClaimIPLimit),
		),
		payment: middleware.NewRateLimitPolicy("payment", cfg.PaymentWindow,
			middleware.BySession(cfg.PaymentSessionLimit),
			middleware.ByClientIP(cfg.PaymentIPLimit),
		),
	}
}
