package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/trailpack-backend/api/controllers"
	"github.com/angelmondragon/trailpack-backend/api/middleware"
	"github.com/angelmondragon/trailpack-backend/internal/auth"
	"github.com/angelmondragon/trailpack-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/trailpack-backend/internal/checkout"
	"github.com/angelmondragon/trailpack-backend/internal/orders"
	"github.com/angelmondragon/trailpack-backend/internal/payments"
	product "github.com/angelmondragon/trailpack-backend/internal/products"
	"github.com/angelmondragon/trailpack-backend/pkg/config"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
	"github.com/angelmondragon/trailpack-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/trailpack-backend/pkg/redis"
)

// RedisStore is the slice of the Redis client the HTTP layer uses.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.RateWindowStore
	Ping(ctx context.Context) error
}

// Dependencies carries everything NewRouter mounts. MetricsHandler and
// HTTPMetrics are optional.
type Dependencies struct {
	Config *config.Config
	Logger *logger.Logger

	DB       controllers.Pinger
	Redis    RedisStore
	Sessions middleware.SessionStore

	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	Products       product.Service
	Cart           cart.Service
	Checkout       checkoutsvc.Service
	Orders         orders.Service
	Payments       payments.Service
	Auth           auth.Service
	OAuthProviders controllers.OAuthProviders
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	var redisPinger controllers.Pinger
	var idempotencyStore pkgredis.IdempotencyStore
	var rateStore middleware.RateWindowStore
	if deps.Redis != nil {
		redisPinger = deps.Redis
		idempotencyStore = deps.Redis
		rateStore = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	limits := newStorefrontLimits(cfg.RateLimit)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(deps.Sessions, cfg.Session, logg))
		r.Use(middleware.Idempotency(idempotencyStore, cfg.Idempotency.TTL, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Products, logg))
			r.Get("/{id}", controllers.GetProduct(deps.Products, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(deps.Cart, logg))
			r.Post("/items", controllers.AddCartItem(deps.Cart, logg))
			r.Patch("/items/{id}", controllers.UpdateCartItem(deps.Cart, logg))
			r.Delete("/items/{id}", controllers.DeleteCartItem(deps.Cart, logg))
		})

		r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))
		r.With(middleware.RateLimit(limits.payment, rateStore, logg)).Post("/payments/mock", controllers.MockPayment(deps.Payments, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Use(middleware.RequireAuth(logg))
			r.Get("/", controllers.ListOrders(deps.Orders, logg))
			r.With(middleware.RateLimit(limits.claim, rateStore, logg)).Post("/claim", controllers.ClaimOrder(deps.Orders, logg))
			r.Get("/{id}", controllers.GetOrder(deps.Orders, logg))
			r.Patch("/{id}/status", controllers.UpdateOrderStatus(deps.Orders, logg))
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(limits.register, rateStore, logg)).Post("/register", controllers.AuthRegister(deps.Auth, logg))
			r.With(middleware.RateLimit(limits.login, rateStore, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(deps.Auth, logg))
			r.With(middleware.RequireAuth(logg)).Get("/me", controllers.AuthMe(deps.Auth, logg))
			r.Get("/oauth/{provider}", controllers.OAuthStart(deps.OAuthProviders, cfg.OAuth, logg))
			r.Get("/oauth/{provider}/callback", controllers.OAuthCallback(deps.OAuthProviders, deps.Auth, cfg.OAuth, logg))
		})
	})

	return r
}
