package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/trailpack-backend/api/routes"
	"github.com/angelmondragon/trailpack-backend/internal/auth"
	"github.com/angelmondragon/trailpack-backend/internal/cart"
	"github.com/angelmondragon/trailpack-backend/internal/checkout"
	"github.com/angelmondragon/trailpack-backend/internal/orders"
	"github.com/angelmondragon/trailpack-backend/internal/payments"
	product "github.com/angelmondragon/trailpack-backend/internal/products"
	"github.com/angelmondragon/trailpack-backend/internal/users"
	"github.com/angelmondragon/trailpack-backend/pkg/auth/oauth"
	"github.com/angelmondragon/trailpack-backend/pkg/auth/session"
	"github.com/angelmondragon/trailpack-backend/pkg/config"
	"github.com/angelmondragon/trailpack-backend/pkg/db"
	"github.com/angelmondragon/trailpack-backend/pkg/instance"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
	"github.com/angelmondragon/trailpack-backend/pkg/metrics"
	"github.com/angelmondragon/trailpack-backend/pkg/migrate"
	"github.com/angelmondragon/trailpack-backend/pkg/outbox"
	"github.com/angelmondragon/trailpack-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	sessions, err := session.NewStore(redisClient, cfg.Session)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(registry)
	commerceMetrics := metrics.NewCommerceMetrics(registry)

	deps, err := buildServices(cfg, logg, dbClient, commerceMetrics)
	if err != nil {
		return err
	}
	deps.Config = cfg
	deps.Logger = logg
	deps.DB = dbClient
	deps.Redis = redisClient
	deps.Sessions = sessions
	deps.HTTPMetrics = httpMetrics
	deps.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID("local"),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, commerceMetrics *metrics.CommerceMetrics) (routes.Dependencies, error) {
	gdb := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(gdb), logg)

	cartRepo := cart.NewRepository(gdb)
	resolver, err := cart.NewResolver(cartRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}
	cartService, err := cart.NewService(cartRepo, dbClient, resolver)
	if err != nil {
		return routes.Dependencies{}, err
	}
	merger, err := cart.NewMergeCoordinator(cart.MergeParams{
		Repository: cartRepo,
		TxRunner:   dbClient,
		Logger:     logg,
		Metrics:    commerceMetrics,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	ordersRepo := orders.NewRepository(gdb)
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		TxRunner: dbClient,
		Resolver: resolver,
		Carts:    cartRepo,
		Orders:   ordersRepo,
		Outbox:   emitter,
		Logger:   logg,
		Metrics:  commerceMetrics,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repository: ordersRepo,
		TxRunner:   dbClient,
		Outbox:     emitter,
		Logger:     logg,
		Metrics:    commerceMetrics,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repository: ordersRepo,
		TxRunner:   dbClient,
		Outbox:     emitter,
		Logger:     logg,
		Metrics:    commerceMetrics,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	userRepo := users.NewRepository(gdb)
	linker, err := users.NewOAuthLinker(userRepo, dbClient)
	if err != nil {
		return routes.Dependencies{}, err
	}
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		OAuthLinker:    linker,
		CartMerger:     merger,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	productService, err := product.NewService(product.NewRepository(gdb))
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		Products:       productService,
		Cart:           cartService,
		Checkout:       checkoutService,
		Orders:         ordersService,
		Payments:       paymentsService,
		Auth:           authService,
		OAuthProviders: oauth.NewRegistry(cfg.OAuth, nil),
	}, nil
}
