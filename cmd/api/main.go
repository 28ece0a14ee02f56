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
	"go.uber.org/multierr"

	"github.com/lunebox/storefront-backend/api/routes"
	cartstore "github.com/lunebox/storefront-backend/internal/cart"
	"github.com/lunebox/storefront-backend/internal/catalog"
	checkoutsvc "github.com/lunebox/storefront-backend/internal/checkout"
	"github.com/lunebox/storefront-backend/internal/promo"
	"github.com/lunebox/storefront-backend/pkg/commerce"
	"github.com/lunebox/storefront-backend/pkg/config"
	"github.com/lunebox/storefront-backend/pkg/db"
	"github.com/lunebox/storefront-backend/pkg/instance"
	"github.com/lunebox/storefront-backend/pkg/logger"
	"github.com/lunebox/storefront-backend/pkg/metrics"
	"github.com/lunebox/storefront-backend/pkg/migrate"
	"github.com/lunebox/storefront-backend/pkg/redis"
	"github.com/lunebox/storefront-backend/pkg/session"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.Session)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	commerceClient, err := commerce.NewClient(context.Background(), cfg.Commerce, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create commerce client", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(commerceClient, redisClient, cfg.Catalog, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	promoService, err := promo.NewService(promo.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create promo service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	carts := cartstore.NewStore()
	checkoutService, err := checkoutsvc.NewService(carts, commerceClient, promoService, checkoutMetrics, cfg.Checkout, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting storefront api")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			DBPinger:        dbClient,
			CommercePinger:  commerceClient,
			RedisClient:     redisClient,
			SessionManager:  sessionManager,
			CartStore:       carts,
			CatalogService:  catalogService,
			VariantResolver: catalogService,
			PromoService:    promoService,
			CheckoutService: checkoutService,
			MetricsGatherer: registry,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "storefront api stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		closeErr := server.Shutdown(shutdownCtx)
		closeErr = multierr.Append(closeErr, redisClient.Close())
		closeErr = multierr.Append(closeErr, dbClient.Close())
		if closeErr != nil {
			logg.Error(ctx, "shutdown finished with errors", closeErr)
			os.Exit(1)
		}
		logg.Info(ctx, "shutdown complete")
	}
}
