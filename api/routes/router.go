package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lunebox/storefront-backend/api/controllers"
	"github.com/lunebox/storefront-backend/api/middleware"
	cartstore "github.com/lunebox/storefront-backend/internal/cart"
	"github.com/lunebox/storefront-backend/pkg/config"
	"github.com/lunebox/storefront-backend/pkg/logger"
	"github.com/lunebox/storefront-backend/pkg/redis"
	"github.com/lunebox/storefront-backend/pkg/session"
)

// Deps bundles everything the HTTP surface needs. Pingers may be nil
// in tests; the readiness probe skips absent dependencies.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DBPinger        controllers.Pinger
	CommercePinger  controllers.Pinger
	RedisClient     *redis.Client
	SessionManager  *session.Manager
	CartStore       *cartstore.Store
	CatalogService  controllers.CatalogService
	VariantResolver controllers.VariantResolver
	PromoService    controllers.PromoService
	CheckoutService controllers.CheckoutService
	MetricsGatherer prometheus.Gatherer
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(d.Logger),
		middleware.RequestID(d.Logger),
		middleware.Logging(d.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(d.Config))
		r.Get("/ready", controllers.HealthReady(d.Config, d.Logger, d.DBPinger, pingerOrNil(d.RedisClient), d.CommercePinger))
	})

	if d.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", controllers.CatalogListProducts(d.CatalogService, d.Logger))
			r.Get("/products/{handle}", controllers.CatalogGetProduct(d.CatalogService, d.Logger))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(d.SessionManager, d.Config.Session, d.Logger))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(d.CartStore))
				r.Delete("/", controllers.CartClear(d.CartStore, d.Logger))
				r.Post("/items", controllers.CartAddItem(d.CartStore, d.VariantResolver, d.Logger))
				r.Put("/items/{variantId}", controllers.CartUpdateItem(d.CartStore, d.Logger))
				r.Delete("/items/{variantId}", controllers.CartRemoveItem(d.CartStore, d.Logger))
				r.Post("/discount", controllers.CartApplyDiscount(d.CartStore, d.PromoService, d.Logger))
				r.Delete("/discount", controllers.CartRemoveDiscount(d.CartStore, d.Logger))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(
						middleware.CheckoutRateLimit(d.RedisClient, d.Config.RateLimit, d.Logger),
						middleware.Idempotency(idempotencyStoreOrNil(d.RedisClient), d.Logger),
					)
					r.Post("/", controllers.CheckoutCreate(d.CheckoutService, d.Logger))
				})
				r.Post("/complete", controllers.CheckoutComplete(d.CheckoutService, d.Logger))
			})
		})
	})

	return r
}

func pingerOrNil(client *redis.Client) controllers.Pinger {
	if client == nil {
		return nil
	}
	return client
}

func idempotencyStoreOrNil(client *redis.Client) redis.IdempotencyStore {
	if client == nil {
		return nil
	}
	return client
}
