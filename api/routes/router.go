package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emarket-io/emarket-backend/api/controllers"
	"github.com/emarket-io/emarket-backend/api/middleware"
	"github.com/emarket-io/emarket-backend/internal/catalog"
	"github.com/emarket-io/emarket-backend/internal/orders"
	"github.com/emarket-io/emarket-backend/internal/session"
	"github.com/emarket-io/emarket-backend/pkg/config"
	"github.com/emarket-io/emarket-backend/pkg/db"
	"github.com/emarket-io/emarket-backend/pkg/logger"
	"github.com/emarket-io/emarket-backend/pkg/metrics"
	"github.com/emarket-io/emarket-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionStore session.Store,
	catalogService catalog.Service,
	ordersService orders.Service,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()

	httpMetrics := metrics.NewHTTPMetrics(registry)

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/categories", controllers.CategoryList(catalogService, logg))
		r.Get("/products", controllers.ProductList(catalogService, logg))
		r.Get("/products/{productID}", controllers.ProductDetail(catalogService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(sessionStore, cfg.Session, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartDetail(catalogService, logg))
				r.Post("/items", controllers.CartAddItem(catalogService, logg))
				r.Delete("/items/{productID}", controllers.CartRemoveItem(catalogService, logg))
				r.Delete("/", controllers.CartClear(logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.OrderCreate(ordersService, catalogService, logg))
				r.Get("/{orderID}", controllers.OrderDetail(ordersService, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Post("/categories", controllers.AdminCategoryCreate(catalogService, logg))
		r.Post("/products", controllers.AdminProductCreate(catalogService, logg))
		r.Patch("/products/{productID}", controllers.AdminProductUpdate(catalogService, logg))
		r.Delete("/products/{productID}", controllers.AdminProductDelete(catalogService, logg))
		r.Get("/orders", controllers.OrderList(ordersService, logg))
	})

	return r
}
