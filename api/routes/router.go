package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-orderdesk/api/controllers"
	ordercontrollers "github.com/angelmondragon/packfinderz-orderdesk/api/controllers/orders"
	"github.com/angelmondragon/packfinderz-orderdesk/api/middleware"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/config"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/logger"
	pkgredis "github.com/angelmondragon/packfinderz-orderdesk/pkg/redis"
)

// RouterParams carries everything the HTTP surface needs from cmd/api.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Desk        ordercontrollers.Service
	Idempotency pkgredis.IdempotencyStore
	Checks      map[string]controllers.Pinger
	Gatherer    prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, params.Checks, logg))
	})

	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(params.Idempotency, logg))

		r.Get("/", ordercontrollers.List(params.Desk, logg))
		r.Get("/errors", ordercontrollers.Errors(params.Desk, logg))
		r.Delete("/errors/{entityId}", ordercontrollers.ClearError(params.Desk, logg))
		r.Get("/{orderId}/activity", ordercontrollers.Activity(params.Desk, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireActor(enums.ActorKindSeller, logg))
			r.Post("/{orderId}/items/{itemId}/status", ordercontrollers.AdvanceStatus(params.Desk, logg))
			r.Post("/{orderId}/items/{itemId}/cancel", ordercontrollers.CancelItem(params.Desk, logg))
			r.Post("/{orderId}/items/{itemId}/payment-collection", ordercontrollers.ConfirmPaymentCollection(params.Desk, logg))
			r.Post("/{orderId}/tracking", ordercontrollers.AddTracking(params.Desk, logg))
		})
	})

	return r
}
