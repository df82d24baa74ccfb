package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/skillbridge-billing/api/controllers"
	"github.com/angelmondragon/skillbridge-billing/api/middleware"
	"github.com/angelmondragon/skillbridge-billing/internal/payments"
	"github.com/angelmondragon/skillbridge-billing/pkg/config"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
)

// RouterParams carries the dependencies mounted on the billing API.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	Payments payments.Service
	Gatherer prometheus.Gatherer
	Checks   []controllers.ReadinessCheck
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.Checks...))
	})

	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Post("/payments/subscriptions", controllers.PaymentSubscriptionCreate(params.Payments, logg))
	})

	return r
}
