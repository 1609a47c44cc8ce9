package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/projectmarket-backend/api/controllers"
	offercontrollers "github.com/angelmondragon/projectmarket-backend/api/controllers/offers"
	webhookcontrollers "github.com/angelmondragon/projectmarket-backend/api/controllers/webhooks"
	"github.com/angelmondragon/projectmarket-backend/api/middleware"
	"github.com/angelmondragon/projectmarket-backend/internal/offers"
	"github.com/angelmondragon/projectmarket-backend/pkg/config"
	"github.com/angelmondragon/projectmarket-backend/pkg/db"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/projectmarket-backend/pkg/redis"
)

// cacheStore is the redis surface the HTTP layer needs.
type cacheStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

type signingSecretProvider interface {
	SigningSecret() string
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cache cacheStore,
	offerService offers.Service,
	stripeClient signingSecretProvider,
	stripeWebhookService webhookcontrollers.StripeWebhookService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App),
	)

	writePolicy := middleware.NewRateLimitPolicy(
		"offers",
		cfg.RateLimit.Window,
		cfg.RateLimit.UserLimit,
		cfg.RateLimit.IPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": cache,
		}))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/public/ping", controllers.PublicPing())

	paymentWebhook := webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, logg)
	r.Post("/webhooks/payment", paymentWebhook)
	r.Post("/api/webhooks/stripe", paymentWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		// inline so the idempotency rules see the full route pattern
		writes := r.With(
			middleware.RateLimit(writePolicy, cache, logg),
			middleware.Idempotency(cache, cfg.Eventing.HTTPIdempotencyTTL, logg),
		)

		r.Get("/ping", controllers.PrivatePing())
		r.Get("/offers", offercontrollers.List(offerService, logg))
		r.Get("/offers/{offerId}", offercontrollers.Detail(offerService, logg))
		writes.Post("/offers", offercontrollers.Create(offerService, logg))
		writes.Put("/offers/{offerId}", offercontrollers.Act(offerService, logg))
		writes.Patch("/offers/{offerId}", offercontrollers.Act(offerService, logg))
	})

	return r
}
