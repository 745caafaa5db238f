package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heraerp/hera-api/api/controllers"
	"github.com/heraerp/hera-api/api/middleware"
	"github.com/heraerp/hera-api/internal/entities"
	"github.com/heraerp/hera-api/internal/transactions"
	"github.com/heraerp/hera-api/pkg/config"
	"github.com/heraerp/hera-api/pkg/enums"
	"github.com/heraerp/hera-api/pkg/logger"
	"github.com/heraerp/hera-api/pkg/metrics"
	"github.com/heraerp/hera-api/pkg/redis"
)

// Dependencies groups everything the router needs. Nil services produce
// 500 responses from their handlers rather than a nil dereference.
type Dependencies struct {
	DB               controllers.Pinger
	Redis            controllers.Pinger
	Idempotency      redis.IdempotencyStore
	RateLimiter      redis.RateLimiter
	Gatherer         prometheus.Gatherer
	GuardrailMetrics *metrics.GuardrailMetrics
	Entities         entities.Service
	Relationships    controllers.RelationshipService
	Transactions     transactions.Service
	DeadLetters      controllers.DeadLetterLister
}

const publicSmartCodeIPLimit = 120

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	if cfg.FeatureFlags.AllowPublicSmartCodeAPI {
		ipPolicy := middleware.NewRateLimitPolicy("public_smart_code", middleware.ScopeIP, cfg.RateLimit.Window, publicSmartCodeIPLimit)
		r.Route("/api/public/guardrails", func(r chi.Router) {
			r.With(middleware.RateLimit(ipPolicy, deps.RateLimiter, logg)).
				Post("/smart-code", controllers.ValidateSmartCode(logg, deps.GuardrailMetrics))
		})
	}

	orgPolicy := middleware.NewRateLimitPolicy("v2", middleware.ScopeOrganization, cfg.RateLimit.Window, cfg.RateLimit.OrgLimit)

	r.Route("/api/v2", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.OrganizationContext(logg))
		r.Use(middleware.RateLimit(orgPolicy, deps.RateLimiter, logg))

		writes := []func(http.Handler) http.Handler{
			middleware.RequireWrite(logg),
			middleware.Idempotency(deps.Idempotency, logg),
		}

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", controllers.EntityList(deps.Entities, logg))
			r.With(writes...).Post("/", controllers.EntityCreate(deps.Entities, logg))
			r.Route("/{entityId}", func(r chi.Router) {
				r.Get("/", controllers.EntityGet(deps.Entities, logg))
				r.With(writes...).Patch("/", controllers.EntityUpdate(deps.Entities, logg))
				r.Get("/dynamic-data", controllers.EntityDynamicFields(deps.Entities, logg))
				r.With(writes...).Put("/dynamic-data", controllers.EntitySetDynamicField(deps.Entities, logg))
				r.Get("/relationships", controllers.EntityRelationships(deps.Relationships, logg))
			})
		})

		r.With(writes...).Post("/relationships", controllers.RelationshipCreate(deps.Relationships, logg))

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controllers.TransactionList(deps.Transactions, logg))
			r.With(middleware.RequireRole(logg, enums.MemberRoleAccountant), middleware.Idempotency(deps.Idempotency, logg)).
				Post("/", controllers.TransactionCreate(deps.Transactions, logg))
			r.Post("/validate", controllers.TransactionValidate(deps.Transactions, logg))
			r.Get("/{transactionId}", controllers.TransactionGet(deps.Transactions, logg))
		})

		r.With(middleware.RequireRole(logg, enums.MemberRoleAdmin)).
			Get("/outbox/dead-letters", controllers.OutboxDeadLetters(deps.DeadLetters, logg))
	})

	return r
}
