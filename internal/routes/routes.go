package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/onebills/onebills/internal/auth"
	"github.com/onebills/onebills/internal/bills"
	"github.com/onebills/onebills/internal/config"
	"github.com/onebills/onebills/internal/guard"
	"github.com/onebills/onebills/internal/metrics"
	"github.com/onebills/onebills/internal/middleware"
	"github.com/onebills/onebills/internal/profile"
	"github.com/onebills/onebills/internal/store"
	"github.com/onebills/onebills/internal/transactions"
)

// Deps aggregates the services the bridge exposes. DB and Cache are only
// used for health reporting and idempotency; both may be nil in development.
type Deps struct {
	Cfg          config.Config
	DB           *pgxpool.Pool
	Cache        *redis.Client
	Logger       *slog.Logger
	Store        *store.Store
	Watcher      *guard.Watcher
	Mailbox      *guard.Mailbox
	Profiles     *profile.Service
	Bills        *bills.Service
	Transactions *transactions.Service
	AuthLimiter  auth.Limiter
	Metrics      metrics.Recorder
	Gatherer     prometheus.Gatherer
}

// Setup configures middlewares and all bridge routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Store == nil || d.Watcher == nil || d.Bills == nil || d.Transactions == nil {
		return fmt.Errorf("routes: store, watcher, bills and transactions are required")
	}
	if !d.Cfg.IsDev() && d.Cache == nil {
		return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Metrics(d.Metrics))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(d.Gatherer)))
	}

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	session := newSessionHandler(d.Store, d.Watcher, d.Mailbox)
	RegisterSessionRoutes(api, session, middleware.RateLimit(d.AuthLimiter, "bridge-auth", d.Logger))
	billHandler := bills.NewHandler(d.Bills)
	RegisterCatalogRoutes(api, billHandler)
	if d.Profiles != nil && d.Cfg.KYCWebhookSecret != "" {
		kyc := &kycHandler{profiles: d.Profiles, store: d.Store, logger: d.Logger}
		RegisterKYCRoutes(api, kyc, middleware.RequireSecret(kycSecretHeader, d.Cfg.KYCWebhookSecret))
	}

	// Routes below need a signed-in user.
	protected := api.Group("", middleware.RequireUser(d.Store))
	RegisterBillRoutes(protected, billHandler)

	var idempotency fiber.Handler
	if d.Cache != nil {
		idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterTransactionRoutes(protected, transactions.NewHandler(d.Transactions), idempotency)

	return nil
}
