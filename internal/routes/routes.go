package routes

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/PeaceOloruntoba/payment-wallet-app/internal/auth"
	"github.com/PeaceOloruntoba/payment-wallet-app/internal/cards"
	"github.com/PeaceOloruntoba/payment-wallet-app/internal/config"
	"github.com/PeaceOloruntoba/payment-wallet-app/internal/identity"
	"github.com/PeaceOloruntoba/payment-wallet-app/internal/ledger"
	"github.com/PeaceOloruntoba/payment-wallet-app/internal/middleware"
	"github.com/PeaceOloruntoba/payment-wallet-app/internal/notification"
	"github.com/PeaceOloruntoba/payment-wallet-app/internal/provider"
	"github.com/PeaceOloruntoba/payment-wallet-app/internal/webhook"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	// Storage backends: Postgres in normal operation, in-memory in dev mode
	// without a DATABASE_URL.
	var (
		store        ledger.Store
		identityRepo identity.Repository
		cardRepo     cards.Repository
	)
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
		cardRepo = cards.NewPostgresRepository(d.DB)
	} else {
		store = ledger.NewMemoryStore()
		identityRepo = identity.NewMemoryRepository()
		cardRepo = cards.NewMemoryRepository()
	}

	// Gateway: the real signed client when credentials are configured,
	// otherwise the simulated provider.
	var gateway provider.Gateway
	creds := provider.Credentials{AccessKey: d.Cfg.Provider.AccessKey, SecretKey: d.Cfg.Provider.SecretKey}
	if creds.AccessKey != "" {
		gateway = provider.NewClient(d.Cfg.Provider.BaseURL, creds, d.Cfg.Provider.Timeout, d.Logger)
	} else {
		gateway = provider.NewStatic()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	engine := ledger.NewEngine(store, gateway, notifier, d.Logger, ledger.CheckoutURLs{
		Complete: d.Cfg.Provider.CompleteURL,
		Cancel:   d.Cfg.Provider.CancelURL,
	})

	identitySvc := identity.NewService(identityRepo)
	tokenSvc := auth.NewService(d.Cfg.JWTSecret, d.Cfg.AccessTokenTTL)
	cardSvc := cards.NewService(cardRepo, engine, gateway)
	reconciler := webhook.New(engine, d.Logger)

	identityHandler := NewHandler(identitySvc, tokenSvc, engine, d.Logger)
	walletHandler := ledger.NewHandler(engine, d.Logger)
	cardHandler := cards.NewHandler(cardSvc, engine)
	webhookHandler := webhook.NewHandler(reconciler, creds, d.Logger)

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// The webhook endpoint is authenticated by its HMAC signature, not by a
	// user token, and must see the raw request body.
	RegisterWebhookRoute(api, webhookHandler)

	RegisterAuthRoutes(api, identityHandler)

	protected := api.Group("", middleware.JWTAuth(tokenSvc))
	var idem fiber.Handler
	if d.Cache != nil {
		idem = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterWalletRoutes(protected, walletHandler, idem)
	RegisterCardRoutes(protected, cardHandler)

	return nil
}
