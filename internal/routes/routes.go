package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/phoneproof/phone_proof/internal/auth"
	"github.com/phoneproof/phone_proof/internal/ban"
	"github.com/phoneproof/phone_proof/internal/config"
	"github.com/phoneproof/phone_proof/internal/identity"
	"github.com/phoneproof/phone_proof/internal/middleware"
	"github.com/phoneproof/phone_proof/internal/verify"
)

// Deps aggregates shared dependencies required to wire routes. DB, Cache and
// the provider credentials may be absent in development; memory and static
// fallbacks take their place.
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
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var users identity.Store
	if d.DB != nil {
		users = identity.NewPostgresStore(d.DB)
	} else {
		users = identity.NewMemoryStore()
	}

	var bans ban.Registry
	if d.Cache != nil {
		bans = ban.NewRedisRegistry(d.Cache)
	} else {
		bans = ban.NewMemoryRegistry()
	}

	var provider verify.Client
	if d.Cfg.VonageAPIKey != "" && d.Cfg.VonageAPISecret != "" {
		provider = verify.NewVonageClient(d.Cfg.VonageAPIKey, d.Cfg.VonageAPISecret)
	} else {
		d.Logger.Warn("no provider credentials configured, using static verification client")
		provider = verify.StaticClient{}
	}

	coordinator := verify.NewCoordinator(provider, d.Cfg.VerifyPolicy, users, d.Logger)
	authSvc := auth.NewService(users, bans, coordinator, d.Logger)
	tokens := auth.NewTokenIssuer(d.Cfg.JWTSecret, d.Cfg.AccessTokenTTL)
	authHandler := auth.NewHandler(authSvc, tokens)

	api := app.Group("/api/v1")

	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)
	api.Post("/auth/verify", authHandler.Verify)

	api.Post("/bans", authHandler.Ban)
	api.Post("/bans/remove", authHandler.Unban)
	api.Post("/bans/check", authHandler.CheckBan)

	protected := api.Group("", middleware.Session(tokens))
	protected.Get("/me", authHandler.Me)

	return nil
}
