package server

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hanifmaliki/subledger/internal/config"
	"github.com/hanifmaliki/subledger/internal/domain"
	"github.com/hanifmaliki/subledger/internal/handler"
	"github.com/hanifmaliki/subledger/internal/middleware"
	"github.com/hanifmaliki/subledger/internal/repository"
	"github.com/hanifmaliki/subledger/internal/service"
	"github.com/hanifmaliki/subledger/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const idempotencyTTL = 10 * time.Minute

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	MongoDB     *mongo.Database
	RedisClient *redis.Client
	Transferer  domain.AssetTransferer
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) (*fiber.App, error) {
	ctx := context.Background()

	// Initialize repositories
	paramsRepo := repository.NewMongoParamsRepository(deps.MongoDB)
	accountRepo := repository.NewMongoAccountRepository(deps.MongoDB)
	eventRepo := repository.NewMongoEventRepository(deps.MongoDB)
	cacheRepo := repository.NewRedisCacheRepository(deps.RedisClient)
	cachedAccounts := repository.NewCachedAccountRepository(accountRepo, cacheRepo)

	// Seed the parameter singleton on first start; subsequent starts load
	// the persisted copy and ignore the config values.
	if _, err := service.BootstrapParams(ctx, paramsRepo, domain.Params{
		Token:         deps.Config.Ledger.Token,
		Treasury:      deps.Config.Ledger.Treasury,
		Administrator: deps.Config.Ledger.Administrator,
		UnitPrice:     deps.Config.Ledger.UnitPrice,
		PeriodSeconds: deps.Config.Ledger.PeriodSeconds,
	}); err != nil {
		return nil, err
	}

	// Initialize services
	ledgerService, err := service.NewLedgerService(ctx, paramsRepo, cachedAccounts, eventRepo, deps.Transferer)
	if err != nil {
		return nil, err
	}
	tokenService := service.NewTokenService(deps.Config.JWT)

	// Initialize handlers
	ledgerHandler := handler.NewLedgerHandler(ledgerService)
	adminHandler := handler.NewAdminHandler(ledgerService)
	statusHandler := handler.NewStatusHandler(ledgerService, eventRepo)
	eventHandler := handler.NewEventHandler(eventRepo)
	authHandler := handler.NewAuthHandler(tokenService)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Subledger API",
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(telemetry.TraceRequests())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "subledger",
		})
	})

	// API v1 routes
	v1 := app.Group("/v1")

	// Dev token issuance (only when explicitly enabled)
	if deps.Config.JWT.DevIssuer {
		log.Println("[Server] Dev token issuer enabled")
		v1.Post("/auth/dev-token", authHandler.IssueDevToken)
	}

	// Public reads: status polling and the event log need no identity
	v1.Get("/status/:identity", statusHandler.GetStatus)
	v1.Get("/params", statusHandler.GetParams)
	v1.Get("/events", eventHandler.ListEvents)

	// Purchases: authenticated identity pays
	subs := v1.Group("/subscriptions")
	subs.Use(middleware.VerifyIdentityToken(deps.Config.JWT.Secret))
	subs.Use(middleware.Idempotency(deps.RedisClient, idempotencyTTL))
	subs.Post("/", ledgerHandler.Subscribe)
	subs.Post("/gift", ledgerHandler.Gift)

	// Administrative surface: authenticated identity, the ledger itself
	// decides whether it is the administrator
	admin := v1.Group("/admin")
	admin.Use(middleware.VerifyIdentityToken(deps.Config.JWT.Secret))
	admin.Put("/price", adminHandler.SetPrice)
	admin.Put("/period", adminHandler.SetPeriod)
	admin.Put("/treasury", adminHandler.SetTreasury)
	admin.Post("/pause", adminHandler.Pause)
	admin.Post("/unpause", adminHandler.Unpause)
	admin.Post("/cancel/:identity", adminHandler.Cancel)
	admin.Post("/transfer", adminHandler.TransferAdmin)

	return app, nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	log.Printf("Error: %v", err)
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
