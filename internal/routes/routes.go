package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/corebank/corebank/internal/account"
	"github.com/corebank/corebank/internal/auth"
	"github.com/corebank/corebank/internal/config"
	"github.com/corebank/corebank/internal/events"
	"github.com/corebank/corebank/internal/fraud"
	"github.com/corebank/corebank/internal/ledger"
	"github.com/corebank/corebank/internal/middleware"
	"github.com/corebank/corebank/internal/notification"
	"github.com/corebank/corebank/internal/savings"
	"github.com/corebank/corebank/internal/transaction"
	"github.com/corebank/corebank/internal/user"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Wired exposes the pieces main needs beyond the HTTP surface: the event
// producer to close on shutdown, the replayer and repositories the Kafka
// consumer feeds, and the savings service for the maturity sweep.
type Wired struct {
	Producer events.Producer
	Replayer ledger.Replayer
	Accounts account.Repository
	Notifier notification.Notifier
	Savings  *savings.Service
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Wired, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Repositories
	var (
		userRepo         user.Repository
		accountRepo      account.Repository
		planRepo         savings.PlanRepository
		fixedDepositRepo savings.FixedDepositRepository
		engine           ledger.Engine
	)
	if d.DB != nil {
		userRepo = user.NewPostgresRepository(d.DB)
		accountRepo = account.NewPostgresRepository(d.DB)
		planRepo = savings.NewPostgresPlanRepository(d.DB)
		fixedDepositRepo = savings.NewPostgresFixedDepositRepository(d.DB)
		engine = ledger.NewPostgresEngine(d.DB)
	} else {
		userRepo = user.NewMemoryRepository()
		accountRepo = account.NewMemoryRepository()
		planRepo = savings.NewMemoryPlanRepository()
		fixedDepositRepo = savings.NewMemoryFixedDepositRepository()
		engine = ledger.NewInMemory(accountRepo)
	}

	var window fraud.Window
	if d.Cache != nil {
		window = fraud.NewRedisWindow(d.Cache, d.Cfg.Fraud.WindowLookback)
	} else {
		window = fraud.NewMemoryWindow()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)

	var producer events.Producer
	if d.Cfg.Kafka.Enabled {
		kafkaProducer, err := events.NewKafkaProducer(d.Cfg.Kafka, d.Logger)
		if err != nil {
			return nil, err
		}
		producer = kafkaProducer
	} else {
		producer = events.NewNoopProducer(d.Logger)
	}

	// Services
	accountSvc := account.NewService(accountRepo)
	userSvc := user.NewService(userRepo, notifier)
	tokenSvc := auth.NewService(d.Cfg.JWT)
	evaluator := fraud.NewEvaluator(fraud.Rules{
		LargeTransferThreshold: d.Cfg.LargeTransferThreshold(),
		Blacklist:              d.Cfg.Fraud.Blacklist,
		WindowLookback:         d.Cfg.Fraud.WindowLookback,
		FrequencyLimit:         d.Cfg.Fraud.FrequencyLimit,
	}, window, d.Logger)
	txSvc := transaction.NewService(accountSvc, userRepo, engine, evaluator, notifier, producer, d.Logger)
	savingsSvc := savings.NewService(planRepo, fixedDepositRepo, accountSvc, txSvc, d.Logger)

	// Handlers
	userHandler := user.NewHandler(userSvc, tokenSvc)
	accountHandler := account.NewHandler(accountSvc)
	txHandler := transaction.NewHandler(txSvc)
	savingsHandler := savings.NewHandler(savingsSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, userHandler, rateLimiter)

	// Protected routes
	jwtmw := middleware.JWTAuth(tokenSvc, userRepo)
	protected := api.Group("", jwtmw)
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, 24*time.Hour, d.Logger))
	}
	protected.Get("/me", userHandler.Me)
	RegisterAccountRoutes(protected, accountHandler)
	RegisterTransactionRoutes(protected, txHandler)
	RegisterSavingsRoutes(protected, savingsHandler)

	return &Wired{
		Producer: producer,
		Replayer: engine.(ledger.Replayer),
		Accounts: accountRepo,
		Notifier: notifier,
		Savings:  savingsSvc,
	}, nil
}
