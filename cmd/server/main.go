package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/meujardineiro/backend/internal/admin"
	"github.com/meujardineiro/backend/internal/alerts"
	"github.com/meujardineiro/backend/internal/auth"
	"github.com/meujardineiro/backend/internal/config"
	"github.com/meujardineiro/backend/internal/db"
	"github.com/meujardineiro/backend/internal/logger"
	"github.com/meujardineiro/backend/internal/marketplace"
	mware "github.com/meujardineiro/backend/internal/middleware"
	"github.com/meujardineiro/backend/internal/session"
	"github.com/meujardineiro/backend/internal/store"
	"github.com/meujardineiro/backend/internal/user"
	"github.com/meujardineiro/backend/internal/utils"
)

type orderStore interface {
	marketplace.OrderStore
	admin.OrderCounter
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	zl, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres when configured, in-process otherwise
	var (
		pool   *pgxpool.Pool
		orders orderStore
		users  user.Store
	)
	if dsn := cfg.DB.DSN(); dsn != "" {
		pool, err = db.Connect(ctx, dsn, zl)
		if err != nil {
			zl.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := db.EnsureSchema(ctx, pool, zl); err != nil {
			zl.Fatal("ensure schema", zap.Error(err))
		}
		orders = store.NewPostgresOrders(pool)
		users = store.NewPostgresUsers(pool)
	} else {
		zl.Warn("no database configured, using in-memory stores")
		orders = store.NewMemoryOrders()
		users = store.NewMemoryUsers()
	}

	// Sessions
	var revocations session.RevocationStore = session.NewMemoryRevocations()
	if cfg.Redis.Addr != "" {
		rr, err := session.NewRedisRevocations(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zl.Fatal("redis", zap.Error(err))
		}
		defer rr.Close()
		revocations = rr
	}
	issuer := session.NewIssuer(cfg.JWT.Secret, cfg.JWT.TTL, revocations)

	// Notifications
	engineOpts := []marketplace.Option{marketplace.WithLogger(zl), marketplace.WithProviderStats(users)}
	var mail auth.Mailer
	if cfg.Alerts.Enabled {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
		client := asynq.NewClient(redisOpt)
		defer client.Close()

		mailer, err := alerts.NewMailer(cfg.Mail, zl)
		if err != nil {
			zl.Fatal("mailer", zap.Error(err))
		}
		worker := alerts.NewServer(redisOpt, cfg.Alerts.Concurrency, zl)
		if err := worker.Start(alerts.NewProcessor(mailer, zl).Mux()); err != nil {
			zl.Fatal("start alerts worker", zap.Error(err))
		}
		defer worker.Shutdown()

		dispatcher := alerts.NewDispatcher(client, users, cfg.App.URL, zl)
		engineOpts = append(engineOpts, marketplace.WithNotifier(dispatcher))
		mail = dispatcher
	}

	// Matching
	var stages []marketplace.MatchStage
	if cfg.Matching.Specialty {
		stages = append(stages, marketplace.SpecialtyStage{})
	}
	if cfg.Matching.Radius {
		stages = append(stages, marketplace.RadiusStage{})
	}
	visibility := marketplace.NewVisibility(orders, user.Directory{Store: users}, stages...)
	engineOpts = append(engineOpts, marketplace.WithVisibility(visibility))
	zl.Info("order visibility", zap.Strings("stages", visibility.Stages()))

	engine := marketplace.NewEngine(orders, engineOpts...)

	e := echo.New()
	e.HideBanner = true
	e.Validator = utils.NewValidator()
	e.Use(middleware.Recover())
	e.Use(mware.RequestLogger(zl))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if pool != nil {
			if err := pool.Ping(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	authed := mware.JWTMiddleware(user.ActiveGate{Gate: issuer, Store: users}, zl)

	// Auth routes with per-IP rate limiting to protect signup/login from abuse
	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	auth.NewHandler(users, issuer, mail, auth.Options{
		ResetSecret:     cfg.JWT.Secret,
		ResetTTL:        cfg.JWT.ResetTTL,
		BootstrapSecret: cfg.App.AdminBootstrapSecret,
	}, zl).Register(authGroup, authed)

	user.NewHandler(users, zl).Register(e.Group("/users"), authed)
	marketplace.NewHandler(engine, zl).Register(e.Group("/orders", authed), e.Group("/providers"))
	admin.NewHandler(users, orders, zl).Register(e.Group("/admin", authed, mware.AdminGuard))

	go func() {
		zl.Info("http server starting", zap.String("port", cfg.App.Port), zap.String("env", cfg.App.Env))
		if err := e.Start(":" + cfg.App.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
}
