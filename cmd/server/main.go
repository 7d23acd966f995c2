// Package main is the entry point for the settlement API.
// It loads configuration, wires dependencies, starts the reconcile poller
// and serves HTTP until interrupted.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookingpay/internal/config"
	"bookingpay/internal/handlers"
	"bookingpay/internal/logger"
	"bookingpay/internal/middleware"
	"bookingpay/internal/repositories"
	"bookingpay/internal/repositories/cache"
	"bookingpay/internal/routes"
	"bookingpay/internal/services/auth"
	"bookingpay/internal/services/processor"
	"bookingpay/internal/services/reconcile"
	"bookingpay/internal/services/settlement"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

const version = "1.0.0"

const bookingCacheTTL = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.App.LogDir, cfg.App.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := repositories.InitDB(cfg.Database.DSN(), zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := repositories.Close(db); err != nil {
			zlog.Warn("Failed to close database connection", zap.Error(err))
		}
	}()

	payments := repositories.NewPaymentRepository(db)
	var bookings settlement.BookingRepository = repositories.NewBookingRepository(db)

	checks := map[string]handlers.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	// Redis is optional: without it the payment lock is in-process only.
	var locker settlement.Locker
	if cfg.Redis.Enabled {
		rdb := cache.NewRedisClient(&cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := cache.Ping(context.Background(), rdb); err != nil {
			zlog.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				zlog.Warn("Failed to close Redis connection", zap.Error(err))
			}
		}()

		locker = cache.NewRedisLocker(rdb, cfg.Redis.LockTTL)
		bookings = cache.NewCachedBookings(bookings, cache.NewCacheService(rdb, bookingCacheTTL), bookingCacheTTL, zlog)
		checks["redis"] = func(ctx context.Context) error {
			return cache.Ping(ctx, rdb)
		}
		zlog.Info("Redis connected", zap.String("host", cfg.Redis.Host))
	} else {
		zlog.Warn("Redis disabled, payment locks are local to this process")
	}

	client := processor.NewStripeClient(cfg.Processor(), zlog)
	settleSvc := settlement.NewService(
		payments,
		bookings,
		client,
		locker,
		cfg.Settlement(),
		settlement.NewLogMetricsCollector(zlog),
		zlog,
	)

	authSvc := auth.NewService(auth.Config{
		AdminEmail:        cfg.Admin.Email,
		AdminPasswordHash: cfg.Admin.PasswordHash,
		JWTSecret:         cfg.JWT.Secret,
		TokenTTL:          cfg.JWT.TTL,
	}, zlog)
	if cfg.Admin.PasswordHash == "" {
		zlog.Warn("ADMIN_PASSWORD_HASH is not set, admin login is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := reconcile.NewWorker(payments, settleSvc, reconcile.Config{
		Interval:  cfg.Reconcile.Interval,
		MinAge:    cfg.Reconcile.MinAge,
		BatchSize: cfg.Reconcile.BatchSize,
	}, zlog)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	app := fiber.New(fiber.Config{
		AppName:      "bookingpay",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ALLOW_ORIGINS", "*"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,HEAD",
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(app, routes.Handlers{
		Health: handlers.NewHealthHandler(version, checks),
		Payment: handlers.NewPaymentHandler(settleSvc, handlers.Pages{
			Success: cfg.Gateway.SuccessURL,
			Pending: cfg.Gateway.PendingURL,
			Failure: cfg.Gateway.FailureURL,
		}, zlog),
		Admin: handlers.NewAdminHandler(authSvc, settleSvc, payments, zlog),
		Auth:  middleware.NewAuthMiddleware(authSvc, zlog),
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			zlog.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	zlog.Info("Starting server",
		zap.String("port", cfg.App.Port),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
	)
	if err := app.Listen(":" + cfg.App.Port); err != nil {
		zlog.Error("Server stopped", zap.Error(err))
	}

	stop()
	<-workerDone
	zlog.Info("Server exited")
}
