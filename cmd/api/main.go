package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/paddleapp/paddle/internal/adapters/api"
	"github.com/paddleapp/paddle/internal/adapters/coordination"
	"github.com/paddleapp/paddle/internal/adapters/database"
	eventsadapter "github.com/paddleapp/paddle/internal/adapters/events"
	"github.com/paddleapp/paddle/internal/config"
	"github.com/paddleapp/paddle/internal/domain/auctions"
	"github.com/paddleapp/paddle/internal/domain/players"
	"github.com/paddleapp/paddle/internal/domain/rooms"
	"github.com/paddleapp/paddle/internal/domain/users"
	"github.com/paddleapp/paddle/pkg/auth"
	pkgdatabase "github.com/paddleapp/paddle/pkg/database"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Initialize Postgres Connection Pool
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("Unable to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 2. Initialize Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("Unable to parse redis url", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Unable to ping redis", "error", err)
		os.Exit(1)
	}
	logger.Info("Redis Connected")

	// 3. Initialize Repositories (Infrastructure Layer)
	// Set lock timeout to 3 seconds to prevent indefinite waiting
	txManager := pkgdatabase.NewPostgresTransactionManager(pool, 3*time.Second)
	auctionRepo := database.NewPostgresAuctionRepository(pool)
	userRepo := database.NewPostgresUserRepository(pool)
	roomRepo := database.NewPostgresRoomRepository(pool)
	playerRepo := database.NewPostgresPlayerRepository(pool)

	bidLocker := coordination.NewBidLocker(rdb, coordination.LockOptions{
		Lease:      cfg.BidLockLease,
		RetryCount: cfg.LockRetryCount,
		RetryDelay: cfg.LockRetryDelay,
	})
	scheduler := coordination.NewRedisScheduler(rdb)
	broadcaster := eventsadapter.NewRedisBroadcaster(rdb)

	// 4. Initialize Services (Domain Layer)
	signer := auth.NewSigner(cfg.JWTSecret, "paddle", 0)

	auctionService := auctions.NewService(
		txManager,
		auctionRepo,
		userRepo,
		bidLocker,
		scheduler,
		broadcaster,
		auctions.Rules{
			DefaultIncrementPct: cfg.MinIncrementPct,
			AntiSnipeWindow:     cfg.AntiSnipeWindow,
			AntiSnipeExtend:     cfg.AntiSnipeExtend,
			DefaultDuration:     cfg.DefaultAuctionDuration,
		},
		logger,
	)
	userService := users.NewService(userRepo, signer, cfg.StartingBalance)
	roomService := rooms.NewService(roomRepo)
	playerService := players.NewService(playerRepo)

	logger.Info("Services Initialized")

	// 5. HTTP server
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	handler := api.NewHandler(userService, roomService, playerService, auctionService)
	handler.RegisterRoutes(e, signer)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			stop()
		}
	}()
	logger.Info("API listening", "port", cfg.Port)

	<-ctx.Done()
	logger.Info("Shutting down API...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	logger.Info("API stopped")
}
