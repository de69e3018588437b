package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/paddleapp/paddle/internal/adapters/coordination"
	"github.com/paddleapp/paddle/internal/adapters/database"
	eventsadapter "github.com/paddleapp/paddle/internal/adapters/events"
	"github.com/paddleapp/paddle/internal/config"
	"github.com/paddleapp/paddle/internal/domain/settlement"
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

	// 3. Initialize RabbitMQ Publisher
	mq, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Error("RabbitMQ failed", "error", err)
		os.Exit(1)
	}
	defer mq.Close()

	publisher, err := eventsadapter.NewRabbitMQPublisher(mq, settlement.Exchange)
	if err != nil {
		logger.Error("Failed to initialize RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()
	logger.Info("RabbitMQ Connected")

	// 4. Initialize Repositories and Settlement
	// Set lock timeout to 3 seconds
	txManager := pkgdatabase.NewPostgresTransactionManager(pool, 3*time.Second)
	auctionRepo := database.NewPostgresAuctionRepository(pool)
	userRepo := database.NewPostgresUserRepository(pool)

	settleLocker := coordination.NewSettleLocker(rdb, coordination.LockOptions{
		Lease: cfg.SettleLockLease,
		// No retry: a busy settlement lock means someone else owns the
		// auction and the next tick will catch anything left over.
		RetryCount: 1,
	})
	scheduler := coordination.NewRedisScheduler(rdb)
	broadcaster := eventsadapter.NewRedisBroadcaster(rdb)

	settler := settlement.NewService(txManager, auctionRepo, userRepo, settleLocker, scheduler, logger)
	driver := settlement.NewDriver(
		settler,
		scheduler,
		broadcaster,
		publisher,
		cfg.SettleBatchSize,
		cfg.SettleTickInterval,
		logger,
	)

	logger.Info("Starting Settlement Worker...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return driver.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped")
}
