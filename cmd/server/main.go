package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/commerce-core/internal/adapter/handler"
	"github.com/rl1809/commerce-core/internal/adapter/messaging"
	"github.com/rl1809/commerce-core/internal/adapter/storage"
	"github.com/rl1809/commerce-core/internal/config"
	"github.com/rl1809/commerce-core/internal/core/domain"
	"github.com/rl1809/commerce-core/internal/core/service"
	"github.com/rl1809/commerce-core/internal/logging"
	"github.com/rl1809/commerce-core/internal/port"
	"github.com/rl1809/commerce-core/internal/shutdown"
)

const (
	sweepBatchSize = 500
	rollupTimeout  = 30 * time.Second
)

type cacheBackend interface {
	port.LockRepository
	port.ProjectionCache
	port.IdempotencyStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		ServiceName: "commerce-core",
		Env:         string(cfg.AppEnv),
		Level:       cfg.LogLevel,
	})
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logging.Sync(logger)
	logger.Info("config loaded", cfg.Fields()...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownManager := shutdown.New(cfg.ShutdownTimeout, logger)

	// Database
	db, err := storage.OpenDatabase(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	shutdownManager.Add("database", shutdown.Close(db))
	logger.Info("connected to database", zap.String("driver", cfg.DBDriver))

	if cfg.AutoMigrate {
		applied, err := storage.Migrate(ctx, db, cfg.DBDriver)
		if err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		logger.Info("migrations applied", zap.Int64s("versions", applied))
	}

	// Lock, cache and idempotency
	var cache cacheBackend
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		shutdownManager.Add("redis", shutdown.Close(rdb))
		cache = storage.NewRedisAdapter(rdb)
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	} else {
		cache = storage.NewMemoryAdapter()
		logger.Warn("REDIS_ADDR not set, rollup locks only hold within this process")
	}

	// Events
	var events port.EventPublisher = messaging.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := messaging.NewKafkaPublisher(logger, cfg.KafkaBrokers, cfg.KafkaTopic)
		shutdownManager.Add("kafka", shutdown.Close(publisher))
		events = publisher
		logger.Info("publishing rollup events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	// Services
	repo := storage.NewSQLAdapter(db)
	inventoryService := service.NewInventoryService(repo, cache, cache, events, logger, cfg.RollupQueueSize, cfg.RollupLockTTL)
	projectionService := service.NewProjectionService(repo, cache, logger, cfg.ProjectionCacheTTL)

	// Rollup workers drain the queue; registered before the servers so they stop after them.
	var workers sync.WaitGroup
	for i := 0; i < cfg.RollupWorkers; i++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			workerLoop(id, inventoryService.GetRollupQueue(), inventoryService, logger)
		}(i)
	}
	shutdownManager.Add("rollup workers", func(ctx context.Context) error {
		inventoryService.Close()
		return shutdown.WaitGroup(&workers)(ctx)
	})
	logger.Info("started rollup workers", zap.Int("count", cfg.RollupWorkers))

	sweepCtx, stopSweep := context.WithCancel(ctx)
	go inventoryService.RunSweeper(sweepCtx, cfg.RollupSweepInterval, sweepBatchSize)
	shutdownManager.Add("rollup sweeper", func(context.Context) error {
		stopSweep()
		return nil
	})

	// gRPC server
	grpcServer := grpc.NewServer(grpc.ForceServerCodec(handler.JSONCodec{}))
	handler.RegisterInventoryServer(grpcServer, handler.NewGRPCHandler(inventoryService, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()
	shutdownManager.Add("grpc server", shutdown.ShutdownGRPCServer(grpcServer))

	// HTTP server
	readiness := func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return db.PingContext(pingCtx) == nil
	}
	httpHandler := handler.NewHTTPHandler(inventoryService, projectionService, logger, readiness)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	shutdownManager.Add("http server", shutdown.ShutdownHTTPServer(httpServer))

	shutdownManager.Wait(ctx)
}

// workerLoop rolls up every key from queue until it is closed. A key that is
// locked elsewhere is skipped; the sweeper picks it up again.
func workerLoop(id int, queue <-chan domain.InventoryKey, rollups *service.InventoryService, logger *zap.Logger) {
	log := logger.With(zap.Int("worker", id))

	for key := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), rollupTimeout)

		result, err := rollups.ProcessRollup(ctx, key)
		switch {
		case errors.Is(err, service.ErrRollupLocked):
			log.Debug("rollup skipped, lock held", zap.String("key", key.String()))
		case err != nil:
			log.Error("rollup failed", zap.String("key", key.String()), zap.Error(err))
		default:
			log.Debug("rollup done", zap.String("key", key.String()), zap.Int("rows", result.RowsDeleted))
		}

		cancel()
	}
}
