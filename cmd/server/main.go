package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"flashline/internal/adapter/handler"
	"flashline/internal/adapter/lock"
	"flashline/internal/adapter/queue"
	"flashline/internal/adapter/storage"
	"flashline/internal/config"
	"flashline/internal/core/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable store
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("open mysql")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping mysql")
	}
	logger.Info().Msg("connected to mysql")

	// Fast store
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	logger.Info().Msg("connected to redis")

	// Job queue
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	asynqClient := asynq.NewClient(redisOpt)

	// Adapters
	cache := storage.NewRedisAdapter(rdb)
	database := storage.NewMySQLAdapter(db)
	locker := lock.NewRedisLocker(rdb)
	taskQueue := queue.NewAsynqQueue(asynqClient, cfg.MaxReserveRetry)

	// Services
	admission := service.NewAdmissionService(cache, database, taskQueue, logger)
	reservations := service.NewReservationService(cache, database, taskQueue, locker, logger,
		cfg.DefaultHoldTTL, cfg.LockTTL, cfg.MetaCacheTTL)
	releases := service.NewReleaseService(cache, taskQueue, locker, logger,
		cfg.DefaultHoldTTL, cfg.LockTTL)
	confirm := service.NewConfirmService(cache, database, logger,
		cfg.ClaimTTL, cfg.DefaultHoldTTL, cfg.ConsumedBuffer)
	position := service.NewPositionService(cache)

	// Background workers
	workers := queue.NewServer(redisOpt, cfg.WorkerConcurrency, logger)
	mux := queue.NewMux(queue.NewWorkerHandlers(reservations, releases, logger))
	if err := workers.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start workers")
	}
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("workers started")

	// HTTP surface
	httpMux := http.NewServeMux()
	handler.NewHTTPHandler(admission, confirm, position).Register(httpMux)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpMux,
	}
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown: drain HTTP first so no new jobs arrive, then stop
	// the workers, then close the stores.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info().Msg("http server stopped")

	workers.Shutdown()
	logger.Info().Msg("workers stopped")

	asynqClient.Close()
	rdb.Close()
	db.Close()
	logger.Info().Msg("connections closed")
}
