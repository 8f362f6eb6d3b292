package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/MandraVEVO/ecommerce/internal/cache"
	"github.com/MandraVEVO/ecommerce/internal/config"
	"github.com/MandraVEVO/ecommerce/internal/database"
	"github.com/MandraVEVO/ecommerce/internal/log"
	"github.com/MandraVEVO/ecommerce/internal/repository"
	"github.com/MandraVEVO/ecommerce/internal/storage"
	"github.com/MandraVEVO/ecommerce/internal/worker/queue"
	"github.com/MandraVEVO/ecommerce/internal/worker/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	var archive tasks.Archiver
	if cfg.Storage.Enabled() {
		store, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		if err := store.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure audit bucket failed")
		}
		archive = store
	}

	processor := tasks.NewProcessor(
		repository.NewBlacklistRepository(dbPool),
		archive,
		tasks.ProcessorConfig{},
		logger,
	)
	consumer := queue.NewConsumer(
		client,
		cfg.Queue.Stream,
		cfg.Queue.Group,
		cfg.Queue.Consumer,
		cfg.Queue.ClaimInterval,
		logger,
		processor,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
