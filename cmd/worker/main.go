package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"gradportrait/internal/cache"
	"gradportrait/internal/config"
	"gradportrait/internal/log"
	"gradportrait/internal/queue"
	"gradportrait/internal/storage"
	"gradportrait/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	spool, err := storage.NewUploadSpool(cfg.Uploads.Dir, cfg.Uploads.MaxBytes, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init upload spool")
	}
	content, err := storage.NewFileStore(cfg.Content.Dir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init content store")
	}

	var mirror tasks.PortraitMirror
	if cfg.Storage.Enabled {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure bucket failed")
		}
		mirror = objectStore
	}

	processor := tasks.NewProcessor(logger, spool, cfg.Uploads.SweepAge, content, mirror)
	consumer := queue.NewConsumer(
		client,
		cfg.Redis.Stream,
		cfg.Redis.Group,
		cfg.Redis.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		processor,
	)

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
