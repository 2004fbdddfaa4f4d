package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gradportrait/internal/cache"
	"gradportrait/internal/config"
	"gradportrait/internal/database"
	"gradportrait/internal/handlers"
	"gradportrait/internal/imagegen"
	"gradportrait/internal/jobs"
	"gradportrait/internal/log"
	"gradportrait/internal/queue"
	"gradportrait/internal/repository"
	"gradportrait/internal/server"
	"gradportrait/internal/service"
	"gradportrait/internal/storage"
)

// userStore bundles the record store with what the health check and
// shutdown need from its backend.
type userStore struct {
	repository.UserStore
	ping  func(context.Context) error
	close func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	store, err := openUserStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open user store")
	}

	var (
		redisClient *redis.Client
		producer    *queue.Producer
		mirror      service.MirrorPublisher
	)
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		producer = queue.NewProducer(redisClient, cfg.Redis.Stream)
		mirror = producer
	}

	logo, err := os.ReadFile(cfg.Assets.LogoPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.Assets.LogoPath).Msg("logo not loaded, portraits will be generated without it")
	}

	content, err := storage.NewFileStore(cfg.Content.Dir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init content store")
	}
	spool, err := storage.NewUploadSpool(cfg.Uploads.Dir, cfg.Uploads.MaxBytes, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init upload spool")
	}

	editor := imagegen.NewOpenAIClient(imagegen.Options{
		APIKey:  cfg.Provider.APIKey,
		BaseURL: cfg.Provider.BaseURL,
		Model:   cfg.Provider.Model,
		Timeout: cfg.Provider.Timeout,
	})

	portraits := service.NewPortraitService(store, editor, content, mirror, service.PortraitConfig{
		Logo:              logo,
		GenerationTimeout: cfg.Provider.Timeout,
	}, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, portraits, spool, store.ping, redisClient)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	var scheduler *jobs.Scheduler
	if producer != nil {
		scheduler = jobs.NewScheduler(producer, cfg.Uploads.SweepCron, logger)
		if err := scheduler.Start(); err != nil {
			logger.Error().Err(err).Msg("scheduler start failed")
		}
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, store, redisClient)
}

func openUserStore(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (userStore, error) {
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			return userStore{}, err
		}
		if cfg.Database.Migrate {
			if err := database.MigratePostgres(ctx, pool); err != nil {
				pool.Close()
				return userStore{}, err
			}
		}
		return postgresStore(pool), nil
	case "sqlite":
		db, err := database.NewSQLite(ctx, cfg.SQLite)
		if err != nil {
			return userStore{}, err
		}
		if cfg.Database.Migrate {
			if err := database.MigrateSQLite(ctx, db); err != nil {
				_ = db.Close()
				return userStore{}, err
			}
		}
		return sqliteStore(db, logger), nil
	case "memory":
		logger.Warn().Msg("using in-memory user store, records are lost on restart")
		return userStore{UserStore: repository.NewMemoryUserRepository(), close: func() {}}, nil
	default:
		return userStore{}, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func postgresStore(pool *pgxpool.Pool) userStore {
	return userStore{
		UserStore: repository.NewUserRepository(pool),
		ping:      pool.Ping,
		close:     pool.Close,
	}
}

func sqliteStore(db *sql.DB, logger zerolog.Logger) userStore {
	return userStore{
		UserStore: repository.NewSQLiteUserRepository(db),
		ping:      db.PingContext,
		close: func() {
			if err := db.Close(); err != nil {
				logger.Error().Err(err).Msg("sqlite close error")
			}
		},
	}
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, store userStore, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	// In-flight generations can take as long as the provider timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	store.close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
