package main

// Apply database migrations without starting the API:
//   go run ./cmd/migrate

import (
	"context"

	"gradportrait/internal/config"
	"gradportrait/internal/database"
	"gradportrait/internal/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := log.New(cfg.Environment, cfg.Logging)
	ctx := context.Background()

	switch cfg.Database.Driver {
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		defer pool.Close()
		if err := database.MigratePostgres(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres migrations failed")
		}
	case "sqlite":
		db, err := database.NewSQLite(ctx, cfg.SQLite)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open sqlite")
		}
		defer db.Close()
		if err := database.MigrateSQLite(ctx, db); err != nil {
			logger.Fatal().Err(err).Msg("sqlite migrations failed")
		}
	default:
		logger.Fatal().Str("driver", cfg.Database.Driver).Msg("driver has no migrations")
	}

	logger.Info().Str("driver", cfg.Database.Driver).Msg("migrations applied")
}
