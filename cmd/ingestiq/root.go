package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/soundledger/stream-ingest-iq/internal/config"
	"github.com/soundledger/stream-ingest-iq/internal/db"
	"github.com/soundledger/stream-ingest-iq/internal/models"
	"github.com/soundledger/stream-ingest-iq/internal/platform"
	"github.com/soundledger/stream-ingest-iq/internal/repository"

	"github.com/google/uuid"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingestiq",
		Short: "Streaming usage report ingestion service",
		Long: `ingestiq ingests usage reports from music streaming platforms:
it detects the platform and encoding of each report file, parses and
validates it, standardizes the rows, and stores them with a full audit
trail and quality scores.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}))
			slog.SetDefault(logger)
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newProcessCmd())

	return cmd
}

// bootstrap connects to the database, applies the schema, and seeds catalog
// platforms. Shared by the serve and process commands.
func bootstrap(ctx context.Context, cfg *config.Config, registry *platform.Registry) (*db.Pool, error) {
	pool, err := connectWithRetry(ctx, cfg, 30)
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	if err := seedPlatforms(ctx, pool, registry); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func connectWithRetry(ctx context.Context, cfg *config.Config, maxRetries int) (*db.Pool, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		pool, err := db.Connect(ctx, cfg.Database)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		slog.Warn("database not ready, retrying...",
			"attempt", i+1,
			"max_retries", maxRetries,
			"error", err,
		)
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func seedPlatforms(ctx context.Context, pool *db.Pool, registry *platform.Registry) error {
	repo := repository.NewPlatformRepository(pool)
	var platforms []models.Platform
	for _, cfg := range registry.All() {
		platforms = append(platforms, models.Platform{
			ID:     uuid.New(),
			Code:   cfg.Code,
			Name:   cfg.Name,
			Active: true,
		})
	}
	return repo.Seed(ctx, platforms)
}
