package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/nostrvine/backend/internal/candidates"
	"github.com/nostrvine/backend/internal/config"
	"github.com/nostrvine/backend/internal/database"
	"github.com/nostrvine/backend/internal/logger"
	"github.com/nostrvine/backend/internal/seed"
	"go.uber.org/zap"
)

const defaultDevVideos = 500

func main() {
	// Parse command
	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "dev", "test", "clean":
	default:
		fmt.Println("Usage: seed [dev [count]|test|clean]")
		fmt.Println("  dev   - Seed development database with realistic videos")
		fmt.Println("  test  - Seed test database with a small fixed feed")
		fmt.Println("  clean - Remove all videos and prefetch analytics (use with caution)")
		os.Exit(1)
	}

	logger.Log = zap.NewExample()

	cfg, err := config.Load()
	if err != nil {
		logger.FatalWithFields("Invalid configuration", err)
	}

	if err := database.Initialize(cfg.Database.URL, cfg.IsDevelopment()); err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	defer func() { _ = database.Close() }()

	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	ctx := context.Background()
	seeder := seed.NewSeeder(database.DB)

	switch command {
	case "dev":
		count := defaultDevVideos
		if len(os.Args) > 2 {
			if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
				count = n
			}
		}

		if cfg.Candidates.GorseAPIKey != "" {
			seeder.SetGorseClient(candidates.NewGorseSource(cfg.Candidates.GorseURL, cfg.Candidates.GorseAPIKey, nil))
			logger.Log.Info("Gorse client configured", zap.String("url", cfg.Candidates.GorseURL))
		} else {
			logger.Log.Warn("GORSE_API_KEY not set - skipping Gorse sync")
		}

		videos, err := seeder.SeedDev(ctx, count)
		if err != nil {
			logger.FatalWithFields("Seeding failed", err)
		}
		logger.Log.Info("Development database seeded", zap.Int("videos", len(videos)))

	case "test":
		videos, err := seeder.SeedTest(ctx)
		if err != nil {
			logger.FatalWithFields("Seeding failed", err)
		}
		logger.Log.Info("Test database seeded", zap.Int("videos", len(videos)))

	case "clean":
		if err := seeder.Clean(ctx); err != nil {
			logger.FatalWithFields("Clean failed", err)
		}
		logger.Log.Info("Seed data cleaned")
	}
}
