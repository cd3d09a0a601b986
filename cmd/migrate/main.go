package main

import (
	"fmt"
	"os"

	"github.com/nostrvine/backend/internal/config"
	"github.com/nostrvine/backend/internal/database"
	"github.com/nostrvine/backend/internal/logger"
	"go.uber.org/zap"
)

func main() {
	// Parse command
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		runMigrationsUp()
	default:
		fmt.Println("Usage: migrate [up]")
		fmt.Println("  up     - Create or update the videos and prefetch analytics tables")
		os.Exit(1)
	}
}

func runMigrationsUp() {
	logger.Log = zap.NewExample()

	cfg, err := config.Load()
	if err != nil {
		logger.FatalWithFields("Invalid configuration", err)
	}

	logger.Log.Info("Connecting to database...")
	if err := database.Initialize(cfg.Database.URL, cfg.IsDevelopment()); err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	defer func() { _ = database.Close() }()

	logger.Log.Info("Running migrations...")
	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Migration failed", err)
	}

	logger.Log.Info("All migrations completed successfully")
}
