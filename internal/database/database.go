package database

import (
	"fmt"
	"time"

	"github.com/nostrvine/backend/internal/logger"
	"github.com/nostrvine/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Initialize opens the postgres connection and configures the pool
func Initialize(databaseURL string, development bool) error {
	// Configure GORM logger
	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)
	if development {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	logger.Log.Info("✅ Database connected successfully")

	return nil
}

// Migrate runs auto-migration on the global connection
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return MigrateDB(DB)
}

// MigrateDB auto-migrates every model on db
func MigrateDB(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Video{},
		&models.PrefetchOutcome{},
		&models.PrefetchFeedback{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if db.Dialector.Name() == "postgres" {
		createIndexes(db)
	}

	logger.Log.Info("✅ Database migrations completed")
	return nil
}

// createIndexes creates postgres-only performance indexes
func createIndexes(db *gorm.DB) {
	statements := []string{
		// Feed page scan for the database candidate source
		"CREATE INDEX IF NOT EXISTS idx_videos_published_created ON videos (created_at DESC) WHERE published = true AND deleted_at IS NULL",
		// Analytics windows
		"CREATE INDEX IF NOT EXISTS idx_prefetch_outcomes_created ON prefetch_outcomes (created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_prefetch_outcomes_network_created ON prefetch_outcomes (network_type, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_prefetch_feedback_rec_created ON prefetch_feedback (recommendation_id, created_at DESC)",
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Log.Warn("Failed to create index", zap.String("statement", stmt), zap.Error(err))
		}
	}
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}
