package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/campus-engage-api/internal/models"
)

const (
	maxOpenConns    = 20
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
	slowQuery       = 500 * time.Millisecond
)

// ConnectPostgres opens the gamification database. Driver errors are translated
// so duplicate submissions surface as gorm.ErrDuplicatedKey, and slow queries are
// reported through logger.
func ConnectPostgres(dsn string, logger zerolog.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database url must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         QueryLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	return db, nil
}

// QueryLogger routes gorm warnings and slow queries to a component logger.
func QueryLogger(logger zerolog.Logger) gormlogger.Interface {
	dbLogger := logger.With().Str("component", "database").Logger()
	return gormlogger.New(&dbLogger, gormlogger.Config{
		SlowThreshold:             slowQuery,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// Migrate creates or updates the gamification tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Challenge{}, &models.ChallengeSubmission{}, &models.ActivityLog{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
