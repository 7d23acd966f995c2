// Package repositories provides data access layer implementations.
// It handles all database operations and data persistence logic.
package repositories

import (
	"fmt"
	"time"

	"bookingpay/internal/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConfig holds database connection pool configuration
type DBConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

var defaultDBConfig = DBConfig{
	MaxIdleConns:    10,
	MaxOpenConns:    100,
	ConnMaxLifetime: time.Hour,
	ConnMaxIdleTime: time.Minute * 30,
}

// InitDB opens the database, sets up the connection pool and migrates the
// settlement tables.
func InitDB(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	stdLog, err := zap.NewStdLogAt(log.Named("gorm"), zapcore.WarnLevel)
	if err != nil {
		return nil, err
	}

	// Configure GORM logger to ignore "record not found" errors
	gormLogger := logger.New(
		stdLog,
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(defaultDBConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(defaultDBConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(defaultDBConfig.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(defaultDBConfig.ConnMaxIdleTime)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("postgres connected and migrations applied")
	return db, nil
}

// Migrate creates or updates the settlement tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Booking{}, &models.Payment{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Close releases the pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
