package database

import (
	"context"
	"fmt"

	"budstack-service/pkg/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the PostgreSQL connection and applies pool settings
func InitDB(dbConfig *config.DBConfig, log *zap.Logger) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN:                  dbConfig.GetDSN(),
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	db, err := gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger:         logger.Default.LogMode(dbConfig.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database object: %w", err)
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	log.Info("Database connected successfully",
		zap.String("host", dbConfig.Host),
		zap.String("db_name", dbConfig.DBName))

	return db, nil
}

// MigrateModels runs migrations for the provided models
func MigrateModels(db *gorm.DB, models ...interface{}) error {
	if db == nil {
		return fmt.Errorf("database is not initialized")
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	return nil
}

// Ping checks that the underlying connection is alive
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
