package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/pkg/config"
)

// NewConnection initializes a new PostgreSQL connection using GORM
func NewConnection(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.LogQueries {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 10))
	sqlDB.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 50))
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Successfully connected to PostgreSQL",
		zap.Int("max_open_conns", orDefault(cfg.MaxOpenConns, 50)),
	)
	return db, nil
}

// RunMigrations creates the menu item and keyword tables
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.MenuItem{}, &domain.Keyword{}); err != nil {
		return fmt.Errorf("failed to migrate catalog tables: %w", err)
	}
	return nil
}

// Ping checks the underlying pool; used by the readiness probe
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
