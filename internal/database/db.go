package database

import (
	"fmt"

	"restopos-backend/internal/config"
	"restopos-backend/internal/logger"
	"restopos-backend/internal/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured store and runs the schema migration.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialect(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(log, gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if cfg.DatabaseType == "sqlite" {
		// SQLite allows a single writer; one connection makes transactions queue instead of failing with SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database ready", zap.String("type", cfg.DatabaseType))
	return db, nil
}

func dialect(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DatabaseType {
	case "postgres":
		return postgres.Open(cfg.DatabaseDSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DatabaseDSN), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}
}

// Migrate creates or updates every table the POS uses.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.AuditLog{},
		&models.Category{},
		&models.Product{},
		&models.Modifier{},
		&models.ModifierOption{},
		&models.ProductModifier{},
		&models.OrderCorrelative{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderItemOption{},
		&models.OrderStatusHistory{},
		&models.CAI{},
		&models.CashSession{},
		&models.Invoice{},
		&models.Payment{},
	)
	if err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// IsPostgres reports whether db talks to Postgres; isolation levels and advisory locks are only requested there.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
