package database

import (
	"printhub/internal/config"
	"printhub/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection opens the Postgres pool and migrates the schema
func NewConnection(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := Open(postgres.Open(cfg.DSN()), gormLogger)
	if err != nil {
		return nil, err
	}
	log.Info("connected to PostgreSQL", zap.String("host", cfg.DBHost), zap.String("database", cfg.DBName))

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Open opens a gorm handle on any dialector with the settings the repositories rely on
func Open(dialector gorm.Dialector, gormLogger logger.Interface) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
}

// Migrate creates or updates every table the application owns
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Permission{},
		&model.Role{},
		&model.User{},
		&model.Printer{},
		&model.Sale{},
		&model.MaintenanceRequest{},
		&model.InventoryItem{},
		&model.StockMovement{},
		&model.AuditLog{},
	)
}
