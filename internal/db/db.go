package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"asset-maintenance-backend/config"
	"asset-maintenance-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if err := applyPostgresDDL(db); err != nil {
		return nil, err
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate creates or updates the schema for every engine entity. Tests
// run it against an in-memory sqlite database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Asset{},
		&model.MaintenanceSchedule{},
		&model.MaintenanceLog{},
		&model.MaintenanceLogPart{},
		&model.MaintenanceRequest{},
		&model.SparePart{},
		&model.UsageReading{},
		&model.PushSubscription{},
	)
}

func applyPostgresDDL(db *gorm.DB) error {
	ddls := []string{
		// Partial index serving the due-schedule scan.
		"CREATE INDEX IF NOT EXISTS idx_schedules_due ON maintenance_schedules (next_due_date) " +
			"WHERE is_active AND next_due_date IS NOT NULL;",

		// A log can never finish before it starts.
		"ALTER TABLE maintenance_logs DROP CONSTRAINT IF EXISTS maintenance_logs_window_valid;",
		"ALTER TABLE maintenance_logs ADD CONSTRAINT maintenance_logs_window_valid " +
			"CHECK (completion_datetime >= start_datetime);",

		// The on-hand counter is floored at zero in the application;
		// the constraint backstops it.
		"ALTER TABLE spare_parts DROP CONSTRAINT IF EXISTS spare_parts_quantity_non_negative;",
		"ALTER TABLE spare_parts ADD CONSTRAINT spare_parts_quantity_non_negative " +
			"CHECK (quantity_on_hand >= 0);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
