package database

import (
	"fmt"
	"log"
	"time"

	"nuestra-historia/internal/config"
	"nuestra-historia/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector picks the gorm driver for the configured backend.
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "", "sqlite":
		return sqlite.Open(cfg.DBPath), nil
	case "postgres":
		return postgres.Open(PostgresDSN(cfg)), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

func PostgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
}

// Open connects with the given dialector and migrates the record table.
func Open(dialector gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log.Default(), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", dialector.Name(), err)
	}

	if err := db.AutoMigrate(&models.MemoryRecord{}); err != nil {
		return nil, fmt.Errorf("auto-migrate %s: %w", dialector.Name(), err)
	}

	return db, nil
}

// InitGorm opens the configured database or exits the process.
func InitGorm(cfg *config.Config) *gorm.DB {
	dialector, err := Dialector(cfg)
	if err != nil {
		log.Fatalf("Failed to configure database: %v", err)
	}

	db, err := Open(dialector, logger.Warn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	log.Printf("Connected to %s, memory_records migrated", dialector.Name())
	return db
}
