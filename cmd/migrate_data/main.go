package main

import (
	"log"

	"nuestra-historia/internal/config"
	"nuestra-historia/internal/database"
	"nuestra-historia/internal/models"

	"github.com/alecthomas/kong"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	cli struct {
		Source     string `help:"SQLite file to copy from (defaults to DB_PATH)" default:""`
		Collection string `help:"Only copy this collection (all when empty)" default:""`
		BatchSize  int    `help:"Rows inserted per statement" default:"200"`
		DryRun     bool   `help:"Count rows without writing"`
	}
)

func main() {
	_ = kong.Parse(&cli, kong.Description("Copy memory records from SQLite into PostgreSQL."))
	cfg := config.LoadConfig()

	source := cli.Source
	if source == "" {
		source = cfg.DBPath
	}

	// 1. Connect to SQLite (Source)
	sqliteDB, err := database.Open(sqlite.Open(source), logger.Warn)
	if err != nil {
		log.Fatalf("Failed to connect to SQLite: %v", err)
	}
	log.Printf("Connected to SQLite at %s", source)

	// 2. Connect to PostgreSQL (Destination)
	cfg.DBDriver = "postgres"
	pgDB := database.InitGorm(cfg)

	log.Println("Starting data migration...")

	var records []models.MemoryRecord
	query := sqliteDB.Order("collection, timestamp")
	if cli.Collection != "" {
		query = query.Where("collection = ?", cli.Collection)
	}
	if err := query.Find(&records).Error; err != nil {
		log.Fatalf("Error reading memory_records from SQLite: %v", err)
	}
	log.Printf("Read %d memory records", len(records))

	if cli.DryRun || len(records) == 0 {
		log.Println("Nothing written")
		return
	}

	// Re-running skips ids already copied
	err = pgDB.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(&records, cli.BatchSize).Error
	})
	if err != nil {
		log.Fatalf("Error writing memory_records to Postgres: %v", err)
	}

	log.Println("Migration completed!")
}
