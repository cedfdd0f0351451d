package database

import (
	"testing"

	"nuestra-historia/internal/config"
	"nuestra-historia/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm/logger"
)

func TestDialectorSelectsDriver(t *testing.T) {
	cfg := &config.Config{DBDriver: "sqlite", DBPath: ":memory:"}
	d, err := Dialector(cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	cfg.DBDriver = "postgres"
	d, err = Dialector(cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	cfg.DBDriver = "mysql"
	_, err = Dialector(cfg)
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &config.Config{
		DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "n", DBPort: "5433", DBSSLMode: "require",
	}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5433 sslmode=require", PostgresDSN(cfg))
}

func TestOpenMigratesRecordTable(t *testing.T) {
	db, err := Open(sqlite.Open("file:open_migrates?mode=memory&cache=shared"), logger.Silent)
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable("memory_records"))
}

func TestRecordsAreKeyedByCollectionAndID(t *testing.T) {
	db, err := Open(sqlite.Open(":memory:"), logger.Silent)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	require.NoError(t, db.Create(&models.MemoryRecord{ID: "same", Collection: "memories", URL: "a", Type: "image", Title: "A"}).Error)
	require.NoError(t, db.Create(&models.MemoryRecord{ID: "same", Collection: "archive", URL: "b", Type: "image", Title: "B"}).Error)
	assert.Error(t, db.Create(&models.MemoryRecord{ID: "same", Collection: "memories", URL: "c", Type: "image", Title: "C"}).Error)

	var count int64
	require.NoError(t, db.Model(&models.MemoryRecord{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
