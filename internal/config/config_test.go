package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "memories", cfg.Collection)
	assert.Equal(t, int64(10000000), cfg.UploadMaxFileSize)
	assert.Equal(t, []string{"local", "camera"}, cfg.UploadSources)
	assert.Contains(t, cfg.UploadAllowedFormats, "webp")
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("COLLECTION", "trip")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("UPLOAD_MAX_FILE_SIZE", "2048")
	t.Setenv("UPLOAD_ALLOWED_FORMATS", " JPG, png ,,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := FromEnv()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "trip", cfg.Collection)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, int64(2048), cfg.UploadMaxFileSize)
	assert.Equal(t, []string{"jpg", "png"}, cfg.UploadAllowedFormats)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("UPLOAD_MAX_FILE_SIZE", "-1")
	t.Setenv("UPLOAD_SOURCES", " , ")
	t.Setenv("LOG_LEVEL", "loud")

	cfg := FromEnv()

	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, int64(10000000), cfg.UploadMaxFileSize)
	assert.Equal(t, []string{"local", "camera"}, cfg.UploadSources)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}
