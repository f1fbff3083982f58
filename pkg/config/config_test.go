package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg := LoadFromEnv()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "local", cfg.Storage.Type)

	assert.True(t, cfg.Upload.Enabled)
	assert.Equal(t, int64(10737418240), cfg.Upload.MaxUploadSize)
	assert.Equal(t, int64(52428800), cfg.Upload.ChunkSize)
	assert.Equal(t, 24*time.Hour, cfg.Upload.ExpirationPeriod)
	assert.Equal(t, time.Hour, cfg.Upload.CleanupInterval)
	assert.Equal(t, int64(0), cfg.Upload.UserQuota)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("UPLOAD_ENABLED", "false")
	t.Setenv("UPLOAD_MAX_SIZE", "1048576")
	t.Setenv("UPLOAD_EXPIRATION_PERIOD", "2h")
	t.Setenv("UPLOAD_USER_QUOTA", "5368709120")
	t.Setenv("LOG_FORMAT", "text")

	cfg := LoadFromEnv()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Upload.Enabled)
	assert.Equal(t, int64(1048576), cfg.Upload.MaxUploadSize)
	assert.Equal(t, 2*time.Hour, cfg.Upload.ExpirationPeriod)
	assert.Equal(t, int64(5368709120), cfg.Upload.UserQuota)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFromEnv_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("UPLOAD_EXPIRATION_PERIOD", "soon")
	t.Setenv("UPLOAD_ENABLED", "yes-please")

	cfg := LoadFromEnv()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Upload.ExpirationPeriod)
	assert.True(t, cfg.Upload.Enabled)
}

func TestUploadConfig_Validate(t *testing.T) {
	valid := UploadConfig{
		MaxUploadSize:    10737418240,
		ChunkSize:        52428800,
		ExpirationPeriod: 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*UploadConfig)
	}{
		{"zero max size", func(u *UploadConfig) { u.MaxUploadSize = 0 }},
		{"negative chunk size", func(u *UploadConfig) { u.ChunkSize = -1 }},
		{"zero expiration", func(u *UploadConfig) { u.ExpirationPeriod = 0 }},
		{"zero cleanup interval", func(u *UploadConfig) { u.CleanupInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "svc",
		Password: "hunter2",
		DBName:   "docvault",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=svc password=hunter2 dbname=docvault sslmode=require",
		cfg.DatabaseURL())
}

func TestRedisAddr(t *testing.T) {
	cfg := RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", cfg.RedisAddr())
}
