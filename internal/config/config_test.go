package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("DATABASE_DSN", "file:test.db")
	t.Setenv("BUSINESS_TIMEZONE", "America/Tegucigalpa")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "America/Tegucigalpa", cfg.Location.String())
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	assert.ErrorContains(t, err, "at least 32")
}

func TestLoadRejectsTelegramWithoutChat(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "")

	_, err := Load()
	assert.ErrorContains(t, err, "TELEGRAM_CHAT_ID")
}

func TestLoadRequiresDSNInProduction(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("DATABASE_DSN", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_DSN")

	t.Setenv("DATABASE_DSN", "host=db user=pos dbname=pos sslmode=disable")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
