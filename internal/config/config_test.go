package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("JWT_SECRET", "shh")
	t.Setenv("PERSIST_TIMEOUT", "750ms")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 2*time.Minute, cfg.CredentialTTL)
	assert.Equal(t, 750*time.Millisecond, cfg.PersistTimeout)
	assert.Equal(t, 32, cfg.SendBuffer)
}

func TestLoad_AppEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.env"),
		[]byte("STORE_DRIVER=postgres\nDATABASE_URL=postgres://u:p@db:5432/fieldhub\nJWT_SECRET=file-secret\nSEND_BUFFER=8\n"), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/fieldhub", cfg.DatabaseURL)
	assert.Equal(t, 8, cfg.SendBuffer)
}

func TestValidate(t *testing.T) {
	base := Config{
		StoreDriver: DriverMemory, JWTSecret: "x",
		CredentialTTL: time.Minute, SessionTTL: time.Hour, PersistTimeout: time.Second,
	}
	require.NoError(t, base.Validate())

	pg := base
	pg.StoreDriver = DriverPostgres
	assert.ErrorContains(t, pg.Validate(), "DATABASE_URL")

	alerts := base
	alerts.AlertsEnabled = true
	assert.ErrorContains(t, alerts.Validate(), "REDIS_ADDR")

	bad := base
	bad.StoreDriver = "sqlite"
	bad.JWTSecret = ""
	err := bad.Validate()
	assert.ErrorContains(t, err, "sqlite")
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"k":"v"`)
}
