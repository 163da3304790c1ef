package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfe-emissor/pkg/config"
)

func setRequired(t *testing.T) {
	t.Setenv("APP_SECRET", "app-secret")
	t.Setenv("JWT_SECRET", "jwt-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "homologacao", cfg.SEFAZ.Ambiente)
	assert.Equal(t, 2*time.Minute, cfg.SEFAZ.Timeout)
	assert.Equal(t, 3*time.Second, cfg.SEFAZ.PollInitialDelay)
	assert.Equal(t, 1.5, cfg.SEFAZ.PollMultiplier)
	assert.Equal(t, 1024, cfg.Geocoder.CacheSize)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, int32(2), cfg.DB.MinConns)
	assert.False(t, cfg.DB.ForceIPv4)
	assert.Equal(t, 30*time.Second, cfg.DB.StatementTimeout)
	assert.Equal(t, "nfe-emissor", cfg.DB.AppName)
}

func TestLoad_EnvSobrescribe(t *testing.T) {
	setRequired(t)
	t.Setenv("SEFAZ_AMBIENTE", "producao")
	t.Setenv("SEFAZ_POLL_TIMEOUT", "30")
	t.Setenv("SEFAZ_POLL_INTERVAL", "500ms")
	t.Setenv("SEFAZ_POLL_ATTEMPTS", "1")
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("STORAGE_BUCKET", "notas")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DB_FORCE_IPV4", "true")
	t.Setenv("DB_STATEMENT_TIMEOUT", "5s")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "producao", cfg.SEFAZ.Ambiente)
	assert.Equal(t, 30*time.Second, cfg.SEFAZ.PollTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.SEFAZ.PollInterval)
	assert.Equal(t, 1, cfg.SEFAZ.PollAttempts)
	assert.Equal(t, "notas", cfg.Storage.Bucket)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.True(t, cfg.DB.ForceIPv4)
	assert.Equal(t, 5*time.Second, cfg.DB.StatementTimeout)
}

func TestLoad_Invalida(t *testing.T) {
	t.Setenv("APP_SECRET", "")
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("STORAGE_DRIVER", "gcs")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_SECRET")
	assert.Contains(t, err.Error(), "STORAGE_BUCKET")
}

func TestLoad_MinConnsMayorQueMax(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_MAX_CONNS", "4")
	t.Setenv("DB_MIN_CONNS", "8")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_MIN_CONNS")
}

func TestDBConfig_DSN(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss:w", DBName: "nfe", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss%3Aw@db:5432/nfe?sslmode=disable", c.DSN())
	assert.Equal(t, c.DSN(), c.ConnectionString())

	c.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", c.ConnectionString())
}
