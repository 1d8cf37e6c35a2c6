package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB", "POSTGRES_SSLMODE",
	"ETL_DB_DRIVER", "ETL_SQLITE_PATH", "ETL_LOG_LEVEL", "ETL_LOG_FILE", "ETL_INTERVAL", "ETL_SERVER_PORT",
	"COINGECKO_BASE_URL",
}

func clearEnv(t *testing.T) {
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://api.coingecko.com/api/v3", cfg.API.BaseURL)
	assert.Equal(t, "brl", cfg.API.VsCurrency)
	assert.Equal(t, "market_cap_desc", cfg.API.Order)
	assert.Equal(t, 250, cfg.API.PerPage)
	assert.Equal(t, 1, cfg.API.Page)
	assert.Equal(t, 120*time.Second, cfg.Polling.Interval)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 0, cfg.Server.Port)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
api:
  base_url: http://localhost:9999/api/v3/
database:
  driver: SQLite
  sqlite_path: /tmp/prices.db
polling:
  interval: 30s
logging:
  level: debug
server:
  port: 8081
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("ETL_INTERVAL", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999/api/v3", cfg.API.BaseURL)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/prices.db", cfg.Database.SQLitePath)
	assert.Equal(t, 45*time.Second, cfg.Polling.Interval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_PORT", "five")

	_, err := Load("")
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_USER", "etl")
	t.Setenv("POSTGRES_PASSWORD", "p@ss word")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("POSTGRES_DB", "crypto")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "postgres://etl:p%40ss%20word@db:6543/crypto?sslmode=disable", cfg.DSN())
}

func TestValidate_MissingPostgres(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_USER", "etl")

	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_PASSWORD")
	assert.Contains(t, err.Error(), "POSTGRES_DB")
}
