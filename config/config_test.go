package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brian-arnold/orcapod/config"
)

func clearOrcapodEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ORCAPOD_STORE_BACKEND", "ORCAPOD_LIB_VERSION", "ORCAPOD_HASHER_VERSION",
		"ORCAPOD_DUCKDB_PATH", "ORCAPOD_CLICKHOUSE_DSN", "ORCAPOD_POSTGRES_DSN",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadDefaultsToMemoryBackend(t *testing.T) {
	clearOrcapodEnv(t)
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, config.BackendMemory, cfg.Backend)
	require.Equal(t, "dev", cfg.DataContext.LibVersion)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	clearOrcapodEnv(t)
	os.Setenv("ORCAPOD_STORE_BACKEND", "mongodb")
	defer os.Unsetenv("ORCAPOD_STORE_BACKEND")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadReadsOverridesFromEnv(t *testing.T) {
	clearOrcapodEnv(t)
	os.Setenv("ORCAPOD_STORE_BACKEND", "duckdb")
	os.Setenv("ORCAPOD_DUCKDB_PATH", "/tmp/orcapod.duckdb")
	os.Setenv("ORCAPOD_LIB_VERSION", "1.2.3")
	defer clearOrcapodEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, config.BackendDuckDB, cfg.Backend)
	require.Equal(t, "/tmp/orcapod.duckdb", cfg.DuckDBPath)
	require.Equal(t, "1.2.3", cfg.DataContext.LibVersion)
}
