// Package config resolves orcapod's runtime configuration from
// ORCAPOD_*-prefixed environment variables, optionally loaded from a
// .env file, grounded on the root config package's environment-variable
// override pattern (config/env.go's DZ_LEDGER_RPC_URL handling).
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/brian-arnold/orcapod/record"
)

// Backend selects which store.Store implementation Load resolves to.
type Backend string

const (
	BackendMemory     Backend = "memory"
	BackendDuckDB     Backend = "duckdb"
	BackendClickHouse Backend = "clickhouse"
)

// Config is orcapod's resolved runtime configuration.
type Config struct {
	DataContext record.DataContext
	Backend     Backend

	// DuckDBPath is the database file duckstore opens when Backend ==
	// BackendDuckDB. Empty means an in-process, non-persistent database.
	DuckDBPath string

	// ClickHouseDSN is the connection string chstore dials when Backend
	// == BackendClickHouse.
	ClickHouseDSN string

	// PostgresDSN, if set, enables pgcatalog as the shared
	// fingerprint-to-table-name index for duckstore/chstore.
	PostgresDSN string
}

// Load reads ORCAPOD_* environment variables, loading a .env file first if
// one is present in the working directory (a missing .env is not an
// error — it's the common case outside local development).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	backend := Backend(getEnv("ORCAPOD_STORE_BACKEND", string(BackendMemory)))
	switch backend {
	case BackendMemory, BackendDuckDB, BackendClickHouse:
	default:
		return nil, fmt.Errorf("config: invalid ORCAPOD_STORE_BACKEND %q, must be one of: %s, %s, %s",
			backend, BackendMemory, BackendDuckDB, BackendClickHouse)
	}

	return &Config{
		DataContext: record.DataContext{
			LibVersion:    getEnv("ORCAPOD_LIB_VERSION", "dev"),
			HasherVersion: getEnv("ORCAPOD_HASHER_VERSION", "1"),
		},
		Backend:       backend,
		DuckDBPath:    getEnv("ORCAPOD_DUCKDB_PATH", ""),
		ClickHouseDSN: getEnv("ORCAPOD_CLICKHOUSE_DSN", ""),
		PostgresDSN:   getEnv("ORCAPOD_POSTGRES_DSN", ""),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
