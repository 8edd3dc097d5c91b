package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brian-arnold/orcapod/config"
	"github.com/brian-arnold/orcapod/store"
	"github.com/brian-arnold/orcapod/store/chstore"
	"github.com/brian-arnold/orcapod/store/duckstore"
	"github.com/brian-arnold/orcapod/store/memstore"
	"github.com/brian-arnold/orcapod/store/pgcatalog"
)

// openStore resolves the configured backend into a concrete store.Store. If
// cfg.PostgresDSN is set, it opens a shared pgcatalog.Catalog and fronts the
// backend with it, so duckstore/chstore instances in different processes
// agree on which fingerprints have already been written.
func openStore(ctx context.Context, log *slog.Logger, cfg *config.Config) (store.Store, error) {
	openCatalog := func() (*pgcatalog.Catalog, error) {
		if cfg.PostgresDSN == "" {
			return nil, nil
		}
		return pgcatalog.Open(ctx, cfg.PostgresDSN)
	}

	switch cfg.Backend {
	case config.BackendMemory:
		return memstore.New(memstore.Config{})

	case config.BackendDuckDB:
		cat, err := openCatalog()
		if err != nil {
			return nil, fmt.Errorf("orcapod: open pgcatalog: %w", err)
		}
		var opts []duckstore.Option
		if cat != nil {
			opts = append(opts, duckstore.WithCatalog(cat))
		}
		return duckstore.Open(ctx, log, cfg.DuckDBPath, opts...)

	case config.BackendClickHouse:
		cat, err := openCatalog()
		if err != nil {
			return nil, fmt.Errorf("orcapod: open pgcatalog: %w", err)
		}
		var opts []chstore.Option
		if cat != nil {
			opts = append(opts, chstore.WithCatalog(cat))
		}
		return chstore.Open(ctx, cfg.ClickHouseDSN, "default", "", opts...)

	default:
		return nil, fmt.Errorf("orcapod: unsupported store backend %q", cfg.Backend)
	}
}
