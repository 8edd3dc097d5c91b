// Package memstore is an in-process Store implementation: a mutex-guarded
// map fronted by a ristretto hot-read cache, with a separate ttlcache for
// the pipeline-level fast path. It is the default store for tests and
// small pipelines, grounded on the epoch finder's ristretto.Cache
// construction (controlplane/telemetry/pkg/epoch) adapted from a "recent
// Solana epoch lookup" cache to a "recent invocation output" cache.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/jellydator/ttlcache/v3"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/orcaerr"
	"github.com/brian-arnold/orcapod/table"
)

// Store is an in-memory, content-addressed Store.
type Store struct {
	mu            sync.RWMutex
	tables        map[hash.Digest]*table.Table
	contentHashes map[hash.Digest]hash.Digest

	hot     *ristretto.Cache
	results *ttlcache.Cache[string, *table.Table]
}

// Config tunes the hot-cache sizing. The zero value is a reasonable
// default for unit tests and small pipelines.
type Config struct {
	// NumCounters and MaxCost are passed straight through to ristretto;
	// see its docs for sizing guidance. Zero values fall back to
	// defaults sized for a few thousand cached tables.
	NumCounters int64
	MaxCost     int64
	// ResultTTL bounds how long a pipeline-level fast-path result stays
	// cached after a Run. Zero falls back to one hour.
	ResultTTL time.Duration
}

func New(cfg Config) (*Store, error) {
	if cfg.NumCounters == 0 {
		cfg.NumCounters = 1_000_000
	}
	if cfg.MaxCost == 0 {
		cfg.MaxCost = 100_000
	}
	if cfg.ResultTTL == 0 {
		cfg.ResultTTL = time.Hour
	}

	hot, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("memstore: create hot cache: %w", err)
	}

	results := ttlcache.New[string, *table.Table](
		ttlcache.WithTTL[string, *table.Table](cfg.ResultTTL),
	)
	go results.Start()

	return &Store{
		tables:        make(map[hash.Digest]*table.Table),
		contentHashes: make(map[hash.Digest]hash.Digest),
		hot:           hot,
		results:       results,
	}, nil
}

// Close stops the background eviction goroutines started by New.
func (s *Store) Close() {
	s.results.Stop()
	s.hot.Close()
}

func (s *Store) Has(ctx context.Context, fp hash.Digest) (bool, error) {
	if _, ok := s.hot.Get(fp.String()); ok {
		return true, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tables[fp]
	return ok, nil
}

func (s *Store) GetTable(ctx context.Context, fp hash.Digest) (*table.Table, error) {
	if v, ok := s.hot.Get(fp.String()); ok {
		return v.(*table.Table), nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tbl, ok := s.tables[fp]
	if !ok {
		return nil, fmt.Errorf("memstore: no table for fingerprint %s", fp)
	}
	return tbl, nil
}

func (s *Store) PutTable(ctx context.Context, fp hash.Digest, tbl *table.Table) error {
	contentHash, err := table.ContentHash(tbl)
	if err != nil {
		return fmt.Errorf("memstore: hash table for fingerprint %s: %w", fp, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.contentHashes[fp]; ok {
		if existing != contentHash {
			return orcaerr.FingerprintCollision("memstore.PutTable",
				fmt.Sprintf("fingerprint %s already stored with different content", fp), nil)
		}
		return nil // idempotent overwrite of identical content
	}

	s.tables[fp] = tbl
	s.contentHashes[fp] = contentHash
	s.hot.Set(fp.String(), tbl, int64(tbl.NumRows()+1))
	return nil
}

// ListFingerprints returns every fingerprint currently stored, in no
// particular order.
func (s *Store) ListFingerprints(ctx context.Context) ([]hash.Digest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]hash.Digest, 0, len(s.tables))
	for fp := range s.tables {
		out = append(out, fp)
	}
	return out, nil
}

func resultKey(pipelineFP hash.Digest, nodeLabel string) string {
	return pipelineFP.String() + "/" + nodeLabel
}

func (s *Store) GetResult(ctx context.Context, pipelineFP hash.Digest, nodeLabel string) (*table.Table, bool, error) {
	item := s.results.Get(resultKey(pipelineFP, nodeLabel))
	if item == nil {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (s *Store) PutResult(ctx context.Context, pipelineFP hash.Digest, nodeLabel string, tbl *table.Table) error {
	s.results.Set(resultKey(pipelineFP, nodeLabel), tbl, ttlcache.DefaultTTL)
	return nil
}
