// Package store defines OrcaPod's content-addressed persistence contract
// and the Store interface every backend (memstore, duckstore, chstore)
// implements.
package store

import (
	"context"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/table"
)

// Store is a content-addressed store of invocation output tables, keyed by
// invocation fingerprint. Writes are idempotent: writing the same (fp,
// table) twice is a no-op, and writing different content under the same fp
// is a fatal FingerprintCollision (returned as an *orcaerr.Error).
//
// Implementations must make writes atomic from a reader's perspective:
// Has/GetTable must never observe a partially-written table.
type Store interface {
	Has(ctx context.Context, fp hash.Digest) (bool, error)
	GetTable(ctx context.Context, fp hash.Digest) (*table.Table, error)
	PutTable(ctx context.Context, fp hash.Digest, tbl *table.Table) error

	// GetResult is the pipeline fast path: a lookup keyed by (pipeline
	// fingerprint, node label) rather than by the node's own invocation
	// fingerprint. found is false, with a nil error, on a plain cache miss.
	GetResult(ctx context.Context, pipelineFP hash.Digest, nodeLabel string) (tbl *table.Table, found bool, err error)
	PutResult(ctx context.Context, pipelineFP hash.Digest, nodeLabel string, tbl *table.Table) error
}

// Lister is implemented by backends that can enumerate their stored
// fingerprints (used by the CLI's "store ls"). Not part of Store itself,
// since an append-only remote catalog may not support cheap enumeration.
type Lister interface {
	ListFingerprints(ctx context.Context) ([]hash.Digest, error)
}
