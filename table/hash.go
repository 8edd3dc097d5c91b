package table

import "github.com/brian-arnold/orcapod/hash"

// ContentHash computes a table's content hash as H(schema_hash,
// concat(row_hash(i) for i in 0..n)). It is the building block both
// source-stream fingerprinting (package stream) and store collision
// detection (package store's backends) are built on.
func ContentHash(t *Table) (hash.Digest, error) {
	spec, err := TypeSpecFromSchema(t.Schema())
	if err != nil {
		return hash.Digest{}, err
	}

	rowHashes := make([]hash.Digest, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		row, err := t.Row(i)
		if err != nil {
			return hash.Digest{}, err
		}
		h, err := hash.Record(row, spec)
		if err != nil {
			return hash.Digest{}, err
		}
		rowHashes[i] = h
	}
	return hash.Table(hash.Schema(spec), rowHashes), nil
}
