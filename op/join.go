package op

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/orcaerr"
	"github.com/brian-arnold/orcapod/record"
	"github.com/brian-arnold/orcapod/store"
	"github.com/brian-arnold/orcapod/stream"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

// Join is the inner-join-on-shared-tag-columns operator.
type Join struct {
	left, right stream.Stream
	sharedKeys  []string

	tagSchema    types.TypeSpec
	packetSchema types.TypeSpec
}

// NewJoin checks left and right's schemas at construction time: shared tag
// columns must agree on Kind (types.Reconcile), and packet schemas must be
// disjoint (types.Union). Both checks fail synchronously, before any data
// is read.
func NewJoin(left, right stream.Stream) (*Join, error) {
	sharedKeys := sharedFields(left.TagSchema(), right.TagSchema())

	tagSchema, err := types.Reconcile(left.TagSchema(), right.TagSchema(), sharedKeys)
	if err != nil {
		return nil, err
	}
	packetSchema, err := types.Union(left.PacketSchema(), right.PacketSchema())
	if err != nil {
		return nil, err
	}

	return &Join{
		left:         left,
		right:        right,
		sharedKeys:   sharedKeys,
		tagSchema:    tagSchema,
		packetSchema: packetSchema,
	}, nil
}

func sharedFields(a, b types.TypeSpec) []string {
	var shared []string
	for _, name := range a.Keys() {
		if b.Has(name) {
			shared = append(shared, name)
		}
	}
	return shared
}

func (j *Join) Name() string { return "join" }

// IdentityHash hashes the operator's kind and shared-key declaration,
// independent of its upstream data — the structural half of a node's
// invocation fingerprint (the other half is the upstreams' own
// fingerprints, folded in by package pipeline).
func (j *Join) IdentityHash() hash.Digest {
	payload := []byte("op:join")
	for _, k := range j.sharedKeys {
		payload = append(payload, 0)
		payload = append(payload, []byte(k)...)
	}
	return hash.HashBytes(payload)
}

// Apply returns the lazy joined stream. fingerprint is the invocation
// fingerprint this join resolves to (computed by package pipeline from
// IdentityHash plus the upstreams' fingerprints); backing may be nil, in
// which case every evaluation recomputes.
func (j *Join) Apply(fingerprint hash.Digest, backing store.Store) stream.Stream {
	return &joinStream{
		join:        j,
		fingerprint: fingerprint,
		backing:     backing,
	}
}

type joinStream struct {
	join        *Join
	fingerprint hash.Digest
	backing     store.Store

	once    sync.Once
	records []stream.Record
	err     error
}

func (s *joinStream) TagSchema() types.TypeSpec    { return s.join.tagSchema }
func (s *joinStream) PacketSchema() types.TypeSpec { return s.join.packetSchema }

func (s *joinStream) materialize(ctx context.Context) ([]stream.Record, error) {
	s.once.Do(func() {
		s.records, s.err = s.evaluate(ctx)
	})
	return s.records, s.err
}

// evaluate groups the right side by shared-tag-column value, then iterates
// the left side in order, emitting every matching right record in its own
// iteration order.
func (s *joinStream) evaluate(ctx context.Context) ([]stream.Record, error) {
	if s.backing != nil {
		if tbl, found, err := s.getCached(ctx); err != nil {
			return nil, err
		} else if found {
			return stream.RecordsFromTable(tbl, s.join.tagSchema, s.join.packetSchema, record.DataContext{})
		}
	}

	left, err := s.join.left.Flow(ctx)
	if err != nil {
		return nil, err
	}
	right, err := s.join.right.Flow(ctx)
	if err != nil {
		return nil, err
	}

	buckets := make(map[hash.Digest][]stream.Record, len(right))
	for _, rec := range right {
		key, err := rec.Tag.GroupKey(s.join.sharedKeys)
		if err != nil {
			return nil, err
		}
		buckets[key] = append(buckets[key], rec)
	}

	var out []stream.Record
	for _, l := range left {
		key, err := l.Tag.GroupKey(s.join.sharedKeys)
		if err != nil {
			return nil, err
		}
		for _, r := range buckets[key] {
			rec, err := s.merge(l, r)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}

	if s.backing != nil {
		if err := s.putCached(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// merge combines a matched left/right pair into one output record. Shared
// tag fields take the left side's value (they're required equal by
// GroupKey matching). Per-field source info carries through from whichever
// side produced it; reconstructing a cached join from a stored table loses
// this provenance and reports InputSource() instead, since the table
// format has no source columns by default.
func (s *joinStream) merge(l, r stream.Record) (stream.Record, error) {
	tagValues := l.Tag.AsDict()
	for k, v := range r.Tag.AsDict() {
		tagValues[k] = v
	}
	tag, err := record.NewTag(s.join.tagSchema, tagValues)
	if err != nil {
		return stream.Record{}, err
	}

	packetValues := l.Packet.AsDict(false)
	for k, v := range r.Packet.AsDict(false) {
		packetValues[k] = v
	}
	source := l.Packet.SourceInfo()
	for k, v := range r.Packet.SourceInfo() {
		source[k] = v
	}
	packet, err := record.NewPacket(s.join.packetSchema, packetValues, source, l.Packet.DataContext())
	if err != nil {
		return stream.Record{}, err
	}
	return stream.Record{Tag: tag, Packet: packet}, nil
}

func (s *joinStream) getCached(ctx context.Context) (*table.Table, bool, error) {
	ok, err := s.backing.Has(ctx, s.fingerprint)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	tbl, err := s.backing.GetTable(ctx, s.fingerprint)
	if err != nil {
		return nil, false, err
	}
	return tbl, true, nil
}

func (s *joinStream) putCached(ctx context.Context, records []stream.Record) error {
	tbl, err := stream.BuildTable(records, s.join.tagSchema, s.join.packetSchema, stream.TableOptions{})
	if err != nil {
		return err
	}
	if err := s.backing.PutTable(ctx, s.fingerprint, tbl); err != nil {
		return fmt.Errorf("op: join %s: %w", s.fingerprint, orcaerr.FingerprintCollision("op.Join", "cached table mismatch", err))
	}
	return nil
}

func (s *joinStream) Iter(ctx context.Context) iter.Seq2[stream.Record, error] {
	return func(yield func(stream.Record, error) bool) {
		records, err := s.materialize(ctx)
		if err != nil {
			yield(stream.Record{}, err)
			return
		}
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (s *joinStream) Flow(ctx context.Context) ([]stream.Record, error) {
	return s.materialize(ctx)
}

func (s *joinStream) AsTable(ctx context.Context, opts stream.TableOptions) (*table.Table, error) {
	records, err := s.materialize(ctx)
	if err != nil {
		return nil, err
	}
	return stream.BuildTable(records, s.join.tagSchema, s.join.packetSchema, opts)
}
