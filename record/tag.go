package record

import (
	"fmt"
	"maps"
	"sync"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/types"
)

// Tag is an immutable keyed record identifying a stream row's logical
// position — the role a primary key plays in a table. NewTag stores the
// values as given without checking them; a value hash.Scalar cannot
// canonicalize surfaces as an error from ContentHash.
type Tag struct {
	spec   types.TypeSpec
	values map[string]any

	hashCache *memoDigest
}

type memoDigest struct {
	once sync.Once
	val  hash.Digest
	err  error
}

// NewTag builds a Tag from a typespec and one value per declared field.
// Extra keys in values that aren't declared in spec are ignored.
func NewTag(spec types.TypeSpec, values map[string]any) (Tag, error) {
	cloned := make(map[string]any, spec.Len())
	for _, name := range spec.Keys() {
		v, ok := values[name]
		if !ok {
			return Tag{}, fmt.Errorf("record: tag missing value for field %q", name)
		}
		cloned[name] = v
	}
	return Tag{spec: spec, values: cloned, hashCache: &memoDigest{}}, nil
}

func (t Tag) Types() types.TypeSpec {
	return t.spec
}

func (t Tag) Keys() []string {
	return t.spec.Keys()
}

func (t Tag) Get(name string) (any, bool) {
	v, ok := t.values[name]
	return v, ok
}

// AsDict returns a plain mapping of field name to value.
func (t Tag) AsDict() map[string]any {
	return maps.Clone(t.values)
}

// ContentHash returns the tag's content hash, computing it at most once
// regardless of how many goroutines call it concurrently.
func (t Tag) ContentHash() (hash.Digest, error) {
	t.hashCache.once.Do(func() {
		t.hashCache.val, t.hashCache.err = hash.Record(t.values, t.spec)
	})
	return t.hashCache.val, t.hashCache.err
}

// GroupKey returns a stable, comparable digest of the named fields' values
// in order, for use as a Go map key when grouping records (e.g. op.Join's
// group-by-shared-tag-columns step). Two tags with equal values for fields
// always produce equal keys, regardless of the tags' other fields.
func (t Tag) GroupKey(fields []string) (hash.Digest, error) {
	digests := make([]hash.Digest, len(fields))
	for i, f := range fields {
		v, ok := t.values[f]
		if !ok {
			return hash.Digest{}, fmt.Errorf("record: tag missing field %q for group key", f)
		}
		k, ok := t.spec.Kind(f)
		if !ok {
			return hash.Digest{}, fmt.Errorf("record: tag has no declared kind for field %q", f)
		}
		d, err := hash.Scalar(k, v)
		if err != nil {
			return hash.Digest{}, fmt.Errorf("record: group key field %q: %w", f, err)
		}
		digests[i] = d
	}
	return hash.Concat(digests...), nil
}
