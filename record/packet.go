package record

import (
	"fmt"
	"maps"
	"sync"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/types"
)

// Packet is an immutable keyed record carrying a row's data, its typespec,
// per-field provenance, and the data context under which it was produced.
// Its content hash is computed lazily and memoized; because Packet is
// immutable after construction, the memoized value can never go stale.
type Packet struct {
	spec        types.TypeSpec
	values      map[string]any
	source      map[string]SourceInfo
	dataContext DataContext

	hashCache *packetHashCache
}

type packetHashCache struct {
	once sync.Once
	val  hash.Digest
	err  error
}

// NewPacket builds a Packet from a typespec, one value per declared field,
// per-field source info, and the data context it was produced under. If
// source is nil, every field defaults to InputSource() (externally
// supplied data).
func NewPacket(spec types.TypeSpec, values map[string]any, source map[string]SourceInfo, dc DataContext) (Packet, error) {
	cloned := make(map[string]any, spec.Len())
	clonedSource := make(map[string]SourceInfo, spec.Len())
	for _, name := range spec.Keys() {
		v, ok := values[name]
		if !ok {
			return Packet{}, fmt.Errorf("record: packet missing value for field %q", name)
		}
		cloned[name] = v
		if source != nil {
			if s, ok := source[name]; ok {
				clonedSource[name] = s
				continue
			}
		}
		clonedSource[name] = InputSource()
	}
	return Packet{
		spec:        spec,
		values:      cloned,
		source:      clonedSource,
		dataContext: dc,
		hashCache:   &packetHashCache{},
	}, nil
}

func (p Packet) Types() types.TypeSpec {
	return p.spec
}

func (p Packet) Keys() []string {
	return p.spec.Keys()
}

func (p Packet) Get(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}

func (p Packet) DataContext() DataContext {
	return p.dataContext
}

// SourceInfo returns the per-field provenance mapping. Packets with no
// producing invocation (externally supplied) report InputSource() for
// every field.
func (p Packet) SourceInfo() map[string]SourceInfo {
	return maps.Clone(p.source)
}

// AsDict returns a plain mapping of field name to value. When
// includeSource is true, each value is accompanied by a parallel
// "_source_<field>" entry describing its provenance.
func (p Packet) AsDict(includeSource bool) map[string]any {
	out := make(map[string]any, len(p.values)*2)
	for k, v := range p.values {
		out[k] = v
	}
	if includeSource {
		for k, s := range p.source {
			out["_source_"+k] = s
		}
	}
	return out
}

// ContentHash returns the packet's content hash, computing it at most once
// regardless of how many goroutines call it concurrently. Recomputation
// after mutation is impossible because Packet has no mutating methods.
func (p Packet) ContentHash() (hash.Digest, error) {
	p.hashCache.once.Do(func() {
		p.hashCache.val, p.hashCache.err = hash.Record(p.values, p.spec)
	})
	return p.hashCache.val, p.hashCache.err
}

// WithSource builds a new Packet whose outputKeys fields carry the given
// invocation's provenance; any other field defaults to InputSource(). Used
// by pod evaluation to stamp freshly computed packets before they're cached
// and emitted.
func WithSource(spec types.TypeSpec, values map[string]any, invocation hash.Digest, outputKeys []string, dc DataContext) (Packet, error) {
	source := make(map[string]SourceInfo, len(outputKeys))
	for _, k := range outputKeys {
		source[k] = SourceInfo{Invocation: invocation, Field: k}
	}
	return NewPacket(spec, values, source, dc)
}
