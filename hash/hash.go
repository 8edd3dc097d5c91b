// Package hash implements OrcaPod's deterministic content hasher: the
// algorithm behind every fingerprint and content hash in the system. It
// must produce the same digest for the same logical value across
// processes, platforms, and Go versions.
package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/brian-arnold/orcapod/types"
)

// Version is prepended to every top-level digest computed by this package.
// Bumping it invalidates every cache keyed by a Digest, because every
// fingerprint and content hash changes.
const Version byte = 1

// Digest is OrcaPod's fixed-width content hash.
type Digest [sha256.Size]byte

// Zero is the distinguished digest used for "no invocation" provenance.
var Zero Digest

func (d Digest) Bytes() []byte {
	return d[:]
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) IsZero() bool {
	return d == Zero
}

// Parse decodes the hex string produced by Digest.String back into a
// Digest, for store backends that round-trip fingerprints through text
// metadata columns.
func Parse(s string) (Digest, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("hash: parse digest %q: %w", s, err)
	}
	if len(b) != sha256.Size {
		return Digest{}, fmt.Errorf("hash: digest %q has wrong length %d, want %d", s, len(b), sha256.Size)
	}
	var d Digest
	copy(d[:], b)
	return d, nil
}

func fromSum(sum [sha256.Size]byte) Digest {
	return Digest(sum)
}

// sumWithVersion hashes Version||payload.
func sumWithVersion(payload []byte) Digest {
	h := sha256.New()
	h.Write([]byte{Version})
	h.Write(payload)
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return fromSum(sum)
}

// HashBytes hashes a raw byte slice, versioned. Used for hashing already-
// canonicalized payloads (e.g. a serialized pipeline definition).
func HashBytes(b []byte) Digest {
	return sumWithVersion(b)
}

// typeTag is the per-Kind prefix byte folded into every scalar hash, so
// that e.g. Int64(0) and Float64(0) never collide.
func typeTag(k types.Kind) byte {
	return byte(k)
}

// Scalar canonicalizes and hashes a single value of the given logical kind.
// Floats normalize -0.0 to +0.0 and collapse every NaN bit pattern to one
// canonical representation before hashing.
func Scalar(k types.Kind, v any) (Digest, error) {
	buf, err := canonicalBytes(k, v)
	if err != nil {
		return Digest{}, err
	}
	payload := append([]byte{typeTag(k)}, buf...)
	return sumWithVersion(payload), nil
}

func canonicalBytes(k types.Kind, v any) ([]byte, error) {
	switch k {
	case types.Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("hash: value %v is not a bool for kind %s", v, k)
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case types.Int8, types.Int16, types.Int32, types.Int64:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(n))
		return buf, nil

	case types.Uint8, types.Uint16, types.Uint32, types.Uint64:
		n, err := toUint64(v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, n)
		return buf, nil

	case types.Float32:
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		bits := canonicalFloatBits32(float32(f))
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, bits)
		return buf, nil

	case types.Float64:
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		bits := canonicalFloatBits64(f)
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, bits)
		return buf, nil

	case types.String:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("hash: value %v is not a string for kind %s", v, k)
		}
		return []byte(s), nil

	case types.Binary:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("hash: value %v is not []byte for kind %s", v, k)
		}
		return b, nil

	case types.Timestamp:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("hash: value %v is not a time.Time for kind %s", v, k)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(t.UTC().UnixNano()))
		return buf, nil

	case types.Path:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("hash: value %v is not a string path for kind %s", v, k)
		}
		return []byte(s), nil

	default:
		return nil, fmt.Errorf("hash: unsupported kind %s", k)
	}
}

// canonicalFloatBits64 maps -0.0 to +0.0 and every NaN bit pattern to a
// single canonical NaN representation before taking the IEEE-754 bits.
func canonicalFloatBits64(f float64) uint64 {
	if math.IsNaN(f) {
		return 0x7ff8000000000001
	}
	if f == 0 {
		f = 0
	}
	return math.Float64bits(f)
}

func canonicalFloatBits32(f float32) uint32 {
	if f != f { // NaN
		return 0x7fc00001
	}
	if f == 0 {
		f = 0
	}
	return math.Float32bits(f)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("hash: value %v is not a signed integer", v)
	}
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	default:
		return 0, fmt.Errorf("hash: value %v is not an unsigned integer", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	default:
		return 0, fmt.Errorf("hash: value %v is not a float", v)
	}
}

// fieldEntry is one (name, kind, value-digest) triple contributing to a
// Record digest, sorted by name before hashing so insertion order never
// affects the result.
type fieldEntry struct {
	name string
	kind types.Kind
	h    Digest
}

// Record hashes a tag or packet's field values in name-sorted order:
// H(sorted_by_key((name, type_tag, H(value))*)). spec is the field's
// typespec; values must contain every field spec declares.
func Record(values map[string]any, spec types.TypeSpec) (Digest, error) {
	keys := spec.Keys()
	entries := make([]fieldEntry, 0, len(keys))
	for _, name := range keys {
		k, _ := spec.Kind(name)
		v, ok := values[name]
		if !ok {
			return Digest{}, fmt.Errorf("hash: missing value for field %q", name)
		}
		d, err := Scalar(k, v)
		if err != nil {
			return Digest{}, fmt.Errorf("hash: field %q: %w", name, err)
		}
		entries = append(entries, fieldEntry{name: name, kind: k, h: d})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	var payload []byte
	for _, e := range entries {
		payload = append(payload, []byte(e.name)...)
		payload = append(payload, 0) // NUL separates name from what follows
		payload = append(payload, typeTag(e.kind))
		payload = append(payload, e.h.Bytes()...)
	}
	return sumWithVersion(payload), nil
}

// Schema hashes a typespec's (name, kind) pairs in name-sorted order, used
// as the schema component of a Table digest.
func Schema(spec types.TypeSpec) Digest {
	fields := spec.Fields()
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	var payload []byte
	for _, f := range fields {
		payload = append(payload, []byte(f.Name)...)
		payload = append(payload, 0)
		payload = append(payload, typeTag(f.Kind))
	}
	return sumWithVersion(payload)
}

// Table hashes a columnar table as H(schema_hash, concat(row_hash(i) for
// i in 0..n)).
func Table(schemaDigest Digest, rowHashes []Digest) Digest {
	payload := make([]byte, 0, sha256.Size*(len(rowHashes)+1))
	payload = append(payload, schemaDigest.Bytes()...)
	for _, r := range rowHashes {
		payload = append(payload, r.Bytes()...)
	}
	return sumWithVersion(payload)
}

// Concat folds an ordered sequence of digests into one, used for invocation
// fingerprints over (identity hash, upstream fingerprints, ...).
func Concat(digests ...Digest) Digest {
	payload := make([]byte, 0, sha256.Size*len(digests))
	for _, d := range digests {
		payload = append(payload, d.Bytes()...)
	}
	return sumWithVersion(payload)
}

// ErrNaN is returned by callers that choose to reject NaN outright instead
// of hashing it to the canonical bit pattern; package hash itself always
// canonicalizes rather than erroring (see DESIGN.md for the rationale).
var ErrNaN = errors.New("hash: NaN value")
