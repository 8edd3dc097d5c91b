package types

import (
	"fmt"

	"github.com/brian-arnold/orcapod/orcaerr"
)

// Field is one named, typed column in a typespec.
type Field struct {
	Name string
	Kind Kind
}

// TypeSpec is an ordered mapping from field name to logical type. Order is
// significant for deterministic iteration and materialization column order;
// it is not significant for hashing (see package hash, which sorts by key).
type TypeSpec struct {
	fields []Field
	index  map[string]int
}

// NewTypeSpec builds a TypeSpec from fields in declaration order. It returns
// NameCollision if any field name repeats.
func NewTypeSpec(fields ...Field) (TypeSpec, error) {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if _, exists := index[f.Name]; exists {
			return TypeSpec{}, orcaerr.NameCollision("types.NewTypeSpec",
				fmt.Sprintf("duplicate field %q", f.Name), nil)
		}
		index[f.Name] = i
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return TypeSpec{fields: out, index: index}, nil
}

// Keys returns field names in declaration order.
func (t TypeSpec) Keys() []string {
	keys := make([]string, len(t.fields))
	for i, f := range t.fields {
		keys[i] = f.Name
	}
	return keys
}

// Fields returns the fields in declaration order. The returned slice is a
// copy; mutating it does not affect t.
func (t TypeSpec) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// Kind returns the logical type declared for name.
func (t TypeSpec) Kind(name string) (Kind, bool) {
	i, ok := t.index[name]
	if !ok {
		return 0, false
	}
	return t.fields[i].Kind, true
}

// Has reports whether name is declared.
func (t TypeSpec) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len returns the number of declared fields.
func (t TypeSpec) Len() int {
	return len(t.fields)
}

// Equal reports whether t and other declare the same fields in the same
// order. Use SameFields for an order-independent comparison.
func (t TypeSpec) Equal(other TypeSpec) bool {
	if len(t.fields) != len(other.fields) {
		return false
	}
	for i, f := range t.fields {
		if other.fields[i] != f {
			return false
		}
	}
	return true
}

// SameFields reports whether t and other declare the same (name, kind)
// pairs, regardless of order.
func (t TypeSpec) SameFields(other TypeSpec) bool {
	if len(t.fields) != len(other.fields) {
		return false
	}
	for _, f := range t.fields {
		k, ok := other.Kind(f.Name)
		if !ok || k != f.Kind {
			return false
		}
	}
	return true
}

// Union returns the disjoint union of a and b: every field of a followed by
// every field of b. It fails with NameCollision if any name appears in both.
func Union(a, b TypeSpec) (TypeSpec, error) {
	fields := make([]Field, 0, len(a.fields)+len(b.fields))
	fields = append(fields, a.fields...)
	for _, f := range b.fields {
		if a.Has(f.Name) {
			return TypeSpec{}, orcaerr.NameCollision("types.Union",
				fmt.Sprintf("field %q present on both sides", f.Name), nil)
		}
		fields = append(fields, f)
	}
	return NewTypeSpec(fields...)
}

// Reconcile merges a and b for a join on sharedKeys: every key in
// sharedKeys must exist on both sides with identical Kind, or Reconcile
// fails with SchemaMismatch. The result is the union typespec with shared
// keys counted once (a's declaration order wins for shared keys).
func Reconcile(a, b TypeSpec, sharedKeys []string) (TypeSpec, error) {
	for _, key := range sharedKeys {
		ak, ok := a.Kind(key)
		if !ok {
			return TypeSpec{}, orcaerr.SchemaMismatch("types.Reconcile",
				fmt.Sprintf("shared key %q missing on left side", key), nil)
		}
		bk, ok := b.Kind(key)
		if !ok {
			return TypeSpec{}, orcaerr.SchemaMismatch("types.Reconcile",
				fmt.Sprintf("shared key %q missing on right side", key), nil)
		}
		if ak != bk {
			return TypeSpec{}, orcaerr.SchemaMismatch("types.Reconcile",
				fmt.Sprintf("shared key %q has type %s on the left and %s on the right", key, ak, bk), nil)
		}
	}

	shared := make(map[string]bool, len(sharedKeys))
	for _, k := range sharedKeys {
		shared[k] = true
	}

	fields := make([]Field, 0, len(a.fields)+len(b.fields))
	fields = append(fields, a.fields...)
	for _, f := range b.fields {
		if shared[f.Name] {
			continue
		}
		if a.Has(f.Name) {
			return TypeSpec{}, orcaerr.NameCollision("types.Reconcile",
				fmt.Sprintf("non-shared field %q present on both sides", f.Name), nil)
		}
		fields = append(fields, f)
	}
	return NewTypeSpec(fields...)
}
