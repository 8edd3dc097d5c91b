// Package types implements OrcaPod's logical type system: the small algebra
// of scalar kinds that tags and packets are built from, typespecs (ordered
// name->kind mappings), and the schema reconciliation used by join
// construction.
package types

import "fmt"

// Kind is one of the logical scalar types a field may hold.
type Kind int

const (
	Bool Kind = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	String
	Binary
	Timestamp
	Path
)

var kindNames = map[Kind]string{
	Bool:      "bool",
	Int8:      "int8",
	Int16:     "int16",
	Int32:     "int32",
	Int64:     "int64",
	Uint8:     "uint8",
	Uint16:    "uint16",
	Uint32:    "uint32",
	Uint64:    "uint64",
	Float32:   "float32",
	Float64:   "float64",
	String:    "string",
	Binary:    "binary",
	Timestamp: "timestamp",
	Path:      "path",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsInteger reports whether k is one of the signed or unsigned integer
// kinds.
func (k Kind) IsInteger() bool {
	switch k {
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether k is one of the floating point kinds.
func (k Kind) IsFloat() bool {
	return k == Float32 || k == Float64
}

// ParseKind maps a logical type's canonical name back to a Kind. It is the
// inverse of Kind.String, used when decoding typespecs from the CLI's YAML
// pipeline definitions.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}
