// Package op implements OrcaPod's structural stream operators: pure
// transforms over streams that are schema-checked at construction and
// evaluated lazily, cached per invocation.
package op

// Operator identifies a structural stream transform for node labeling and
// identity hashing. Join is the only operator the system ships; package
// pipeline does not take an Operator, it constructs op.Join directly in
// AddJoin.
type Operator interface {
	Name() string
}
