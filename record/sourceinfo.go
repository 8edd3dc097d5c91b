package record

import (
	"fmt"

	"github.com/brian-arnold/orcapod/hash"
)

// SourceInput is the sentinel Field value recorded on a packet field that
// was supplied externally rather than produced by a pod/operator
// invocation.
const SourceInput = "input"

// SourceInfo records where a single packet field's value came from: either
// an externally supplied input (Invocation is the zero digest, Field ==
// SourceInput), or a specific invocation's declared output field.
type SourceInfo struct {
	Invocation hash.Digest
	Field      string
}

// IsInput reports whether this field was supplied externally.
func (s SourceInfo) IsInput() bool {
	return s.Invocation.IsZero() && s.Field == SourceInput
}

// InputSource is the SourceInfo value used for every field of a packet
// built directly from a table, with no producing invocation.
func InputSource() SourceInfo {
	return SourceInfo{Invocation: hash.Zero, Field: SourceInput}
}

// String renders a SourceInfo as the "_source_<field>" system column
// value: "input" for externally supplied data, or "<invocation-hex>/<field>"
// for a value produced by an invocation.
func (s SourceInfo) String() string {
	if s.IsInput() {
		return SourceInput
	}
	return fmt.Sprintf("%s/%s", s.Invocation.String(), s.Field)
}
