package record

import "fmt"

// DataContext identifies the OrcaPod library version and hasher version
// used to produce a packet. Bumping either invalidates caches keyed by
// content hashes computed under the old context.
type DataContext struct {
	LibVersion    string
	HasherVersion string
}

// Key returns the materialized _context_key column value:
// "orcapod:{lib_version}|hasher:{hasher_version}".
func (dc DataContext) Key() string {
	return fmt.Sprintf("orcapod:%s|hasher:%s", dc.LibVersion, dc.HasherVersion)
}
