package stream

import (
	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/table"
)

// SourceFingerprint computes the invocation fingerprint of a source stream:
// the hash of its materialized table content plus its tag-column
// declaration. Two source streams with equal table content and equal
// tag-column declarations are observationally interchangeable, even if
// built from distinct *table.Table values.
func SourceFingerprint(tbl *table.Table, tagColumns []string) (hash.Digest, error) {
	contentDigest, err := table.ContentHash(tbl)
	if err != nil {
		return hash.Digest{}, err
	}

	tagDeclPayload := make([]byte, 0, 32*len(tagColumns))
	for _, name := range tagColumns {
		tagDeclPayload = append(tagDeclPayload, []byte(name)...)
		tagDeclPayload = append(tagDeclPayload, 0)
	}
	tagDeclDigest := hash.HashBytes(tagDeclPayload)

	return hash.Concat(contentDigest, tagDeclDigest), nil
}
