package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brian-arnold/orcapod/record"
	"github.com/brian-arnold/orcapod/types"
)

func writeCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func csvCols() []ColumnDef {
	return []ColumnDef{
		{Name: "id", Kind: types.Int64, Tag: true},
		{Name: "value", Kind: types.String},
	}
}

func TestLoadCSVSourceParsesEveryDataRow(t *testing.T) {
	path := writeCSV(t, "id,value\n1,a\n2,b\n")
	dc := record.DataContext{LibVersion: "test", HasherVersion: "1"}

	s, err := LoadCSVSource(path, csvCols(), dc)
	require.NoError(t, err)

	records, err := s.Flow(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestLoadCSVSourcePropagatesMalformedRowError(t *testing.T) {
	// The second data row has an unterminated quoted field, which the csv
	// reader reports as a parse error rather than io.EOF.
	path := writeCSV(t, "id,value\n1,a\n2,\"unterminated\n")
	dc := record.DataContext{LibVersion: "test", HasherVersion: "1"}

	_, err := LoadCSVSource(path, csvCols(), dc)
	require.Error(t, err)
}
