package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/brian-arnold/orcapod/record"
	"github.com/brian-arnold/orcapod/stream"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

// ColumnDef is one CSV-source column declaration: its name, logical kind,
// and whether it's part of the row's tag (as opposed to its packet).
type ColumnDef struct {
	Name string
	Kind types.Kind
	Tag  bool
}

// LoadCSVSource reads a header-having CSV file at path into a source
// stream, parsing each column's cells according to cols. Columns not
// marked Tag become packet fields.
func LoadCSVSource(path string, cols []ColumnDef, dc record.DataContext) (stream.Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open csv source %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("pipeline: read csv header %q: %w", path, err)
	}
	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[name] = i
	}

	schema := table.Schema{}
	var tagCols []string
	for _, c := range cols {
		schema.Columns = append(schema.Columns, types.Field{Name: c.Name, Kind: c.Kind})
		if c.Tag {
			tagCols = append(tagCols, c.Name)
		}
	}

	columns := make(map[string][]any, len(cols))
	for _, c := range cols {
		columns[c.Name] = []any{}
	}

	numRows := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("pipeline: read csv source %q row %d: %w", path, numRows, err)
		}
		for _, c := range cols {
			idx, ok := colIndex[c.Name]
			if !ok {
				return nil, fmt.Errorf("pipeline: csv source %q missing declared column %q", path, c.Name)
			}
			v, err := parseCSVCell(c.Kind, row[idx])
			if err != nil {
				return nil, fmt.Errorf("pipeline: csv source %q column %q row %d: %w", path, c.Name, numRows, err)
			}
			columns[c.Name] = append(columns[c.Name], v)
		}
		numRows++
	}

	tbl, err := table.New(schema, columns, numRows)
	if err != nil {
		return nil, fmt.Errorf("pipeline: build csv source table %q: %w", path, err)
	}
	return stream.NewImmutableTableStream(tbl, tagCols, dc)
}

func parseCSVCell(k types.Kind, cell string) (any, error) {
	switch k {
	case types.Bool:
		return strconv.ParseBool(cell)
	case types.Int8:
		n, err := strconv.ParseInt(cell, 10, 8)
		return int8(n), err
	case types.Int16:
		n, err := strconv.ParseInt(cell, 10, 16)
		return int16(n), err
	case types.Int32:
		n, err := strconv.ParseInt(cell, 10, 32)
		return int32(n), err
	case types.Int64:
		return strconv.ParseInt(cell, 10, 64)
	case types.Uint8:
		n, err := strconv.ParseUint(cell, 10, 8)
		return uint8(n), err
	case types.Uint16:
		n, err := strconv.ParseUint(cell, 10, 16)
		return uint16(n), err
	case types.Uint32:
		n, err := strconv.ParseUint(cell, 10, 32)
		return uint32(n), err
	case types.Uint64:
		return strconv.ParseUint(cell, 10, 64)
	case types.Float32:
		f, err := strconv.ParseFloat(cell, 32)
		return float32(f), err
	case types.Float64:
		return strconv.ParseFloat(cell, 64)
	case types.String, types.Path:
		return cell, nil
	case types.Binary:
		return []byte(cell), nil
	case types.Timestamp:
		return time.Parse(time.RFC3339Nano, cell)
	default:
		return nil, fmt.Errorf("unsupported column kind %s", k)
	}
}
