package duckstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

func (s *Store) ensureResultsTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _orcapod_results (
			pipeline_fp VARCHAR NOT NULL,
			node_label VARCHAR NOT NULL,
			schema_yaml VARCHAR NOT NULL,
			table_name VARCHAR NOT NULL,
			PRIMARY KEY (pipeline_fp, node_label)
		)`)
	return err
}

func resultTableName(pipelineFP hash.Digest, nodeLabel string) string {
	return "orcapod_result_" + pipelineFP.String() + "_" + nodeLabel
}

// GetResult looks up the pipeline-fast-path cached table for (pipelineFP,
// nodeLabel). found is false, with a nil error, on a plain miss.
func (s *Store) GetResult(ctx context.Context, pipelineFP hash.Digest, nodeLabel string) (*table.Table, bool, error) {
	if err := s.ensureResultsTable(ctx); err != nil {
		return nil, false, fmt.Errorf("duckstore: ensure results table: %w", err)
	}

	var schemaYAML, tableName string
	err := s.db.QueryRowContext(ctx,
		`SELECT schema_yaml, table_name FROM _orcapod_results WHERE pipeline_fp = ? AND node_label = ?`,
		pipelineFP.String(), nodeLabel).Scan(&schemaYAML, &tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("duckstore: GetResult: %w", err)
	}

	var doc schemaDoc
	if err := yaml.Unmarshal([]byte(schemaYAML), &doc); err != nil {
		return nil, false, fmt.Errorf("duckstore: decode result schema: %w", err)
	}
	fields := make([]types.Field, len(doc.Columns))
	for i, c := range doc.Columns {
		k, ok := types.ParseKind(c.Kind)
		if !ok {
			return nil, false, fmt.Errorf("duckstore: unknown kind %q in stored result schema", c.Kind)
		}
		fields[i] = types.Field{Name: c.Name, Kind: k}
	}

	tbl, err := s.readTable(ctx, tableName, table.Schema{Columns: fields})
	if err != nil {
		return nil, false, err
	}
	return tbl, true, nil
}

// PutResult stores tbl as the pipeline-fast-path result for (pipelineFP,
// nodeLabel), overwriting any previous entry for the same key — unlike
// PutTable, this path is not content-addressed, since a node's result can
// legitimately change across pipeline edits that don't change its label.
func (s *Store) PutResult(ctx context.Context, pipelineFP hash.Digest, nodeLabel string, tbl *table.Table) error {
	if err := s.ensureResultsTable(ctx); err != nil {
		return fmt.Errorf("duckstore: ensure results table: %w", err)
	}

	tableName := resultTableName(pipelineFP, nodeLabel)
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(tableName))); err != nil {
		return fmt.Errorf("duckstore: drop stale result table: %w", err)
	}
	if err := s.insertViaCSV(ctx, tableName, tbl); err != nil {
		return fmt.Errorf("duckstore: write result table: %w", err)
	}

	schema := tbl.Schema()
	doc := schemaDoc{Columns: make([]schemaColumn, len(schema.Columns))}
	for i, f := range schema.Columns {
		doc.Columns[i] = schemaColumn{Name: f.Name, Kind: f.Kind.String()}
	}
	schemaYAML, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("duckstore: encode result schema: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO _orcapod_results (pipeline_fp, node_label, schema_yaml, table_name) VALUES (?, ?, ?, ?)
		ON CONFLICT (pipeline_fp, node_label) DO UPDATE SET schema_yaml = excluded.schema_yaml, table_name = excluded.table_name`,
		pipelineFP.String(), nodeLabel, string(schemaYAML), tableName)
	if err != nil {
		return fmt.Errorf("duckstore: record result metadata: %w", err)
	}
	return nil
}

func (s *Store) readTable(ctx context.Context, tableName string, schema table.Schema) (*table.Table, error) {
	colList := make([]string, len(schema.Columns))
	for i, f := range schema.Columns {
		colList[i] = quoteIdent(f.Name)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", joinCols(colList), quoteIdent(tableName)))
	if err != nil {
		return nil, fmt.Errorf("duckstore: select from %s: %w", tableName, err)
	}
	defer rows.Close()

	cols := make(map[string][]any, len(schema.Columns))
	for _, f := range schema.Columns {
		cols[f.Name] = []any{}
	}
	numRows := 0
	scanBuf := make([]any, len(schema.Columns))
	scanDest := make([]any, len(schema.Columns))
	for i := range scanBuf {
		scanDest[i] = &scanBuf[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("duckstore: scan row: %w", err)
		}
		for i, f := range schema.Columns {
			v, err := decodeColumnValue(f.Kind, scanBuf[i])
			if err != nil {
				return nil, fmt.Errorf("duckstore: decode column %q: %w", f.Name, err)
			}
			cols[f.Name] = append(cols[f.Name], v)
		}
		numRows++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duckstore: iterate rows: %w", err)
	}
	return table.New(schema, cols, numRows)
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
