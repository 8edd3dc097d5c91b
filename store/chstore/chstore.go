// Package chstore persists invocation tables as native ClickHouse tables,
// grounded on the flow-enricher's ClickhouseWriter (batched PrepareBatch
// inserts over a functional-options connection) and the lake's fingerprint
// metadata pattern reused across every store backend. Unlike duckstore,
// column values are appended to the batch as native Go values — ClickHouse's
// driver does its own wire encoding, so there is no CSV staging step.
package chstore

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/orcaerr"
	"github.com/brian-arnold/orcapod/store/pgcatalog"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

// Option configures a Store at construction time.
type Option func(*Store)

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

func WithDatabase(db string) Option {
	return func(s *Store) { s.db = db }
}

func WithTLSDisabled(disabled bool) Option {
	return func(s *Store) { s.disableTLS = disabled }
}

// WithCatalog attaches a shared pgcatalog.Catalog: PutTable registers every
// newly written fingerprint with it, and Has consults it before falling
// back to this store's own metadata table, so a fingerprint written by
// another process sharing the same catalog is visible here too.
func WithCatalog(cat *pgcatalog.Catalog) Option {
	return func(s *Store) { s.catalog = cat }
}

// Store is a ClickHouse-backed Store. Every invocation fingerprint gets
// its own physical table (orcapod_<hex fingerprint>); a metadata table
// tracks the (fingerprint, content hash, schema, table name) tuple needed
// for collision detection and reconstruction, mirroring duckstore.
type Store struct {
	conn       clickhouse.Conn
	log        *slog.Logger
	db         string
	user       string
	pass       string
	addr       string
	disableTLS bool
	catalog    *pgcatalog.Catalog
}

// Open dials addr and ensures the metadata tables exist.
func Open(ctx context.Context, addr, user, pass string, opts ...Option) (*Store, error) {
	s := &Store{db: "default", user: user, pass: pass, addr: addr}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	chOpts := &clickhouse.Options{
		Addr: []string{s.addr},
		Auth: clickhouse.Auth{
			Database: s.db,
			Username: s.user,
			Password: s.pass,
		},
	}
	if !s.disableTLS {
		chOpts.TLS = &tls.Config{}
	}
	conn, err := clickhouse.Open(chOpts)
	if err != nil {
		return nil, fmt.Errorf("chstore: open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("chstore: ping: %w", err)
	}
	s.conn = conn

	if err := s.ensureMetadataTables(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.catalog != nil {
		s.catalog.Close()
	}
	return s.conn.Close()
}

func (s *Store) ensureMetadataTables(ctx context.Context) error {
	if err := s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS _orcapod_fingerprints (
			fingerprint String,
			content_hash String,
			schema_json String,
			table_name String
		) ENGINE = ReplacingMergeTree
		ORDER BY fingerprint`); err != nil {
		return fmt.Errorf("chstore: create fingerprint metadata table: %w", err)
	}
	if err := s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS _orcapod_results (
			pipeline_fp String,
			node_label String,
			schema_json String,
			table_name String
		) ENGINE = ReplacingMergeTree
		ORDER BY (pipeline_fp, node_label)`); err != nil {
		return fmt.Errorf("chstore: create results metadata table: %w", err)
	}
	return nil
}

func tableNameFor(fp hash.Digest) string {
	return "orcapod_" + fp.String()
}

func resultTableName(pipelineFP hash.Digest, nodeLabel string) string {
	return "orcapod_result_" + pipelineFP.String() + "_" + nodeLabel
}

func (s *Store) Has(ctx context.Context, fp hash.Digest) (bool, error) {
	if s.catalog != nil {
		_, found, err := s.catalog.Lookup(ctx, fp)
		if err != nil {
			return false, fmt.Errorf("chstore: catalog lookup: %w", err)
		}
		if found {
			return true, nil
		}
	}

	row := s.conn.QueryRow(ctx, `SELECT count() FROM _orcapod_fingerprints FINAL WHERE fingerprint = ?`, fp.String())
	var count uint64
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("chstore: Has: %w", err)
	}
	return count > 0, nil
}

// ListFingerprints returns every fingerprint recorded in the metadata
// table, in no particular order.
func (s *Store) ListFingerprints(ctx context.Context) ([]hash.Digest, error) {
	rows, err := s.conn.Query(ctx, `SELECT fingerprint FROM _orcapod_fingerprints FINAL`)
	if err != nil {
		return nil, fmt.Errorf("chstore: ListFingerprints: %w", err)
	}
	defer rows.Close()

	var out []hash.Digest
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("chstore: scan fingerprint: %w", err)
		}
		fp, err := hash.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("chstore: parse stored fingerprint %q: %w", s, err)
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

func (s *Store) GetTable(ctx context.Context, fp hash.Digest) (*table.Table, error) {
	var schemaJSON, tableName string
	row := s.conn.QueryRow(ctx, `SELECT schema_json, table_name FROM _orcapod_fingerprints FINAL WHERE fingerprint = ?`, fp.String())
	if err := row.Scan(&schemaJSON, &tableName); err != nil {
		return nil, fmt.Errorf("chstore: no table for fingerprint %s: %w", fp, err)
	}
	schema, err := decodeSchema(schemaJSON)
	if err != nil {
		return nil, err
	}
	return s.readTable(ctx, tableName, schema)
}

func (s *Store) PutTable(ctx context.Context, fp hash.Digest, tbl *table.Table) error {
	contentHash, err := table.ContentHash(tbl)
	if err != nil {
		return fmt.Errorf("chstore: hash table for %s: %w", fp, err)
	}

	existing, found, err := s.lookupFingerprint(ctx, fp)
	if err != nil {
		return err
	}
	if found {
		if existing != contentHash.String() {
			return orcaerr.FingerprintCollision("chstore.PutTable",
				fmt.Sprintf("fingerprint %s already stored with different content", fp), nil)
		}
		return nil
	}

	tableName := tableNameFor(fp)
	if err := s.writeTable(ctx, tableName, tbl); err != nil {
		return fmt.Errorf("chstore: write table %s: %w", tableName, err)
	}

	schemaJSON, err := encodeSchema(tbl.Schema())
	if err != nil {
		return err
	}
	if err := s.conn.Exec(ctx,
		`INSERT INTO _orcapod_fingerprints (fingerprint, content_hash, schema_json, table_name) VALUES (?, ?, ?, ?)`,
		fp.String(), contentHash.String(), schemaJSON, tableName); err != nil {
		return fmt.Errorf("chstore: record fingerprint metadata: %w", err)
	}

	if s.catalog != nil {
		if err := s.catalog.Register(ctx, fp, pgcatalog.Entry{
			Backend:     pgcatalog.BackendClickHouse,
			TableName:   tableName,
			ContentHash: contentHash.String(),
		}); err != nil {
			return fmt.Errorf("chstore: register catalog entry: %w", err)
		}
	}
	return nil
}

func (s *Store) lookupFingerprint(ctx context.Context, fp hash.Digest) (contentHash string, found bool, err error) {
	row := s.conn.QueryRow(ctx, `SELECT content_hash FROM _orcapod_fingerprints FINAL WHERE fingerprint = ?`, fp.String())
	if err := row.Scan(&contentHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("chstore: lookup fingerprint: %w", err)
	}
	return contentHash, true, nil
}

// GetResult looks up the pipeline-fast-path cached table for (pipelineFP,
// nodeLabel).
func (s *Store) GetResult(ctx context.Context, pipelineFP hash.Digest, nodeLabel string) (*table.Table, bool, error) {
	var schemaJSON, tableName string
	row := s.conn.QueryRow(ctx,
		`SELECT schema_json, table_name FROM _orcapod_results FINAL WHERE pipeline_fp = ? AND node_label = ?`,
		pipelineFP.String(), nodeLabel)
	if err := row.Scan(&schemaJSON, &tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("chstore: GetResult: %w", err)
	}
	schema, err := decodeSchema(schemaJSON)
	if err != nil {
		return nil, false, err
	}
	tbl, err := s.readTable(ctx, tableName, schema)
	if err != nil {
		return nil, false, err
	}
	return tbl, true, nil
}

// PutResult stores tbl as the pipeline-fast-path result for (pipelineFP,
// nodeLabel), overwriting any previous entry — this path is not
// content-addressed, unlike PutTable.
func (s *Store) PutResult(ctx context.Context, pipelineFP hash.Digest, nodeLabel string, tbl *table.Table) error {
	tableName := resultTableName(pipelineFP, nodeLabel)
	if err := s.conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(tableName))); err != nil {
		return fmt.Errorf("chstore: drop stale result table: %w", err)
	}
	if err := s.writeTable(ctx, tableName, tbl); err != nil {
		return fmt.Errorf("chstore: write result table: %w", err)
	}

	schemaJSON, err := encodeSchema(tbl.Schema())
	if err != nil {
		return err
	}
	if err := s.conn.Exec(ctx,
		`INSERT INTO _orcapod_results (pipeline_fp, node_label, schema_json, table_name) VALUES (?, ?, ?, ?)`,
		pipelineFP.String(), nodeLabel, schemaJSON, tableName); err != nil {
		return fmt.Errorf("chstore: record result metadata: %w", err)
	}
	return nil
}

func (s *Store) writeTable(ctx context.Context, tableName string, tbl *table.Table) error {
	schema := tbl.Schema()
	ddlCols := make([]string, len(schema.Columns))
	for i, f := range schema.Columns {
		ddlCols[i] = fmt.Sprintf("%s %s", quoteIdent(f.Name), chType(f.Kind))
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = MergeTree ORDER BY tuple()",
		quoteIdent(tableName), joinStrings(ddlCols))
	if err := s.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("chstore: create table: %w", err)
	}
	if tbl.NumRows() == 0 {
		return nil
	}

	colNames := make([]string, len(schema.Columns))
	for i, f := range schema.Columns {
		colNames[i] = quoteIdent(f.Name)
	}
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (%s)", quoteIdent(tableName), joinStrings(colNames)))
	if err != nil {
		return fmt.Errorf("chstore: prepare batch: %w", err)
	}
	for i := 0; i < tbl.NumRows(); i++ {
		row, err := tbl.Row(i)
		if err != nil {
			return err
		}
		values := make([]any, len(schema.Columns))
		for j, f := range schema.Columns {
			v, err := encodeColumnValue(f.Kind, row[f.Name])
			if err != nil {
				return fmt.Errorf("chstore: encode column %q row %d: %w", f.Name, i, err)
			}
			values[j] = v
		}
		if err := batch.Append(values...); err != nil {
			return fmt.Errorf("chstore: append row %d: %w", i, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("chstore: send batch: %w", err)
	}
	return nil
}

func (s *Store) readTable(ctx context.Context, tableName string, schema table.Schema) (*table.Table, error) {
	colNames := make([]string, len(schema.Columns))
	for i, f := range schema.Columns {
		colNames[i] = quoteIdent(f.Name)
	}
	rows, err := s.conn.Query(ctx, fmt.Sprintf("SELECT %s FROM %s", joinStrings(colNames), quoteIdent(tableName)))
	if err != nil {
		return nil, fmt.Errorf("chstore: select from %s: %w", tableName, err)
	}
	defer rows.Close()

	cols := make(map[string][]any, len(schema.Columns))
	for _, f := range schema.Columns {
		cols[f.Name] = []any{}
	}
	numRows := 0
	for rows.Next() {
		dest := make([]any, len(schema.Columns))
		for i, f := range schema.Columns {
			dest[i] = scanDestFor(f.Kind)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("chstore: scan row: %w", err)
		}
		for i, f := range schema.Columns {
			v, err := decodeColumnValue(f.Kind, dest[i])
			if err != nil {
				return nil, fmt.Errorf("chstore: decode column %q: %w", f.Name, err)
			}
			cols[f.Name] = append(cols[f.Name], v)
		}
		numRows++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chstore: iterate rows: %w", err)
	}
	return table.New(schema, cols, numRows)
}

func quoteIdent(name string) string {
	return "`" + name + "`"
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

func chType(k types.Kind) string {
	switch {
	case k == types.Bool:
		return "UInt8"
	case k.IsInteger():
		return "Int64"
	case k.IsFloat():
		return "Float64"
	case k == types.String, k == types.Path:
		return "String"
	case k == types.Binary:
		return "String"
	case k == types.Timestamp:
		return "DateTime64(9)"
	default:
		return "String"
	}
}

