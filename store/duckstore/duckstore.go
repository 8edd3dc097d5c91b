// Package duckstore persists invocation tables as native DuckDB tables,
// grounded on the lake's staged-CSV-then-transaction commit pattern
// (lake/pkg/duck/facts.go) and its retryWithBackoff helper for DuckLake
// transaction-conflict retries (lake/pkg/duck/retry.go). Unlike the lake,
// this store attaches a plain DuckDB file (or an in-memory database) rather
// than a DuckLake catalog — orcapod's fingerprint-keyed tables don't need
// DuckLake's time-travel/versioning layer.
package duckstore

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"gopkg.in/yaml.v3"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/orcaerr"
	"github.com/brian-arnold/orcapod/store/pgcatalog"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

const (
	maxRetries         = 8
	initialRetryDelay  = 50 * time.Millisecond
	maxRetryDelay      = 5 * time.Second
	retryBackoffFactor = 2.0
)

// Option configures a Store at construction time.
type Option func(*Store)

// WithCatalog attaches a shared pgcatalog.Catalog: PutTable registers every
// newly written fingerprint with it, and Has consults it before falling
// back to this store's own metadata table, so a fingerprint written by
// another process sharing the same catalog is visible here too.
func WithCatalog(cat *pgcatalog.Catalog) Option {
	return func(s *Store) { s.catalog = cat }
}

// Store is a DuckDB-backed Store. Each invocation's table is persisted as
// a table named orcapod_<hex fingerprint>; a metadata table records the
// (fingerprint, content hash, schema) triple needed for collision
// detection and reconstruction.
type Store struct {
	log     *slog.Logger
	db      *sql.DB
	catalog *pgcatalog.Catalog
}

// Open attaches path as a DuckDB database (empty path means an in-memory,
// non-persistent database, useful for tests) and ensures the metadata
// table exists.
func Open(ctx context.Context, log *slog.Logger, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("duckstore: open %q: %w", path, err)
	}
	s := &Store{log: log, db: db}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _orcapod_fingerprints (
			fingerprint VARCHAR PRIMARY KEY,
			content_hash VARCHAR NOT NULL,
			schema_yaml VARCHAR NOT NULL,
			table_name VARCHAR NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckstore: create metadata table: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.catalog != nil {
		s.catalog.Close()
	}
	return s.db.Close()
}

func tableNameFor(fp hash.Digest) string {
	return "orcapod_" + fp.String()
}

func (s *Store) Has(ctx context.Context, fp hash.Digest) (bool, error) {
	if s.catalog != nil {
		_, found, err := s.catalog.Lookup(ctx, fp)
		if err != nil {
			return false, fmt.Errorf("duckstore: catalog lookup: %w", err)
		}
		if found {
			return true, nil
		}
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM _orcapod_fingerprints WHERE fingerprint = ?`, fp.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("duckstore: Has: %w", err)
	}
	return count > 0, nil
}

// ListFingerprints returns every fingerprint recorded in the metadata
// table, in no particular order.
func (s *Store) ListFingerprints(ctx context.Context) ([]hash.Digest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint FROM _orcapod_fingerprints`)
	if err != nil {
		return nil, fmt.Errorf("duckstore: ListFingerprints: %w", err)
	}
	defer rows.Close()

	var out []hash.Digest
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("duckstore: scan fingerprint: %w", err)
		}
		fp, err := hash.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("duckstore: parse stored fingerprint %q: %w", s, err)
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

type schemaDoc struct {
	Columns []schemaColumn `yaml:"columns"`
}

type schemaColumn struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

func (s *Store) GetTable(ctx context.Context, fp hash.Digest) (*table.Table, error) {
	var schemaYAML, tableName string
	err := s.db.QueryRowContext(ctx, `SELECT schema_yaml, table_name FROM _orcapod_fingerprints WHERE fingerprint = ?`, fp.String()).
		Scan(&schemaYAML, &tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("duckstore: no table for fingerprint %s", fp)
	}
	if err != nil {
		return nil, fmt.Errorf("duckstore: GetTable: %w", err)
	}

	var doc schemaDoc
	if err := yaml.Unmarshal([]byte(schemaYAML), &doc); err != nil {
		return nil, fmt.Errorf("duckstore: decode schema for %s: %w", fp, err)
	}
	fields := make([]types.Field, len(doc.Columns))
	for i, c := range doc.Columns {
		k, ok := types.ParseKind(c.Kind)
		if !ok {
			return nil, orcaerr.UnsupportedType("duckstore.GetTable", fmt.Sprintf("unknown kind %q in stored schema", c.Kind), nil)
		}
		fields[i] = types.Field{Name: c.Name, Kind: k}
	}

	return s.readTable(ctx, tableName, table.Schema{Columns: fields})
}

func (s *Store) PutTable(ctx context.Context, fp hash.Digest, tbl *table.Table) error {
	contentHash, err := table.ContentHash(tbl)
	if err != nil {
		return fmt.Errorf("duckstore: hash table for %s: %w", fp, err)
	}

	var existing string
	err = s.db.QueryRowContext(ctx, `SELECT content_hash FROM _orcapod_fingerprints WHERE fingerprint = ?`, fp.String()).Scan(&existing)
	if err == nil {
		if existing != contentHash.String() {
			return orcaerr.FingerprintCollision("duckstore.PutTable",
				fmt.Sprintf("fingerprint %s already stored with different content", fp), nil)
		}
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("duckstore: check existing fingerprint: %w", err)
	}

	tableName := tableNameFor(fp)
	schema := tbl.Schema()
	doc := schemaDoc{Columns: make([]schemaColumn, len(schema.Columns))}
	for i, f := range schema.Columns {
		doc.Columns[i] = schemaColumn{Name: f.Name, Kind: f.Kind.String()}
	}
	schemaYAML, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("duckstore: encode schema: %w", err)
	}

	if err := andThen(retryWithBackoff(ctx, s.log, fmt.Sprintf("put table %s", tableName), func() error {
		return s.insertViaCSV(ctx, tableName, tbl)
	}), func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO _orcapod_fingerprints (fingerprint, content_hash, schema_yaml, table_name) VALUES (?, ?, ?, ?)`,
			fp.String(), contentHash.String(), string(schemaYAML), tableName)
		if err != nil {
			return fmt.Errorf("duckstore: record fingerprint metadata: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}

	if s.catalog != nil {
		if err := s.catalog.Register(ctx, fp, pgcatalog.Entry{
			Backend:     pgcatalog.BackendDuckDB,
			TableName:   tableName,
			ContentHash: contentHash.String(),
		}); err != nil {
			return fmt.Errorf("duckstore: register catalog entry: %w", err)
		}
	}
	return nil
}

// chainableErr lets PutTable read as a short pipeline without an extra
// local variable at the call site.
type chainableErr error

func andThen(e chainableErr, fn func() error) error {
	if e != nil {
		return e
	}
	return fn()
}

func (s *Store) insertViaCSV(ctx context.Context, tableName string, tbl *table.Table) error {
	schema := tbl.Schema()

	ddlCols := make([]string, len(schema.Columns))
	for i, f := range schema.Columns {
		ddlCols[i] = fmt.Sprintf("%s %s", quoteIdent(f.Name), duckDBType(f.Kind))
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(tableName), strings.Join(ddlCols, ", "))); err != nil {
		return fmt.Errorf("duckstore: create table %s: %w", tableName, err)
	}

	if tbl.NumRows() == 0 {
		return nil
	}

	tmpFile, err := os.CreateTemp("", "orcapod_*.csv")
	if err != nil {
		return fmt.Errorf("duckstore: create staging file: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	w := csv.NewWriter(tmpFile)
	for i := 0; i < tbl.NumRows(); i++ {
		row, err := tbl.Row(i)
		if err != nil {
			return err
		}
		record := make([]string, len(schema.Columns))
		for j, f := range schema.Columns {
			encoded, err := encodeColumnValue(f.Kind, row[f.Name])
			if err != nil {
				return fmt.Errorf("duckstore: encode column %q row %d: %w", f.Name, i, err)
			}
			record[j] = encoded
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("duckstore: write staging row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("duckstore: flush staging csv: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("duckstore: begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.Error("duckstore: failed to rollback transaction", "table", tableName, "error", err)
		}
	}()

	stageName := tableName + "_stage"
	stageCols := make([]string, len(schema.Columns))
	for i, f := range schema.Columns {
		stageCols[i] = fmt.Sprintf("%s VARCHAR", quoteIdent(f.Name))
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE OR REPLACE TEMP TABLE %s (%s)", quoteIdent(stageName), strings.Join(stageCols, ", "))); err != nil {
		return fmt.Errorf("duckstore: create stage table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("COPY %s FROM '%s' (FORMAT CSV, HEADER false)", quoteIdent(stageName), tmpFile.Name())); err != nil {
		return fmt.Errorf("duckstore: copy staging csv: %w", err)
	}

	colNames := make([]string, len(schema.Columns))
	castSelects := make([]string, len(schema.Columns))
	for i, f := range schema.Columns {
		colNames[i] = quoteIdent(f.Name)
		castSelects[i] = castExpr(f.Kind, quoteIdent(f.Name))
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		quoteIdent(tableName), strings.Join(colNames, ", "), strings.Join(castSelects, ", "), quoteIdent(stageName))
	if _, err := tx.ExecContext(ctx, insertSQL); err != nil {
		return fmt.Errorf("duckstore: insert from stage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("duckstore: commit transaction: %w", err)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func duckDBType(k types.Kind) string {
	switch {
	case k == types.Bool:
		return "BOOLEAN"
	case k.IsInteger():
		return "BIGINT"
	case k.IsFloat():
		return "DOUBLE"
	case k == types.String:
		return "VARCHAR"
	case k == types.Binary || k == types.Path:
		// Stored zstd-compressed (see codec.go); the column holds
		// compressed bytes, not the logical value directly.
		return "BLOB"
	case k == types.Timestamp:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

func castExpr(k types.Kind, col string) string {
	switch {
	case k == types.Binary || k == types.Path:
		return fmt.Sprintf("from_base64(%s)", col)
	default:
		return fmt.Sprintf("CAST(%s AS %s)", col, duckDBType(k))
	}
}

func isTransactionConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Transaction conflict") ||
		strings.Contains(msg, "Failed to commit")
}

func retryWithBackoff(ctx context.Context, log *slog.Logger, operation string, fn func() error) chainableErr {
	var lastErr error
	delay := initialRetryDelay

	for attempt := 0; attempt < maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return chainableErr(fmt.Errorf("context cancelled after %d retries, last error: %w", attempt, lastErr))
			}
			return chainableErr(fmt.Errorf("context cancelled: %w", ctx.Err()))
		default:
		}

		err := fn()
		if err == nil {
			if attempt > 0 && log != nil {
				log.Info("duckstore: operation succeeded after retries", "operation", operation, "attempts", attempt+1)
			}
			return nil
		}
		if !isTransactionConflictError(err) {
			return chainableErr(err)
		}

		lastErr = err
		if attempt < maxRetries-1 {
			if log != nil {
				log.Warn("duckstore: transaction conflict, retrying", "operation", operation, "attempt", attempt+1, "delay", delay)
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return chainableErr(fmt.Errorf("context cancelled during retry: %w", ctx.Err()))
			case <-timer.C:
			}
			delay = time.Duration(float64(delay) * retryBackoffFactor)
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}
	}
	return chainableErr(fmt.Errorf("operation failed after %d retries: %w", maxRetries, lastErr))
}
