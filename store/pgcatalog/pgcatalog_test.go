package pgcatalog_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/store/pgcatalog"
)

func newTestCatalog(t *testing.T) *pgcatalog.Catalog {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)
	connStr := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	cat, err := pgcatalog.Open(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(cat.Close)

	return cat
}

func TestRegisterThenLookupRoundTrips(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	fp := hash.HashBytes([]byte("fingerprint-1"))

	_, found, err := cat.Lookup(ctx, fp)
	require.NoError(t, err)
	require.False(t, found)

	entry := pgcatalog.Entry{Backend: pgcatalog.BackendDuckDB, TableName: "orcapod_abc123", ContentHash: "deadbeef"}
	require.NoError(t, cat.Register(ctx, fp, entry))

	got, found, err := cat.Lookup(ctx, fp)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, entry, got)
}

func TestRegisterIsIdempotentForIdenticalContent(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	fp := hash.HashBytes([]byte("fingerprint-2"))
	entry := pgcatalog.Entry{Backend: pgcatalog.BackendClickHouse, TableName: "orcapod_xyz", ContentHash: "cafef00d"}

	require.NoError(t, cat.Register(ctx, fp, entry))
	require.NoError(t, cat.Register(ctx, fp, entry))
}

func TestRegisterRejectsContentMismatchUnderSameFingerprint(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	fp := hash.HashBytes([]byte("fingerprint-3"))

	require.NoError(t, cat.Register(ctx, fp, pgcatalog.Entry{
		Backend: pgcatalog.BackendDuckDB, TableName: "orcapod_a", ContentHash: "hash-a",
	}))

	err := cat.Register(ctx, fp, pgcatalog.Entry{
		Backend: pgcatalog.BackendDuckDB, TableName: "orcapod_b", ContentHash: "hash-b",
	})
	require.Error(t, err)
}
