package vectorindex

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(DriverName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestApplyMigrations(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, db))
	assert.True(t, tableExists(t, db, "schema_version"))
	assert.True(t, tableExists(t, db, "indexes"))
	assert.True(t, tableExists(t, db, "vectors"))

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, ApplyMigrations(ctx, db))

		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&n))
		assert.Equal(t, len(AllMigrations), n)
	})
}
