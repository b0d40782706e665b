package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"leadhook/internal/platform/config"
)

func TestTenantDBPool_GetMigratesAndCaches(t *testing.T) {
	pool := NewTenantDBPool(config.TenantDBConfig{BasePath: t.TempDir(), MaxConnectionsPerOrg: 2})
	defer pool.CloseAll()

	db, err := pool.Get("org_1", "org_1.db")
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('leads', 'tags', 'lead_tags', 'lead_notes', 'notifications')`).Scan(&n))
	assert.Equal(t, 5, n)

	again, err := pool.Get("org_1", "ignored.db")
	require.NoError(t, err)
	assert.Same(t, db, again)
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "./a.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL", sqliteDSN("file:./a.db"))
	assert.Equal(t, "a.db?cache=shared&_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL", sqliteDSN("a.db?cache=shared"))
}
