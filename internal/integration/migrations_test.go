package integration

import (
	"context"
	"testing"

	"github.com/internhub/internhub/internal/db"
	"github.com/stretchr/testify/require"
)

func TestIntegration_MigrationsApplyToFreshPostgres(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	for _, table := range []string{
		"users", "companies", "company_members", "custom_roles",
		"invitations", "internships", "applications", "interviews",
		"notifications", "audit_log",
	} {
		var count int
		err := pool.QueryRow(context.Background(), `
			SELECT COUNT(*)
			FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		`, table).Scan(&count)
		require.NoError(t, err)
		require.Equal(t, 1, count, "missing table %s", table)
	}
}

func TestIntegration_MigrationsAreIdempotent(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	// newTestDB already ran the migrations once.
	require.NoError(t, db.RunMigrations(context.Background(), pool))
}
