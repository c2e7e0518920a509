package migrations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subtrack/internal/migrations"
	"github.com/magabrotheeeer/subtrack/internal/storage/pgtest"
)

func TestRunMigrations(t *testing.T) {
	db := pgtest.Open(t, pgtest.Start(t))
	path := pgtest.MigrationsPath(t)

	require.NoError(t, migrations.Run(db, path))
	// Повторный запуск ничего не меняет.
	require.NoError(t, migrations.Run(db, path))

	for _, table := range []string{"users", "subscriptions", "plans", "user_billing"} {
		var exists bool
		err := db.QueryRow(`SELECT EXISTS (
			SELECT FROM information_schema.tables WHERE table_name = $1
		)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}

	var plans int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM plans`).Scan(&plans))
	assert.Equal(t, 4, plans)
}

func TestRunMigrations_BadPath(t *testing.T) {
	db := pgtest.Open(t, pgtest.Start(t))

	err := migrations.Run(db, "/definitely/not/here")
	require.Error(t, err)
}
