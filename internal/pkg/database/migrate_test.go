package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_IsRepeatable(t *testing.T) {
	ctx := context.Background()
	db, err := NewPostgresForTest(ctx, TestDSN())
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	defer db.Close()

	require.NoError(t, Migrate(ctx, db))

	version, err := SchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.EqualValues(t, 2, version)

	var columnDefault string
	require.NoError(t, db.GetContext(ctx, &columnDefault, `
		SELECT column_default FROM information_schema.columns
		WHERE table_name = 'ledger_entries' AND column_name = 'created_at'
	`))
	assert.Contains(t, columnDefault, "clock_timestamp")
}
