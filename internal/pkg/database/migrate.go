package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
	"github.com/rs/zerolog/log"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate applies pending schema versions from the embedded schema directory. A Postgres session lock
// serializes concurrent runs (parallel test packages, rolling deploys).
func Migrate(ctx context.Context, db *sqlx.DB) error {
	provider, err := newMigrationProvider(db)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	for _, r := range results {
		log.Info().Str("file", r.Source.Path).Int64("version", r.Source.Version).Dur("duration", r.Duration).Msg("Schema applied")
	}
	return nil
}

// SchemaVersion reports the highest applied schema version.
func SchemaVersion(ctx context.Context, db *sqlx.DB) (int64, error) {
	provider, err := newMigrationProvider(db)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}

func newMigrationProvider(db *sqlx.DB) (*goose.Provider, error) {
	migrations, err := fs.Sub(schemaFS, "schema")
	if err != nil {
		return nil, err
	}
	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		return nil, fmt.Errorf("schema lock: %w", err)
	}
	return goose.NewProvider(goose.DialectPostgres, db.DB, migrations, goose.WithSessionLocker(locker))
}
