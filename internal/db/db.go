package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// migrations upgrade a database created by an older schema.sql. Entry i
// moves user_version from i+1 to i+2; schema.sql itself is version 1.
var migrations = []func(context.Context, *sql.DB) error{
	ensureChangesEntityIndex,
	ensureChangesBatchIndex,
	addEntitiesEpicPosition,
}

func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if err := applySchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// SchemaVersion is the user_version of a fully migrated database.
func SchemaVersion() int {
	return len(migrations) + 1
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	version, err := userVersion(ctx, db)
	if err != nil {
		return err
	}
	if version < 1 {
		version = 1
	}

	for ; version <= len(migrations); version++ {
		if err := migrations[version-1](ctx, db); err != nil {
			return fmt.Errorf("migrate to version %d: %w", version+1, err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

func ensureChangesEntityIndex(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_changes_entity_id ON changes(entity_id)"); err != nil {
		return fmt.Errorf("create idx_changes_entity_id: %w", err)
	}
	return nil
}

func ensureChangesBatchIndex(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_changes_batch_id ON changes(batch_id)"); err != nil {
		return fmt.Errorf("create idx_changes_batch_id: %w", err)
	}
	return nil
}

// addEntitiesEpicPosition stores where a subtask sits in its epic's list.
func addEntitiesEpicPosition(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "ALTER TABLE entities ADD COLUMN epic_position INTEGER"); err != nil {
		return fmt.Errorf("add entities.epic_position: %w", err)
	}
	return nil
}
