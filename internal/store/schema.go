package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// manifestSchema is stored in PRAGMA user_version. The manifest database is a
// cache, so a mismatch asks the operator to rebuild instead of migrating.
const manifestSchema = 1

// ErrSchemaMismatch reports a database written by a different schema.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	switch version {
	case manifestSchema:
		return nil
	case 0:
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			// PRAGMA does not accept bound parameters.
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", manifestSchema)); err != nil {
				return fmt.Errorf("stamp user_version: %w", err)
			}
			return nil
		})
	default:
		return fmt.Errorf("%w: %s is at %d, panelcast expects %d; remove it to rebuild the manifest cache",
			ErrSchemaMismatch, s.path, version, manifestSchema)
	}
}
