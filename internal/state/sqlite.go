package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteSnapshotter stores the snapshot in the entity_states table created
// by the bundled migrations.
type SQLiteSnapshotter struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteSnapshotter returns a snapshotter over db.
func NewSQLiteSnapshotter(db *sql.DB) *SQLiteSnapshotter {
	return &SQLiteSnapshotter{db: db, now: time.Now}
}

// Load reads every row of entity_states.
func (s *SQLiteSnapshotter) Load(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT entity_id, state FROM entity_states")
	if err != nil {
		return nil, fmt.Errorf("querying entity states: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, v string
		if err := rows.Scan(&id, &v); err != nil {
			return nil, fmt.Errorf("%w: scanning entity state: %w", ErrCorruptSnapshot, err)
		}
		out[id] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity states: %w", err)
	}
	return out, nil
}

// Save upserts every state in one transaction. updated_at only moves for
// rows whose state changed. Rows absent from states are removed.
func (s *SQLiteSnapshotter) Save(ctx context.Context, states map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting state transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "CREATE TEMP TABLE IF NOT EXISTS snapshot_ids (entity_id TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("preparing snapshot ids: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_ids"); err != nil {
		return fmt.Errorf("clearing snapshot ids: %w", err)
	}

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO entity_states (entity_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
		WHERE entity_states.state != excluded.state`)
	if err != nil {
		return fmt.Errorf("preparing state upsert: %w", err)
	}
	defer upsert.Close()

	mark, err := tx.PrepareContext(ctx, "INSERT INTO snapshot_ids (entity_id) VALUES (?)")
	if err != nil {
		return fmt.Errorf("preparing snapshot id insert: %w", err)
	}
	defer mark.Close()

	now := s.now().UTC().Format(time.RFC3339)
	for id, v := range states {
		if _, err := upsert.ExecContext(ctx, id, v, now); err != nil {
			return fmt.Errorf("saving state of %s: %w", id, err)
		}
		if _, err := mark.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("marking %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM entity_states WHERE entity_id NOT IN (SELECT entity_id FROM snapshot_ids)"); err != nil {
		return fmt.Errorf("pruning entity states: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing entity states: %w", err)
	}
	return nil
}
