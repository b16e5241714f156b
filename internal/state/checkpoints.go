package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/crewline/internal/checkpoint"
)

// CheckpointStorage keeps checkpoint records in the checkpoints table.
type CheckpointStorage struct {
	db *DB
}

var _ checkpoint.Storage = (*CheckpointStorage)(nil)

// NewCheckpointStorage creates a storage over a migrated database.
func NewCheckpointStorage(db *DB) *CheckpointStorage {
	return &CheckpointStorage{db: db}
}

// Write upserts the record.
func (s *CheckpointStorage) Write(ctx context.Context, name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("checkpoint name cannot be empty")
	}
	return s.db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO checkpoints (name, data, saved_at) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at
		`, name, data, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("save checkpoint %s: %w", name, err)
		}
		return nil
	})
}

// Read returns the stored record.
func (s *CheckpointStorage) Read(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM checkpoints WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", checkpoint.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", name, err)
	}
	return data, nil
}

// Delete removes the record.
func (s *CheckpointStorage) Delete(ctx context.Context, name string) error {
	if _, err := s.db.Exec(`DELETE FROM checkpoints WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", name, err)
	}
	return nil
}

// List returns the stored names in lexical order.
func (s *CheckpointStorage) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM checkpoints ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
