package acquire

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/triage-edge-server/internal/domain"
)

// StateStore persists resumable transfer cursors in SQLite. One row per
// artifact; the manager is the single writer.
type StateStore struct {
	db     *sql.DB
	dbPath string
}

// NewStateStore opens (or creates) the transfer-state database.
func NewStateStore(dbPath string) (*StateStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps Save cheap enough to call from the pause path.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &StateStore{db: db, dbPath: dbPath}, nil
}

// createSchema creates the transfer_state table.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transfer_state (
		artifact_id TEXT PRIMARY KEY,
		remote_url TEXT NOT NULL,
		local_path TEXT NOT NULL,
		bytes_received INTEGER NOT NULL DEFAULT 0,
		bytes_expected INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Save stores or replaces the cursor for an artifact.
func (s *StateStore) Save(ctx context.Context, state *domain.TransferState) error {
	state.UpdatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfer_state (
			artifact_id, remote_url, local_path,
			bytes_received, bytes_expected, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(artifact_id) DO UPDATE SET
			remote_url = excluded.remote_url,
			local_path = excluded.local_path,
			bytes_received = excluded.bytes_received,
			bytes_expected = excluded.bytes_expected,
			updated_at = excluded.updated_at
	`,
		state.ArtifactID,
		state.RemoteURL,
		state.LocalPath,
		state.BytesReceived,
		state.BytesExpected,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save transfer state: %w", err)
	}
	return nil
}

// Get retrieves the cursor for an artifact, or nil if none exists.
func (s *StateStore) Get(ctx context.Context, artifactID string) (*domain.TransferState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT artifact_id, remote_url, local_path,
			bytes_received, bytes_expected, updated_at
		FROM transfer_state
		WHERE artifact_id = ?
	`, artifactID)

	state := &domain.TransferState{}
	err := row.Scan(
		&state.ArtifactID, &state.RemoteURL, &state.LocalPath,
		&state.BytesReceived, &state.BytesExpected, &state.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transfer state: %w", err)
	}
	return state, nil
}

// Delete removes the cursor for an artifact. Deleting a missing cursor is
// not an error.
func (s *StateStore) Delete(ctx context.Context, artifactID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM transfer_state WHERE artifact_id = ?", artifactID)
	return err
}

// Close closes the store and releases resources.
func (s *StateStore) Close() error {
	return s.db.Close()
}
