// Package sqlite holds the compacted-event archive. Live ledger state stays
// on plain files; sqlite only receives events that compaction folds away,
// so old history stays queryable without bloating the segment directory.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/reeve/internal/core/event"
	"github.com/example/reeve/internal/ports/secondary"
)

// ArchiveRepository implements secondary.EventArchive using SQLite.
type ArchiveRepository struct {
	db *sql.DB
}

var _ secondary.EventArchive = (*ArchiveRepository)(nil)

// NewArchiveRepository creates a new ArchiveRepository.
func NewArchiveRepository(db *sql.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// InitSchema creates the archive table if it does not exist.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS archived_events (
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			repo_id TEXT,
			work_id TEXT NOT NULL,
			segment TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			payload TEXT NOT NULL,
			archived_at DATETIME NOT NULL,
			PRIMARY KEY (event_id, timestamp, segment)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create archived_events table: %w", err)
	}
	return nil
}

// Archive copies a segment's events into the archive inside one
// transaction. Re-archiving the same segment is a no-op per row, so a
// compaction retry after a crash cannot duplicate history.
func (r *ArchiveRepository) Archive(ctx context.Context, segment string, events []event.ChangeEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT OR IGNORE INTO archived_events
		(event_id, event_type, repo_id, work_id, segment, timestamp, payload, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC().Format(time.RFC3339)
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", e.ID, err)
		}

		var repoID interface{}
		if e.RepoID != "" {
			repoID = e.RepoID
		}

		_, err = tx.ExecContext(ctx, query,
			e.ID,
			string(e.Type),
			repoID,
			e.WorkID,
			segment,
			e.Timestamp.UTC().Format(time.RFC3339),
			string(payload),
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to archive event %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// CountBySegment returns how many archived rows exist for a segment.
func (r *ArchiveRepository) CountBySegment(ctx context.Context, segment string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM archived_events WHERE segment = ?`, segment).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ListByRepo returns archived events for one repo, oldest first.
func (r *ArchiveRepository) ListByRepo(ctx context.Context, repoID string) ([]event.ChangeEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT payload FROM archived_events WHERE repo_id = ? ORDER BY timestamp, event_id`, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []event.ChangeEvent
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var e event.ChangeEvent
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("failed to parse archived event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
