package persist

import (
	"context"
	"fmt"
	"time"
)

// CheckpointEntry is one persisted GameObject, captured as the serialized
// Create + AddComponent operations that would recreate it (see
// internal/sync/sender.SynchronizeFullTree, which builds the same
// representation for a live resync).
type CheckpointEntry struct {
	Path       string
	ParentPath string
	Payload    []byte // wire-encoded proto operations for this object
}

// CheckpointRepo persists and restores scene graph checkpoints. Grounded on
// the teacher's WALRepo: a full checkpoint is written as one batch in a
// single transaction, the same shape as WriteWAL's batch-insert-then-commit.
type CheckpointRepo struct {
	db *DB
}

func NewCheckpointRepo(db *DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

// WriteCheckpoint atomically replaces the stored scene graph with entries,
// tagged with the snapshot sequence it corresponds to.
func (r *CheckpointRepo) WriteCheckpoint(ctx context.Context, sequence uint64, entries []CheckpointEntry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("checkpoint begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM scene_checkpoint`); err != nil {
		return fmt.Errorf("checkpoint clear: %w", err)
	}
	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO scene_checkpoint (path, parent_path, payload, sequence, saved_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			e.Path, e.ParentPath, e.Payload, sequence, time.Now(),
		); err != nil {
			return fmt.Errorf("checkpoint insert %s: %w", e.Path, err)
		}
	}
	return tx.Commit(ctx)
}

// LoadCheckpoint returns the most recently written checkpoint in parent-before-
// child order (by path length, then path; a parent's path is a prefix of its
// children's, so it always sorts first), along with the snapshot sequence it was saved
// at, or ok=false if no checkpoint has ever been written.
func (r *CheckpointRepo) LoadCheckpoint(ctx context.Context) (entries []CheckpointEntry, sequence uint64, ok bool, err error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT path, parent_path, payload, sequence FROM scene_checkpoint
		 ORDER BY length(path), path`,
	)
	if err != nil {
		return nil, 0, false, fmt.Errorf("checkpoint query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e CheckpointEntry
		if err := rows.Scan(&e.Path, &e.ParentPath, &e.Payload, &sequence); err != nil {
			return nil, 0, false, fmt.Errorf("checkpoint scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, false, fmt.Errorf("checkpoint rows: %w", err)
	}
	return entries, sequence, len(entries) > 0, nil
}
