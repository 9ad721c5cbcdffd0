// Package checkpoint implements the Checkpoint repository using PostgreSQL.
// Snapshots are stored as JSONB; status transitions are guarded so a
// checkpoint can only leave the active state once.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	postgres "github.com/studypath/studypath-backend/internal/adapter/postgres"
	"github.com/studypath/studypath-backend/internal/domain"
)

// Repo provides checkpoint persistence backed by PostgreSQL.
type Repo struct {
	db postgres.DB
}

// New creates a new checkpoint repository.
func New(db postgres.DB) *Repo {
	return &Repo{db: db}
}

const insertSQL = `
INSERT INTO checkpoints (id, guest_id, account_id, status, account_snapshot,
                         guest_snapshot, item_count, size_bytes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const getSQL = `
SELECT id, guest_id, account_id, status, account_snapshot, guest_snapshot,
       item_count, size_bytes, created_at, completed_at, rolled_back_at
FROM checkpoints
WHERE id = $1`

const markCompletedSQL = `
UPDATE checkpoints
SET status = 'completed', completed_at = $2
WHERE id = $1 AND status = 'active'`

const markRolledBackSQL = `
UPDATE checkpoints
SET status = 'rolled_back', rolled_back_at = $2
WHERE id = $1 AND status = 'active'`

const markFailedSQL = `
UPDATE checkpoints
SET status = 'failed'
WHERE id = $1 AND status = 'active'`

const purgeSQL = `
DELETE FROM checkpoints
WHERE status = 'completed' AND completed_at < $1`

// Create persists a new checkpoint with both snapshots encoded as JSONB.
func (r *Repo) Create(ctx context.Context, cp domain.Checkpoint) error {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	accountJSON, err := json.Marshal(cp.AccountSnapshot)
	if err != nil {
		return fmt.Errorf("checkpoint %s: marshal account snapshot: %w", cp.ID, err)
	}
	guestJSON, err := json.Marshal(cp.GuestSnapshot)
	if err != nil {
		return fmt.Errorf("checkpoint %s: marshal guest snapshot: %w", cp.ID, err)
	}

	_, err = querier.Exec(ctx, insertSQL, cp.ID, cp.GuestID, cp.AccountID,
		string(cp.Status), accountJSON, guestJSON, cp.Meta.ItemCount,
		cp.Meta.SizeBytes, cp.CreatedAt)
	if err != nil {
		return postgres.MapError(err, "checkpoint", cp.ID.String())
	}

	return nil
}

// GetByID returns a checkpoint with decoded snapshots.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (domain.Checkpoint, error) {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	var (
		cp          domain.Checkpoint
		status      string
		accountJSON []byte
		guestJSON   []byte
	)
	err := querier.QueryRow(ctx, getSQL, id).Scan(&cp.ID, &cp.GuestID,
		&cp.AccountID, &status, &accountJSON, &guestJSON, &cp.Meta.ItemCount,
		&cp.Meta.SizeBytes, &cp.CreatedAt, &cp.CompletedAt, &cp.RolledBackAt)
	if err != nil {
		return domain.Checkpoint{}, postgres.MapError(err, "checkpoint", id.String())
	}
	cp.Status = domain.CheckpointStatus(status)

	if err := json.Unmarshal(accountJSON, &cp.AccountSnapshot); err != nil {
		return domain.Checkpoint{}, fmt.Errorf("checkpoint %s: unmarshal account snapshot: %w", id, err)
	}
	if err := json.Unmarshal(guestJSON, &cp.GuestSnapshot); err != nil {
		return domain.Checkpoint{}, fmt.Errorf("checkpoint %s: unmarshal guest snapshot: %w", id, err)
	}

	return cp, nil
}

// MarkCompleted transitions an active checkpoint to completed. Returns the
// number of rows updated: 0 means the checkpoint was not active, which the
// caller treats as an idempotent no-op for already-completed checkpoints.
func (r *Repo) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	tag, err := querier.Exec(ctx, markCompletedSQL, id, at)
	if err != nil {
		return 0, postgres.MapError(err, "checkpoint", id.String())
	}

	return tag.RowsAffected(), nil
}

// MarkRolledBack transitions an active checkpoint to rolled_back.
func (r *Repo) MarkRolledBack(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	if _, err := querier.Exec(ctx, markRolledBackSQL, id, at); err != nil {
		return postgres.MapError(err, "checkpoint", id.String())
	}

	return nil
}

// MarkFailed transitions an active checkpoint to failed.
func (r *Repo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	if _, err := querier.Exec(ctx, markFailedSQL, id); err != nil {
		return postgres.MapError(err, "checkpoint", id.String())
	}

	return nil
}

// PurgeExpired removes completed checkpoints whose audit window ended
// before the cutoff. Returns the number of checkpoints removed.
func (r *Repo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	tag, err := querier.Exec(ctx, purgeSQL, cutoff)
	if err != nil {
		return 0, postgres.MapError(err, "checkpoint", "purge")
	}

	return tag.RowsAffected(), nil
}
