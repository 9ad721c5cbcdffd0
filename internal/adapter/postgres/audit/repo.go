// Package audit implements the migration audit log repository using
// PostgreSQL. It provides append-only operations keyed by checkpoint id.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	postgres "github.com/studypath/studypath-backend/internal/adapter/postgres"
	"github.com/studypath/studypath-backend/internal/domain"
)

// Repo provides audit log persistence backed by PostgreSQL.
type Repo struct {
	db postgres.DB
}

// New creates a new audit repository.
func New(db postgres.DB) *Repo {
	return &Repo{db: db}
}

const insertSQL = `
INSERT INTO audit_log (id, checkpoint_id, account_id, action, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const getByCheckpointSQL = `
SELECT id, checkpoint_id, account_id, action, detail, created_at
FROM audit_log
WHERE checkpoint_id = $1
ORDER BY created_at`

// Log appends one audit record. Satisfies migration.auditLogger.
func (r *Repo) Log(ctx context.Context, record domain.AuditRecord) error {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	detailJSON, err := json.Marshal(record.Detail)
	if err != nil {
		return fmt.Errorf("audit_record marshal detail: %w", err)
	}

	_, err = querier.Exec(ctx, insertSQL, record.ID, record.CheckpointID,
		record.AccountID, string(record.Action), detailJSON, record.CreatedAt)
	if err != nil {
		return postgres.MapError(err, "audit_record", record.ID.String())
	}

	return nil
}

// GetByCheckpoint returns the audit trail of a checkpoint in chronological
// order.
func (r *Repo) GetByCheckpoint(ctx context.Context, checkpointID uuid.UUID) ([]domain.AuditRecord, error) {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	rows, err := querier.Query(ctx, getByCheckpointSQL, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("get audit_records by checkpoint: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var (
			rec        domain.AuditRecord
			action     string
			detailJSON []byte
		)
		if err := rows.Scan(&rec.ID, &rec.CheckpointID, &rec.AccountID, &action,
			&detailJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit_record: %w", err)
		}
		rec.Action = domain.AuditAction(action)
		if len(detailJSON) > 0 {
			detail := make(map[string]any)
			if err := json.Unmarshal(detailJSON, &detail); err != nil {
				return nil, fmt.Errorf("audit_record %s unmarshal detail: %w", rec.ID, err)
			}
			rec.Detail = detail
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit_records: %w", err)
	}

	if records == nil {
		records = []domain.AuditRecord{}
	}

	return records, nil
}
