// Package progress implements the ProgressRecord repository using
// PostgreSQL. Progress is a singleton row per account, written via upsert.
package progress

import (
	"context"
	"time"

	"github.com/google/uuid"

	postgres "github.com/studypath/studypath-backend/internal/adapter/postgres"
	"github.com/studypath/studypath-backend/internal/domain"
)

// Repo provides progress persistence backed by PostgreSQL.
type Repo struct {
	db postgres.DB
}

// New creates a new progress repository.
func New(db postgres.DB) *Repo {
	return &Repo{db: db}
}

const getSQL = `
SELECT account_id, guest_id, total_plans, total_lessons, total_flashcards,
       completed_lessons, study_minutes, streak, last_study_date, updated_at
FROM progress
WHERE account_id = $1`

const upsertSQL = `
INSERT INTO progress (account_id, guest_id, total_plans, total_lessons,
                      total_flashcards, completed_lessons, study_minutes,
                      streak, last_study_date, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (account_id) DO UPDATE SET
  guest_id = EXCLUDED.guest_id,
  total_plans = EXCLUDED.total_plans,
  total_lessons = EXCLUDED.total_lessons,
  total_flashcards = EXCLUDED.total_flashcards,
  completed_lessons = EXCLUDED.completed_lessons,
  study_minutes = EXCLUDED.study_minutes,
  streak = EXCLUDED.streak,
  last_study_date = EXCLUDED.last_study_date,
  updated_at = EXCLUDED.updated_at`

const deleteSQL = `DELETE FROM progress WHERE account_id = $1`

// GetByAccount returns the progress row for an account, or
// domain.ErrNotFound when the account has none yet.
func (r *Repo) GetByAccount(ctx context.Context, accountID uuid.UUID) (domain.ProgressRecord, error) {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	var p domain.ProgressRecord
	err := querier.QueryRow(ctx, getSQL, accountID).Scan(
		&p.AccountID, &p.GuestID, &p.TotalPlans, &p.TotalLessons,
		&p.TotalFlashcards, &p.CompletedLessons, &p.StudyMinutes, &p.Streak,
		&p.LastStudyDate, &p.UpdatedAt)
	if err != nil {
		return domain.ProgressRecord{}, postgres.MapError(err, "progress", accountID.String())
	}

	return p, nil
}

// Upsert writes the progress row for an account.
func (r *Repo) Upsert(ctx context.Context, p domain.ProgressRecord) error {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := querier.Exec(ctx, upsertSQL, p.AccountID, p.GuestID, p.TotalPlans,
		p.TotalLessons, p.TotalFlashcards, p.CompletedLessons, p.StudyMinutes,
		p.Streak, p.LastStudyDate, postgres.WriteTime(p.UpdatedAt, now))
	if err != nil {
		return postgres.MapError(err, "progress", p.AccountID.String())
	}

	return nil
}

// Delete removes the progress row for an account. Missing row is not an
// error: rollback deletes unconditionally.
func (r *Repo) Delete(ctx context.Context, accountID uuid.UUID) error {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	if _, err := querier.Exec(ctx, deleteSQL, accountID); err != nil {
		return postgres.MapError(err, "progress", accountID.String())
	}

	return nil
}
