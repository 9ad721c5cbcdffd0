// Package flashcard implements the FlashcardRecord repository using
// PostgreSQL.
package flashcard

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	postgres "github.com/studypath/studypath-backend/internal/adapter/postgres"
	"github.com/studypath/studypath-backend/internal/domain"
)

// Repo provides flashcard persistence backed by PostgreSQL.
type Repo struct {
	db postgres.DB
}

// New creates a new flashcard repository.
func New(db postgres.DB) *Repo {
	return &Repo{db: db}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

const selectColumns = `id, guest_id, account_id, front, back, tags, difficulty,
       review_count, correct_count, last_reviewed_at, ease_factor,
       interval_days, next_review_date, created_at, updated_at`

const listByAccountSQL = `
SELECT ` + selectColumns + `
FROM flashcards
WHERE account_id = $1
ORDER BY created_at`

const getByIDsSQL = `
SELECT ` + selectColumns + `
FROM flashcards
WHERE account_id = $1 AND id = ANY($2::uuid[])`

const insertSQL = `
INSERT INTO flashcards (id, guest_id, account_id, front, back, tags, difficulty,
                        review_count, correct_count, last_reviewed_at, ease_factor,
                        interval_days, next_review_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

const upsertSQL = insertSQL + `
ON CONFLICT (id) DO UPDATE SET
  front = EXCLUDED.front,
  back = EXCLUDED.back,
  tags = EXCLUDED.tags,
  difficulty = EXCLUDED.difficulty,
  review_count = EXCLUDED.review_count,
  correct_count = EXCLUDED.correct_count,
  last_reviewed_at = EXCLUDED.last_reviewed_at,
  ease_factor = EXCLUDED.ease_factor,
  interval_days = EXCLUDED.interval_days,
  next_review_date = EXCLUDED.next_review_date,
  updated_at = EXCLUDED.updated_at`

const countByAccountSQL = `SELECT count(*) FROM flashcards WHERE account_id = $1`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// ListByAccount returns all flashcards for an account.
func (r *Repo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.FlashcardRecord, error) {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	rows, err := querier.Query(ctx, listByAccountSQL, accountID)
	if err != nil {
		return nil, fmt.Errorf("list flashcards: %w", err)
	}
	defer rows.Close()

	cards, err := scanFlashcards(rows)
	if err != nil {
		return nil, fmt.Errorf("list flashcards: %w", err)
	}

	return cards, nil
}

// GetByIDs returns flashcards by primary keys, used for sampled content
// verification after the write phase.
func (r *Repo) GetByIDs(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) ([]domain.FlashcardRecord, error) {
	if len(ids) == 0 {
		return []domain.FlashcardRecord{}, nil
	}
	querier := postgres.QuerierFromCtx(ctx, r.db)

	rows, err := querier.Query(ctx, getByIDsSQL, accountID, ids)
	if err != nil {
		return nil, fmt.Errorf("get flashcards by ids: %w", err)
	}
	defer rows.Close()

	cards, err := scanFlashcards(rows)
	if err != nil {
		return nil, fmt.Errorf("get flashcards by ids: %w", err)
	}

	return cards, nil
}

// CountByAccount returns the number of flashcards owned by an account.
func (r *Repo) CountByAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	var count int
	if err := querier.QueryRow(ctx, countByAccountSQL, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count flashcards: %w", err)
	}

	return count, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// BatchInsert inserts flashcards as one batched round-trip.
func (r *Repo) BatchInsert(ctx context.Context, cards []domain.FlashcardRecord) error {
	return r.batchWrite(ctx, cards, insertSQL)
}

// BatchUpsert inserts or replaces flashcards by id. Used when re-inserting
// snapshot records during rollback, where some rows may still exist.
func (r *Repo) BatchUpsert(ctx context.Context, cards []domain.FlashcardRecord) error {
	return r.batchWrite(ctx, cards, upsertSQL)
}

func (r *Repo) batchWrite(ctx context.Context, cards []domain.FlashcardRecord, sql string) error {
	if len(cards) == 0 {
		return nil
	}
	querier := postgres.QuerierFromCtx(ctx, r.db)

	now := time.Now().UTC().Truncate(time.Microsecond)

	batch := &pgx.Batch{}
	for _, c := range cards {
		batch.Queue(sql, c.ID, c.GuestID, c.AccountID, c.Front, c.Back, c.Tags,
			string(c.Difficulty), c.ReviewCount, c.CorrectCount, c.LastReviewedAt,
			c.EaseFactor, c.IntervalDays, c.NextReviewDate,
			postgres.WriteTime(c.CreatedAt, now), postgres.WriteTime(c.UpdatedAt, now))
	}

	results := querier.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return postgres.MapError(err, "flashcard", "batch")
		}
	}

	return nil
}

// DeleteByIDs removes flashcards by primary keys.
func (r *Repo) DeleteByIDs(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	querier := postgres.QuerierFromCtx(ctx, r.db)

	q := psql.Delete("flashcards").
		Where(squirrel.Eq{"account_id": accountID}).
		Where(`id = ANY(?::uuid[])`, ids)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "flashcard", "delete")
	}

	return nil
}

// ---------------------------------------------------------------------------
// Row scanning helpers
// ---------------------------------------------------------------------------

func scanFlashcards(rows pgx.Rows) ([]domain.FlashcardRecord, error) {
	var cards []domain.FlashcardRecord
	for rows.Next() {
		var (
			c          domain.FlashcardRecord
			difficulty string
		)
		if err := rows.Scan(&c.ID, &c.GuestID, &c.AccountID, &c.Front, &c.Back,
			&c.Tags, &difficulty, &c.ReviewCount, &c.CorrectCount, &c.LastReviewedAt,
			&c.EaseFactor, &c.IntervalDays, &c.NextReviewDate, &c.CreatedAt,
			&c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Difficulty = domain.Difficulty(difficulty)
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if cards == nil {
		cards = []domain.FlashcardRecord{}
	}

	return cards, nil
}
