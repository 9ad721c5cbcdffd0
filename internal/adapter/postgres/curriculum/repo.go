// Package curriculum implements the Curriculum repository using PostgreSQL.
// A curriculum is stored across three tables (curricula, curriculum_modules,
// curriculum_lessons) and always read and written as a whole tree.
package curriculum

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

// Repo provides curriculum persistence backed by PostgreSQL.
type Repo struct {
	db postgres.DB
}

// New creates a new curriculum repository.
func New(db postgres.DB) *Repo {
	return &Repo{db: db}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

const listByAccountSQL = `
SELECT id, guest_id, account_id, title, domain, estimated_duration, position,
       created_at, updated_at
FROM curricula
WHERE account_id = $1
ORDER BY position, created_at`

const listModulesSQL = `
SELECT id, curriculum_id, guest_id, title, position
FROM curriculum_modules
WHERE curriculum_id = ANY($1::uuid[])
ORDER BY curriculum_id, position`

const listLessonsSQL = `
SELECT id, module_id, guest_id, title, duration, position, completed, completed_at
FROM curriculum_lessons
WHERE module_id = ANY($1::uuid[])
ORDER BY module_id, position`

const insertCurriculumSQL = `
INSERT INTO curricula (id, guest_id, account_id, title, domain, estimated_duration,
                       position, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const insertModuleSQL = `
INSERT INTO curriculum_modules (id, curriculum_id, guest_id, title, position)
VALUES ($1, $2, $3, $4, $5)`

const insertLessonSQL = `
INSERT INTO curriculum_lessons (id, module_id, guest_id, title, duration, position,
                                completed, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const countByAccountSQL = `SELECT count(*) FROM curricula WHERE account_id = $1`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// ListByAccount returns all curricula for an account with their full
// module/lesson trees, ordered by position.
func (r *Repo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Curriculum, error) {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	rows, err := querier.Query(ctx, listByAccountSQL, accountID)
	if err != nil {
		return nil, fmt.Errorf("list curricula: %w", err)
	}
	defer rows.Close()

	curricula, err := scanCurricula(rows)
	if err != nil {
		return nil, fmt.Errorf("list curricula: %w", err)
	}
	if len(curricula) == 0 {
		return []domain.Curriculum{}, nil
	}

	curriculumIDs := make([]uuid.UUID, len(curricula))
	byID := make(map[uuid.UUID]*domain.Curriculum, len(curricula))
	for i := range curricula {
		curriculumIDs[i] = curricula[i].ID
		byID[curricula[i].ID] = &curricula[i]
	}

	modules, err := r.listModules(ctx, curriculumIDs)
	if err != nil {
		return nil, err
	}

	moduleIDs := make([]uuid.UUID, len(modules))
	moduleByID := make(map[uuid.UUID]*domain.CurriculumModule, len(modules))
	for i := range modules {
		moduleIDs[i] = modules[i].ID
		moduleByID[modules[i].ID] = &modules[i]
	}

	lessons, err := r.listLessons(ctx, moduleIDs)
	if err != nil {
		return nil, err
	}

	for _, l := range lessons {
		if m, ok := moduleByID[l.ModuleID]; ok {
			m.Lessons = append(m.Lessons, l)
		}
	}
	for i := range modules {
		if c, ok := byID[modules[i].CurriculumID]; ok {
			c.Modules = append(c.Modules, modules[i])
		}
	}

	return curricula, nil
}

// CountByAccount returns the number of curricula owned by an account.
func (r *Repo) CountByAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	var count int
	if err := querier.QueryRow(ctx, countByAccountSQL, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count curricula: %w", err)
	}

	return count, nil
}

func (r *Repo) listModules(ctx context.Context, curriculumIDs []uuid.UUID) ([]domain.CurriculumModule, error) {
	if len(curriculumIDs) == 0 {
		return nil, nil
	}
	querier := postgres.QuerierFromCtx(ctx, r.db)

	rows, err := querier.Query(ctx, listModulesSQL, curriculumIDs)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	var modules []domain.CurriculumModule
	for rows.Next() {
		var m domain.CurriculumModule
		if err := rows.Scan(&m.ID, &m.CurriculumID, &m.GuestID, &m.Title, &m.Position); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modules: %w", err)
	}

	return modules, nil
}

func (r *Repo) listLessons(ctx context.Context, moduleIDs []uuid.UUID) ([]domain.CurriculumLesson, error) {
	if len(moduleIDs) == 0 {
		return nil, nil
	}
	querier := postgres.QuerierFromCtx(ctx, r.db)

	rows, err := querier.Query(ctx, listLessonsSQL, moduleIDs)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []domain.CurriculumLesson
	for rows.Next() {
		var l domain.CurriculumLesson
		if err := rows.Scan(&l.ID, &l.ModuleID, &l.GuestID, &l.Title, &l.Duration,
			&l.Position, &l.Completed, &l.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}

	return lessons, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// BatchInsert inserts curricula with their modules and lessons as one
// batched round-trip per call, keeping the partial-write window as small as
// the store allows.
func (r *Repo) BatchInsert(ctx context.Context, curricula []domain.Curriculum) error {
	if len(curricula) == 0 {
		return nil
	}
	querier := postgres.QuerierFromCtx(ctx, r.db)

	now := time.Now().UTC().Truncate(time.Microsecond)

	batch := &pgx.Batch{}
	for _, c := range curricula {
		batch.Queue(insertCurriculumSQL, c.ID, c.GuestID, c.AccountID, c.Title,
			c.Domain, c.EstimatedDuration, c.Position,
			postgres.WriteTime(c.CreatedAt, now), postgres.WriteTime(c.UpdatedAt, now))
		for _, m := range c.Modules {
			batch.Queue(insertModuleSQL, m.ID, c.ID, m.GuestID, m.Title, m.Position)
			for _, l := range m.Lessons {
				batch.Queue(insertLessonSQL, l.ID, m.ID, l.GuestID, l.Title,
					l.Duration, l.Position, l.Completed, l.CompletedAt)
			}
		}
	}

	results := querier.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return postgres.MapError(err, "curriculum", "batch")
		}
	}

	return nil
}

// DeleteByIDs removes curricula and their module/lesson subtrees. Children
// are deleted before parents to respect foreign keys.
func (r *Repo) DeleteByIDs(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	querier := postgres.QuerierFromCtx(ctx, r.db)

	lessonDelete := psql.Delete("curriculum_lessons").
		Where(`module_id IN (SELECT id FROM curriculum_modules WHERE curriculum_id = ANY(?::uuid[]))`, ids)
	moduleDelete := psql.Delete("curriculum_modules").
		Where(`curriculum_id = ANY(?::uuid[])`, ids)
	curriculumDelete := psql.Delete("curricula").
		Where(squirrel.Eq{"account_id": accountID}).
		Where(`id = ANY(?::uuid[])`, ids)

	for _, q := range []squirrel.DeleteBuilder{lessonDelete, moduleDelete, curriculumDelete} {
		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			return postgres.MapError(err, "curriculum", "delete")
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Row scanning helpers
// ---------------------------------------------------------------------------

func scanCurricula(rows pgx.Rows) ([]domain.Curriculum, error) {
	var curricula []domain.Curriculum
	for rows.Next() {
		var c domain.Curriculum
		if err := rows.Scan(&c.ID, &c.GuestID, &c.AccountID, &c.Title, &c.Domain,
			&c.EstimatedDuration, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		curricula = append(curricula, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return curricula, nil
}
