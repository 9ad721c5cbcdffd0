// Package preferences implements the PreferencesRecord repository using
// PostgreSQL. Preferences is a singleton row per account, written via
// upsert.
package preferences

import (
	"context"
	"time"

	"github.com/google/uuid"

	postgres "github.com/studypath/studypath-backend/internal/adapter/postgres"
	"github.com/studypath/studypath-backend/internal/domain"
)

// Repo provides preferences persistence backed by PostgreSQL.
type Repo struct {
	db postgres.DB
}

// New creates a new preferences repository.
func New(db postgres.DB) *Repo {
	return &Repo{db: db}
}

const getSQL = `
SELECT account_id, guest_id, theme, notifications, sound_effects, updated_at
FROM preferences
WHERE account_id = $1`

const upsertSQL = `
INSERT INTO preferences (account_id, guest_id, theme, notifications,
                         sound_effects, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (account_id) DO UPDATE SET
  guest_id = EXCLUDED.guest_id,
  theme = EXCLUDED.theme,
  notifications = EXCLUDED.notifications,
  sound_effects = EXCLUDED.sound_effects,
  updated_at = EXCLUDED.updated_at`

const deleteSQL = `DELETE FROM preferences WHERE account_id = $1`

// GetByAccount returns the preferences row for an account, or
// domain.ErrNotFound when the account has none yet.
func (r *Repo) GetByAccount(ctx context.Context, accountID uuid.UUID) (domain.PreferencesRecord, error) {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	var (
		p     domain.PreferencesRecord
		theme string
	)
	err := querier.QueryRow(ctx, getSQL, accountID).Scan(
		&p.AccountID, &p.GuestID, &theme, &p.Notifications, &p.SoundEffects,
		&p.UpdatedAt)
	if err != nil {
		return domain.PreferencesRecord{}, postgres.MapError(err, "preferences", accountID.String())
	}
	p.Theme = domain.Theme(theme)

	return p, nil
}

// Upsert writes the preferences row for an account.
func (r *Repo) Upsert(ctx context.Context, p domain.PreferencesRecord) error {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := querier.Exec(ctx, upsertSQL, p.AccountID, p.GuestID,
		string(p.Theme), p.Notifications, p.SoundEffects,
		postgres.WriteTime(p.UpdatedAt, now))
	if err != nil {
		return postgres.MapError(err, "preferences", p.AccountID.String())
	}

	return nil
}

// Delete removes the preferences row for an account. Missing row is not an
// error: rollback deletes unconditionally.
func (r *Repo) Delete(ctx context.Context, accountID uuid.UUID) error {
	querier := postgres.QuerierFromCtx(ctx, r.db)

	if _, err := querier.Exec(ctx, deleteSQL, accountID); err != nil {
		return postgres.MapError(err, "preferences", accountID.String())
	}

	return nil
}
