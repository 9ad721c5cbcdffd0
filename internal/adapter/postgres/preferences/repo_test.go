package preferences

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/studypath/studypath-backend/internal/domain"
)

func TestPreferencesRepo_GetByAccount(t *testing.T) {
	accountID := uuid.New()
	now := time.Now()

	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
		check   func(t *testing.T, result domain.PreferencesRecord)
	}{
		{
			name: "found",
			setup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"account_id", "guest_id", "theme",
					"notifications", "sound_effects", "updated_at"}).
					AddRow(accountID, "guest-abc", "dark", true, false, now)
				mock.ExpectQuery(`SELECT (.+) FROM preferences`).
					WithArgs(accountID).
					WillReturnRows(rows)
			},
			check: func(t *testing.T, result domain.PreferencesRecord) {
				if result.AccountID != accountID {
					t.Errorf("expected account %s, got %s", accountID, result.AccountID)
				}
				if result.Theme != domain.ThemeDark {
					t.Errorf("expected dark theme, got %q", result.Theme)
				}
				if !result.Notifications || result.SoundEffects {
					t.Errorf("unexpected toggles: %+v", result)
				}
			},
		},
		{
			name: "not found maps to domain error",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT (.+) FROM preferences`).
					WithArgs(accountID).
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("create mock pool: %v", err)
			}
			defer mock.Close()

			tt.setup(mock)

			repo := New(mock)
			result, err := repo.GetByAccount(context.Background(), accountID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, result)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestPreferencesRepo_Upsert_StampsFreshRecord(t *testing.T) {
	accountID := uuid.New()
	record := domain.PreferencesRecord{
		AccountID:     accountID,
		GuestID:       "guest-abc",
		Theme:         domain.ThemeDark,
		Notifications: true,
	}

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO preferences`).
		WithArgs(accountID, "guest-abc", "dark", true, false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := New(mock)
	if err := repo.Upsert(context.Background(), record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPreferencesRepo_Upsert_KeepsSnapshotTimestamp(t *testing.T) {
	accountID := uuid.New()
	snapshotAt := time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)
	record := domain.PreferencesRecord{
		AccountID: accountID,
		GuestID:   "guest-abc",
		Theme:     domain.ThemeLight,
		UpdatedAt: snapshotAt,
	}

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create mock pool: %v", err)
	}
	defer mock.Close()

	// rollback re-inserts snapshot rows; updated_at must survive verbatim
	mock.ExpectExec(`INSERT INTO preferences`).
		WithArgs(accountID, "guest-abc", "light", false, false, snapshotAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := New(mock)
	if err := repo.Upsert(context.Background(), record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPreferencesRepo_Delete(t *testing.T) {
	accountID := uuid.New()

	t.Run("missing row is not an error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		if err != nil {
			t.Fatalf("create mock pool: %v", err)
		}
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM preferences`).
			WithArgs(accountID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := New(mock)
		if err := repo.Delete(context.Background(), accountID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}
