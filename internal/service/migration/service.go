// Package migration implements the guest-to-account migration pipeline:
// schema upgrade, validation, transformation, conflict resolution,
// checkpointed write, and rollback.
package migration

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/studypath/studypath-backend/internal/config"
	"github.com/studypath/studypath-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type guestStore interface {
	ReadSlots(ctx context.Context, guestID string) ([]domain.SlotData, error)
	ReadUserData(ctx context.Context, guestID string) (domain.GuestUserData, error)
	RestoreSlots(ctx context.Context, guestID string, slots []domain.SlotData) error
	ClearSlots(ctx context.Context, guestID string) error
	SaveFallback(ctx context.Context, checkpointID uuid.UUID, guestID string, slots []domain.SlotData) error
	ReadFallback(ctx context.Context, checkpointID uuid.UUID) ([]domain.SlotData, error)
}

type schemaMigrator interface {
	MigrateAll(ctx context.Context, guestID string) ([]string, error)
}

type curriculumRepo interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Curriculum, error)
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int, error)
	BatchInsert(ctx context.Context, curricula []domain.Curriculum) error
	DeleteByIDs(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) error
}

type flashcardRepo interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.FlashcardRecord, error)
	GetByIDs(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) ([]domain.FlashcardRecord, error)
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int, error)
	BatchInsert(ctx context.Context, cards []domain.FlashcardRecord) error
	BatchUpsert(ctx context.Context, cards []domain.FlashcardRecord) error
	DeleteByIDs(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) error
}

type progressRepo interface {
	GetByAccount(ctx context.Context, accountID uuid.UUID) (domain.ProgressRecord, error)
	Upsert(ctx context.Context, p domain.ProgressRecord) error
	Delete(ctx context.Context, accountID uuid.UUID) error
}

type preferencesRepo interface {
	GetByAccount(ctx context.Context, accountID uuid.UUID) (domain.PreferencesRecord, error)
	Upsert(ctx context.Context, p domain.PreferencesRecord) error
	Delete(ctx context.Context, accountID uuid.UUID) error
}

type checkpointRepo interface {
	Create(ctx context.Context, cp domain.Checkpoint) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Checkpoint, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
	MarkRolledBack(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

type auditLogger interface {
	Log(ctx context.Context, record domain.AuditRecord) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service runs the migration pipeline for one (guest, account) pair at a
// time. Attempts for different pairs are independent.
type Service struct {
	guest       guestStore
	schema      schemaMigrator
	curricula   curriculumRepo
	flashcards  flashcardRepo
	progress    progressRepo
	preferences preferencesRepo
	checkpoints checkpointRepo
	audit       auditLogger
	tx          txManager
	log         *slog.Logger
	cfg         config.MigrationConfig
	now         func() time.Time
}

// NewService creates a new migration service.
func NewService(
	log *slog.Logger,
	guest guestStore,
	schema schemaMigrator,
	curricula curriculumRepo,
	flashcards flashcardRepo,
	progress progressRepo,
	preferences preferencesRepo,
	checkpoints checkpointRepo,
	audit auditLogger,
	tx txManager,
	cfg config.MigrationConfig,
) *Service {
	return &Service{
		guest:       guest,
		schema:      schema,
		curricula:   curricula,
		flashcards:  flashcards,
		progress:    progress,
		preferences: preferences,
		checkpoints: checkpoints,
		audit:       audit,
		tx:          tx,
		log:         log.With("service", "migration"),
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// withTimeout bounds a single external store call.
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}
