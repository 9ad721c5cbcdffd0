package migration

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypath/studypath-backend/internal/config"
	"github.com/studypath/studypath-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeAccount struct {
	curricula   map[uuid.UUID]domain.Curriculum
	flashcards  map[uuid.UUID]domain.FlashcardRecord
	progress    map[uuid.UUID]domain.ProgressRecord
	preferences map[uuid.UUID]domain.PreferencesRecord

	failFlashcardInsert bool
	hideOneCurriculum   bool
}

func newFakeAccount() *fakeAccount {
	return &fakeAccount{
		curricula:   make(map[uuid.UUID]domain.Curriculum),
		flashcards:  make(map[uuid.UUID]domain.FlashcardRecord),
		progress:    make(map[uuid.UUID]domain.ProgressRecord),
		preferences: make(map[uuid.UUID]domain.PreferencesRecord),
	}
}

type fakeCurricula struct{ s *fakeAccount }

func (f fakeCurricula) ListByAccount(_ context.Context, accountID uuid.UUID) ([]domain.Curriculum, error) {
	var out []domain.Curriculum
	for _, c := range f.s.curricula {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	if f.s.hideOneCurriculum && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f fakeCurricula) CountByAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	list, err := f.ListByAccount(ctx, accountID)
	return len(list), err
}

func (f fakeCurricula) BatchInsert(_ context.Context, curricula []domain.Curriculum) error {
	for _, c := range curricula {
		if _, exists := f.s.curricula[c.ID]; exists {
			return domain.ErrAlreadyExists
		}
		f.s.curricula[c.ID] = c
	}
	return nil
}

func (f fakeCurricula) DeleteByIDs(_ context.Context, _ uuid.UUID, ids []uuid.UUID) error {
	for _, id := range ids {
		delete(f.s.curricula, id)
	}
	return nil
}

type fakeFlashcards struct{ s *fakeAccount }

func (f fakeFlashcards) ListByAccount(_ context.Context, accountID uuid.UUID) ([]domain.FlashcardRecord, error) {
	var out []domain.FlashcardRecord
	for _, c := range f.s.flashcards {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f fakeFlashcards) GetByIDs(_ context.Context, accountID uuid.UUID, ids []uuid.UUID) ([]domain.FlashcardRecord, error) {
	var out []domain.FlashcardRecord
	for _, id := range ids {
		if c, ok := f.s.flashcards[id]; ok && c.AccountID == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f fakeFlashcards) CountByAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	list, err := f.ListByAccount(ctx, accountID)
	return len(list), err
}

func (f fakeFlashcards) BatchInsert(_ context.Context, cards []domain.FlashcardRecord) error {
	if f.s.failFlashcardInsert {
		return errors.New("store rejected the batch")
	}
	for _, c := range cards {
		f.s.flashcards[c.ID] = c
	}
	return nil
}

func (f fakeFlashcards) BatchUpsert(_ context.Context, cards []domain.FlashcardRecord) error {
	for _, c := range cards {
		f.s.flashcards[c.ID] = c
	}
	return nil
}

func (f fakeFlashcards) DeleteByIDs(_ context.Context, _ uuid.UUID, ids []uuid.UUID) error {
	for _, id := range ids {
		delete(f.s.flashcards, id)
	}
	return nil
}

type fakeProgress struct{ s *fakeAccount }

func (f fakeProgress) GetByAccount(_ context.Context, accountID uuid.UUID) (domain.ProgressRecord, error) {
	p, ok := f.s.progress[accountID]
	if !ok {
		return domain.ProgressRecord{}, domain.ErrNotFound
	}
	return p, nil
}

func (f fakeProgress) Upsert(_ context.Context, p domain.ProgressRecord) error {
	f.s.progress[p.AccountID] = p
	return nil
}

func (f fakeProgress) Delete(_ context.Context, accountID uuid.UUID) error {
	delete(f.s.progress, accountID)
	return nil
}

type fakePreferences struct{ s *fakeAccount }

func (f fakePreferences) GetByAccount(_ context.Context, accountID uuid.UUID) (domain.PreferencesRecord, error) {
	p, ok := f.s.preferences[accountID]
	if !ok {
		return domain.PreferencesRecord{}, domain.ErrNotFound
	}
	return p, nil
}

func (f fakePreferences) Upsert(_ context.Context, p domain.PreferencesRecord) error {
	f.s.preferences[p.AccountID] = p
	return nil
}

func (f fakePreferences) Delete(_ context.Context, accountID uuid.UUID) error {
	delete(f.s.preferences, accountID)
	return nil
}

type fakeGuestStore struct {
	slots      []domain.SlotData
	userData   domain.GuestUserData
	fallbacks  map[uuid.UUID][]domain.SlotData
	clearCalls int
}

func newFakeGuestStore(userData domain.GuestUserData) *fakeGuestStore {
	return &fakeGuestStore{
		slots: []domain.SlotData{
			{Name: "user_data", Version: 3, Payload: []byte(`{}`)},
			{Name: "preferences", Version: 3, Payload: []byte(`{}`)},
		},
		userData:  userData,
		fallbacks: make(map[uuid.UUID][]domain.SlotData),
	}
}

func (f *fakeGuestStore) ReadSlots(_ context.Context, _ string) ([]domain.SlotData, error) {
	out := make([]domain.SlotData, len(f.slots))
	copy(out, f.slots)
	return out, nil
}

func (f *fakeGuestStore) ReadUserData(_ context.Context, _ string) (domain.GuestUserData, error) {
	return f.userData, nil
}

func (f *fakeGuestStore) RestoreSlots(_ context.Context, _ string, slots []domain.SlotData) error {
	f.slots = slots
	return nil
}

func (f *fakeGuestStore) ClearSlots(_ context.Context, _ string) error {
	f.slots = nil
	f.clearCalls++
	return nil
}

func (f *fakeGuestStore) SaveFallback(_ context.Context, checkpointID uuid.UUID, _ string, slots []domain.SlotData) error {
	f.fallbacks[checkpointID] = slots
	return nil
}

func (f *fakeGuestStore) ReadFallback(_ context.Context, checkpointID uuid.UUID) ([]domain.SlotData, error) {
	slots, ok := f.fallbacks[checkpointID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return slots, nil
}

type fakeSchemaMigrator struct {
	warnings []string
	err      error
}

func (f fakeSchemaMigrator) MigrateAll(_ context.Context, _ string) ([]string, error) {
	return f.warnings, f.err
}

type fakeCheckpoints struct {
	byID map[uuid.UUID]domain.Checkpoint
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{byID: make(map[uuid.UUID]domain.Checkpoint)}
}

func (f *fakeCheckpoints) Create(_ context.Context, cp domain.Checkpoint) error {
	if _, exists := f.byID[cp.ID]; exists {
		return domain.ErrAlreadyExists
	}
	f.byID[cp.ID] = cp
	return nil
}

func (f *fakeCheckpoints) GetByID(_ context.Context, id uuid.UUID) (domain.Checkpoint, error) {
	cp, ok := f.byID[id]
	if !ok {
		return domain.Checkpoint{}, domain.ErrNotFound
	}
	return cp, nil
}

func (f *fakeCheckpoints) MarkCompleted(_ context.Context, id uuid.UUID, at time.Time) (int64, error) {
	cp, ok := f.byID[id]
	if !ok || cp.Status != domain.CheckpointStatusActive {
		return 0, nil
	}
	cp.Status = domain.CheckpointStatusCompleted
	cp.CompletedAt = &at
	f.byID[id] = cp
	return 1, nil
}

func (f *fakeCheckpoints) MarkRolledBack(_ context.Context, id uuid.UUID, at time.Time) error {
	cp, ok := f.byID[id]
	if !ok || cp.Status != domain.CheckpointStatusActive {
		return nil
	}
	cp.Status = domain.CheckpointStatusRolledBack
	cp.RolledBackAt = &at
	f.byID[id] = cp
	return nil
}

func (f *fakeCheckpoints) MarkFailed(_ context.Context, id uuid.UUID) error {
	cp, ok := f.byID[id]
	if !ok || cp.Status != domain.CheckpointStatusActive {
		return nil
	}
	cp.Status = domain.CheckpointStatusFailed
	f.byID[id] = cp
	return nil
}

type fakeAudit struct {
	records []domain.AuditRecord
}

func (f *fakeAudit) Log(_ context.Context, record domain.AuditRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeAudit) actions() []domain.AuditAction {
	out := make([]domain.AuditAction, len(f.records))
	for i, r := range f.records {
		out[i] = r.Action
	}
	return out
}

type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testConfig() config.MigrationConfig {
	return config.MigrationConfig{
		IntegrityThreshold:  70,
		CheckpointRetention: 24 * time.Hour,
		StoreTimeout:        5 * time.Second,
		WriteBatchSize:      500,
		SampleSize:          20,
		DefaultStrategy:     string(domain.StrategyMergeWithPreference),
	}
}

func newTestService(account *fakeAccount, guest *fakeGuestStore) (*Service, *fakeCheckpoints, *fakeAudit) {
	checkpoints := newFakeCheckpoints()
	audit := &fakeAudit{}

	svc := NewService(
		slog.New(slog.DiscardHandler),
		guest,
		fakeSchemaMigrator{},
		fakeCurricula{s: account},
		fakeFlashcards{s: account},
		fakeProgress{s: account},
		fakePreferences{s: account},
		checkpoints,
		audit,
		fakeTx{},
		testConfig(),
	)

	return svc, checkpoints, audit
}

// ---------------------------------------------------------------------------
// Pipeline tests
// ---------------------------------------------------------------------------

func TestMigrate_EmptyAccount(t *testing.T) {
	account := newFakeAccount()
	guest := newFakeGuestStore(wellFormedGuestData())
	svc, checkpoints, audit := newTestService(account, guest)
	accountID := uuid.New()

	report, err := svc.Migrate(context.Background(), MigrateInput{
		GuestID:   "guest-1",
		AccountID: accountID,
	})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, 100, report.IntegrityScore)
	assert.Equal(t, domain.StrategyMergeWithPreference, report.Strategy)
	assert.False(t, report.RollbackPerformed)

	// 2 curricula + 2 modules + 3 lessons + 5 flashcards + progress + preferences
	assert.Equal(t, 14, report.MigratedItems)
	assert.Len(t, account.curricula, 2)
	assert.Len(t, account.flashcards, 5)
	assert.Len(t, account.progress, 1)
	assert.Len(t, account.preferences, 1)

	lessons := 0
	for _, c := range account.curricula {
		for _, m := range c.Modules {
			lessons += len(m.Lessons)
		}
	}
	assert.Equal(t, 3, lessons)

	require.NotNil(t, report.CheckpointID)
	cp, getErr := checkpoints.GetByID(context.Background(), *report.CheckpointID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.CheckpointStatusCompleted, cp.Status)

	assert.Nil(t, guest.slots, "guest slots are cleared after confirm")
	assert.Contains(t, audit.actions(), domain.AuditActionCheckpointCreated)
	assert.Contains(t, audit.actions(), domain.AuditActionCheckpointDone)
}

func TestMigrate_ConfirmIsIdempotent(t *testing.T) {
	account := newFakeAccount()
	guest := newFakeGuestStore(wellFormedGuestData())
	svc, _, _ := newTestService(account, guest)
	accountID := uuid.New()

	report, err := svc.Migrate(context.Background(), MigrateInput{
		GuestID:   "guest-1",
		AccountID: accountID,
	})
	require.NoError(t, err)
	require.NotNil(t, report.CheckpointID)

	cardsBefore := len(account.flashcards)
	clearsBefore := guest.clearCalls

	require.NoError(t, svc.ConfirmCheckpoint(context.Background(), *report.CheckpointID))

	assert.Equal(t, cardsBefore, len(account.flashcards), "store untouched by a second confirm")
	assert.Equal(t, clearsBefore, guest.clearCalls)
}

func TestMigrate_MergesConflictingFlashcard(t *testing.T) {
	account := newFakeAccount()
	accountID := uuid.New()

	existing := existingClosureCard(accountID)
	account.flashcards[existing.ID] = existing

	guestData := wellFormedGuestData()
	guest := newFakeGuestStore(guestData)
	svc, _, _ := newTestService(account, guest)

	report, err := svc.Migrate(context.Background(), MigrateInput{
		GuestID:   "guest-1",
		AccountID: accountID,
	})
	require.NoError(t, err)
	assert.True(t, report.Success)

	// "What is a closure?" collides with the seeded card; the other four are added
	assert.Len(t, account.flashcards, 5)

	merged := account.flashcards[existing.ID]
	assert.Equal(t, 5, merged.ReviewCount, "max of both counters")
	assert.Equal(t, 3, merged.CorrectCount)
	assert.Contains(t, merged.Tags, "javascript")

	var mergeCount int
	for _, r := range report.Resolutions {
		if r.Action == domain.ResolutionActionMerge && r.EntityType == domain.EntityTypeFlashcard {
			mergeCount++
		}
	}
	assert.Equal(t, 1, mergeCount)
}

func TestMigrate_WriteFailureRollsBackExactly(t *testing.T) {
	account := newFakeAccount()
	accountID := uuid.New()

	seeded := domain.Curriculum{
		ID: uuid.New(), GuestID: "seed-plan", AccountID: accountID,
		Title: "Cooking 101", Domain: "cooking",
	}
	seededCard := domain.FlashcardRecord{
		ID: uuid.New(), GuestID: "seed-card", AccountID: accountID,
		Front: "What is mise en place?", Back: "Preparing ingredients before cooking",
		Difficulty: domain.DifficultyEasy, EaseFactor: 2.5, IntervalDays: 1,
	}
	account.curricula[seeded.ID] = seeded
	account.flashcards[seededCard.ID] = seededCard

	account.failFlashcardInsert = true

	guest := newFakeGuestStore(wellFormedGuestData())
	slotsBefore := make([]domain.SlotData, len(guest.slots))
	copy(slotsBefore, guest.slots)

	svc, checkpoints, audit := newTestService(account, guest)

	report, err := svc.Migrate(context.Background(), MigrateInput{
		GuestID:   "guest-1",
		AccountID: accountID,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrWrite))

	assert.False(t, report.Success)
	assert.True(t, report.RollbackPerformed)
	assert.True(t, report.RollbackSucceeded)
	assert.Equal(t, 2, report.RestoredItems, "the seeded curriculum and flashcard")

	// account store is set-equal to the pre-migration snapshot
	require.Len(t, account.curricula, 1)
	assert.Equal(t, seeded, account.curricula[seeded.ID])
	require.Len(t, account.flashcards, 1)
	assert.Equal(t, seededCard, account.flashcards[seededCard.ID])
	assert.Empty(t, account.progress)
	assert.Empty(t, account.preferences)

	// commit never happened, so guest-local data is intact
	assert.Equal(t, slotsBefore, guest.slots)

	require.NotNil(t, report.CheckpointID)
	cp, getErr := checkpoints.GetByID(context.Background(), *report.CheckpointID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.CheckpointStatusRolledBack, cp.Status)

	actions := audit.actions()
	assert.Contains(t, actions, domain.AuditActionRollbackStarted)
	assert.Contains(t, actions, domain.AuditActionRollbackFinished)
	assert.NotContains(t, actions, domain.AuditActionEmergencyRestore)
}

func TestMigrate_IntegrityFailureTriggersRollback(t *testing.T) {
	account := newFakeAccount()
	account.hideOneCurriculum = true

	guest := newFakeGuestStore(wellFormedGuestData())
	svc, _, _ := newTestService(account, guest)

	report, err := svc.Migrate(context.Background(), MigrateInput{
		GuestID:   "guest-1",
		AccountID: uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIntegrity))

	assert.False(t, report.Success)
	assert.True(t, report.RollbackPerformed)
	assert.Equal(t, 80, report.IntegrityScore, "a critical count failure costs its weight")
}

func TestMigrate_CancellationAfterCheckpointRollsBack(t *testing.T) {
	account := newFakeAccount()
	guest := newFakeGuestStore(wellFormedGuestData())
	svc, checkpoints, _ := newTestService(account, guest)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.Migrate(ctx, MigrateInput{
		GuestID:   "guest-1",
		AccountID: uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	assert.True(t, report.RollbackPerformed)
	assert.True(t, report.RollbackSucceeded)
	require.NotNil(t, report.CheckpointID)
	cp, getErr := checkpoints.GetByID(context.Background(), *report.CheckpointID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.CheckpointStatusRolledBack, cp.Status)
}

func TestMigrate_UnknownStrategyRejected(t *testing.T) {
	account := newFakeAccount()
	guest := newFakeGuestStore(wellFormedGuestData())
	svc, _, _ := newTestService(account, guest)

	report, err := svc.Migrate(context.Background(), MigrateInput{
		GuestID:   "guest-1",
		AccountID: uuid.New(),
		Strategy:  domain.Strategy("chaos"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Nil(t, report.CheckpointID, "rejected before any state change")
	assert.Empty(t, account.curricula)
}

func TestMigrate_PreValidationFailureAbortsBeforeCheckpoint(t *testing.T) {
	guestData := wellFormedGuestData()
	guestData.Plans[0].Title = ""

	account := newFakeAccount()
	guest := newFakeGuestStore(guestData)
	svc, checkpoints, _ := newTestService(account, guest)

	report, err := svc.Migrate(context.Background(), MigrateInput{
		GuestID:   "guest-1",
		AccountID: uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	assert.False(t, report.Success)
	assert.False(t, report.RollbackPerformed, "nothing was written, nothing to roll back")
	assert.Nil(t, report.CheckpointID)
	assert.Empty(t, checkpoints.byID)
	assert.Empty(t, account.curricula)
	assert.NotNil(t, guest.slots, "guest data untouched")
}

func TestMigrate_ExistingPriorityKeepsAccountData(t *testing.T) {
	account := newFakeAccount()
	accountID := uuid.New()

	existing := existingClosureCard(accountID)
	account.flashcards[existing.ID] = existing

	guest := newFakeGuestStore(wellFormedGuestData())
	svc, _, _ := newTestService(account, guest)

	report, err := svc.Migrate(context.Background(), MigrateInput{
		GuestID:   "guest-1",
		AccountID: accountID,
		Strategy:  domain.StrategyExistingPriority,
	})
	require.NoError(t, err)
	assert.True(t, report.Success)

	kept := account.flashcards[existing.ID]
	assert.Equal(t, 5, kept.ReviewCount, "existing card untouched")
	assert.Equal(t, []string{"javascript"}, kept.Tags)
	assert.Len(t, account.flashcards, 5, "four new cards added, conflicting one skipped")
}
