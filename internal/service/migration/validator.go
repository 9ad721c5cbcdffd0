package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/studypath/studypath-backend/internal/domain"
)

// Integrity check weights. Count and relationship failures are critical:
// they mean persisted data is missing or structurally broken.
const (
	weightCount        = 20
	weightContent      = 15
	weightRelationship = 20
	weightType         = 15
	weightBusiness     = 10
)

// scoreFromIssues computes the stage score: 100 minus 10 per error minus 2
// per warning, floored at 0.
func scoreFromIssues(errors, warnings []domain.ValidationIssue) int {
	score := 100 - 10*len(errors) - 2*len(warnings)
	if score < 0 {
		return 0
	}
	return score
}

// ---------------------------------------------------------------------------
// Pre-migration: structural checks on raw guest data
// ---------------------------------------------------------------------------

// validatePreMigration checks raw guest data before transformation. Stale
// aggregate counters are warnings, not errors: they are recomputed during
// the merge anyway.
func validatePreMigration(guest domain.GuestUserData) domain.ValidationResult {
	var errs, warns []domain.ValidationIssue

	addError := func(field, message string) {
		errs = append(errs, domain.ValidationIssue{Field: field, Message: message, Critical: true})
	}
	addWarning := func(field, message string) {
		warns = append(warns, domain.ValidationIssue{Field: field, Message: message})
	}

	for i, plan := range guest.Plans {
		prefix := fmt.Sprintf("plans[%d]", i)
		if plan.ID == "" {
			addError(prefix+".id", "is required")
		}
		if plan.Title == "" {
			addError(prefix+".title", "is required")
		}
		if plan.CreatedAt.IsZero() {
			addWarning(prefix+".createdAt", "is missing")
		}
		for j, module := range plan.Modules {
			mPrefix := fmt.Sprintf("%s.modules[%d]", prefix, j)
			if module.ID == "" {
				addError(mPrefix+".id", "is required")
			}
			if len(module.Lessons) == 0 {
				addWarning(mPrefix+".lessons", "module has no lessons")
			}
			for k, lesson := range module.Lessons {
				lPrefix := fmt.Sprintf("%s.lessons[%d]", mPrefix, k)
				if lesson.ID == "" {
					addError(lPrefix+".id", "is required")
				}
				if lesson.Title == "" {
					addError(lPrefix+".title", "is required")
				}
				if lesson.Completed && lesson.CompletedAt == nil {
					addError(lPrefix+".completedAt", "is required for a completed lesson")
				}
			}
		}
	}

	for i, card := range guest.Flashcards {
		prefix := fmt.Sprintf("flashcards[%d]", i)
		if card.ID == "" {
			addError(prefix+".id", "is required")
		}
		if card.Front == "" {
			addError(prefix+".front", "is required")
		}
		if card.Back == "" {
			addError(prefix+".back", "is required")
		}
		if !card.Difficulty.IsValid() {
			addError(prefix+".difficulty", fmt.Sprintf("unknown value %q", card.Difficulty))
		}
		if card.ReviewCount < 0 {
			addError(prefix+".reviewCount", "must not be negative")
		}
		if card.CorrectCount < 0 {
			addError(prefix+".correctCount", "must not be negative")
		}
		// Counter races in the client can legitimately produce this.
		if card.CorrectCount > card.ReviewCount && card.ReviewCount >= 0 {
			addWarning(prefix+".correctCount", "exceeds reviewCount")
		}
	}

	if guest.Progress.CompletedLessons > guest.Progress.TotalLessons {
		addWarning("progress.completedLessons", "exceeds totalLessons")
	}
	if guest.Progress.StudyMinutes < 0 {
		addError("progress.studyMinutes", "must not be negative")
	}

	if !guest.Preferences.Theme.IsValid() {
		addError("preferences.theme", fmt.Sprintf("unknown value %q", guest.Preferences.Theme))
	}

	// Cross-validation: declared counters versus freshly computed counts.
	totalLessons, completedLessons := guest.LessonCounts()
	if guest.Progress.TotalPlans != len(guest.Plans) {
		addWarning("progress.totalPlans",
			fmt.Sprintf("declared %d, counted %d", guest.Progress.TotalPlans, len(guest.Plans)))
	}
	if guest.Progress.TotalLessons != totalLessons {
		addWarning("progress.totalLessons",
			fmt.Sprintf("declared %d, counted %d", guest.Progress.TotalLessons, totalLessons))
	}
	if guest.Progress.CompletedLessons != completedLessons {
		addWarning("progress.completedLessons",
			fmt.Sprintf("declared %d, counted %d", guest.Progress.CompletedLessons, completedLessons))
	}
	if guest.Progress.TotalFlashcards != len(guest.Flashcards) {
		addWarning("progress.totalFlashcards",
			fmt.Sprintf("declared %d, counted %d", guest.Progress.TotalFlashcards, len(guest.Flashcards)))
	}

	return domain.ValidationResult{
		Stage:    domain.StagePreMigration,
		Errors:   errs,
		Warnings: warns,
		Score:    scoreFromIssues(errs, warns),
		Passed:   len(errs) == 0,
	}
}

// ---------------------------------------------------------------------------
// Post-transformation: schema compliance of the transformer's output
// ---------------------------------------------------------------------------

func validatePostTransformation(data domain.AccountData, accountID uuid.UUID) domain.ValidationResult {
	var errs []domain.ValidationIssue

	addError := func(field, message string) {
		errs = append(errs, domain.ValidationIssue{Field: field, Message: message, Critical: true})
	}

	curriculumIDs := make(map[uuid.UUID]struct{}, len(data.Curricula))
	for i, c := range data.Curricula {
		prefix := fmt.Sprintf("curricula[%d]", i)
		if c.ID == uuid.Nil {
			addError(prefix+".id", "is required")
		}
		if c.AccountID != accountID {
			addError(prefix+".accountId", "does not match the target account")
		}
		if c.Title == "" {
			addError(prefix+".title", "is required")
		}
		if _, dup := curriculumIDs[c.ID]; dup {
			addError(prefix+".id", "duplicate id in collection")
		}
		curriculumIDs[c.ID] = struct{}{}

		moduleIDs := make(map[uuid.UUID]struct{}, len(c.Modules))
		for j, m := range c.Modules {
			mPrefix := fmt.Sprintf("%s.modules[%d]", prefix, j)
			if m.ID == uuid.Nil {
				addError(mPrefix+".id", "is required")
			}
			if m.CurriculumID != c.ID {
				addError(mPrefix+".curriculumId", "does not reference the parent curriculum")
			}
			if _, dup := moduleIDs[m.ID]; dup {
				addError(mPrefix+".id", "duplicate id in collection")
			}
			moduleIDs[m.ID] = struct{}{}

			lessonIDs := make(map[uuid.UUID]struct{}, len(m.Lessons))
			for k, l := range m.Lessons {
				lPrefix := fmt.Sprintf("%s.lessons[%d]", mPrefix, k)
				if l.ID == uuid.Nil {
					addError(lPrefix+".id", "is required")
				}
				if l.ModuleID != m.ID {
					addError(lPrefix+".moduleId", "does not reference the parent module")
				}
				if _, dup := lessonIDs[l.ID]; dup {
					addError(lPrefix+".id", "duplicate id in collection")
				}
				lessonIDs[l.ID] = struct{}{}
			}
		}
	}

	cardIDs := make(map[uuid.UUID]struct{}, len(data.Flashcards))
	for i, card := range data.Flashcards {
		prefix := fmt.Sprintf("flashcards[%d]", i)
		if card.ID == uuid.Nil {
			addError(prefix+".id", "is required")
		}
		if card.AccountID != accountID {
			addError(prefix+".accountId", "does not match the target account")
		}
		if _, dup := cardIDs[card.ID]; dup {
			addError(prefix+".id", "duplicate id in collection")
		}
		cardIDs[card.ID] = struct{}{}
		if card.EaseFactor <= 0 {
			addError(prefix+".easeFactor", "must be positive")
		}
		if card.IntervalDays < 1 {
			addError(prefix+".intervalDays", "must be at least 1")
		}
	}

	return domain.ValidationResult{
		Stage:  domain.StagePostTransformation,
		Errors: errs,
		Score:  scoreFromIssues(errs, nil),
		Passed: len(errs) == 0,
	}
}

// ---------------------------------------------------------------------------
// Post-migration: persisted state versus the expected final state
// ---------------------------------------------------------------------------

// expectedState is the entity set the account store must hold after a
// successful write: the pre-migration state with the write plan applied.
type expectedState struct {
	curricula   []domain.Curriculum
	flashcards  []domain.FlashcardRecord
	progress    *domain.ProgressRecord
	preferences *domain.PreferencesRecord
}

// expectedAfterWrite applies a write plan to the pre-migration account
// state without touching the store.
func expectedAfterWrite(existing domain.AccountData, plan writePlan) expectedState {
	deleted := make(map[uuid.UUID]struct{}, len(plan.curriculaToDelete))
	for _, id := range plan.curriculaToDelete {
		deleted[id] = struct{}{}
	}

	var curricula []domain.Curriculum
	for _, c := range existing.Curricula {
		if _, gone := deleted[c.ID]; !gone {
			curricula = append(curricula, c)
		}
	}
	curricula = append(curricula, plan.curriculaToInsert...)

	upserted := make(map[uuid.UUID]domain.FlashcardRecord, len(plan.flashcardsToUpsert))
	for _, card := range plan.flashcardsToUpsert {
		upserted[card.ID] = card
	}
	var flashcards []domain.FlashcardRecord
	for _, card := range existing.Flashcards {
		if replacement, ok := upserted[card.ID]; ok {
			flashcards = append(flashcards, replacement)
			continue
		}
		flashcards = append(flashcards, card)
	}
	flashcards = append(flashcards, plan.flashcardsToInsert...)

	progress := existing.Progress
	if plan.progress != nil {
		progress = plan.progress
	}
	preferences := existing.Preferences
	if plan.preferences != nil {
		preferences = plan.preferences
	}

	return expectedState{
		curricula:   curricula,
		flashcards:  flashcards,
		progress:    progress,
		preferences: preferences,
	}
}

func (e *expectedState) counts() (curricula, modules, lessons, flashcards int) {
	curricula = len(e.curricula)
	for _, c := range e.curricula {
		modules += len(c.Modules)
		for _, m := range c.Modules {
			lessons += len(m.Lessons)
		}
	}
	return curricula, modules, lessons, len(e.flashcards)
}

// sampleIDs returns the ids of the first n expected flashcards, the subset
// the content check reads back individually.
func sampleIDs(cards []domain.FlashcardRecord, n int) []uuid.UUID {
	if n > len(cards) {
		n = len(cards)
	}
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = cards[i].ID
	}
	return ids
}

// validatePostMigration reads back what the write phase persisted and runs
// the five weighted integrity checks against the expected state. The score
// is 100 minus the weight of each failed check; a critical failure or a
// score below the threshold fails the stage.
func (s *Service) validatePostMigration(ctx context.Context, accountID uuid.UUID, expected expectedState) (domain.ValidationResult, error) {
	countCtx, cancel := s.withTimeout(ctx)
	curriculumCount, err := s.curricula.CountByAccount(countCtx, accountID)
	cancel()
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("count curricula: %w", err)
	}

	cardCountCtx, cancel := s.withTimeout(ctx)
	flashcardCount, err := s.flashcards.CountByAccount(cardCountCtx, accountID)
	cancel()
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("count flashcards: %w", err)
	}

	listCtx, cancel := s.withTimeout(ctx)
	curricula, err := s.curricula.ListByAccount(listCtx, accountID)
	cancel()
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("list curricula: %w", err)
	}

	cardCtx, cancel := s.withTimeout(ctx)
	flashcards, err := s.flashcards.ListByAccount(cardCtx, accountID)
	cancel()
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("list flashcards: %w", err)
	}

	sampleCtx, cancel := s.withTimeout(ctx)
	sample, err := s.flashcards.GetByIDs(sampleCtx, accountID, sampleIDs(expected.flashcards, s.cfg.SampleSize))
	cancel()
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("sample flashcards: %w", err)
	}

	progress, preferences, err := s.readBackSingletons(ctx, accountID)
	if err != nil {
		return domain.ValidationResult{}, err
	}

	checks := []domain.IntegrityCheck{
		checkCounts(expected, curriculumCount, flashcardCount, curricula),
		checkContent(expected, curricula, sample),
		checkRelationships(curricula),
		checkTypes(curricula, flashcards, preferences),
		checkBusinessRules(flashcards, progress),
	}

	score := 100
	critical := false
	for _, c := range checks {
		if !c.Passed {
			score -= c.Weight
			if c.Critical {
				critical = true
			}
		}
	}
	if score < 0 {
		score = 0
	}

	return domain.ValidationResult{
		Stage:  domain.StagePostMigration,
		Checks: checks,
		Score:  score,
		Passed: !critical && score >= s.cfg.IntegrityThreshold,
	}, nil
}

// readBackSingletons fetches the persisted progress and preferences rows so
// the type and business checks run against what the store actually holds.
// A missing row is not an error: the write plan may not carry either.
func (s *Service) readBackSingletons(ctx context.Context, accountID uuid.UUID) (*domain.ProgressRecord, *domain.PreferencesRecord, error) {
	var progress *domain.ProgressRecord
	progressCtx, cancel := s.withTimeout(ctx)
	p, err := s.progress.GetByAccount(progressCtx, accountID)
	cancel()
	switch {
	case err == nil:
		progress = &p
	case !errors.Is(err, domain.ErrNotFound):
		return nil, nil, fmt.Errorf("get progress: %w", err)
	}

	var preferences *domain.PreferencesRecord
	prefsCtx, cancel := s.withTimeout(ctx)
	pr, err := s.preferences.GetByAccount(prefsCtx, accountID)
	cancel()
	switch {
	case err == nil:
		preferences = &pr
	case !errors.Is(err, domain.ErrNotFound):
		return nil, nil, fmt.Errorf("get preferences: %w", err)
	}

	return progress, preferences, nil
}

// checkCounts compares store-side counts against the expected entity set.
// Module and lesson tallies come from the read-back trees.
func checkCounts(expected expectedState, curriculumCount, flashcardCount int, curricula []domain.Curriculum) domain.IntegrityCheck {
	wantCurricula, wantModules, wantLessons, wantCards := expected.counts()

	gotModules, gotLessons := 0, 0
	for _, c := range curricula {
		gotModules += len(c.Modules)
		for _, m := range c.Modules {
			gotLessons += len(m.Lessons)
		}
	}

	check := domain.IntegrityCheck{Name: "count", Weight: weightCount, Critical: true, Passed: true}
	switch {
	case curriculumCount != wantCurricula:
		check.Passed = false
		check.Detail = fmt.Sprintf("curricula: want %d, got %d", wantCurricula, curriculumCount)
	case gotModules != wantModules:
		check.Passed = false
		check.Detail = fmt.Sprintf("modules: want %d, got %d", wantModules, gotModules)
	case gotLessons != wantLessons:
		check.Passed = false
		check.Detail = fmt.Sprintf("lessons: want %d, got %d", wantLessons, gotLessons)
	case flashcardCount != wantCards:
		check.Passed = false
		check.Detail = fmt.Sprintf("flashcards: want %d, got %d", wantCards, flashcardCount)
	}
	return check
}

// checkContent compares the sampled flashcard read-back and all curriculum
// titles against the expected records.
func checkContent(expected expectedState, curricula []domain.Curriculum, sample []domain.FlashcardRecord) domain.IntegrityCheck {
	check := domain.IntegrityCheck{Name: "content", Weight: weightContent, Passed: true}

	byID := make(map[uuid.UUID]domain.FlashcardRecord, len(sample))
	for _, card := range sample {
		byID[card.ID] = card
	}

	// Missing records are the count check's finding; content only compares
	// what the sampled read-back returned.
	for _, want := range expected.flashcards {
		got, ok := byID[want.ID]
		if !ok {
			continue
		}
		if got.Front != want.Front || got.Back != want.Back || !equalTags(got.Tags, want.Tags) {
			check.Passed = false
			check.Detail = fmt.Sprintf("flashcard %s content differs", want.ID)
			return check
		}
	}

	titleByID := make(map[uuid.UUID]string, len(curricula))
	for _, c := range curricula {
		titleByID[c.ID] = c.Title
	}
	for _, want := range expected.curricula {
		if title, ok := titleByID[want.ID]; ok && title != want.Title {
			check.Passed = false
			check.Detail = fmt.Sprintf("curriculum %s title differs", want.ID)
			return check
		}
	}

	return check
}

func checkRelationships(curricula []domain.Curriculum) domain.IntegrityCheck {
	check := domain.IntegrityCheck{Name: "relationship", Weight: weightRelationship, Critical: true, Passed: true}

	for _, c := range curricula {
		for _, m := range c.Modules {
			if m.CurriculumID != c.ID {
				check.Passed = false
				check.Detail = fmt.Sprintf("module %s does not reference curriculum %s", m.ID, c.ID)
				return check
			}
			for _, l := range m.Lessons {
				if l.ModuleID != m.ID {
					check.Passed = false
					check.Detail = fmt.Sprintf("lesson %s does not reference module %s", l.ID, m.ID)
					return check
				}
			}
		}
	}

	return check
}

func checkTypes(curricula []domain.Curriculum, flashcards []domain.FlashcardRecord, preferences *domain.PreferencesRecord) domain.IntegrityCheck {
	check := domain.IntegrityCheck{Name: "type", Weight: weightType, Passed: true}

	for _, c := range curricula {
		if c.ID == uuid.Nil {
			check.Passed = false
			check.Detail = "curriculum with nil id"
			return check
		}
	}
	for _, card := range flashcards {
		if !card.Difficulty.IsValid() {
			check.Passed = false
			check.Detail = fmt.Sprintf("flashcard %s has unknown difficulty %q", card.ID, card.Difficulty)
			return check
		}
		if card.EaseFactor <= 0 || card.IntervalDays < 1 {
			check.Passed = false
			check.Detail = fmt.Sprintf("flashcard %s has invalid scheduling fields", card.ID)
			return check
		}
	}
	if preferences != nil && !preferences.Theme.IsValid() {
		check.Passed = false
		check.Detail = fmt.Sprintf("preferences theme %q out of range", preferences.Theme)
	}

	return check
}

func checkBusinessRules(flashcards []domain.FlashcardRecord, progress *domain.ProgressRecord) domain.IntegrityCheck {
	check := domain.IntegrityCheck{Name: "business", Weight: weightBusiness, Passed: true}

	for _, card := range flashcards {
		if card.CorrectCount > card.ReviewCount {
			check.Passed = false
			check.Detail = fmt.Sprintf("flashcard %s: correct count exceeds review count", card.ID)
			return check
		}
	}
	if progress != nil && progress.CompletedLessons > progress.TotalLessons {
		check.Passed = false
		check.Detail = "progress: completed lessons exceed total lessons"
	}

	return check
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
