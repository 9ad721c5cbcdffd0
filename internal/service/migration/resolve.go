package migration

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studypath/studypath-backend/internal/domain"
)

// writePlan is the resolver's output: exactly what the write phase must
// delete and insert, plus the decision log for the audit report.
type writePlan struct {
	curriculaToDelete  []uuid.UUID
	curriculaToInsert  []domain.Curriculum
	flashcardsToInsert []domain.FlashcardRecord
	flashcardsToUpsert []domain.FlashcardRecord
	progress           *domain.ProgressRecord
	preferences        *domain.PreferencesRecord
	conflicts          []domain.Conflict
	resolutions        []domain.Resolution

	// Existing ids already claimed by a merge or replace in this pass. A
	// second guest entity matching the same existing record must not queue
	// another write under the same id.
	consumedCurricula  map[uuid.UUID]struct{}
	consumedFlashcards map[uuid.UUID]struct{}
}

func (p *writePlan) consumeCurriculum(id uuid.UUID) {
	if p.consumedCurricula == nil {
		p.consumedCurricula = make(map[uuid.UUID]struct{})
	}
	p.consumedCurricula[id] = struct{}{}
}

func (p *writePlan) consumeFlashcard(id uuid.UUID) {
	if p.consumedFlashcards == nil {
		p.consumedFlashcards = make(map[uuid.UUID]struct{})
	}
	p.consumedFlashcards[id] = struct{}{}
}

// itemCount returns the number of records the plan writes, counting modules
// and lessons individually.
func (p *writePlan) itemCount() int {
	n := len(p.flashcardsToInsert) + len(p.flashcardsToUpsert)
	for _, c := range p.curriculaToInsert {
		n++
		for _, m := range c.Modules {
			n += 1 + len(m.Lessons)
		}
	}
	if p.progress != nil {
		n++
	}
	if p.preferences != nil {
		n++
	}
	return n
}

// resolveConflicts reconciles transformed guest entities against the
// account's existing entities under the selected strategy. Entities with no
// detected conflict are always added as-is.
func resolveConflicts(transformed, existing domain.AccountData, strategy domain.Strategy, now time.Time) writePlan {
	var plan writePlan

	for _, guest := range transformed.Curricula {
		resolveCurriculum(&plan, guest, existing.Curricula, strategy, now)
	}
	for _, guest := range transformed.Flashcards {
		resolveFlashcard(&plan, guest, existing.Flashcards, strategy, now)
	}
	resolveProgress(&plan, transformed.Progress, existing.Progress, strategy, now)
	resolvePreferences(&plan, transformed.Preferences, existing.Preferences, strategy, now)

	return plan
}

// ---------------------------------------------------------------------------
// Curricula
// ---------------------------------------------------------------------------

func resolveCurriculum(plan *writePlan, guest domain.Curriculum, existing []domain.Curriculum, strategy domain.Strategy, now time.Time) {
	idx, kind, detail := findCurriculumConflict(guest, existing, plan.consumedCurricula)
	if idx < 0 {
		plan.curriculaToInsert = append(plan.curriculaToInsert, guest)
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypeCurriculum,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionAdd,
			Reason:     "no conflict with existing curricula",
		})
		return
	}

	match := existing[idx]
	plan.conflicts = append(plan.conflicts, domain.Conflict{
		EntityType: domain.EntityTypeCurriculum,
		Type:       kind,
		GuestID:    guest.GuestID,
		ExistingID: match.ID.String(),
		Detail:     detail,
	})

	switch strategy {
	case domain.StrategyExistingPriority:
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypeCurriculum,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionSkip,
			Reason:     fmt.Sprintf("existing curriculum %s kept (%s)", match.ID, detail),
		})

	case domain.StrategyGuestPriority:
		plan.curriculaToDelete = append(plan.curriculaToDelete, match.ID)
		plan.curriculaToInsert = append(plan.curriculaToInsert, reparentCurriculum(guest, match.ID, now))
		plan.consumeCurriculum(match.ID)
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypeCurriculum,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionReplace,
			Reason:     fmt.Sprintf("guest version replaced curriculum %s (%s)", match.ID, detail),
		})

	case domain.StrategyCreateDuplicate:
		plan.curriculaToInsert = append(plan.curriculaToInsert, guest)
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypeCurriculum,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionDuplicate,
			Reason:     fmt.Sprintf("added under a new id alongside curriculum %s (%s)", match.ID, detail),
		})

	default: // merge_with_preference
		merged := mergeCurricula(match, guest, now)
		plan.curriculaToDelete = append(plan.curriculaToDelete, match.ID)
		plan.curriculaToInsert = append(plan.curriculaToInsert, merged)
		plan.consumeCurriculum(match.ID)
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypeCurriculum,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionMerge,
			Reason:     fmt.Sprintf("merged into curriculum %s (%s)", match.ID, detail),
		})
	}
}

// reparentCurriculum rewires a guest curriculum tree onto an existing
// curriculum id so a replace keeps the stable id.
func reparentCurriculum(c domain.Curriculum, id uuid.UUID, now time.Time) domain.Curriculum {
	c.ID = id
	c.UpdatedAt = now
	for i := range c.Modules {
		c.Modules[i].CurriculumID = id
	}
	return c
}

// mergeCurricula keeps the existing curriculum's identity, title, and
// domain, and structurally merges the guest's modules and lessons into it
// by guest-side id. A lesson's completed flag is promoted, never demoted.
func mergeCurricula(existing, guest domain.Curriculum, now time.Time) domain.Curriculum {
	merged := existing
	merged.UpdatedAt = now
	merged.Modules = make([]domain.CurriculumModule, len(existing.Modules))
	copy(merged.Modules, existing.Modules)

	moduleIdx := make(map[string]int, len(merged.Modules))
	for i, m := range merged.Modules {
		if m.GuestID != "" {
			moduleIdx[m.GuestID] = i
		}
	}

	for _, gm := range guest.Modules {
		i, ok := moduleIdx[gm.GuestID]
		if !ok || gm.GuestID == "" {
			gm.CurriculumID = merged.ID
			gm.Position = len(merged.Modules)
			merged.Modules = append(merged.Modules, gm)
			continue
		}
		merged.Modules[i] = mergeModules(merged.Modules[i], gm)
	}

	lessons := 0
	for _, m := range merged.Modules {
		lessons += len(m.Lessons)
	}
	merged.EstimatedDuration = estimateDuration(lessons)

	return merged
}

func mergeModules(existing, guest domain.CurriculumModule) domain.CurriculumModule {
	merged := existing
	merged.Lessons = make([]domain.CurriculumLesson, len(existing.Lessons))
	copy(merged.Lessons, existing.Lessons)

	lessonIdx := make(map[string]int, len(merged.Lessons))
	for i, l := range merged.Lessons {
		if l.GuestID != "" {
			lessonIdx[l.GuestID] = i
		}
	}

	for _, gl := range guest.Lessons {
		i, ok := lessonIdx[gl.GuestID]
		if !ok || gl.GuestID == "" {
			gl.ModuleID = merged.ID
			gl.Position = len(merged.Lessons)
			merged.Lessons = append(merged.Lessons, gl)
			continue
		}
		if gl.Completed && !merged.Lessons[i].Completed {
			merged.Lessons[i].Completed = true
			merged.Lessons[i].CompletedAt = gl.CompletedAt
		}
	}

	return merged
}

// ---------------------------------------------------------------------------
// Flashcards
// ---------------------------------------------------------------------------

func resolveFlashcard(plan *writePlan, guest domain.FlashcardRecord, existing []domain.FlashcardRecord, strategy domain.Strategy, now time.Time) {
	idx, kind, detail := findFlashcardConflict(guest, existing, plan.consumedFlashcards)
	if idx < 0 {
		plan.flashcardsToInsert = append(plan.flashcardsToInsert, guest)
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypeFlashcard,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionAdd,
			Reason:     "no conflict with existing flashcards",
		})
		return
	}

	match := existing[idx]
	plan.conflicts = append(plan.conflicts, domain.Conflict{
		EntityType: domain.EntityTypeFlashcard,
		Type:       kind,
		GuestID:    guest.GuestID,
		ExistingID: match.ID.String(),
		Detail:     detail,
	})

	switch strategy {
	case domain.StrategyExistingPriority:
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypeFlashcard,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionSkip,
			Reason:     fmt.Sprintf("existing flashcard %s kept (%s)", match.ID, detail),
		})

	case domain.StrategyGuestPriority:
		replacement := guest
		replacement.ID = match.ID
		replacement.CreatedAt = match.CreatedAt
		replacement.UpdatedAt = now
		plan.flashcardsToUpsert = append(plan.flashcardsToUpsert, replacement)
		plan.consumeFlashcard(match.ID)
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypeFlashcard,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionReplace,
			Reason:     fmt.Sprintf("guest version replaced flashcard %s (%s)", match.ID, detail),
		})

	case domain.StrategyCreateDuplicate:
		duplicate := guest
		duplicate.Front = guest.Front + " (imported)"
		plan.flashcardsToInsert = append(plan.flashcardsToInsert, duplicate)
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypeFlashcard,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionDuplicate,
			Reason:     fmt.Sprintf("added with disambiguated front alongside flashcard %s (%s)", match.ID, detail),
		})

	default: // merge_with_preference
		merged := mergeFlashcards(match, guest, now)
		plan.flashcardsToUpsert = append(plan.flashcardsToUpsert, merged)
		plan.consumeFlashcard(match.ID)
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypeFlashcard,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionMerge,
			Reason:     fmt.Sprintf("merged into flashcard %s (%s)", match.ID, detail),
		})
	}
}

// mergeFlashcards keeps the existing card's identity and content, takes the
// max of each review counter, the more recent review date, and the
// difficulty from whichever side reviewed the card more. Scheduling fields
// are re-derived from the merged counters.
func mergeFlashcards(existing, guest domain.FlashcardRecord, now time.Time) domain.FlashcardRecord {
	merged := existing
	merged.Tags = unionTags(existing.Tags, guest.Tags)

	if guest.ReviewCount > merged.ReviewCount {
		merged.ReviewCount = guest.ReviewCount
	}
	if guest.CorrectCount > merged.CorrectCount {
		merged.CorrectCount = guest.CorrectCount
	}
	if laterTime(guest.LastReviewedAt, existing.LastReviewedAt) {
		merged.LastReviewedAt = guest.LastReviewedAt
	}
	if guest.ReviewCount > existing.ReviewCount {
		merged.Difficulty = guest.Difficulty
	}

	merged.EaseFactor, merged.IntervalDays, merged.NextReviewDate =
		deriveSchedule(merged.ReviewCount, merged.CorrectCount, now)
	merged.UpdatedAt = now

	return merged
}

func unionTags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var union []string
	for _, tags := range [][]string{a, b} {
		for _, t := range tags {
			key := strings.ToLower(t)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			union = append(union, t)
		}
	}
	sort.Strings(union)
	return union
}

// laterTime reports whether a is strictly after b, treating nil as the
// beginning of time.
func laterTime(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}

// ---------------------------------------------------------------------------
// Progress and preferences (singleton records)
// ---------------------------------------------------------------------------

func resolveProgress(plan *writePlan, guest, existing *domain.ProgressRecord, strategy domain.Strategy, now time.Time) {
	if guest == nil {
		return
	}
	if existing == nil {
		plan.progress = guest
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypeProgress,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionAdd,
			Reason:     "account had no progress record",
		})
		return
	}

	if diverges, detail := progressDiverges(*guest, *existing); diverges {
		plan.conflicts = append(plan.conflicts, domain.Conflict{
			EntityType: domain.EntityTypeProgress,
			Type:       domain.ConflictTypeDivergence,
			GuestID:    guest.GuestID,
			ExistingID: existing.AccountID.String(),
			Detail:     detail,
		})
	}

	switch strategy {
	case domain.StrategyExistingPriority:
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypeProgress,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionSkip,
			Reason:     "existing progress record kept",
		})

	case domain.StrategyGuestPriority:
		plan.progress = guest
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypeProgress,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionReplace,
			Reason:     "guest progress record replaced the existing one",
		})

	default: // merge_with_preference and create_duplicate; progress is a singleton
		merged := mergeProgress(*existing, *guest, now)
		plan.progress = &merged
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypeProgress,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionMerge,
			Reason:     "counters merged with the existing progress record",
		})
	}
}

// mergeProgress takes the max of each monotonic counter, sums study minutes
// (time spent is additive across identities), and keeps the more recent
// study date.
func mergeProgress(existing, guest domain.ProgressRecord, now time.Time) domain.ProgressRecord {
	merged := existing
	merged.TotalPlans = maxInt(existing.TotalPlans, guest.TotalPlans)
	merged.TotalLessons = maxInt(existing.TotalLessons, guest.TotalLessons)
	merged.TotalFlashcards = maxInt(existing.TotalFlashcards, guest.TotalFlashcards)
	merged.CompletedLessons = maxInt(existing.CompletedLessons, guest.CompletedLessons)
	merged.StudyMinutes = existing.StudyMinutes + guest.StudyMinutes
	merged.Streak = maxInt(existing.Streak, guest.Streak)
	if laterTime(guest.LastStudyDate, existing.LastStudyDate) {
		merged.LastStudyDate = guest.LastStudyDate
	}
	merged.UpdatedAt = now
	return merged
}

func resolvePreferences(plan *writePlan, guest, existing *domain.PreferencesRecord, strategy domain.Strategy, now time.Time) {
	if guest == nil {
		return
	}
	if existing == nil {
		plan.preferences = guest
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypePreferences,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionAdd,
			Reason:     "account had no preferences record",
		})
		return
	}

	if fields := preferencesMismatches(*guest, *existing); len(fields) > 0 {
		plan.conflicts = append(plan.conflicts, domain.Conflict{
			EntityType: domain.EntityTypePreferences,
			Type:       domain.ConflictTypeFieldMismatch,
			GuestID:    guest.GuestID,
			ExistingID: existing.AccountID.String(),
			Detail:     fmt.Sprintf("fields differ: %s", strings.Join(fields, ", ")),
		})
	}

	switch strategy {
	case domain.StrategyExistingPriority:
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypePreferences,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionSkip,
			Reason:     "existing preferences kept",
		})

	case domain.StrategyGuestPriority:
		plan.preferences = guest
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypePreferences,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionReplace,
			Reason:     "guest preferences replaced the existing ones",
		})

	default: // merge_with_preference and create_duplicate; preferences is a singleton
		merged := mergePreferences(*existing, *guest, now)
		plan.preferences = &merged
		plan.resolutions = append(plan.resolutions, domain.Resolution{
			EntityType: domain.EntityTypePreferences,
			EntityID:   guest.GuestID,
			Action:     domain.ResolutionActionMerge,
			Reason:     "preferences merged, existing explicit choices kept",
		})
	}
}

// mergePreferences keeps existing choices except that an existing system
// theme yields to the guest's explicit pick, and boolean toggles are ORed
// so the more permissive setting wins.
func mergePreferences(existing, guest domain.PreferencesRecord, now time.Time) domain.PreferencesRecord {
	merged := existing
	if existing.Theme == domain.ThemeSystem {
		merged.Theme = guest.Theme
	}
	merged.Notifications = existing.Notifications || guest.Notifications
	merged.SoundEffects = existing.SoundEffects || guest.SoundEffects
	merged.UpdatedAt = now
	return merged
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
