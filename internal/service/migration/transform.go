package migration

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/studypath/studypath-backend/internal/domain"
)

// lessonMinutes is the per-lesson estimate used to synthesize a curriculum
// duration for display. The validator never enforces it.
const lessonMinutes = 30

// transformGuestData maps validated guest entities to account-store shapes.
// Fresh ids are generated for every record; the originating guest-side id is
// kept as provenance. Never invents or drops data, so it cannot fail on
// input that passed pre-migration validation.
func transformGuestData(guest domain.GuestUserData, guestID string, accountID uuid.UUID, now time.Time) domain.AccountData {
	data := domain.AccountData{
		Curricula:  make([]domain.Curriculum, len(guest.Plans)),
		Flashcards: make([]domain.FlashcardRecord, len(guest.Flashcards)),
	}

	for i, plan := range guest.Plans {
		data.Curricula[i] = transformPlan(plan, i, accountID, now)
	}
	for i, card := range guest.Flashcards {
		data.Flashcards[i] = transformFlashcard(card, accountID, now)
	}

	data.Progress = &domain.ProgressRecord{
		AccountID:        accountID,
		GuestID:          guestID,
		TotalPlans:       guest.Progress.TotalPlans,
		TotalLessons:     guest.Progress.TotalLessons,
		TotalFlashcards:  guest.Progress.TotalFlashcards,
		CompletedLessons: guest.Progress.CompletedLessons,
		StudyMinutes:     guest.Progress.StudyMinutes,
		Streak:           guest.Progress.Streak,
		LastStudyDate:    guest.Progress.LastStudyDate,
		UpdatedAt:        now,
	}

	data.Preferences = &domain.PreferencesRecord{
		AccountID:     accountID,
		GuestID:       guestID,
		Theme:         guest.Preferences.Theme,
		Notifications: guest.Preferences.Notifications,
		SoundEffects:  guest.Preferences.SoundEffects,
		UpdatedAt:     now,
	}

	return data
}

func transformPlan(plan domain.Plan, position int, accountID uuid.UUID, now time.Time) domain.Curriculum {
	curriculum := domain.Curriculum{
		ID:        uuid.New(),
		GuestID:   plan.ID,
		AccountID: accountID,
		Title:     plan.Title,
		Domain:    plan.Domain,
		Position:  position,
		CreatedAt: plan.CreatedAt,
		UpdatedAt: now,
		Modules:   make([]domain.CurriculumModule, len(plan.Modules)),
	}

	lessons := 0
	for i, m := range plan.Modules {
		module := domain.CurriculumModule{
			ID:           uuid.New(),
			CurriculumID: curriculum.ID,
			GuestID:      m.ID,
			Title:        m.Title,
			Position:     i,
			Lessons:      make([]domain.CurriculumLesson, len(m.Lessons)),
		}
		for j, l := range m.Lessons {
			module.Lessons[j] = domain.CurriculumLesson{
				ID:          uuid.New(),
				ModuleID:    module.ID,
				GuestID:     l.ID,
				Title:       l.Title,
				Duration:    l.Duration,
				Position:    j,
				Completed:   l.Completed,
				CompletedAt: l.CompletedAt,
			}
			lessons++
		}
		curriculum.Modules[i] = module
	}

	curriculum.EstimatedDuration = estimateDuration(lessons)

	return curriculum
}

func transformFlashcard(card domain.Flashcard, accountID uuid.UUID, now time.Time) domain.FlashcardRecord {
	ease, interval, nextReview := deriveSchedule(card.ReviewCount, card.CorrectCount, now)

	return domain.FlashcardRecord{
		ID:             uuid.New(),
		GuestID:        card.ID,
		AccountID:      accountID,
		Front:          card.Front,
		Back:           card.Back,
		Tags:           card.Tags,
		Difficulty:     card.Difficulty,
		ReviewCount:    card.ReviewCount,
		CorrectCount:   card.CorrectCount,
		LastReviewedAt: card.LastReviewedAt,
		EaseFactor:     ease,
		IntervalDays:   interval,
		NextReviewDate: nextReview,
		CreatedAt:      card.CreatedAt,
		UpdatedAt:      now,
	}
}

// estimateDuration renders a display-only duration from the lesson count.
func estimateDuration(lessons int) string {
	minutes := lessons * lessonMinutes
	if minutes == 0 {
		return "0m"
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	if minutes%60 == 0 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
