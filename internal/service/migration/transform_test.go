package migration

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypath/studypath-backend/internal/domain"
)

func TestTransformGuestData(t *testing.T) {
	accountID := uuid.New()
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	guest := wellFormedGuestData()

	data := transformGuestData(guest, "guest-abc", accountID, now)

	require.Len(t, data.Curricula, 2)
	require.Len(t, data.Flashcards, 5)
	require.NotNil(t, data.Progress)
	require.NotNil(t, data.Preferences)

	// fresh ids, guest ids kept as provenance
	first := data.Curricula[0]
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, guest.Plans[0].ID, first.GuestID)
	assert.Equal(t, accountID, first.AccountID)
	assert.Equal(t, 0, first.Position)
	assert.Equal(t, 1, data.Curricula[1].Position)

	// parent links and positions all the way down
	require.Len(t, first.Modules, 1)
	module := first.Modules[0]
	assert.Equal(t, first.ID, module.CurriculumID)
	assert.Equal(t, guest.Plans[0].Modules[0].ID, module.GuestID)
	require.Len(t, module.Lessons, 2)
	for j, lesson := range module.Lessons {
		assert.Equal(t, module.ID, lesson.ModuleID)
		assert.Equal(t, j, lesson.Position)
	}
	assert.True(t, module.Lessons[0].Completed)
	assert.NotNil(t, module.Lessons[0].CompletedAt)

	// two lessons, 30 minutes each
	assert.Equal(t, "1h", first.EstimatedDuration)

	assert.Equal(t, "guest-abc", data.Progress.GuestID)
	assert.Equal(t, accountID, data.Progress.AccountID)
	assert.Equal(t, guest.Progress.StudyMinutes, data.Progress.StudyMinutes)
	assert.Equal(t, domain.ThemeDark, data.Preferences.Theme)
}

func TestTransformFlashcard_DerivesSchedule(t *testing.T) {
	accountID := uuid.New()
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	card := domain.Flashcard{
		ID:           "card-9",
		Front:        "Front",
		Back:         "Back",
		Difficulty:   domain.DifficultyMedium,
		ReviewCount:  5,
		CorrectCount: 3,
		CreatedAt:    now.AddDate(0, -1, 0),
	}

	got := transformFlashcard(card, accountID, now)

	assert.Equal(t, "card-9", got.GuestID)
	assert.NotEqual(t, uuid.Nil, got.ID)
	// accuracy 0.6 lands in the 2.3 band; round(2.3^4) = 28
	assert.InDelta(t, 2.3, got.EaseFactor, 1e-9)
	assert.Equal(t, 28, got.IntervalDays)
	assert.Equal(t, now.AddDate(0, 0, 28), got.NextReviewDate)
	assert.Equal(t, card.CreatedAt, got.CreatedAt)
}

func TestTransformGuestData_NeverReviewedCard(t *testing.T) {
	accountID := uuid.New()
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	guest := domain.GuestUserData{
		Flashcards: []domain.Flashcard{
			{ID: "card-new", Front: "F", Back: "B", Difficulty: domain.DifficultyEasy},
		},
		Preferences: domain.Preferences{Theme: domain.ThemeSystem},
	}

	data := transformGuestData(guest, "guest-abc", accountID, now)

	require.Len(t, data.Flashcards, 1)
	card := data.Flashcards[0]
	assert.InDelta(t, 2.5, card.EaseFactor, 1e-9)
	assert.Equal(t, 1, card.IntervalDays)
	assert.Equal(t, now.AddDate(0, 0, 1), card.NextReviewDate)
}

func TestEstimateDuration(t *testing.T) {
	tests := []struct {
		lessons int
		want    string
	}{
		{0, "0m"},
		{1, "30m"},
		{2, "1h"},
		{3, "1h 30m"},
		{4, "2h"},
		{5, "2h 30m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, estimateDuration(tt.lessons), "lessons=%d", tt.lessons)
	}
}
