package domain

import (
	"time"

	"github.com/google/uuid"
)

// Curriculum is the account-scoped counterpart of a guest Plan. Modules and
// lessons carry explicit Position fields so ordering survives storage
// round-trips.
type Curriculum struct {
	ID                uuid.UUID
	GuestID           string
	AccountID         uuid.UUID
	Title             string
	Domain            string
	EstimatedDuration string
	Position          int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Modules           []CurriculumModule
}

// CurriculumModule belongs to exactly one Curriculum.
type CurriculumModule struct {
	ID           uuid.UUID
	CurriculumID uuid.UUID
	GuestID      string
	Title        string
	Position     int
	Lessons      []CurriculumLesson
}

// CurriculumLesson belongs to exactly one CurriculumModule.
type CurriculumLesson struct {
	ID          uuid.UUID
	ModuleID    uuid.UUID
	GuestID     string
	Title       string
	Duration    string
	Position    int
	Completed   bool
	CompletedAt *time.Time
}

// FlashcardRecord is the account-scoped flashcard, augmented with derived
// spaced-repetition scheduling fields.
type FlashcardRecord struct {
	ID             uuid.UUID
	GuestID        string
	AccountID      uuid.UUID
	Front          string
	Back           string
	Tags           []string
	Difficulty     Difficulty
	ReviewCount    int
	CorrectCount   int
	LastReviewedAt *time.Time
	EaseFactor     float64
	IntervalDays   int
	NextReviewDate time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProgressRecord is the account-scoped progress aggregate. One row per
// account.
type ProgressRecord struct {
	AccountID        uuid.UUID
	GuestID          string
	TotalPlans       int
	TotalLessons     int
	TotalFlashcards  int
	CompletedLessons int
	StudyMinutes     int
	Streak           int
	LastStudyDate    *time.Time
	UpdatedAt        time.Time
}

// PreferencesRecord is the account-scoped preferences. One row per account.
type PreferencesRecord struct {
	AccountID     uuid.UUID
	GuestID       string
	Theme         Theme
	Notifications bool
	SoundEffects  bool
	UpdatedAt     time.Time
}

// AccountData bundles everything the engine reads from or writes to the
// account store for one account.
type AccountData struct {
	Curricula   []Curriculum
	Flashcards  []FlashcardRecord
	Progress    *ProgressRecord
	Preferences *PreferencesRecord
}

// ItemCount returns the number of records across all entity types,
// counting modules and lessons individually.
func (d *AccountData) ItemCount() int {
	n := len(d.Flashcards)
	for _, c := range d.Curricula {
		n++
		for _, m := range c.Modules {
			n += 1 + len(m.Lessons)
		}
	}
	if d.Progress != nil {
		n++
	}
	if d.Preferences != nil {
		n++
	}
	return n
}

// LessonCount returns the total number of lessons across all curricula.
func (d *AccountData) LessonCount() int {
	n := 0
	for _, c := range d.Curricula {
		for _, m := range c.Modules {
			n += len(m.Lessons)
		}
	}
	return n
}
