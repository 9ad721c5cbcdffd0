package domain

import "time"

// GuestUserData is the unit of migration: everything a guest accumulated
// locally before registering. Owned by the guest identity until migration
// completes.
type GuestUserData struct {
	Plans       []Plan
	Flashcards  []Flashcard
	Progress    Progress
	Preferences Preferences
}

// Plan is a guest learning plan with an ordered sequence of modules.
type Plan struct {
	ID        string
	Title     string
	Domain    string
	CreatedAt time.Time
	Modules   []PlanModule
}

// PlanModule groups lessons within a plan. A module without lessons is
// well-formed but flagged as a warning during pre-migration validation.
type PlanModule struct {
	ID      string
	Title   string
	Lessons []PlanLesson
}

// PlanLesson is a single lesson. CompletedAt is required when Completed.
type PlanLesson struct {
	ID          string
	Title       string
	Duration    string
	Completed   bool
	CompletedAt *time.Time
}

// Flashcard is a guest flashcard with raw review counters. CorrectCount
// exceeding ReviewCount is a warning, not an error: counter races in the
// client can legitimately produce it.
type Flashcard struct {
	ID             string
	Front          string
	Back           string
	Tags           []string
	CreatedAt      time.Time
	Difficulty     Difficulty
	ReviewCount    int
	CorrectCount   int
	LastReviewedAt *time.Time
}

// Progress holds aggregate study counters. Declared counters are
// cross-validated against freshly computed counts, not trusted at face
// value.
type Progress struct {
	TotalPlans       int
	TotalLessons     int
	TotalFlashcards  int
	CompletedLessons int
	StudyMinutes     int
	Streak           int
	LastStudyDate    *time.Time
}

// Preferences holds guest UI preferences.
type Preferences struct {
	Theme         Theme
	Notifications bool
	SoundEffects  bool
}

// LessonCounts walks the plan tree and returns total and completed lesson
// counts. Used by cross-validation instead of the declared Progress values.
func (g *GuestUserData) LessonCounts() (total, completed int) {
	for _, p := range g.Plans {
		for _, m := range p.Modules {
			for _, l := range m.Lessons {
				total++
				if l.Completed {
					completed++
				}
			}
		}
	}
	return total, completed
}
