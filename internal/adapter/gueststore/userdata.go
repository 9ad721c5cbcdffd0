package gueststore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/studypath/studypath-backend/internal/domain"
)

// SlotUserData is the name of the slot holding the guest's learning data.
// The remaining slots carry session state, standalone preferences, and the
// local analytics log.
const (
	SlotSession      = "session"
	SlotUserData     = "user_data"
	SlotPreferences  = "preferences"
	SlotAnalyticsLog = "analytics_log"
)

// ---------------------------------------------------------------------------
// Wire format of the user_data slot (client JSON, camelCase keys)
// ---------------------------------------------------------------------------

type userDataJSON struct {
	Plans       []planJSON      `json:"plans"`
	Flashcards  []flashcardJSON `json:"flashcards"`
	Progress    progressJSON    `json:"progress"`
	Preferences preferencesJSON `json:"preferences"`
}

type planJSON struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Domain    string       `json:"domain"`
	CreatedAt time.Time    `json:"createdAt"`
	Modules   []moduleJSON `json:"modules"`
}

type moduleJSON struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Lessons []lessonJSON `json:"lessons"`
}

type lessonJSON struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Duration    string     `json:"duration"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type flashcardJSON struct {
	ID             string     `json:"id"`
	Front          string     `json:"front"`
	Back           string     `json:"back"`
	Tags           []string   `json:"tags"`
	CreatedAt      time.Time  `json:"createdAt"`
	Difficulty     string     `json:"difficulty"`
	ReviewCount    int        `json:"reviewCount"`
	CorrectCount   int        `json:"correctCount"`
	LastReviewedAt *time.Time `json:"lastReviewedAt,omitempty"`
}

type progressJSON struct {
	TotalPlans       int        `json:"totalPlans"`
	TotalLessons     int        `json:"totalLessons"`
	TotalFlashcards  int        `json:"totalFlashcards"`
	CompletedLessons int        `json:"completedLessons"`
	StudyMinutes     int        `json:"studyMinutes"`
	Streak           int        `json:"streak"`
	LastStudyDate    *time.Time `json:"lastStudyDate,omitempty"`
}

type preferencesJSON struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
	SoundEffects  bool   `json:"soundEffects"`
}

// ReadUserData reads and decodes the user_data slot for a guest.
func (s *Store) ReadUserData(ctx context.Context, guestID string) (domain.GuestUserData, error) {
	slot, err := s.ReadSlot(ctx, guestID, SlotUserData)
	if err != nil {
		return domain.GuestUserData{}, err
	}

	var wire userDataJSON
	if err := json.Unmarshal(slot.Payload, &wire); err != nil {
		return domain.GuestUserData{}, fmt.Errorf("decode user_data for guest %s: %w", guestID, err)
	}

	return toDomainUserData(wire), nil
}

func toDomainUserData(wire userDataJSON) domain.GuestUserData {
	data := domain.GuestUserData{
		Plans:      make([]domain.Plan, len(wire.Plans)),
		Flashcards: make([]domain.Flashcard, len(wire.Flashcards)),
		Progress: domain.Progress{
			TotalPlans:       wire.Progress.TotalPlans,
			TotalLessons:     wire.Progress.TotalLessons,
			TotalFlashcards:  wire.Progress.TotalFlashcards,
			CompletedLessons: wire.Progress.CompletedLessons,
			StudyMinutes:     wire.Progress.StudyMinutes,
			Streak:           wire.Progress.Streak,
			LastStudyDate:    wire.Progress.LastStudyDate,
		},
		Preferences: domain.Preferences{
			Theme:         domain.Theme(wire.Preferences.Theme),
			Notifications: wire.Preferences.Notifications,
			SoundEffects:  wire.Preferences.SoundEffects,
		},
	}

	for i, p := range wire.Plans {
		plan := domain.Plan{
			ID:        p.ID,
			Title:     p.Title,
			Domain:    p.Domain,
			CreatedAt: p.CreatedAt,
			Modules:   make([]domain.PlanModule, len(p.Modules)),
		}
		for j, m := range p.Modules {
			module := domain.PlanModule{
				ID:      m.ID,
				Title:   m.Title,
				Lessons: make([]domain.PlanLesson, len(m.Lessons)),
			}
			for k, l := range m.Lessons {
				module.Lessons[k] = domain.PlanLesson{
					ID:          l.ID,
					Title:       l.Title,
					Duration:    l.Duration,
					Completed:   l.Completed,
					CompletedAt: l.CompletedAt,
				}
			}
			plan.Modules[j] = module
		}
		data.Plans[i] = plan
	}

	for i, f := range wire.Flashcards {
		data.Flashcards[i] = domain.Flashcard{
			ID:             f.ID,
			Front:          f.Front,
			Back:           f.Back,
			Tags:           f.Tags,
			CreatedAt:      f.CreatedAt,
			Difficulty:     domain.Difficulty(f.Difficulty),
			ReviewCount:    f.ReviewCount,
			CorrectCount:   f.CorrectCount,
			LastReviewedAt: f.LastReviewedAt,
		}
	}

	return data
}
