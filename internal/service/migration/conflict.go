package migration

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/studypath/studypath-backend/internal/domain"
)

// Conflict detection thresholds.
const (
	curriculumTitleThreshold = 0.8
	flashcardFrontThreshold  = 0.9
	flashcardBackThreshold   = 0.8
	// Counter divergence below these tolerances is not a conflict.
	progressMinutesTolerance = 60
	progressStreakTolerance  = 7
)

// findCurriculumConflict matches a transformed curriculum against the
// account's existing ones, skipping ids already claimed earlier in the
// pass. Returns the first match, or -1.
func findCurriculumConflict(guest domain.Curriculum, existing []domain.Curriculum, consumed map[uuid.UUID]struct{}) (int, domain.ConflictType, string) {
	for i, ex := range existing {
		if _, taken := consumed[ex.ID]; taken {
			continue
		}
		if guest.GuestID != "" && ex.GuestID == guest.GuestID {
			return i, domain.ConflictTypeIDCollision,
				fmt.Sprintf("curriculum already migrated from guest plan %s", guest.GuestID)
		}
	}

	for i, ex := range existing {
		if _, taken := consumed[ex.ID]; taken {
			continue
		}
		score := similarity(guest.Title, ex.Title)
		if score >= curriculumTitleThreshold && strings.EqualFold(guest.Domain, ex.Domain) {
			return i, domain.ConflictTypeSimilarTitle,
				fmt.Sprintf("title %.0f%% similar to %q in the same domain", score*100, ex.Title)
		}
	}

	return -1, "", ""
}

// findFlashcardConflict matches a transformed flashcard against the
// account's existing ones, skipping ids already claimed earlier in the
// pass. Returns the first match, or -1.
func findFlashcardConflict(guest domain.FlashcardRecord, existing []domain.FlashcardRecord, consumed map[uuid.UUID]struct{}) (int, domain.ConflictType, string) {
	for i, ex := range existing {
		if _, taken := consumed[ex.ID]; taken {
			continue
		}
		if guest.GuestID != "" && ex.GuestID == guest.GuestID {
			return i, domain.ConflictTypeIDCollision,
				fmt.Sprintf("flashcard already migrated from guest card %s", guest.GuestID)
		}
	}

	for i, ex := range existing {
		if _, taken := consumed[ex.ID]; taken {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(guest.Front), strings.TrimSpace(ex.Front)) &&
			strings.EqualFold(strings.TrimSpace(guest.Back), strings.TrimSpace(ex.Back)) {
			return i, domain.ConflictTypeDuplicate, "identical front and back"
		}
	}

	for i, ex := range existing {
		if _, taken := consumed[ex.ID]; taken {
			continue
		}
		frontScore := similarity(guest.Front, ex.Front)
		backScore := similarity(guest.Back, ex.Back)
		if frontScore >= flashcardFrontThreshold && backScore >= flashcardBackThreshold {
			return i, domain.ConflictTypeNearDuplicate,
				fmt.Sprintf("front %.0f%% and back %.0f%% similar to existing card", frontScore*100, backScore*100)
		}
	}

	return -1, "", ""
}

// progressDiverges reports whether two progress records differ beyond
// tolerance. Small divergence is expected and is not a conflict.
func progressDiverges(guest, existing domain.ProgressRecord) (bool, string) {
	if diff := abs(guest.StudyMinutes - existing.StudyMinutes); diff > progressMinutesTolerance {
		return true, fmt.Sprintf("study minutes differ by %d", diff)
	}
	if diff := abs(guest.Streak - existing.Streak); diff > progressStreakTolerance {
		return true, fmt.Sprintf("streak differs by %d", diff)
	}
	return false, ""
}

// preferencesMismatches lists the per-field differences between guest and
// existing preferences.
func preferencesMismatches(guest, existing domain.PreferencesRecord) []string {
	var fields []string
	if guest.Theme != existing.Theme {
		fields = append(fields, "theme")
	}
	if guest.Notifications != existing.Notifications {
		fields = append(fields, "notifications")
	}
	if guest.SoundEffects != existing.SoundEffects {
		fields = append(fields, "sound_effects")
	}
	return fields
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
