package migration

import (
	"math"
	"time"
)

// Spaced-repetition scheduling fields are a pure function of the guest's
// review history, so re-running a migration derives identical values.

// deriveEaseFactor maps review accuracy to an initial ease factor. A card
// never reviewed starts at the SM-2 default.
func deriveEaseFactor(reviewCount, correctCount int) float64 {
	if reviewCount == 0 {
		return 2.5
	}

	accuracy := float64(correctCount) / float64(reviewCount)
	switch {
	case accuracy >= 0.9:
		return 2.8
	case accuracy >= 0.8:
		return 2.6
	case accuracy >= 0.7:
		return 2.5
	case accuracy >= 0.6:
		return 2.3
	default:
		return 2.1
	}
}

// deriveIntervalDays computes the next review interval in days.
func deriveIntervalDays(reviewCount int, easeFactor float64) int {
	switch reviewCount {
	case 0:
		return 1
	case 1:
		return 3
	default:
		return int(math.Round(math.Pow(easeFactor, float64(reviewCount-1))))
	}
}

// deriveSchedule bundles the two derivations plus the next review date.
func deriveSchedule(reviewCount, correctCount int, now time.Time) (easeFactor float64, intervalDays int, nextReview time.Time) {
	easeFactor = deriveEaseFactor(reviewCount, correctCount)
	intervalDays = deriveIntervalDays(reviewCount, easeFactor)
	nextReview = now.AddDate(0, 0, intervalDays)
	return easeFactor, intervalDays, nextReview
}
