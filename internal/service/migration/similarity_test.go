package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"React Basics", "React Basics 101"},
		{"What is a closure?", "What is a closure"},
		{"Cooking 101", "React Basics"},
		{"", "anything"},
	}

	for _, p := range pairs {
		assert.Equal(t, similarity(p[0], p[1]), similarity(p[1], p[0]),
			"similarity(%q, %q) must be symmetric", p[0], p[1])
	}
}

func TestSimilarity_Thresholds(t *testing.T) {
	assert.Equal(t, 1.0, similarity("React Basics", "react basics"), "case-insensitive exact match")
	assert.Equal(t, 1.0, similarity("  React Basics ", "React Basics"), "whitespace-insensitive")

	assert.GreaterOrEqual(t, similarity("React Basics", "React Basics 101"), 0.8,
		"shared-prefix titles must clear the curriculum threshold")
	assert.Less(t, similarity("React Basics", "Cooking 101"), 0.8)

	assert.Equal(t, 0.0, similarity("", "React Basics"))
	assert.Equal(t, 1.0, similarity("", ""))
}
