package migration

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/pmezard/go-difflib/difflib"
)

// similarity returns a symmetric score in [0, 1] for two strings, case and
// surrounding-whitespace insensitive. It takes the better of normalized
// edit distance and longest-common-subsequence ratio: edit distance alone
// punishes a suffix like "React Basics" vs "React Basics 101" harder than
// a human reader would.
func similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	editScore := 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)

	matcher := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	ratio := matcher.Ratio()

	if ratio > editScore {
		return ratio
	}
	return editScore
}
