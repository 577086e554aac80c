package match

import (
	"regexp"
	"strings"
)

var (
	featuringPattern = regexp.MustCompile(`\bfeaturing\b|\bft\.|\bfeat\.`)
	specialPattern   = regexp.MustCompile(`[.,!?;:()"-]`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// Normalize prepares a string for comparison: lowercase, trimmed, featuring
// variants ("featuring", "ft.", "feat.") collapsed to "feat", punctuation
// stripped, and whitespace collapsed. Empty or whitespace-only input returns "".
func Normalize(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return ""
	}

	// Featuring variants first, before the dots are stripped
	s = featuringPattern.ReplaceAllString(s, "feat")
	// Apostrophes join words ("don't" reads as "dont"), other punctuation splits
	s = strings.ReplaceAll(s, "'", "")
	s = specialPattern.ReplaceAllString(s, " ")
	s = spacePattern.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// LevenshteinDistance returns the minimum number of single-character edits
// (insertions, deletions, substitutions) required to transform a into b.
//
// Operates on runes so multi-byte titles compare correctly. Runs in
// O(len(a)*len(b)) time and O(min(len(a), len(b))) space using two rolling rows.
func LevenshteinDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Roll over the shorter string to bound memory
	if len(rb) > len(ra) {
		ra, rb = rb, ra
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// Similarity returns a score in [0,1] for how alike two strings are after
// normalization: 1 means identical, 0 means entirely different. Two empty
// strings are identical; one empty string scores 0 against any other.
func Similarity(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)

	if na == "" && nb == "" {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0.0
	}

	dist := LevenshteinDistance(na, nb)
	maxLen := max(len([]rune(na)), len([]rune(nb)))

	return 1.0 - float64(dist)/float64(maxLen)
}
