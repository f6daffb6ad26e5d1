package textdist

import "unicode"

const (
	insertWeight     = 1.0
	deleteWeight     = 1.0
	substituteWeight = 1.0
	// nearSubstituteWeight applies when two runes differ only by case or are
	// both whitespace, so OCR-style noise costs less than a real change.
	nearSubstituteWeight = 0.5
)

// Distance computes a normalized dissimilarity between two strings: 0 means
// identical, 1 maximally different. It is a weighted Levenshtein distance over
// runes, normalized by the weighted length of the longer input.
func Distance(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 && len(rb) == 0 {
		return 0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 1
	}

	prev := make([]float64, len(rb)+1)
	curr := make([]float64, len(rb)+1)
	for j := 1; j <= len(rb); j++ {
		prev[j] = prev[j-1] + insertWeight
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = prev[0] + deleteWeight
		for j := 1; j <= len(rb); j++ {
			sub := prev[j-1] + substitutionCost(ra[i-1], rb[j-1])
			del := prev[j] + deleteWeight
			ins := curr[j-1] + insertWeight
			curr[j] = min3(sub, del, ins)
		}
		prev, curr = curr, prev
	}

	distance := prev[len(rb)]
	limit := float64(max(len(ra), len(rb))) * substituteWeight
	if limit == 0 {
		return 0
	}
	normalized := distance / limit
	if normalized > 1 {
		normalized = 1
	}
	return normalized
}

func substitutionCost(a, b rune) float64 {
	if a == b {
		return 0
	}
	if unicode.ToLower(a) == unicode.ToLower(b) {
		return nearSubstituteWeight
	}
	if unicode.IsSpace(a) && unicode.IsSpace(b) {
		return nearSubstituteWeight
	}
	return substituteWeight
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
