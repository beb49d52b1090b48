package core

// EditDistance returns the Levenshtein distance between a and b counted in
// runes: insertion, deletion and substitution each cost 1, no transposition.
// It keeps a single DP row sized to the shorter string.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		diag := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			above := row[j]
			if ra[i-1] == rb[j-1] {
				row[j] = diag
			} else {
				row[j] = 1 + min(diag, above, row[j-1])
			}
			diag = above
		}
	}
	return row[len(rb)]
}

// Similarity returns (maxLen - EditDistance) / maxLen, in [0, 1].
// Two empty strings are identical (1.0). Comparison is case-sensitive;
// callers lower-case first when they want otherwise.
func Similarity(a, b string) float64 {
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return float64(maxLen-EditDistance(a, b)) / float64(maxLen)
}
