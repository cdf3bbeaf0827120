package eval

// Rouge1 computes the unigram overlap F1 between a candidate and a reference.
// Matches are clipped to the reference count so repeating a reference word
// does not inflate the score. Returns a value in [0, 1]; an empty candidate
// or reference scores 0.
func Rouge1(candidate, reference string) float64 {
	candTokens := Tokenize(candidate)
	refTokens := Tokenize(reference)
	if len(candTokens) == 0 || len(refTokens) == 0 {
		return 0
	}

	refCounts := counts(refTokens)

	overlap := 0
	for token, count := range counts(candTokens) {
		overlap += min(count, refCounts[token])
	}
	if overlap == 0 {
		return 0
	}

	precision := float64(overlap) / float64(len(candTokens))
	recall := float64(overlap) / float64(len(refTokens))
	return 2 * precision * recall / (precision + recall)
}
