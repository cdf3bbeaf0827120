package eval

import (
	"math"
	"strings"
)

const bleuMaxOrder = 4

// Bleu computes sentence level BLEU of a candidate against a single
// reference. The effective maximum n-gram order is capped at the candidate
// length so short texts are scored on the orders they can actually contain,
// which keeps a candidate identical to its reference at 1.0. Uses modified
// n-gram precision with a brevity penalty; empty candidate or reference
// scores 0.
func Bleu(candidate, reference string) float64 {
	candTokens := Tokenize(candidate)
	refTokens := Tokenize(reference)
	if len(candTokens) == 0 || len(refTokens) == 0 {
		return 0
	}

	maxOrder := min(bleuMaxOrder, len(candTokens))

	logPrecisionSum := 0.0
	for n := 1; n <= maxOrder; n++ {
		precision := modifiedPrecision(candTokens, refTokens, n)
		if precision == 0 {
			return 0
		}
		logPrecisionSum += math.Log(precision)
	}
	geometricMean := math.Exp(logPrecisionSum / float64(maxOrder))

	return brevityPenalty(len(candTokens), len(refTokens)) * geometricMean
}

// modifiedPrecision counts candidate n-grams clipped by their reference
// counts. A reference shorter than n contributes no n-grams, so precision is
// 0 for that order.
func modifiedPrecision(candTokens, refTokens []string, n int) float64 {
	candGrams := ngramCounts(candTokens, n)
	if len(candGrams) == 0 {
		return 0
	}
	refGrams := ngramCounts(refTokens, n)

	matched := 0
	total := 0
	for gram, count := range candGrams {
		matched += min(count, refGrams[gram])
		total += count
	}
	return float64(matched) / float64(total)
}

func ngramCounts(tokens []string, n int) map[string]int {
	result := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		result[strings.Join(tokens[i:i+n], " ")]++
	}
	return result
}

func brevityPenalty(candLen, refLen int) float64 {
	if candLen >= refLen {
		return 1
	}
	return math.Exp(1 - float64(refLen)/float64(candLen))
}
