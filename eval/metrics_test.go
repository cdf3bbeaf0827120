package eval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"apidocbench/eval"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t,
		[]string{"returns", "the", "user", "s", "profile", "id", "42"},
		eval.Tokenize("Returns the user's profile (ID: 42)."))

	assert.Empty(t, eval.Tokenize(""))
	assert.Empty(t, eval.Tokenize("!!! ---"))
}

func TestIdenticalTextsScoreMax(t *testing.T) {
	texts := []string{
		"Returns the requested user.",
		"Specifies the page number of results to retrieve.",
		"ok",
	}
	for _, text := range texts {
		assert.InDelta(t, 1.0, eval.Rouge1(text, text), 1e-9)
		assert.InDelta(t, 1.0, eval.Bleu(text, text), 1e-9)
	}
}

func TestEmptyCandidateScoresZero(t *testing.T) {
	assert.Zero(t, eval.Rouge1("", "Returns the requested user."))
	assert.Zero(t, eval.Bleu("", "Returns the requested user."))
	assert.Zero(t, eval.Rouge1("Returns the requested user.", ""))
	assert.Zero(t, eval.Bleu("Returns the requested user.", ""))
}

func TestRouge1Overlap(t *testing.T) {
	// candidate tokens: [returns, a, user], reference tokens: [returns,
	// the, user]. Two overlap, so precision = recall = 2/3.
	score := eval.Rouge1("Returns a user.", "Returns the user.")
	assert.InDelta(t, 2.0/3.0, score, 1e-9)
}

func TestRouge1ClipsRepeats(t *testing.T) {
	// "user" appears once in the reference, so repeating it gets no extra
	// credit: overlap is 1, precision 1/3, recall 1/2.
	score := eval.Rouge1("user user user", "the user")
	assert.InDelta(t, 2*(1.0/3.0)*(1.0/2.0)/((1.0/3.0)+(1.0/2.0)), score, 1e-9)
}

func TestRouge1NoOverlap(t *testing.T) {
	assert.Zero(t, eval.Rouge1("alpha beta", "gamma delta"))
}

func TestBleuShortIdenticalText(t *testing.T) {
	// Shorter than four tokens, so only the orders the text can contain
	// are scored and an exact match still reaches 1.0.
	assert.InDelta(t, 1.0, eval.Bleu("page size", "page size"), 1e-9)
}

func TestBleuPartialMatch(t *testing.T) {
	score := eval.Bleu(
		"Returns the list of users.",
		"Returns the list of active users.")
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 1.0)
}

func TestBleuBrevityPenalty(t *testing.T) {
	full := eval.Bleu("returns the list of users", "returns the list of users")
	truncated := eval.Bleu("returns the list", "returns the list of users")
	assert.Less(t, truncated, full)
}

func TestBleuDeterministic(t *testing.T) {
	candidate := "Defines the number of user records returned per page."
	reference := "The number of records returned in each page of results."

	first := eval.Bleu(candidate, reference)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, eval.Bleu(candidate, reference))
	}
}
