package eval

import "strings"

// Tokenize lowercases the text and splits it on any run of non alphanumeric
// characters. All lexical metrics share this tokenization so their scores are
// comparable.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)

	var tokens []string
	var current strings.Builder
	for _, r := range lowered {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			current.WriteRune(r)
		} else if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func counts(tokens []string) map[string]int {
	result := make(map[string]int, len(tokens))
	for _, token := range tokens {
		result[token]++
	}
	return result
}
