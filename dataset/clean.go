package dataset

import (
	"regexp"
	"strings"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanText normalizes description text for training: html tags are removed,
// newlines and whitespace runs collapse to single spaces.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
