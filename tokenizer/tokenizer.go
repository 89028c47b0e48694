// Package tokenizer counts tokens for history budgeting.
package tokenizer

import "unicode/utf8"

// Tokenizer reports how many model tokens a text occupies.
type Tokenizer interface {
	CountTokens(text string) int
}

// Heuristic approximates token counts without a model vocabulary, using
// the common four-characters-per-token rule of thumb. Use the tiktoken
// subpackage for exact counts.
type Heuristic struct{}

func (Heuristic) CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
