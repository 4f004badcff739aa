// Package tokens provides rough token accounting for simulated usage numbers.
//
// The real service tokenizes with the model's BPE vocabulary. For load
// testing the absolute numbers only need to be plausible and stable, so
// a character-based heuristic is used instead.
package tokens

import "strings"

// charsPerToken approximates the average BPE token length for English text.
const charsPerToken = 4

// Estimate returns the approximate number of tokens in the given text.
// Word count acts as a floor so that short, whitespace-heavy inputs are
// not undercounted.
func Estimate(text string) int {
	if text == "" {
		return 0
	}

	byChars := (len(text) + charsPerToken - 1) / charsPerToken
	byWords := len(strings.Fields(text))

	if byWords > byChars {
		return byWords
	}

	return byChars
}

// CompletionSize decides how many tokens a generated completion should
// contain. maxTokens <= 0 means the request did not constrain the size.
func CompletionSize(defaultTokens, maxTokens int) int {
	if maxTokens > 0 && maxTokens < defaultTokens {
		return maxTokens
	}

	return defaultTokens
}
