// Package tokens estimates token usage for context-window accounting.
// The estimate intentionally over-counts slightly so the window manager
// compresses before the real model limit is hit.
package tokens

import "unicode/utf8"

// perMessageOverhead approximates the framing cost (role, separators) a
// completion API charges per message.
const perMessageOverhead = 4

// Estimate returns the approximate token count for a piece of text.
// Roughly one token per four characters, never zero for non-empty text.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// EstimateMessage returns the approximate cost of a whole message,
// including framing overhead.
func EstimateMessage(content string) int {
	return Estimate(content) + perMessageOverhead
}
