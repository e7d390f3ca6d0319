package utils

import "strings"

// Token estimation uses the 1 token ~= 4 characters heuristic.

// CountTokens estimates the number of tokens in the given text.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateLines keeps whole lines of text while the total stays within limit
// tokens. truncated reports whether any line was dropped.
func TruncateLines(text string, limit int) (out string, truncated bool) {
	if CountTokens(text) <= limit {
		return text, false
	}
	charLimit := limit * 4
	var b strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if b.Len()+len(line) > charLimit {
			return b.String(), true
		}
		b.WriteString(line)
	}
	return b.String(), false
}

// TokenBreakdown returns a simple breakdown map of labeled sections to token counts.
func TokenBreakdown(sections map[string]string) map[string]int {
	out := make(map[string]int, len(sections))
	for k, v := range sections {
		out[k] = CountTokens(v)
	}
	return out
}
