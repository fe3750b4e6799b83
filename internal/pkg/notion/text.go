package notion

import (
	"strings"
	"unicode/utf8"
)

const titleQueryLimit = 50

// DeriveTitle builds a page title from the user query: the first 50
// characters with an ellipsis when truncated.
func DeriveTitle(query string) string {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) <= titleQueryLimit {
		return "Research: " + query
	}

	return "Research: " + string([]rune(query)[:titleQueryLimit]) + "..."
}

// TruncateRunes cuts text to at most maxLen characters without splitting a
// rune. Notion counts rich_text limits in characters, not bytes.
func TruncateRunes(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}

	return string([]rune(text)[:maxLen])
}

// SplitChunks splits text into word-boundary chunks of at most maxLen
// characters. Words longer than maxLen are hard-cut on rune boundaries.
func SplitChunks(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	current := ""
	currentLen := 0

	for _, word := range strings.Fields(text) {
		wordLen := utf8.RuneCountInString(word)

		for wordLen > maxLen {
			if current != "" {
				chunks = append(chunks, current)
				current = ""
				currentLen = 0
			}

			runes := []rune(word)
			chunks = append(chunks, string(runes[:maxLen]))
			word = string(runes[maxLen:])
			wordLen -= maxLen
		}

		if word == "" {
			continue
		}

		if current == "" {
			current = word
			currentLen = wordLen
			continue
		}

		if currentLen+1+wordLen <= maxLen {
			current = current + " " + word
			currentLen += 1 + wordLen
		} else {
			chunks = append(chunks, current)
			current = word
			currentLen = wordLen
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks
}
