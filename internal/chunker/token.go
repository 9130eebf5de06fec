package chunker

import (
	"strings"
	"unicode"
)

// EstimateTokens gives a rough token count for reporting. Han, Hiragana,
// Katakana and Hangul runes count one token each; other text uses ~1.33
// tokens per whitespace-separated word.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	cjk := 0
	var rest strings.Builder
	for _, r := range text {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			cjk++
			rest.WriteByte(' ')
			continue
		}
		rest.WriteRune(r)
	}
	words := len(strings.Fields(rest.String()))
	tokens := cjk + int(float64(words)*1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
