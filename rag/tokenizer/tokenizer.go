package tokenizer

import (
	"unicode"
)

// Tokenizer counts model tokens in text.
type Tokenizer interface {
	CountTokens(text string) int
}

var _ Tokenizer = SimpleTokenizer{}

// SimpleTokenizer approximates token counts without a model vocabulary:
// runs of letters or digits count as one token, every other non-space rune
// counts as its own token.
type SimpleTokenizer struct{}

// CountTokens implements Tokenizer.
func (SimpleTokenizer) CountTokens(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				count++
				inWord = true
			}
		default:
			inWord = false
			count++
		}
	}
	return count
}

// FitNewest returns the index of the oldest text that can be kept so that
// texts[i:] stays within budget tokens. The newest text is always kept.
func FitNewest(tok Tokenizer, texts []string, budget int) int {
	if len(texts) == 0 {
		return 0
	}
	if tok == nil || budget <= 0 {
		return 0
	}
	used := 0
	for i := len(texts) - 1; i >= 0; i-- {
		used += tok.CountTokens(texts[i])
		if used > budget {
			if i == len(texts)-1 {
				return i
			}
			return i + 1
		}
	}
	return 0
}
