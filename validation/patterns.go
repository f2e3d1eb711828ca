package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tags that mark a statement as backed by the knowledge base.
const (
	SourceTag = "[Source:"
	FactTag   = "[Fact:"
)

const (
	speculationWindow = 100
	inventionWindow   = 50
)

// rule is one speculation or invention marker. RE2 has no lookaround, so
// the negative context a marker must not appear in is expressed by skip.
type rule struct {
	re     *regexp.Regexp
	window int
	tags   []string
	// skip reports whether the match at text[start:end] is excused by its
	// immediate surroundings.
	skip func(text string, start, end int) bool
	// word widens the match to the enclosing word.
	word bool
}

var speculationTags = []string{SourceTag, FactTag}

var speculationRules = []rule{
	{
		re:     regexp.MustCompile(`(?i)\bi\s+(?:think|believe|assume|guess|suspect)\b`),
		window: speculationWindow,
		tags:   speculationTags,
	},
	{
		re:     regexp.MustCompile(`(?i)\b(?:probably|likely|presumably|maybe|perhaps)\b`),
		window: speculationWindow,
		tags:   speculationTags,
		skip: func(text string, _, end int) bool {
			rest := text[end:]
			return startsWithSpace(rest) && bracketBeforePeriod(rest)
		},
	},
	{
		re:     regexp.MustCompile(`(?i)\b(?:in\s+my\s+opinion|from\s+what\s+i\s+know)\b`),
		window: speculationWindow,
		tags:   speculationTags,
	},
	{
		re:     regexp.MustCompile(`(?i)it\s+(?:seems|appears|is\s+said)`),
		window: speculationWindow,
		tags:   speculationTags,
		skip: func(text string, start, _ int) bool {
			return start > 0 && (text[start-1] == '[' || text[start-1] == '(')
		},
	},
}

var inventionRules = []rule{
	{
		re:     regexp.MustCompile(`(?i)estimate`),
		window: inventionWindow,
		tags:   []string{SourceTag},
		skip: func(text string, _, end int) bool {
			rest := text[end:]
			return len(rest) > 1 && (rest[0] == 'd' || rest[0] == 'D') &&
				startsWithSpace(rest[1:]) && bracketBeforePeriod(rest[1:])
		},
		word: true,
	},
	{
		re:     regexp.MustCompile(`(?i)approximate`),
		window: inventionWindow,
		tags:   []string{SourceTag},
		skip: func(text string, _, end int) bool {
			rest := text[end:]
			return len(rest) > 2 && strings.EqualFold(rest[:2], "ly") &&
				startsWithSpace(rest[2:]) && bracketBeforePeriod(rest[2:])
		},
		word: true,
	},
	{
		re:     regexp.MustCompile(`(?i)roughly`),
		window: inventionWindow,
		tags:   []string{SourceTag},
		word:   true,
	},
	{
		re:     regexp.MustCompile(`(?i)about\s+\d+`),
		window: inventionWindow,
		tags:   []string{SourceTag},
		skip: func(text string, _, end int) bool {
			return bracketBeforePeriod(text[end:])
		},
	},
}

// DetectPatterns returns the hedging and invention phrases in text that
// have no source tag nearby. Results are deduplicated and keep the order
// in which the rules found them.
func DetectPatterns(text string) []string {
	var claims []string
	seen := make(map[string]struct{})
	for _, rules := range [][]rule{speculationRules, inventionRules} {
		for _, r := range rules {
			for _, loc := range r.re.FindAllStringIndex(text, -1) {
				start, end := loc[0], loc[1]
				if r.skip != nil && r.skip(text, start, end) {
					continue
				}
				if tagged(text, start, end, r.window, r.tags) {
					continue
				}
				if r.word {
					start, end = widenToWord(text, start, end)
				}
				claim := strings.TrimSpace(text[start:end])
				if _, dup := seen[claim]; dup || claim == "" {
					continue
				}
				seen[claim] = struct{}{}
				claims = append(claims, claim)
			}
		}
	}
	return claims
}

// tagged reports whether any tag occurs within window bytes of the match.
func tagged(text string, start, end, window int, tags []string) bool {
	lo := max(0, start-window)
	hi := min(len(text), end+window)
	around := text[lo:hi]
	for _, tag := range tags {
		if strings.Contains(around, tag) {
			return true
		}
	}
	return false
}

// bracketBeforePeriod reports whether '[' occurs in s before any '.'.
func bracketBeforePeriod(s string) bool {
	bracket := strings.IndexByte(s, '[')
	if bracket < 0 {
		return false
	}
	period := strings.IndexByte(s, '.')
	return period < 0 || bracket < period
}

func startsWithSpace(s string) bool {
	r, size := utf8.DecodeRuneInString(s)
	return size > 0 && unicode.IsSpace(r)
}

func widenToWord(text string, start, end int) (int, int) {
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !unicode.IsLetter(r) {
			break
		}
		start -= size
	}
	for end < len(text) {
		r, size := utf8.DecodeRuneInString(text[end:])
		if !unicode.IsLetter(r) {
			break
		}
		end += size
	}
	return start, end
}
