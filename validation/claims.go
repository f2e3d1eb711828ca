package validation

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/sweetpotato0/wanderai/rag/retrieval"
)

var (
	numberPattern     = regexp.MustCompile(`\b\d{1,4}\b`)
	properNounPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
)

type span struct{ start, end int }

// sentences splits text at terminal punctuation followed by whitespace and
// at line breaks. Bracketed tags are never split.
func sentences(text string) []span {
	var (
		out   []span
		start int
		depth int
	)
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case c == '[':
			depth++
		case c == ']' && depth > 0:
			depth--
		case depth > 0:
		case c == '\n',
			(c == '.' || c == '!' || c == '?') && (i+1 == len(text) || unicode.IsSpace(rune(text[i+1]))):
			out = append(out, span{start, i + 1})
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, span{start, len(text)})
	}
	return out
}

// sourced reports whether the sentence carries a tag or is immediately
// followed by one.
func sourced(text string, s span) bool {
	body := text[s.start:s.end]
	if strings.Contains(body, SourceTag) || strings.Contains(body, FactTag) {
		return true
	}
	next := strings.TrimLeftFunc(text[s.end:], unicode.IsSpace)
	return strings.HasPrefix(next, SourceTag) || strings.HasPrefix(next, FactTag)
}

// Candidates extracts the claims worth checking against the knowledge
// base: standalone numbers, then capitalised word sequences. Sentences
// already attributed to a source are skipped.
func Candidates(text string) []string {
	var unsourced []string
	for _, s := range sentences(text) {
		if !sourced(text, s) {
			unsourced = append(unsourced, text[s.start:s.end])
		}
	}

	var out []string
	seen := make(map[string]struct{})
	add := func(c string) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for _, pattern := range []*regexp.Regexp{numberPattern, properNounPattern} {
		for _, sentence := range unsourced {
			for _, m := range pattern.FindAllString(sentence, -1) {
				add(m)
			}
		}
	}
	return out
}

// VerifyClaims looks every candidate claim in text up in the knowledge
// base and returns those with no supporting document. A lookup error marks
// the candidate unsupported. Only cancellation of ctx is returned as an
// error.
func (v *Validator) VerifyClaims(ctx context.Context, text string) ([]string, error) {
	var unsupported []string
	for _, candidate := range Candidates(text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !v.supported(ctx, candidate) {
			unsupported = append(unsupported, candidate)
		}
	}
	return unsupported, nil
}

func (v *Validator) supported(ctx context.Context, candidate string) bool {
	if v.retriever == nil {
		return false
	}
	res, err := v.retriever.RetrieveWithSources(ctx, candidate, v.topK)
	if err != nil {
		v.logger.Debug("claim lookup failed", "claim", candidate, "error", err)
		return false
	}
	return !res.Empty()
}

// relatedFact returns the fact sharing the most significant words with
// claim, or false when none shares any.
func relatedFact(claim string, facts []retrieval.Fact) (retrieval.Fact, bool) {
	words := retrieval.Tokenize(claim)
	var (
		best      retrieval.Fact
		bestScore int
	)
	for _, fact := range facts {
		score := 0
		for w := range retrieval.Tokenize(fact.Text) {
			if _, ok := words[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = fact, score
		}
	}
	return best, bestScore > 0
}
