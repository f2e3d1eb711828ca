// Package grounding builds the fact-only context block and the system prompt
// that frame every grounded chat generation.
package grounding

import (
	"strings"
	"unicode/utf8"

	"github.com/sweetpotato0/wanderai/prompt"
	"github.com/sweetpotato0/wanderai/rag/retrieval"
)

const (
	// DefaultMaxContextLength bounds the assembled context, in characters.
	DefaultMaxContextLength = 3000
	// DefaultMaxFacts bounds the number of listed facts.
	DefaultMaxFacts = 10
	// DefaultRegion names the area the assistant covers.
	DefaultRegion = "Pune"

	// NoFactsPlaceholder stands in for an empty fact list.
	NoFactsPlaceholder = "- (No relevant information found)"
	// TruncationMarker is appended when the context is cut.
	TruncationMarker = "\n..."
)

var defaultCoverage = []string{"beaches", "treks", "forts"}

// Formatter renders retrieval results into prompt text. It holds no
// per-call state and is safe for concurrent use.
type Formatter struct {
	maxLength int
	maxFacts  int
	region    string
	prompts   *prompt.Manager
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithMaxContextLength overrides the context character budget.
func WithMaxContextLength(n int) Option {
	return func(f *Formatter) {
		if n > 0 {
			f.maxLength = n
		}
	}
}

// WithMaxFacts overrides the number of facts listed.
func WithMaxFacts(n int) Option {
	return func(f *Formatter) {
		if n > 0 {
			f.maxFacts = n
		}
	}
}

// WithRegion sets the region named in the system prompt.
func WithRegion(region string) Option {
	return func(f *Formatter) {
		if region != "" {
			f.region = region
		}
	}
}

// New creates a Formatter.
func New(opts ...Option) *Formatter {
	f := &Formatter{
		maxLength: DefaultMaxContextLength,
		maxFacts:  DefaultMaxFacts,
		region:    DefaultRegion,
		prompts:   prompt.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Context renders the strict knowledge-base context for res. An empty fact
// list yields an explicit placeholder rather than an empty section.
func (f *Formatter) Context(res retrieval.Result, query string) string {
	b := prompt.NewBuilder().Add(f.prompts.MustRender(prompt.GroundingHeader, nil))

	if len(res.Facts) == 0 {
		b.Add(NoFactsPlaceholder)
	} else {
		facts := res.Facts
		if len(facts) > f.maxFacts {
			facts = facts[:f.maxFacts]
		}
		lines := make([]string, 0, len(facts))
		for _, fact := range facts {
			lines = append(lines, "- "+fact.Text)
		}
		b.Add(strings.Join(lines, "\n"))
	}

	if sources := unique(res.Sources); len(sources) > 0 {
		b.Add("\nRELIABLE SOURCES: " + strings.Join(sources, ", "))
	}
	b.Add(f.prompts.MustRender(prompt.GroundingRules, nil))

	return truncate(b.Build("\n"), f.maxLength)
}

// SystemPrompt returns the prohibition prompt. topics, when given, name the
// knowledge-base coverage used in the worked examples.
func (f *Formatter) SystemPrompt(topics []string) string {
	if len(topics) == 0 {
		topics = defaultCoverage
	}
	return f.prompts.MustRender(prompt.GroundingSystem, map[string]string{
		"Region": f.region,
		"Topics": strings.Join(topics, ", ") + " near " + f.region,
	})
}

// IsOutOfDomain reports whether none of topics occurs in query.
func IsOutOfDomain(query string, topics []string) bool {
	q := strings.ToLower(query)
	for _, topic := range topics {
		if topic != "" && strings.Contains(q, strings.ToLower(topic)) {
			return false
		}
	}
	return true
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + TruncationMarker
}

func unique(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
