package retrieval

import (
	"fmt"
	"strings"

	"github.com/sweetpotato0/wanderai/rag/document"
)

// Fact is an atomic statement taken from a knowledge base document.
type Fact struct {
	Text   string `json:"fact"`
	Source string `json:"source"`
}

// Result is the grounding material retrieved for one query.
type Result struct {
	Documents []Scored `json:"documents"`
	Sources   []string `json:"sources"`
	Facts     []Fact   `json:"facts"`
}

// Empty reports whether no grounding is available.
func (r Result) Empty() bool {
	return len(r.Documents) == 0
}

// NewResult assembles sources and facts for ranked documents. Sources keep
// rank order without duplicates.
func NewResult(hits []Scored) Result {
	if len(hits) == 0 {
		return Result{}
	}
	res := Result{Documents: hits}
	seen := make(map[string]struct{})
	for _, hit := range hits {
		src := hit.Document.Source
		if src != "" {
			if _, ok := seen[src]; !ok {
				seen[src] = struct{}{}
				res.Sources = append(res.Sources, src)
			}
		}
		res.Facts = append(res.Facts, ExtractFacts(hit.Document)...)
	}
	return res
}

// ExtractFacts turns the descriptive fields of doc into fact strings.
func ExtractFacts(doc document.Document) []Fact {
	name := doc.DisplayName()
	var facts []Fact
	add := func(text string) {
		text = strings.TrimSpace(text)
		if text != "" {
			facts = append(facts, Fact{Text: text, Source: doc.Source})
		}
	}

	if doc.Description != "" {
		add(prefixed(name, doc.Description, ": "))
	} else if doc.Content != "" {
		add(prefixed(name, doc.Content, ": "))
	}
	if doc.Distance != "" {
		add(fmt.Sprintf("%s distance: %s", name, doc.Distance))
	}
	if doc.Cost != "" {
		add(fmt.Sprintf("%s cost: %s", name, doc.Cost))
	}
	if doc.BestTime != "" {
		add(fmt.Sprintf("%s best time: %s", name, doc.BestTime))
	}
	if doc.Tips != "" {
		add(fmt.Sprintf("%s tips: %s", name, doc.Tips))
	}
	return facts
}

func prefixed(name, text, sep string) string {
	if name == "" {
		return text
	}
	return name + sep + text
}
