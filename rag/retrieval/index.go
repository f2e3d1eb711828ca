package retrieval

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sweetpotato0/wanderai/rag/document"
)

// FieldWeights are the per-field multipliers applied to query term overlap.
var FieldWeights = []FieldWeight{
	{"name", 3.0},
	{"title", 3.0},
	{"category", 2.5},
	{"tags", 2.0},
	{"description", 1.0},
	{"content", 1.0},
	{"tips", 1.0},
}

// FieldWeight pairs a searchable field with its weight.
type FieldWeight struct {
	Field  string
	Weight float64
}

var tokenRegex = regexp.MustCompile(`\p{L}[\p{L}\p{M}'’]*|\p{N}+`)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "in": {}, "on": {}, "at": {}, "to": {},
	"and": {}, "or": {}, "is": {}, "are": {}, "was": {}, "for": {}, "with": {},
	"from": {}, "by": {}, "it": {}, "its": {}, "this": {}, "that": {}, "be": {},
	"me": {}, "my": {}, "i": {}, "you": {}, "your": {}, "about": {}, "what": {},
}

// Tokenize lowercases text and returns its unique non-stopword terms.
func Tokenize(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range tokenRegex.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

// Scored is a document with its relevance score.
type Scored struct {
	Document document.Document `json:"document"`
	Score    float64           `json:"score"`
}

// Index scores documents by weighted term overlap per field.
type Index struct {
	docs  []document.Document
	terms []map[string]map[string]struct{} // doc -> field -> terms
}

// NewIndex builds an index over docs, keeping their order for ties.
func NewIndex(docs []document.Document) *Index {
	idx := &Index{
		docs:  docs,
		terms: make([]map[string]map[string]struct{}, len(docs)),
	}
	for i, doc := range docs {
		fields := make(map[string]map[string]struct{}, len(FieldWeights))
		for _, fw := range FieldWeights {
			if v := doc.Field(fw.Field); v != "" {
				fields[fw.Field] = Tokenize(v)
			}
		}
		idx.terms[i] = fields
	}
	return idx
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.docs)
}

// Documents returns the indexed documents.
func (idx *Index) Documents() []document.Document {
	return idx.docs
}

// Search returns up to topK documents with a positive score, best first.
// Filters require exact (case-insensitive) field equality.
func (idx *Index) Search(query string, topK int, filters map[string]string) []Scored {
	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 || topK <= 0 {
		return nil
	}

	var hits []Scored
	for i, doc := range idx.docs {
		if !matchesFilters(doc, filters) {
			continue
		}
		score := 0.0
		for _, fw := range FieldWeights {
			terms := idx.terms[i][fw.Field]
			if len(terms) == 0 {
				continue
			}
			matches := 0
			for term := range queryTerms {
				if _, ok := terms[term]; ok {
					matches++
				}
			}
			score += float64(matches) * fw.Weight
		}
		if score > 0 {
			hits = append(hits, Scored{Document: doc, Score: score})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func matchesFilters(doc document.Document, filters map[string]string) bool {
	for field, want := range filters {
		if !strings.EqualFold(doc.Field(field), want) {
			return false
		}
	}
	return true
}
