package task

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sweetpotato0/wanderai/llm"
	"github.com/sweetpotato0/wanderai/prompt"
	"github.com/sweetpotato0/wanderai/rag/retrieval"
)

// DefaultSuggestions is the number of destinations requested by the
// orchestrator.
const DefaultSuggestions = 3

// Destination is one recommended place.
type Destination struct {
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	MatchScore    int      `json:"match_score"`
	Reasoning     string   `json:"reasoning"`
	EstimatedCost string   `json:"estimated_cost"`
	Distance      string   `json:"distance"`
	Highlights    []string `json:"highlights"`
	BestFor       []string `json:"best_for"`
}

func (d Destination) withDefaults() Destination {
	if d.Name == "" {
		d.Name = "Unknown Destination"
	}
	if d.Category == "" {
		d.Category = "General"
	}
	if d.MatchScore <= 0 {
		d.MatchScore = 70
	}
	if d.Reasoning == "" {
		d.Reasoning = "Recommended based on your interests"
	}
	if d.EstimatedCost == "" {
		d.EstimatedCost = "N/A"
	}
	if d.Distance == "" {
		d.Distance = "N/A"
	}
	if d.Highlights == nil {
		d.Highlights = []string{}
	}
	if d.BestFor == nil {
		d.BestFor = []string{}
	}
	return d
}

// Suggestions is the suggester's full answer.
type Suggestions struct {
	Destinations []Destination `json:"destinations"`
	Summary      string        `json:"summary"`
	Tips         []string      `json:"tips"`
}

// Names returns the destination names in rank order.
func (s Suggestions) Names() []string {
	names := make([]string, 0, len(s.Destinations))
	for _, d := range s.Destinations {
		names = append(names, d.Name)
	}
	return names
}

var suggestionAliases = []alias{
	{"destinations", []string{"recommendations", "suggestions", "places", "top_picks", "results"}},
	{"summary", []string{"overview", "intro", "conclusion"}},
	{"tips", []string{"travel_tips", "general_tips", "advice", "guidelines"}},
}

// RepairSuggestions normalises a suggester payload: a bare list becomes the
// destinations, alias keys are mapped and a name-keyed destinations object
// becomes a list.
func RepairSuggestions(raw any) (map[string]any, error) {
	var obj map[string]any
	switch t := raw.(type) {
	case []any:
		obj = map[string]any{"destinations": t}
	case map[string]any:
		obj = t
	default:
		return nil, fmt.Errorf("suggestions: unexpected payload %T", raw)
	}
	applyAliases(obj, suggestionAliases)

	switch dests := obj["destinations"].(type) {
	case nil:
		obj["destinations"] = []any{}
	case map[string]any:
		names := make([]string, 0, len(dests))
		for name := range dests {
			names = append(names, name)
		}
		sort.Strings(names)
		list := make([]any, 0, len(dests))
		for _, name := range names {
			if inner, ok := dests[name].(map[string]any); ok {
				if isEmpty(inner["name"]) {
					inner["name"] = name
				}
				list = append(list, repairDestination(inner))
				continue
			}
			list = append(list, map[string]any{"name": name, "reasoning": asString(dests[name])})
		}
		obj["destinations"] = list
	case []any:
		for i, item := range dests {
			dests[i] = repairDestination(item)
		}
	default:
		return nil, fmt.Errorf("suggestions: destinations is %T", dests)
	}
	return obj, nil
}

func repairDestination(item any) any {
	obj, ok := item.(map[string]any)
	if !ok {
		return map[string]any{"reasoning": asString(item)}
	}
	for _, key := range []string{"highlights", "best_for"} {
		if s, ok := obj[key].(string); ok {
			obj[key] = toAny(asStrings(s))
		}
	}
	for _, key := range []string{"estimated_cost", "distance"} {
		if m, ok := obj[key].(map[string]any); ok {
			obj[key] = asString(m)
		}
	}
	return obj
}

// DecodeSuggestions turns a repaired payload into Suggestions, coercing
// field by field when the strict schema does not match. Fractional match
// scores are read as percentages.
func DecodeSuggestions(obj map[string]any) (Suggestions, bool) {
	if SuggestionsSchema.Validate(obj) == nil {
		if s, err := decodeInto[Suggestions](obj); err == nil {
			return s.withDefaults(), true
		}
	}
	s := Suggestions{
		Summary: asString(obj["summary"]),
		Tips:    asStrings(obj["tips"]),
	}
	list, _ := obj["destinations"].([]any)
	for _, item := range list {
		d, _ := item.(map[string]any)
		dest := Destination{
			Name:          asString(d["name"]),
			Category:      asString(d["category"]),
			Reasoning:     asString(d["reasoning"]),
			EstimatedCost: asString(d["estimated_cost"]),
			Distance:      asString(d["distance"]),
			Highlights:    asStrings(d["highlights"]),
			BestFor:       asStrings(d["best_for"]),
		}
		dest.MatchScore = matchScore(d["match_score"])
		s.Destinations = append(s.Destinations, dest)
	}
	return s.withDefaults(), false
}

func matchScore(v any) int {
	if f, ok := v.(float64); ok && f > 0 && f <= 1 {
		return int(f*100 + 0.5)
	}
	n, ok := asCount(v)
	if !ok {
		return 0
	}
	return min(n, 100)
}

func (s Suggestions) withDefaults() Suggestions {
	for i := range s.Destinations {
		s.Destinations[i] = s.Destinations[i].withDefaults()
	}
	if s.Destinations == nil {
		s.Destinations = []Destination{}
	}
	if s.Summary == "" {
		s.Summary = "Here are some great options for your trip."
	}
	if s.Tips == nil {
		s.Tips = []string{}
	}
	return s
}

// SearchQuery builds the knowledge base query for an intent.
func SearchQuery(intent TravelIntent) string {
	parts := append([]string(nil), intent.Interests...)
	switch {
	case intent.GroupSize == 1:
		parts = append(parts, "solo peaceful")
	case intent.GroupSize >= 4:
		parts = append(parts, "group family")
	}
	if intent.Budget > 0 && intent.Budget < 1000 {
		parts = append(parts, "budget cheap")
	}
	if intent.CrowdPreference == "low" {
		parts = append(parts, "peaceful offbeat")
	}
	if len(parts) == 0 {
		return "weekend trip"
	}
	return strings.Join(parts, " ")
}

// Suggester recommends destinations for a travel intent.
type Suggester struct {
	gen       llm.Generator
	retriever retrieval.Retriever
	options
}

// NewSuggester creates a Suggester.
func NewSuggester(gen llm.Generator, r retrieval.Retriever, opts ...Option) *Suggester {
	return &Suggester{gen: gen, retriever: r, options: newOptions("suggester", SuggestTemperature, opts)}
}

// Suggest returns up to topK destinations for intent. Twice as many
// documents are retrieved to give the model room to choose.
func (s *Suggester) Suggest(ctx context.Context, intent TravelIntent, topK int) (Suggestions, error) {
	if topK <= 0 {
		topK = DefaultSuggestions
	}
	query := SearchQuery(intent)
	kbContext := retrieval.NoDocumentsFound
	if s.retriever != nil {
		text, err := s.retriever.Search(ctx, query, topK*2)
		if err != nil {
			s.logger.Warn("destination search failed", "query", query, "error", err)
		} else {
			kbContext = text
		}
	}

	userPrompt, err := s.prompts.Render(prompt.SuggesterUser, suggestPromptData(intent, kbContext))
	if err != nil {
		return Suggestions{}, err
	}
	raw, err := llm.GenerateJSON(ctx, s.gen, llm.Request{
		System:      s.prompts.MustRender(prompt.SuggesterSystem, nil),
		Prompt:      userPrompt,
		Temperature: s.temperature,
	}).Unwrap()
	if err != nil {
		return Suggestions{}, fmt.Errorf("suggest destinations: %w", err)
	}

	obj, err := RepairSuggestions(raw)
	if err != nil {
		return Suggestions{}, fmt.Errorf("suggest destinations: %w", err)
	}
	suggestions, strict := DecodeSuggestions(obj)
	if !strict {
		s.logger.Debug("suggestions coerced after schema mismatch")
	}
	if len(suggestions.Destinations) > topK {
		suggestions.Destinations = suggestions.Destinations[:topK]
	}
	return suggestions, nil
}

func suggestPromptData(intent TravelIntent, kbContext string) map[string]any {
	budget := "Flexible"
	if intent.Budget > 0 {
		budget = fmt.Sprint(intent.Budget)
	}
	group := fmt.Sprintf("%d people", intent.GroupSize)
	if intent.GroupSize == 1 {
		group = "1 person"
	}
	duration := "Flexible"
	if intent.DurationDays > 0 {
		duration = fmt.Sprint(intent.DurationDays)
	}
	accommodation := "Day trip OK"
	if intent.AccommodationNeeded {
		accommodation = "Required"
	}
	return map[string]any{
		"Budget":        fmt.Sprintf("₹%s per person", budget),
		"GroupSize":     group,
		"Duration":      duration + " days",
		"Interests":     joinOr(intent.Interests, "General sightseeing"),
		"Avoid":         joinOr(intent.AvoidList, "Nothing specific"),
		"Crowd":         orDefault(intent.CrowdPreference, "Any"),
		"Accommodation": accommodation,
		"Special":       joinOr(intent.SpecialRequirements, "None"),
		"Query":         intent.OriginalQuery,
		"Context":       kbContext,
	}
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
