package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweetpotato0/wanderai/llm"
	"github.com/sweetpotato0/wanderai/prompt"
)

// TravelIntent is the structured form of a travel request.
type TravelIntent struct {
	// Budget is per person in INR; zero means unspecified.
	Budget    int `json:"budget,omitempty"`
	GroupSize int `json:"group_size"`
	// DurationDays is zero when unspecified.
	DurationDays        int      `json:"duration_days,omitempty"`
	StartDate           string   `json:"start_date,omitempty"`
	Destination         string   `json:"destination,omitempty"`
	Interests           []string `json:"interests"`
	AvoidList           []string `json:"avoid_list"`
	CrowdPreference     string   `json:"crowd_preference,omitempty"`
	AccommodationNeeded bool     `json:"accommodation_needed"`
	TransportMode       string   `json:"transport_mode,omitempty"`
	SpecialRequirements []string `json:"special_requirements"`
	OriginalQuery       string   `json:"original_query"`
}

var intentAliases = []alias{
	{"budget", []string{"cost", "price", "max_budget", "estimated_budget", "total_budget"}},
	{"duration_days", []string{"duration", "days", "trip_length", "nights"}},
	{"group_size", []string{"people", "travelers", "count", "members", "pax"}},
	{"destination", []string{"place", "location", "destination_name"}},
}

// RepairIntent maps alias keys onto the canonical field names and splits
// comma separated interests. raw is modified in place.
func RepairIntent(raw map[string]any) map[string]any {
	applyAliases(raw, intentAliases)
	if s, ok := raw["interests"].(string); ok {
		raw["interests"] = toAny(asStrings(s))
	}
	if isEmpty(raw["group_size"]) {
		raw["group_size"] = float64(1)
	}
	return raw
}

// DecodeIntent turns a repaired payload into a TravelIntent. A payload that
// satisfies IntentSchema is decoded as is; anything else is coerced field
// by field.
func DecodeIntent(raw map[string]any) (TravelIntent, bool) {
	if IntentSchema.Validate(raw) == nil {
		if intent, err := decodeInto[TravelIntent](raw); err == nil {
			return intent.withDefaults(), true
		}
	}
	intent := TravelIntent{
		StartDate:           asString(raw["start_date"]),
		Destination:         asString(raw["destination"]),
		Interests:           asStrings(raw["interests"]),
		AvoidList:           asStrings(raw["avoid_list"]),
		CrowdPreference:     strings.ToLower(asString(raw["crowd_preference"])),
		AccommodationNeeded: asBool(raw["accommodation_needed"]),
		TransportMode:       asString(raw["transport_mode"]),
		SpecialRequirements: asStrings(raw["special_requirements"]),
		OriginalQuery:       asString(raw["original_query"]),
	}
	intent.Budget, _ = ParseAmount(raw["budget"])
	intent.GroupSize, _ = asCount(raw["group_size"])
	intent.DurationDays, _ = asCount(raw["duration_days"])
	return intent.withDefaults(), false
}

func (t TravelIntent) withDefaults() TravelIntent {
	if t.GroupSize < 1 {
		t.GroupSize = 1
	}
	if t.Interests == nil {
		t.Interests = []string{}
	}
	if t.AvoidList == nil {
		t.AvoidList = []string{}
	}
	if t.SpecialRequirements == nil {
		t.SpecialRequirements = []string{}
	}
	return t
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Extractor parses travel queries into TravelIntent records.
type Extractor struct {
	gen llm.Generator
	options
}

// NewExtractor creates an Extractor.
func NewExtractor(gen llm.Generator, opts ...Option) *Extractor {
	return &Extractor{gen: gen, options: newOptions("extractor", ExtractorTemperature, opts)}
}

// Extract asks the model for the structured intent behind query.
func (e *Extractor) Extract(ctx context.Context, query string) (TravelIntent, error) {
	userPrompt, err := e.prompts.Render(prompt.ExtractorUser, map[string]any{"Query": query})
	if err != nil {
		return TravelIntent{}, err
	}
	raw, err := llm.GenerateObject(ctx, e.gen, llm.Request{
		System:      e.prompts.MustRender(prompt.ExtractorSystem, nil),
		Prompt:      userPrompt,
		Temperature: e.temperature,
	}).Unwrap()
	if err != nil {
		return TravelIntent{}, fmt.Errorf("extract intent: %w", err)
	}

	raw = RepairIntent(raw)
	raw["original_query"] = query
	intent, strict := DecodeIntent(raw)
	if !strict {
		e.logger.Debug("intent coerced after schema mismatch", "query", query)
	}
	return intent, nil
}
