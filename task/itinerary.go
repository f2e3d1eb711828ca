package task

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/sweetpotato0/wanderai/llm"
	"github.com/sweetpotato0/wanderai/prompt"
	"github.com/sweetpotato0/wanderai/rag/retrieval"
)

// DefaultItineraryDays is used when the intent carries no duration.
const DefaultItineraryDays = 2

// TimeSlot is one scheduled activity.
type TimeSlot struct {
	Time     string `json:"time"`
	Activity string `json:"activity"`
	Location string `json:"location"`
	Duration string `json:"duration"`
	Cost     string `json:"cost,omitempty"`
	Tips     string `json:"tips,omitempty"`
}

// DayPlan is the plan for a single day.
type DayPlan struct {
	Day       int               `json:"day"`
	Title     string            `json:"title"`
	Schedule  []TimeSlot        `json:"schedule"`
	Meals     map[string]string `json:"meals"`
	TotalCost string            `json:"total_cost"`
	Notes     string            `json:"notes,omitempty"`
}

// Itinerary is a day-by-day trip plan.
type Itinerary struct {
	Destination        string            `json:"destination"`
	Duration           int               `json:"duration"`
	Days               []DayPlan         `json:"days"`
	TotalEstimatedCost string            `json:"total_estimated_cost"`
	PackingList        []string          `json:"packing_list"`
	ImportantNotes     []string          `json:"important_notes"`
	EmergencyContacts  map[string]string `json:"emergency_contacts"`
}

var itineraryAliases = []alias{
	{"total_estimated_cost", []string{"total_cost", "cost", "budget"}},
	{"days", []string{"itinerary_details", "schedule", "plan", "details"}},
	{"destination", []string{"place", "location"}},
	{"duration", []string{"days_count", "length"}},
}

var dayKeyPattern = regexp.MustCompile(`(?i)^day\s*(\d+)`)

// RepairItinerary restructures an itinerary payload. A bare list becomes
// the days, alias keys are mapped, root-level "Day N" objects are collected
// into days and a numeric "days" value is read as the duration. Missing
// destination and duration are filled from the given defaults.
func RepairItinerary(raw any, destination string, duration int) (map[string]any, error) {
	var obj map[string]any
	switch t := raw.(type) {
	case []any:
		obj = map[string]any{"days": t}
	case map[string]any:
		obj = t
	default:
		return nil, fmt.Errorf("itinerary: unexpected payload %T", raw)
	}

	if _, ok := obj["days"].(float64); ok && isEmpty(obj["duration"]) {
		obj["duration"] = obj["days"]
		delete(obj, "days")
	}
	applyAliases(obj, itineraryAliases)

	if isEmpty(obj["days"]) {
		type numbered struct {
			n   int
			day map[string]any
		}
		var found []numbered
		for k, v := range obj {
			m := dayKeyPattern.FindStringSubmatch(k)
			day, ok := v.(map[string]any)
			if m == nil || !ok {
				continue
			}
			n, _ := strconv.Atoi(m[1])
			found = append(found, numbered{n, day})
		}
		if len(found) > 0 {
			sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
			days := make([]any, len(found))
			for i, f := range found {
				if isEmpty(f.day["day"]) {
					f.day["day"] = float64(i + 1)
				}
				days[i] = f.day
			}
			obj["days"] = days
		}
	}
	days, ok := obj["days"].([]any)
	if !ok {
		days = []any{}
		obj["days"] = days
	}
	for i, d := range days {
		days[i] = repairDay(d, i+1)
	}

	if isEmpty(obj["destination"]) && destination != "" {
		obj["destination"] = destination
	}
	if isEmpty(obj["duration"]) {
		obj["duration"] = float64(max(duration, 1))
	}
	return obj, nil
}

func repairDay(v any, n int) any {
	day, ok := v.(map[string]any)
	if !ok {
		return map[string]any{"day": float64(n), "title": asString(v), "schedule": []any{}}
	}
	switch sched := day["schedule"].(type) {
	case map[string]any:
		times := make([]string, 0, len(sched))
		for t := range sched {
			times = append(times, t)
		}
		sort.Strings(times)
		slots := make([]any, 0, len(sched))
		for _, t := range times {
			slots = append(slots, map[string]any{"time": t, "activity": asString(sched[t])})
		}
		day["schedule"] = slots
	case []any:
		for i, slot := range sched {
			if _, ok := slot.(map[string]any); !ok {
				sched[i] = map[string]any{"activity": asString(slot)}
			}
		}
	default:
		day["schedule"] = []any{}
	}
	return day
}

// DecodeItinerary turns a repaired payload into an Itinerary, coercing
// field by field when the strict schema does not match.
func DecodeItinerary(obj map[string]any) (Itinerary, bool) {
	if ItinerarySchema.Validate(obj) == nil {
		if it, err := decodeInto[Itinerary](obj); err == nil {
			return it.withDefaults(), true
		}
	}
	it := Itinerary{
		Destination:        asString(obj["destination"]),
		TotalEstimatedCost: asString(obj["total_estimated_cost"]),
		PackingList:        asStrings(obj["packing_list"]),
		ImportantNotes:     asStrings(obj["important_notes"]),
		EmergencyContacts:  asStringMap(obj["emergency_contacts"], "Contact"),
	}
	it.Duration, _ = asCount(obj["duration"])
	days, _ := obj["days"].([]any)
	for i, d := range days {
		it.Days = append(it.Days, coerceDay(d, i+1))
	}
	return it.withDefaults(), false
}

func coerceDay(v any, n int) DayPlan {
	obj, _ := v.(map[string]any)
	day := DayPlan{
		Title:     asString(obj["title"]),
		Meals:     asStringMap(obj["meals"], "Meal"),
		TotalCost: asString(obj["total_cost"]),
		Notes:     asString(obj["notes"]),
	}
	if d, ok := asCount(obj["day"]); ok && d > 0 {
		day.Day = d
	} else {
		day.Day = n
	}
	slots, _ := obj["schedule"].([]any)
	for _, s := range slots {
		slot, _ := s.(map[string]any)
		day.Schedule = append(day.Schedule, TimeSlot{
			Time:     asString(slot["time"]),
			Activity: asString(slot["activity"]),
			Location: asString(slot["location"]),
			Duration: asString(slot["duration"]),
			Cost:     asString(slot["cost"]),
			Tips:     asString(slot["tips"]),
		})
	}
	return day
}

func (it Itinerary) withDefaults() Itinerary {
	if it.Destination == "" {
		it.Destination = "Destination"
	}
	if it.Duration < 1 {
		it.Duration = 1
	}
	if it.TotalEstimatedCost == "" {
		it.TotalEstimatedCost = "TBD"
	}
	if it.Days == nil {
		it.Days = []DayPlan{}
	}
	for i := range it.Days {
		it.Days[i] = it.Days[i].withDefaults(i + 1)
	}
	if it.PackingList == nil {
		it.PackingList = []string{}
	}
	if it.ImportantNotes == nil {
		it.ImportantNotes = []string{}
	}
	if it.EmergencyContacts == nil {
		it.EmergencyContacts = map[string]string{}
	}
	return it
}

func (d DayPlan) withDefaults(n int) DayPlan {
	if d.Day < 1 {
		d.Day = n
	}
	if d.Title == "" {
		d.Title = "Day Plan"
	}
	if d.TotalCost == "" {
		d.TotalCost = "TBD"
	}
	if d.Meals == nil {
		d.Meals = map[string]string{}
	}
	if d.Schedule == nil {
		d.Schedule = []TimeSlot{}
	}
	for i, s := range d.Schedule {
		d.Schedule[i].Time = orDefault(s.Time, "Anytime")
		d.Schedule[i].Activity = orDefault(s.Activity, "Sightseeing")
		d.Schedule[i].Location = orDefault(s.Location, "Local Area")
		d.Schedule[i].Duration = orDefault(s.Duration, "Flexible")
	}
	return d
}

// ItineraryBuilder creates day-by-day plans for a destination.
type ItineraryBuilder struct {
	gen       llm.Generator
	retriever retrieval.Retriever
	options
}

// NewItineraryBuilder creates an ItineraryBuilder.
func NewItineraryBuilder(gen llm.Generator, r retrieval.Retriever, opts ...Option) *ItineraryBuilder {
	return &ItineraryBuilder{gen: gen, retriever: r, options: newOptions("itinerary", ItineraryTemperature, opts)}
}

// Build plans a trip to destination for intent.
func (b *ItineraryBuilder) Build(ctx context.Context, intent TravelIntent, destination string) (Itinerary, error) {
	if destination == "" {
		return Itinerary{}, fmt.Errorf("build itinerary: no destination")
	}
	kbContext := retrieval.NoDocumentsFound
	if b.retriever != nil {
		text, err := b.retriever.Search(ctx, destination+" details", 2)
		if err != nil {
			b.logger.Warn("itinerary context search failed", "destination", destination, "error", err)
		} else {
			kbContext = text
		}
	}

	days := intent.DurationDays
	if days <= 0 {
		days = DefaultItineraryDays
	}
	budget := "Flexible"
	if intent.Budget > 0 {
		budget = strconv.Itoa(intent.Budget)
	}
	userPrompt, err := b.prompts.Render(prompt.ItineraryUser, map[string]any{
		"Days":        days,
		"Destination": destination,
		"Budget":      budget,
		"GroupSize":   intent.GroupSize,
		"Interests":   joinOr(intent.Interests, "General sightseeing"),
		"Context":     kbContext,
	})
	if err != nil {
		return Itinerary{}, err
	}
	raw, err := llm.GenerateJSON(ctx, b.gen, llm.Request{
		System:      b.prompts.MustRender(prompt.ItinerarySystem, nil),
		Prompt:      userPrompt,
		Temperature: b.temperature,
	}).Unwrap()
	if err != nil {
		return Itinerary{}, fmt.Errorf("build itinerary: %w", err)
	}

	fallbackDuration := intent.DurationDays
	if fallbackDuration <= 0 {
		fallbackDuration = 1
	}
	obj, err := RepairItinerary(raw, destination, fallbackDuration)
	if err != nil {
		return Itinerary{}, fmt.Errorf("build itinerary: %w", err)
	}
	it, strict := DecodeItinerary(obj)
	if !strict {
		b.logger.Warn("itinerary failed strict validation, coerced", "destination", destination)
	}
	return it, nil
}
