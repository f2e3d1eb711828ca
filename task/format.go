package task

import (
	"fmt"
	"sort"
	"strings"
)

// NoSuggestionsText is shown when the suggester found nothing.
const NoSuggestionsText = "I couldn't find suitable destinations matching your preferences."

// FormatSuggestions renders the top three destinations as a short list.
func FormatSuggestions(s Suggestions) string {
	if len(s.Destinations) == 0 {
		return "No suitable destinations found."
	}
	lines := []string{"Based on your preferences, here are my suggestions:\n"}
	for i, d := range s.Destinations[:min(3, len(s.Destinations))] {
		lines = append(lines, fmt.Sprintf("%d. **%s** (Match: %d%%)", i+1, d.Name, d.MatchScore))
		if len(d.Highlights) > 0 {
			lines = append(lines, "   Highlights: "+strings.Join(d.Highlights[:min(2, len(d.Highlights))], ", "))
		}
	}
	if len(s.Tips) > 0 {
		lines = append(lines, "\nTravel Tips: "+s.Tips[0])
	}
	return strings.Join(lines, "\n")
}

// FormatItinerary renders a compact outline of the first three days.
func FormatItinerary(it Itinerary) string {
	lines := []string{fmt.Sprintf("**%s Trip Plan** (%d days)\n", it.Destination, it.Duration)}
	for _, day := range it.Days[:min(3, len(it.Days))] {
		lines = append(lines, fmt.Sprintf("**Day %d:**", day.Day))
		for _, slot := range day.Schedule[:min(2, len(day.Schedule))] {
			lines = append(lines, "  - "+slot.Activity)
		}
	}
	return strings.Join(lines, "\n")
}

// BeautifyItinerary renders the full itinerary for chat display.
func BeautifyItinerary(it Itinerary) string {
	dest := orDefault(it.Destination, "Your Destination")
	duration := "?"
	if it.Duration > 0 {
		duration = fmt.Sprint(it.Duration)
	}

	lines := []string{
		fmt.Sprintf("🧭 *Relaxing %s-day trip to %s*", duration, dest),
		"💰 Estimated cost: " + orDefault(it.TotalEstimatedCost, "TBD"),
	}
	if len(it.ImportantNotes) > 0 {
		lines = append(lines, "\n⚠️ Important:")
		for _, n := range it.ImportantNotes {
			lines = append(lines, "- "+n)
		}
	}
	if len(it.Days) > 0 {
		lines = append(lines, "\n📅 Day-by-day plan:")
		for _, d := range it.Days {
			lines = append(lines, "", formatDay(d))
		}
	}
	if len(it.PackingList) > 0 {
		lines = append(lines, "\n🎒 Packing list:")
		for _, item := range it.PackingList {
			lines = append(lines, "- "+item)
		}
	}
	if len(it.EmergencyContacts) > 0 {
		lines = append(lines, "\n📞 Emergency contacts:")
		for _, k := range sortedKeys(it.EmergencyContacts, nil) {
			lines = append(lines, fmt.Sprintf("- %s: %s", k, it.EmergencyContacts[k]))
		}
	}
	lines = append(lines, "\nIf you want this exported as JSON or PDF, tell me and I can prepare it.")
	return strings.Join(lines, "\n")
}

var mealOrder = []string{"breakfast", "lunch", "snacks", "dinner"}

func formatDay(d DayPlan) string {
	title := d.Title
	if title == "" {
		title = fmt.Sprintf("Day %d", d.Day)
	}
	parts := []string{"**" + title + "**"}
	for _, slot := range d.Schedule {
		parts = append(parts, fmt.Sprintf("- %s: %s", orDefault(slot.Time, "Anytime"), slot.Activity))
	}
	if len(d.Meals) > 0 {
		meals := make([]string, 0, len(d.Meals))
		for _, k := range sortedKeys(d.Meals, mealOrder) {
			meals = append(meals, fmt.Sprintf("%s: %s", k, d.Meals[k]))
		}
		parts = append(parts, "Meals: "+strings.Join(meals, ", "))
	}
	if d.Notes != "" {
		parts = append(parts, "Notes: "+d.Notes)
	}
	return strings.Join(parts, "\n")
}

// sortedKeys orders keys listed in first (case-insensitively) ahead of the
// rest, which sort alphabetically.
func sortedKeys(m map[string]string, first []string) []string {
	rank := func(k string) int {
		for i, f := range first {
			if strings.EqualFold(k, f) {
				return i
			}
		}
		return len(first)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := rank(keys[i]), rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}
