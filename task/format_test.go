package task

import (
	"strings"
	"testing"
)

func TestFormatSuggestions(t *testing.T) {
	s := Suggestions{
		Destinations: []Destination{
			{Name: "Alibaug", MatchScore: 85, Highlights: []string{"beach", "fort", "seafood"}},
			{Name: "Kashid", MatchScore: 70},
		},
		Tips: []string{"Start early", "Carry cash"},
	}
	want := "Based on your preferences, here are my suggestions:\n\n" +
		"1. **Alibaug** (Match: 85%)\n" +
		"   Highlights: beach, fort\n" +
		"2. **Kashid** (Match: 70%)\n" +
		"\nTravel Tips: Start early"
	if got := FormatSuggestions(s); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
	if got := FormatSuggestions(Suggestions{}); got != "No suitable destinations found." {
		t.Fatalf("empty: %q", got)
	}
}

func TestFormatItinerary(t *testing.T) {
	it := Itinerary{
		Destination: "Alibaug",
		Duration:    2,
		Days: []DayPlan{{
			Day:      1,
			Schedule: []TimeSlot{{Activity: "Beach"}, {Activity: "Fort"}, {Activity: "Cafe"}},
		}},
	}
	want := "**Alibaug Trip Plan** (2 days)\n\n**Day 1:**\n  - Beach\n  - Fort"
	if got := FormatItinerary(it); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBeautifyItinerary(t *testing.T) {
	it := Itinerary{
		Destination:        "Alibaug",
		Duration:           2,
		TotalEstimatedCost: "₹4000",
		ImportantNotes:     []string{"Check tide timings"},
		Days: []DayPlan{{
			Day:      1,
			Title:    "Arrival",
			Schedule: []TimeSlot{{Time: "09:00 AM", Activity: "Ferry from Gateway"}},
			Meals:    map[string]string{"dinner": "Seafood thali", "lunch": "Local cafe"},
			Notes:    "Book the ferry early",
		}},
		PackingList:       []string{"sunscreen"},
		EmergencyContacts: map[string]string{"Police": "100", "Ambulance": "108"},
	}
	want := strings.Join([]string{
		"🧭 *Relaxing 2-day trip to Alibaug*",
		"💰 Estimated cost: ₹4000",
		"",
		"⚠️ Important:",
		"- Check tide timings",
		"",
		"📅 Day-by-day plan:",
		"",
		"**Arrival**",
		"- 09:00 AM: Ferry from Gateway",
		"Meals: lunch: Local cafe, dinner: Seafood thali",
		"Notes: Book the ferry early",
		"",
		"🎒 Packing list:",
		"- sunscreen",
		"",
		"📞 Emergency contacts:",
		"- Ambulance: 108",
		"- Police: 100",
		"",
		"If you want this exported as JSON or PDF, tell me and I can prepare it.",
	}, "\n")
	if got := BeautifyItinerary(it); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestBeautifyMinimalItinerary(t *testing.T) {
	got := BeautifyItinerary(Itinerary{})
	if !strings.HasPrefix(got, "🧭 *Relaxing ?-day trip to Your Destination*\n💰 Estimated cost: TBD") {
		t.Fatalf("got %q", got)
	}
	if strings.Contains(got, "Day-by-day") {
		t.Fatal("empty itinerary should not render a day section")
	}
}
