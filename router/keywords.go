package router

import "strings"

// Keyword sets for the fast path. Entries match as substrings of the
// lowercased utterance, so multi-word phrases are allowed.
var (
	tripKeywords = []string{
		"suggest", "recommend", "best", "where", "destination", "place",
		"options", "alternatives", "choose", "prefer", "like to go",
		"good place", "fun", "weekend", "getaway", "escape",
		"trek", "hike", "hiking", "trekking", "mountain", "beach", "hill",
	}

	itineraryKeywords = []string{
		"itinerary", "plan", "build", "schedule", "organize", "arrange",
		"day by day", "timeline", "detailed plan", "what to do", "activities",
		"how to spend", "day plan", "activities plan", "full itinerary",
		"trek", "hike", "hiking", "trekking", "organize trip", "plan trip",
	}

	infoKeywords = []string{
		"tell me about", "what about", "information", "describe", "details",
		"what is", "how is", "famous", "known for", "special", "attractions",
		"things to do", "visit", "see", "explore", "history", "culture",
	}

	tipsKeywords = []string{
		"tip", "advice", "suggestion", "pack", "carry", "what to bring",
		"safety", "best time", "cost", "budget", "how much", "save money",
		"accommodation", "transport", "food", "climate", "weather", "clothes",
		"documents", "vaccine", "insurance", "guide", "book",
	}

	travelKeywords = []string{
		"trip", "travel", "tour", "visit", "vacation", "holiday", "weekend",
		"trek", "hike", "beach", "mountain", "fort", "temple", "city",
		"distance", "road", "drive", "place", "destination", "explore",
		"budget", "cost", "rupees", "money", "day", "night", "person", "people",
		"yes", "no", "ok", "fine", "good", "better", "adjust", "change", "update",
	}
)

// intentKeywords lists the scored intents in tie-break priority order: on
// equal counts the earlier entry wins.
var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentItinerary, itineraryKeywords},
	{IntentTrip, tripKeywords},
	{IntentTips, tipsKeywords},
	{IntentInfo, infoKeywords},
}

// matches returns the keywords contained in query, in list order.
func matches(query string, keywords []string) []string {
	var found []string
	for _, kw := range keywords {
		if strings.Contains(query, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// TravelScore counts the general travel keywords present in the utterance.
func TravelScore(utterance string) int {
	return len(matches(normalize(utterance), travelKeywords))
}

func normalize(utterance string) string {
	return strings.ToLower(strings.TrimSpace(utterance))
}
