// Package convo holds the conversational heuristics applied before any
// language model is consulted: frustration and gibberish detection, query
// typing, clarification checks and conversation state resets.
//
// Everything here is a pure function over fixed word sets.
package convo

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// State is the stage a conversation has reached in the planning flow.
type State string

const (
	StateIdle         State = "idle"
	StateSuggestion   State = "suggestion"
	StateConfirmation State = "confirmation"
	StateItinerary    State = "itinerary"
)

// Replies used when a message is answered without a model call.
const (
	FrustrationReply = "I'm sorry this hasn't been helpful so far. Let's start fresh: " +
		"tell me the kind of trip you have in mind and roughly how much you want to spend, " +
		"and I'll take it from there."
	GibberishReply = "I didn't quite catch that. Could you rephrase? For example: " +
		"\"Suggest a weekend trek near Pune\" or \"Plan a 2-day trip to Lonavala\"."
)

// Query types, in the order ClassifyQueryType reports them.
const (
	TypeHiking    = "hiking"
	TypeRomantic  = "romantic"
	TypeBeach     = "beach"
	TypeCafe      = "cafe"
	TypeFamily    = "family"
	TypeHeritage  = "heritage"
	TypeAdventure = "adventure"
	TypeBudget    = "budget"
	TypeLuxury    = "luxury"
	TypeSpiritual = "spiritual"
	TypeNightlife = "nightlife"
)

var queryTypes = []struct {
	name     string
	keywords []string
}{
	{TypeHiking, []string{"hike", "hiking", "trek", "trekking", "trail", "climb", "climbing", "mountain", "peak", "summit"}},
	{TypeRomantic, []string{"romantic", "romance", "girlfriend", "boyfriend", "partner", "couple", "honeymoon", "anniversary", "wife", "husband", "date night"}},
	{TypeBeach, []string{"beach", "sea", "seaside", "coast", "coastal", "shore"}},
	{TypeCafe, []string{"cafe", "café", "coffee", "brunch", "restaurant", "eatery", "bakery"}},
	{TypeFamily, []string{"family", "kid", "kids", "child", "children", "parents"}},
	{TypeHeritage, []string{"heritage", "historical", "historic", "history", "fort", "museum", "monument", "cave", "palace"}},
	{TypeAdventure, []string{"adventure", "paragliding", "rafting", "camping", "kayaking", "rappelling", "thrill", "bungee"}},
	{TypeBudget, []string{"budget", "cheap", "affordable", "economical", "low cost", "pocket friendly"}},
	{TypeLuxury, []string{"luxury", "luxurious", "premium", "lavish", "five star", "5 star"}},
	{TypeSpiritual, []string{"spiritual", "pilgrimage", "meditation", "ashram", "temple", "shrine", "jyotirlinga"}},
	{TypeNightlife, []string{"nightlife", "party", "pub", "club", "clubbing", "bar", "night out"}},
}

var (
	frustrationMarkers = []string{
		"the fuck", "wtf", "fuck", "fucking", "shit", "bullshit", "damn", "ugh",
		"useless", "stupid", "idiot", "pathetic", "annoying", "fed up",
		"what the hell", "not helpful", "not helping", "waste of time", "you suck",
	}

	// tripMarkers make a request about travelling somewhere rather than a
	// local outing.
	tripMarkers = []string{
		"trip", "getaway", "travel", "vacation", "holiday", "itinerary", "weekend",
		"destination", "tour", "excursion", "outing", "days", "nights", "road trip",
	}

	// tripTypes are query types that describe a trip on their own.
	tripTypes = []string{TypeHiking, TypeRomantic, TypeBeach, TypeFamily, TypeHeritage, TypeAdventure, TypeSpiritual}

	// localTypes are query types that usually mean somewhere to go in town.
	localTypes = []string{TypeCafe, TypeNightlife}

	switchMarkers = []string{
		"instead", "now plan", "new trip", "another trip", "different trip",
		"something else", "something different", "start over", "forget that",
		"change of plan", "change of plans",
	}

	planningMarkers = []string{
		"plan", "suggest", "recommend", "find", "organize", "organise",
		"i want", "i wanna", "looking for", "take me", "where can",
	}

	continuationMarkers = []string{"next", "another", "more", "other", "others"}

	// shortWords are common short replies and travel words that are never
	// gibberish even when they trip the vowel or length checks.
	shortWords = map[string]bool{
		"hi": true, "hey": true, "hello": true, "ok": true, "okay": true, "yes": true, "no": true,
		"sure": true, "thanks": true, "go": true, "trip": true, "trek": true, "tour": true,
		"goa": true, "pune": true, "fort": true, "hill": true, "hike": true, "camp": true,
		"stay": true, "hotel": true, "food": true, "cafe": true, "bus": true, "train": true,
		"car": true, "plan": true, "beach": true,
	}

	keyboardRows = []string{"qwertyuiop", "asdfghjkl", "zxcvbnm"}
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// words is a message split into lowercase words.
type words struct {
	list []string
	set  map[string]bool
	norm string
}

func split(text string) words {
	list := wordPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]bool, len(list))
	for _, w := range list {
		set[w] = true
	}
	return words{list: list, set: set, norm: " " + strings.Join(list, " ") + " "}
}

// has reports whether keyword occurs as a word or, for multi-word
// keywords, as a phrase. Plural forms of single words also match.
func (w words) has(keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(w.norm, " "+keyword+" ")
	}
	return w.set[keyword] || w.set[keyword+"s"] || w.set[keyword+"es"]
}

func (w words) hasAny(keywords []string) bool {
	return slices.ContainsFunc(keywords, w.has)
}

func containsAny(types, of []string) bool {
	return slices.ContainsFunc(types, func(t string) bool { return slices.Contains(of, t) })
}

// IsFrustration reports whether the message expresses frustration or
// exasperation with the assistant.
func IsFrustration(text string) bool {
	return split(text).hasAny(frustrationMarkers)
}

// IsGibberish reports whether the message looks like random input: keyboard
// mash, a single repeated character, bare punctuation or long words with no
// vowels.
func IsGibberish(text string) bool {
	compact := strings.Join(strings.Fields(strings.ToLower(text)), "")
	if compact == "" {
		return false
	}
	w := split(text)
	if len(w.list) == 0 {
		return utf8.RuneCountInString(compact) >= 3
	}
	for _, word := range w.list {
		if shortWords[word] {
			return false
		}
	}
	if len(ClassifyQueryType(text)) > 0 {
		return false
	}
	if first, _ := utf8.DecodeRuneInString(compact); utf8.RuneCountInString(compact) >= 4 &&
		strings.Trim(compact, string(first)) == "" {
		return true
	}
	for _, word := range w.list {
		if !isLatin(word) {
			continue
		}
		if keyboardMash(word) {
			return true
		}
		if len(word) >= 5 && !strings.ContainsAny(word, "aeiouy") {
			return true
		}
	}
	return false
}

func isLatin(word string) bool {
	for _, r := range word {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func keyboardMash(word string) bool {
	for _, row := range keyboardRows {
		for i := 0; i+5 <= len(row); i++ {
			if strings.Contains(word, row[i:i+5]) {
				return true
			}
		}
	}
	return false
}

// ClassifyQueryType returns the query types mentioned in text, in a fixed
// order.
func ClassifyQueryType(text string) []string {
	w := split(text)
	var types []string
	for _, qt := range queryTypes {
		if w.hasAny(qt.keywords) {
			types = append(types, qt.name)
		}
	}
	return types
}

// NeedsClarification reports whether the request is too ambiguous to plan,
// together with the question to ask. Conflicting preferences and local
// outings with no trip in sight both need clarifying.
func NeedsClarification(text string, types []string) (bool, string) {
	if slices.Contains(types, TypeBudget) && slices.Contains(types, TypeLuxury) {
		return true, "It sounds like you'd like both a budget trip and a luxury experience. " +
			"Which matters more to you this time?"
	}
	for _, t := range types {
		if !slices.Contains(localTypes, t) || IsTravelTrip(text, types) {
			continue
		}
		label := "café"
		if t == TypeNightlife {
			label = "nightlife"
		}
		return true, "Are you looking for " + label + " spots in the city, or would you like me " +
			"to plan a trip around them? Let me know the place or the kind of getaway you have in mind."
	}
	return false, ""
}

// IsTravelTrip reports whether the request is about a trip. A trip word
// settles it; otherwise a trip-shaped type counts unless the request is
// also about a local outing.
func IsTravelTrip(text string, types []string) bool {
	if split(text).hasAny(tripMarkers) {
		return true
	}
	return containsAny(types, tripTypes) && !containsAny(types, localTypes)
}

// IsQueryIndependent reports whether text starts a new line of inquiry
// rather than following up on previousInterests.
func IsQueryIndependent(text string, previousInterests []string) bool {
	if len(previousInterests) == 0 {
		return true
	}
	if split(text).hasAny(switchMarkers) {
		return true
	}
	current := ClassifyQueryType(text)
	if len(current) == 0 {
		return false
	}
	previous := ClassifyQueryType(strings.Join(previousInterests, " "))
	if len(previous) == 0 {
		for _, p := range previousInterests {
			previous = append(previous, strings.ToLower(strings.TrimSpace(p)))
		}
	}
	return !containsAny(current, previous)
}

// ShouldResetState reports whether text abandons the conversation's
// current state. Confirmation and itinerary states reset on a fresh planning
// request; the suggestion state keeps going when the user asks for the
// next or another option.
func ShouldResetState(state State, text string) bool {
	w := split(text)
	switch state {
	case StateSuggestion:
		if w.hasAny(continuationMarkers) {
			return false
		}
		return freshRequest(text, w)
	case StateConfirmation, StateItinerary:
		return freshRequest(text, w)
	}
	return false
}

func freshRequest(text string, w words) bool {
	if !w.hasAny(planningMarkers) {
		return false
	}
	return w.hasAny(tripMarkers) || len(ClassifyQueryType(text)) > 0
}
