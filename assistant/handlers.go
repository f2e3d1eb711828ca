package assistant

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/sweetpotato0/wanderai/convo"
	"github.com/sweetpotato0/wanderai/llm"
	"github.com/sweetpotato0/wanderai/message"
	"github.com/sweetpotato0/wanderai/rag/retrieval"
	"github.com/sweetpotato0/wanderai/reply"
	"github.com/sweetpotato0/wanderai/router"
	"github.com/sweetpotato0/wanderai/session"
	"github.com/sweetpotato0/wanderai/task"
)

// ModuleSource is the source cited by task module replies.
const ModuleSource = "places.json"

const (
	criticalBudgetText = "It looks like your requested budget is insufficient for the requested duration. " +
		"Please increase the budget, shorten the trip, or provide a destination you already have in mind."

	outOfScopeText = "I'm a travel assistant focused on Pune area trips. I can help with: " +
		"destination suggestions, itinerary planning, travel tips, and place information. " +
		"Do you have any travel-related questions?"

	noAnswerText = "I don't have this information in my knowledge base. I can help with: %s. " +
		"Feel free to ask me about any of these!"

	generationFailedText = "Sorry, I couldn't put an answer together right now. " +
		"Please try again in a moment or rephrase your question."

	defaultClarificationText = "I'm not sure I understand. Could you provide more details?"
)

var clarificationPrompts = map[router.Intent][]string{
	router.IntentTrip: {
		"I'd like to suggest a destination! Could you tell me more about:\n" +
			"- Your budget per person\n- How many days do you have?\n" +
			"- What interests you (beach, trek, heritage, city, etc.)?",
		"To give you better suggestions, let me know:\n" +
			"- Budget range\n- Trip duration\n- Type of experience you want",
		"I can help you find the perfect trip! Please share:\n" +
			"- How much are you planning to spend?\n- How many days?\n" +
			"- What kind of activities interest you?",
	},
	router.IntentItinerary: {
		"I can build a detailed itinerary! First, tell me about your trip:\n" +
			"- Where are you thinking of going?\n- How many days?\n- What's your budget?",
		"To create an itinerary, I need:\n" +
			"- Destination name\n- Number of days\n- Your interests and budget",
	},
}

// converse answers frustration, gibberish and ambiguous requests without
// calling the language model, and tracks the interests and state of the
// conversation. It returns nil when the message should be routed.
func (a *Assistant) converse(sess *session.ChatSession, input string) *reply.Reply {
	switch {
	case convo.IsFrustration(input):
		sess.State = convo.StateIdle
		return clarification(convo.FrustrationReply, 0)
	case convo.IsGibberish(input):
		return clarification(convo.GibberishReply, 0)
	}

	if sess.State != convo.StateIdle && convo.ShouldResetState(sess.State, input) {
		sess.State = convo.StateIdle
		sess.SuggestedPlaces = nil
	}

	types := convo.ClassifyQueryType(input)
	if len(types) > 0 {
		if len(sess.SuggestedPlaces) > 0 && convo.IsQueryIndependent(input, sess.Interests()) {
			sess.SuggestedPlaces = nil
		}
		sess.UserPreferences["query_types"] = types
	}

	if ok, question := convo.NeedsClarification(input, types); ok {
		return clarification(question, 0)
	}
	return nil
}

func clarification(text string, confidence float64) *reply.Reply {
	return &reply.Reply{
		Response:         text,
		Sources:          []string{},
		ModuleUsed:       reply.ModuleClarification,
		Confidence:       confidence,
		ValidationStatus: reply.StatusPartial,
		Path:             router.PathFallback,
		Type:             reply.TypeClarification,
	}
}

func criticalBudget() *reply.Reply {
	return &reply.Reply{
		Response:         criticalBudgetText,
		Sources:          []string{},
		ModuleUsed:       reply.ModuleNone,
		ValidationStatus: reply.StatusRejectedBudget,
		Path:             router.PathShortCircuit,
		Type:             reply.TypeError,
		Data:             map[string]any{"reason": "critical_budget"},
	}
}

func outOfScope() *reply.Reply {
	return &reply.Reply{
		Response:         outOfScopeText,
		Sources:          []string{},
		ModuleUsed:       reply.ModuleRAGOnly,
		ValidationStatus: reply.StatusFailed,
		Path:             router.PathFallback,
		Type:             reply.TypeOutOfScope,
	}
}

// fallback asks for the details a task module needs. The prompt rotates
// with the number of messages in the session.
func (a *Assistant) fallback(sess *session.ChatSession, d router.Decision) *reply.Reply {
	text := defaultClarificationText
	if options := clarificationPrompts[d.Intent]; len(options) > 0 {
		text = options[sess.Stats.TotalMessages%len(options)]
	}
	if d.Intent.UsesModules() {
		sess.State = convo.StateConfirmation
	}
	return clarification(text, d.Confidence)
}

func (a *Assistant) noAnswer(d router.Decision) *reply.Reply {
	topics := a.kb.Topics(TopicLimit)
	return &reply.Reply{
		Response:         fmt.Sprintf(noAnswerText, strings.Join(topics, ", ")),
		Sources:          []string{},
		ModuleUsed:       reply.ModuleRAGOnly,
		Confidence:       d.Confidence,
		ValidationStatus: reply.StatusFailed,
		Path:             router.PathRAGOnly,
		Type:             reply.TypeNoAnswer,
	}
}

// chat answers from the knowledge base alone and returns the retrieval
// result the answer was grounded on. Validation of the answer happens in
// postProcess.
func (a *Assistant) chat(ctx context.Context, sess *session.ChatSession, input string, history []*message.Message, d router.Decision) (*reply.Reply, retrieval.Result) {
	res, err := a.kb.RetrieveWithSources(ctx, input, ChatTopK)
	if err != nil {
		a.logger.Warn("knowledge base lookup failed", "session_id", sess.ID(), "error", err)
		return a.noAnswer(d), retrieval.Result{}
	}
	if len(res.Documents) == 0 {
		return a.noAnswer(d), res
	}

	text, err := a.gen.Generate(ctx, llm.Request{
		System:      a.formatter.SystemPrompt(a.kb.Topics(TopicLimit)),
		Prompt:      a.formatter.Context(res, input) + "\n\nUser question: " + input,
		History:     message.Last(history, ChatHistoryWindow),
		MaxTokens:   ChatMaxTokens,
		Temperature: a.chatTemperature,
	})
	if err != nil {
		a.logger.Warn("grounded generation failed", "session_id", sess.ID(), "error", err)
		return &reply.Reply{
			Response:         generationFailedText,
			Sources:          []string{},
			ModuleUsed:       reply.ModuleRAGOnly,
			Confidence:       d.Confidence,
			ValidationStatus: reply.StatusFailed,
			Path:             router.PathRAGOnly,
			Type:             reply.TypeError,
		}, res
	}

	sess.TopicsDiscussed[string(d.Intent)] = true
	return &reply.Reply{
		Response:         strings.TrimSpace(text),
		HasAnswer:        true,
		Sources:          res.Sources,
		ModuleUsed:       reply.ModuleRAGOnly,
		Confidence:       d.Confidence,
		ValidationStatus: reply.StatusGrounded,
		Path:             router.PathRAGOnly,
		Type:             reply.TypeGeneralChat,
	}, res
}

// modules runs the structured task pipeline on the refined query. Any
// module failure falls back to asking for details.
func (a *Assistant) modules(ctx context.Context, sess *session.ChatSession, refined string, d router.Decision) *reply.Reply {
	log := a.logger.With("session_id", sess.ID())
	intent, err := a.extractor.Extract(ctx, refined)
	if err != nil {
		log.Warn("intent extraction failed", "error", err)
		return a.fallback(sess, d)
	}

	switch d.Intent {
	case router.IntentTrip:
		suggestions, err := a.suggester.Suggest(ctx, intent, task.DefaultSuggestions)
		if err != nil {
			log.Warn("destination suggester failed", "error", err)
			return a.fallback(sess, d)
		}
		if len(suggestions.Destinations) == 0 {
			return &reply.Reply{
				Response:         task.NoSuggestionsText,
				Sources:          []string{},
				ModuleUsed:       reply.ModuleTask,
				Confidence:       d.Confidence,
				ValidationStatus: reply.StatusPartial,
				Path:             router.PathTaskModules,
				Type:             reply.TypeSuggestion,
				Data:             map[string]any{},
			}
		}
		for _, name := range suggestions.Names() {
			if !slices.Contains(sess.SuggestedPlaces, name) {
				sess.SuggestedPlaces = append(sess.SuggestedPlaces, name)
			}
		}
		sess.State = convo.StateSuggestion
		return moduleReply(task.FormatSuggestions(suggestions), reply.TypeSuggestion, suggestions, d)

	case router.IntentItinerary:
		destination := intent.Destination
		if destination == "" && len(sess.SuggestedPlaces) > 0 {
			destination = sess.SuggestedPlaces[0]
		}
		if destination == "" {
			return a.fallback(sess, d)
		}
		itinerary, err := a.builder.Build(ctx, intent, destination)
		if err != nil {
			log.Warn("itinerary builder failed", "destination", destination, "error", err)
			return a.fallback(sess, d)
		}
		sess.State = convo.StateItinerary
		return moduleReply(task.FormatItinerary(itinerary), reply.TypeItinerary, itinerary, d)
	}
	return a.fallback(sess, d)
}

func moduleReply(text string, typ reply.Type, data any, d router.Decision) *reply.Reply {
	return &reply.Reply{
		Response:         text,
		HasAnswer:        true,
		Sources:          []string{ModuleSource},
		ModuleUsed:       reply.ModuleTask,
		Confidence:       d.Confidence,
		ValidationStatus: reply.StatusGrounded,
		Path:             router.PathTaskModules,
		Type:             typ,
		Data:             data,
	}
}
