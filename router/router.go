// Package router classifies user utterances into travel intents and assigns
// each decision a processing path.
//
// Classification runs a keyword fast path first. When its confidence is
// below the acceptance threshold a language model is asked instead; any
// failure there degrades to a low-confidence general chat decision. Path
// assignment is a pure function of intent and confidence.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sweetpotato0/wanderai/llm"
	"github.com/sweetpotato0/wanderai/message"
	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/pkg/metrics"
	"github.com/sweetpotato0/wanderai/pkg/telemetry"
	"github.com/sweetpotato0/wanderai/prompt"
)

// Intent is the classified purpose of an utterance.
type Intent string

const (
	IntentTrip       Intent = "trip_suggestion"
	IntentItinerary  Intent = "itinerary_request"
	IntentInfo       Intent = "destination_info"
	IntentTips       Intent = "travel_tips"
	IntentGeneral    Intent = "general_chat"
	IntentOutOfScope Intent = "out_of_scope"
)

// ParseIntent maps a case-insensitive intent name onto an Intent.
func ParseIntent(s string) (Intent, bool) {
	switch i := Intent(strings.ToLower(strings.TrimSpace(s))); i {
	case IntentTrip, IntentItinerary, IntentInfo, IntentTips, IntentGeneral, IntentOutOfScope:
		return i, true
	}
	return IntentGeneral, false
}

// UsesModules reports whether the intent is served by the structured task
// modules.
func (i Intent) UsesModules() bool {
	return i == IntentTrip || i == IntentItinerary
}

// Path is the processing route chosen for a decision.
type Path string

const (
	PathTaskModules  Path = "TASK_MODULES"
	PathRAGOnly      Path = "RAG_ONLY"
	PathFallback     Path = "FALLBACK"
	PathShortCircuit Path = "SHORT_CIRCUIT"
)

// Stage records which classifier produced a decision.
type Stage string

const (
	StageKeyword  Stage = "keyword"
	StageLLM      Stage = "llm"
	StageDegraded Stage = "degraded"
)

// Decision is the immutable result of classifying one utterance.
type Decision struct {
	Intent          Intent   `json:"intent_type"`
	Confidence      float64  `json:"confidence"`
	Path            Path     `json:"path"`
	RequiresModules bool     `json:"requires_modules"`
	Keywords        []string `json:"extracted_keywords"`
	Reasoning       string   `json:"reasoning"`
	Stage           Stage    `json:"stage"`
}

const (
	// DefaultTaskModuleThreshold is the minimum confidence for the task
	// module path.
	DefaultTaskModuleThreshold = 0.65
	// DefaultAcceptThreshold is the minimum fast-path confidence accepted
	// without consulting the language model.
	DefaultAcceptThreshold = 0.70
	// HistoryWindow is the number of recent messages shown to the classifier.
	HistoryWindow = 3
)

const (
	outOfScopeConfidence  = 0.9
	generalChatConfidence = 0.6
	llmDefaultConfidence  = 0.7
	degradedConfidence    = 0.5
	maxKeywordConfidence  = 0.95
	classifierTemperature = 0.7
)

// Router classifies utterances.
type Router struct {
	gen             llm.Generator
	prompts         *prompt.Manager
	taskThreshold   float64
	acceptThreshold float64
	temperature     float64
	logger          *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithThresholds overrides the task-module and fast-path acceptance thresholds.
func WithThresholds(task, accept float64) Option {
	return func(r *Router) {
		r.taskThreshold = task
		r.acceptThreshold = accept
	}
}

// WithTemperature sets the sampling temperature of the LLM classifier.
func WithTemperature(t float64) Option {
	return func(r *Router) {
		if t >= 0 {
			r.temperature = t
		}
	}
}

// WithLogger sets the router logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a router. gen may be nil, in which case low-confidence
// utterances degrade straight to general chat.
func New(gen llm.Generator, opts ...Option) *Router {
	r := &Router{
		gen:             gen,
		prompts:         prompt.Default(),
		taskThreshold:   DefaultTaskModuleThreshold,
		temperature:     classifierTemperature,
		acceptThreshold: DefaultAcceptThreshold,
		logger:          logging.WithComponent("router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TaskThreshold returns the confidence required for the task module path.
func (r *Router) TaskThreshold() float64 {
	return r.taskThreshold
}

// Classify maps an utterance and its recent history onto a Decision. It
// never fails: classifier errors degrade to general chat.
func (r *Router) Classify(ctx context.Context, utterance string, history []*message.Message) Decision {
	ctx, span := telemetry.Start(ctx, "router", "router.Classify",
		attribute.Int("history.len", len(history)))

	decision := KeywordRoute(utterance, len(history) > 0)
	if decision.Confidence < r.acceptThreshold {
		decision = r.llmRoute(ctx, utterance, history)
	}
	decision = AssignPath(decision, r.taskThreshold)

	span.SetAttributes(
		attribute.String("intent", string(decision.Intent)),
		attribute.String("path", string(decision.Path)),
		attribute.String("stage", string(decision.Stage)),
		attribute.Float64("confidence", decision.Confidence),
	)
	telemetry.End(span, nil)
	metrics.RoutingDecisions.WithLabelValues(string(decision.Intent), string(decision.Path), string(decision.Stage)).Inc()

	r.logger.Debug("utterance classified",
		"intent", decision.Intent,
		"path", decision.Path,
		"stage", decision.Stage,
		"confidence", decision.Confidence,
		"reasoning", decision.Reasoning,
	)
	return decision
}

// KeywordRoute is the keyword fast path. It is a pure function of the
// utterance and whether prior conversation exists.
func KeywordRoute(utterance string, hasHistory bool) Decision {
	query := normalize(utterance)

	travelScore := len(matches(query, travelKeywords))
	inherited := false
	if travelScore == 0 && hasHistory {
		travelScore = 1
		inherited = true
	}
	if travelScore == 0 {
		return Decision{
			Intent:     IntentOutOfScope,
			Confidence: outOfScopeConfidence,
			Keywords:   []string{},
			Reasoning:  "Query doesn't contain travel-related keywords",
			Stage:      StageKeyword,
		}
	}

	var (
		best    Intent
		matched []string
	)
	for _, set := range intentKeywords {
		found := matches(query, set.keywords)
		if len(found) > len(matched) {
			best, matched = set.intent, found
		}
	}

	suffix := ""
	if inherited {
		suffix = " (inherited from context)"
	}

	if len(matched) == 0 {
		return Decision{
			Intent:     IntentGeneral,
			Confidence: generalChatConfidence,
			Keywords:   []string{},
			Reasoning:  "Travel-related but no specific intent keywords" + suffix,
			Stage:      StageKeyword,
		}
	}

	return Decision{
		Intent:          best,
		Confidence:      keywordConfidence(len(matched)),
		RequiresModules: best.UsesModules(),
		Keywords:        matched,
		Reasoning:       fmt.Sprintf("Matched %s with %d keyword(s)%s", best, len(matched), suffix),
		Stage:           StageKeyword,
	}
}

// keywordConfidence grows by 0.10 per matched keyword from 0.70, capped at
// 0.95 and rounded to two decimals.
func keywordConfidence(n int) float64 {
	c := math.Round((0.70+0.10*float64(n))*100) / 100
	return math.Min(c, maxKeywordConfidence)
}

// AssignPath derives the processing path from intent and confidence.
func AssignPath(d Decision, threshold float64) Decision {
	switch {
	case d.Intent == IntentOutOfScope:
		d.RequiresModules = false
		d.Path = PathFallback
	case d.Intent.UsesModules():
		if d.Confidence >= threshold {
			d.RequiresModules = true
			d.Path = PathTaskModules
			d.Reasoning += fmt.Sprintf(" [✓ Confidence %.1f%% >= %.0f%% threshold]", d.Confidence*100, threshold*100)
		} else {
			d.RequiresModules = false
			d.Path = PathFallback
			d.Reasoning += fmt.Sprintf(" [✗ Confidence %.1f%% < %.0f%% threshold - ask clarification]", d.Confidence*100, threshold*100)
		}
	default:
		d.RequiresModules = false
		d.Path = PathRAGOnly
	}
	return d
}

type turn struct {
	Role    message.Role
	Content string
}

func (r *Router) llmRoute(ctx context.Context, utterance string, history []*message.Message) Decision {
	if r.gen == nil {
		return degraded("no language model configured")
	}

	recent := message.Last(history, HistoryWindow)
	turns := make([]turn, 0, len(recent))
	for _, msg := range recent {
		if msg != nil {
			turns = append(turns, turn{Role: msg.Role, Content: msg.Content})
		}
	}
	userPrompt, err := r.prompts.Render(prompt.RouterUser, map[string]any{
		"History": turns,
		"Input":   utterance,
	})
	if err != nil {
		return degraded(err.Error())
	}

	res := llm.GenerateObject(ctx, r.gen, llm.Request{
		System:      r.prompts.MustRender(prompt.RouterSystem, nil),
		Prompt:      userPrompt,
		Temperature: r.temperature,
	})
	data, err := res.Unwrap()
	if err != nil {
		r.logger.Warn("llm routing failed", "error", err)
		return degraded(err.Error())
	}

	name, _ := data["intent"].(string)
	if name == "" {
		name = string(IntentGeneral)
	}
	intent, _ := ParseIntent(name)

	confidence := llmDefaultConfidence
	if c, ok := toFloat(data["confidence"]); ok {
		confidence = math.Max(0, math.Min(1, c))
	}

	reasoning, _ := data["reasoning"].(string)
	if reasoning == "" {
		reasoning = "LLM classification"
	}

	return Decision{
		Intent:          intent,
		Confidence:      confidence,
		RequiresModules: toBool(data["requires_modules"]),
		Keywords:        toStrings(data["keywords"]),
		Reasoning:       reasoning,
		Stage:           StageLLM,
	}
}

func degraded(reason string) Decision {
	return Decision{
		Intent:     IntentGeneral,
		Confidence: degradedConfidence,
		Keywords:   []string{},
		Reasoning:  fmt.Sprintf("LLM routing failed: %s, defaulting to general_chat", reason),
		Stage:      StageDegraded,
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	}
	return false
}

func toStrings(v any) []string {
	out := []string{}
	switch items := v.(type) {
	case []any:
		for _, item := range items {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(items, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
