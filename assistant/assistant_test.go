package assistant

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"

	"github.com/sweetpotato0/wanderai/convo"
	"github.com/sweetpotato0/wanderai/llm"
	"github.com/sweetpotato0/wanderai/llm/llmtest"
	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/prompt"
	"github.com/sweetpotato0/wanderai/rag/document"
	"github.com/sweetpotato0/wanderai/rag/retrieval"
	"github.com/sweetpotato0/wanderai/reply"
	"github.com/sweetpotato0/wanderai/router"
	"github.com/sweetpotato0/wanderai/task"
	"github.com/sweetpotato0/wanderai/validation"
)

// countingKB counts the lookups made against an in-memory knowledge base.
type countingKB struct {
	*retrieval.Service

	mu        sync.Mutex
	retrieves int
	searches  int
}

func (k *countingKB) RetrieveWithSources(ctx context.Context, query string, topK int) (retrieval.Result, error) {
	k.mu.Lock()
	k.retrieves++
	k.mu.Unlock()
	return k.Service.RetrieveWithSources(ctx, query, topK)
}

func (k *countingKB) Search(ctx context.Context, query string, topK int) (string, error) {
	k.mu.Lock()
	k.searches++
	k.mu.Unlock()
	return k.Service.Search(ctx, query, topK)
}

func (k *countingKB) counts() (retrieves, searches int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.retrieves, k.searches
}

func newKB() *countingKB {
	return &countingKB{Service: retrieval.NewFromDocuments([]document.Document{
		{
			ID:          "lonavala",
			Name:        "Lonavala",
			Category:    "hill station",
			Description: "Hill station 64 km from Pune, popular in the monsoon.",
			Source:      "places.json",
		},
		{
			ID:          "alibaug",
			Name:        "Alibaug",
			Category:    "beach",
			Description: "Coastal town with quiet beaches and a sea fort.",
			Source:      "places.json",
		},
	}, retrieval.WithLogger(logging.Discard()))}
}

// script answers each task module by its system prompt and every other
// request with chat.
type script struct {
	refine    string
	extract   string
	suggest   string
	itinerary string
	route     string
	chat      string
	chatErr   error
}

func (s script) stub() *llmtest.Stub {
	prompts := prompt.Default()
	bySystem := map[string]string{
		prompts.MustRender(prompt.RefinerSystem, nil):   s.refine,
		prompts.MustRender(prompt.ExtractorSystem, nil): s.extract,
		prompts.MustRender(prompt.SuggesterSystem, nil): s.suggest,
		prompts.MustRender(prompt.ItinerarySystem, nil): s.itinerary,
		prompts.MustRender(prompt.RouterSystem, nil):    s.route,
	}
	return &llmtest.Stub{Fn: func(_ context.Context, req llm.Request) (string, error) {
		if text, ok := bySystem[req.System]; ok {
			if text == "" {
				return "", stderrors.New("no scripted reply")
			}
			return text, nil
		}
		if s.chatErr != nil {
			return "", s.chatErr
		}
		return s.chat, nil
	}}
}

func newTestAssistant(gen llm.Generator, kb KnowledgeBase, opts ...Option) *Assistant {
	quiet := logging.Discard()
	opts = append([]Option{
		WithLogger(quiet),
		WithTaskOptions(task.WithLogger(quiet)),
		WithRouter(router.New(gen, router.WithLogger(quiet))),
	}, opts...)
	return New(gen, kb, opts...)
}

func systemOf(name string) string {
	return prompt.Default().MustRender(name, nil)
}

func requestsFor(stub *llmtest.Stub, name string) int {
	system := systemOf(name)
	n := 0
	for _, req := range stub.Requests() {
		if req.System == system {
			n++
		}
	}
	return n
}

func TestProcessMessageOutOfScope(t *testing.T) {
	kb := newKB()
	stub := script{refine: "What is the capital of France?"}.stub()
	a := newTestAssistant(stub, kb)

	r := a.ProcessMessage(context.Background(), "What's the capital of France?", "")

	if r.Type != reply.TypeOutOfScope || r.Path != router.PathFallback {
		t.Fatalf("reply = %+v", r)
	}
	if r.HasAnswer || r.ValidationStatus != reply.StatusFailed || r.Confidence != 0 {
		t.Fatalf("out of scope reply fields = %+v", r)
	}
	if !strings.Contains(r.Response, "travel assistant focused on Pune area trips") {
		t.Fatalf("response = %q", r.Response)
	}
	if stub.Calls() != 1 || requestsFor(stub, prompt.RefinerSystem) != 1 {
		t.Fatalf("expected only the refiner call, got %d calls", stub.Calls())
	}
	if retrieves, searches := kb.counts(); retrieves != 0 || searches != 0 {
		t.Fatalf("knowledge base consulted: %d retrieves, %d searches", retrieves, searches)
	}
	if r.SessionID == "" {
		t.Fatal("session id not assigned")
	}
}

func TestProcessMessageGroundedChat(t *testing.T) {
	kb := newKB()
	stub := script{refine: "Tell me about Lonavala", chat: "Lonavala is a hill station."}.stub()
	a := newTestAssistant(stub, kb)
	ctx := context.Background()

	r := a.ProcessMessage(ctx, "Tell me about visiting Lonavala", "")

	if r.Type != reply.TypeGeneralChat || r.Path != router.PathRAGOnly || r.ModuleUsed != reply.ModuleRAGOnly {
		t.Fatalf("reply = %+v", r)
	}
	if !r.HasAnswer || r.ValidationStatus != reply.StatusGrounded {
		t.Fatalf("expected grounded answer, got %+v", r)
	}
	if r.Response != "Lonavala is a hill station.\n\nSources: places.json"+closingOffer {
		t.Fatalf("response = %q", r.Response)
	}
	if len(r.Sources) != 1 || r.Sources[0] != "places.json" {
		t.Fatalf("sources = %v", r.Sources)
	}

	var chatReq llm.Request
	for _, req := range stub.Requests() {
		if strings.Contains(req.Prompt, "User question: ") {
			chatReq = req
		}
	}
	if chatReq.MaxTokens != ChatMaxTokens || chatReq.Temperature != DefaultChatTemperature {
		t.Fatalf("chat request settings = %+v", chatReq)
	}
	if !strings.HasSuffix(chatReq.Prompt, "\n\nUser question: Tell me about visiting Lonavala") {
		t.Fatalf("chat prompt = %q", chatReq.Prompt)
	}
	if !strings.Contains(chatReq.Prompt, "Lonavala: Hill station 64 km from Pune") {
		t.Fatalf("facts missing from chat prompt: %q", chatReq.Prompt)
	}

	tr, err := a.Session(ctx, r.SessionID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if tr.Stats.TotalMessages != 1 || tr.Stats.ValidatedResponses != 1 || tr.Stats.HallucinationsPrevented != 0 {
		t.Fatalf("stats = %+v", tr.Stats)
	}
	if len(tr.Messages) != 2 || tr.Messages[1].Content != r.Response {
		t.Fatalf("history = %+v", tr.Messages)
	}
	if len(tr.Topics) != 1 || tr.Topics[0] != string(router.IntentInfo) {
		t.Fatalf("topics = %v", tr.Topics)
	}
}

func TestProcessMessageRedactsUnsupportedClaims(t *testing.T) {
	kb := newKB()
	stub := script{refine: "Tell me about Lonavala", chat: "Lonavala has 9999 steps."}.stub()
	a := newTestAssistant(stub, kb)
	ctx := context.Background()

	r := a.ProcessMessage(ctx, "Tell me about visiting Lonavala", "")

	if r.ValidationStatus != reply.StatusPartial || r.HasAnswer {
		t.Fatalf("redacted reply must be partial without answer, got %+v", r)
	}
	want := redactionNotice + "Lonavala has [Unverified: 9999] steps.\n\nSources: places.json\n\n**Verified sources:** places.json"
	if r.Response != want {
		t.Fatalf("response = %q\nwant       %q", r.Response, want)
	}

	stats, err := a.Stats(ctx, r.SessionID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.HallucinationsPrevented != 1 || stats.ValidatedResponses != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestProcessMessageNoAnswerListsTopics(t *testing.T) {
	kb := newKB()
	stub := script{refine: "Tell me about Atlantis"}.stub()
	a := newTestAssistant(stub, kb)

	r := a.ProcessMessage(context.Background(), "Tell me about visiting Atlantis", "")

	if r.Type != reply.TypeNoAnswer || r.Path != router.PathRAGOnly || r.ValidationStatus != reply.StatusFailed {
		t.Fatalf("reply = %+v", r)
	}
	want := "I don't have this information in my knowledge base. I can help with: beach, hill station. " +
		"Feel free to ask me about any of these!"
	if r.Response != want {
		t.Fatalf("response = %q", r.Response)
	}
	if stub.Calls() != 1 {
		t.Fatalf("no generation expected beyond refinement, got %d calls", stub.Calls())
	}
}

func TestProcessMessageModulePathSkipsVerification(t *testing.T) {
	kb := newKB()
	stub := script{
		refine:  "Suggest weekend getaways near Pune",
		extract: `{"budget": 3000, "group_size": 2, "duration_days": 2, "interests": ["hills"]}`,
		suggest: `{"destinations": [{"name": "Lonavala", "category": "hill station", "match_score": 90, "highlights": ["Tiger Point"]}], "summary": "Hill escape", "tips": ["Start early"]}`,
	}.stub()
	a := newTestAssistant(stub, kb)
	ctx := context.Background()

	r := a.ProcessMessage(ctx, "Suggest me places to visit near Pune for a weekend", "")

	if r.Path != router.PathTaskModules || r.Type != reply.TypeSuggestion || r.ModuleUsed != reply.ModuleTask {
		t.Fatalf("reply = %+v", r)
	}
	if !r.HasAnswer || r.ValidationStatus != reply.StatusGrounded {
		t.Fatalf("module reply fields = %+v", r)
	}
	if len(r.Sources) != 1 || r.Sources[0] != ModuleSource {
		t.Fatalf("sources = %v", r.Sources)
	}
	if !strings.HasPrefix(r.Response, "Based on your preferences") || strings.HasSuffix(r.Response, closingOffer) {
		t.Fatalf("response = %q", r.Response)
	}
	if _, ok := r.Data.(task.Suggestions); !ok {
		t.Fatalf("data = %T", r.Data)
	}

	retrieves, searches := kb.counts()
	if retrieves != 0 {
		t.Fatalf("module replies must not be verified, got %d retrieval lookups", retrieves)
	}
	if searches != 1 {
		t.Fatalf("expected one suggester search, got %d", searches)
	}

	extractReq := stub.Requests()[1]
	if extractReq.System != systemOf(prompt.ExtractorSystem) || !strings.Contains(extractReq.Prompt, "Suggest weekend getaways near Pune") {
		t.Fatalf("extractor should see the refined query, got %+v", extractReq)
	}

	sess, err := a.Sessions().Get(ctx, r.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(sess.SuggestedPlaces) != 1 || sess.SuggestedPlaces[0] != "Lonavala" {
		t.Fatalf("suggested places = %v", sess.SuggestedPlaces)
	}
	if sess.State != convo.StateSuggestion {
		t.Fatalf("state = %q", sess.State)
	}
}

func TestProcessMessageItinerary(t *testing.T) {
	kb := newKB()
	stub := script{
		refine:    "2 day itinerary for Lonavala",
		extract:   `{"destination": "Lonavala", "group_size": 2, "duration_days": 2}`,
		itinerary: `{"destination": "Lonavala", "duration": 2, "days": [{"day": 1, "title": "Arrival", "schedule": [{"time": "09:00 AM", "activity": "Tiger Point", "location": "Lonavala", "duration": "2 hours"}], "meals": {"lunch": "Local thali"}, "total_cost": "1500"}], "total_estimated_cost": "3000"}`,
	}.stub()
	a := newTestAssistant(stub, kb)

	r := a.ProcessMessage(context.Background(), "Plan a 2 day itinerary for Lonavala", "")

	if r.Path != router.PathTaskModules || r.Type != reply.TypeItinerary {
		t.Fatalf("reply = %+v", r)
	}
	it, ok := r.Data.(task.Itinerary)
	if !ok || it.Destination != "Lonavala" {
		t.Fatalf("data = %#v", r.Data)
	}
	if r.Response != task.BeautifyItinerary(it)+closingOffer {
		t.Fatalf("response = %q", r.Response)
	}
	if retrieves, _ := kb.counts(); retrieves != 0 {
		t.Fatalf("itinerary must not be verified, got %d lookups", retrieves)
	}
}

func TestProcessMessageCriticalBudgetShortCircuits(t *testing.T) {
	kb := newKB()
	stub := script{
		refine:  "3-day trip to Lonavala for 1 person. Budget: 250 INR. [CRITICAL BUDGET CONSTRAINT: Impossible budget for duration]",
		extract: `{"destination": "Lonavala"}`,
	}.stub()
	a := newTestAssistant(stub, kb)

	r := a.ProcessMessage(context.Background(), "Plan a 3 day trip to Lonavala for 250 rupees", "")

	if r.Path != router.PathShortCircuit || r.ValidationStatus != reply.StatusRejectedBudget || r.Type != reply.TypeError {
		t.Fatalf("reply = %+v", r)
	}
	if r.HasAnswer || r.ModuleUsed != reply.ModuleNone || r.Response != criticalBudgetText {
		t.Fatalf("reply = %+v", r)
	}
	data, ok := r.Data.(map[string]any)
	if !ok || data["reason"] != "critical_budget" {
		t.Fatalf("data = %#v", r.Data)
	}
	if stub.Calls() != 1 {
		t.Fatalf("router and modules must be skipped, got %d calls", stub.Calls())
	}
	if retrieves, searches := kb.counts(); retrieves+searches != 0 {
		t.Fatal("knowledge base consulted after short-circuit")
	}
}

func TestProcessMessageFallbackRotates(t *testing.T) {
	kb := newKB()
	stub := script{refine: "Suggest a weekend getaway"}.stub()
	a := newTestAssistant(stub, kb, WithRouter(router.New(stub,
		router.WithThresholds(0.99, router.DefaultAcceptThreshold),
		router.WithLogger(logging.Discard()),
	)))
	ctx := context.Background()

	first := a.ProcessMessage(ctx, "Suggest a weekend getaway", "")
	second := a.ProcessMessage(ctx, "Suggest a weekend getaway", first.SessionID)

	for _, r := range []*reply.Reply{first, second} {
		if r.Type != reply.TypeClarification || r.Path != router.PathFallback || r.ModuleUsed != reply.ModuleClarification {
			t.Fatalf("reply = %+v", r)
		}
		if r.HasAnswer || r.ValidationStatus != reply.StatusPartial || r.Confidence == 0 {
			t.Fatalf("fallback fields = %+v", r)
		}
	}
	trip := clarificationPrompts[router.IntentTrip]
	if first.Response != trip[1] || second.Response != trip[2] {
		t.Fatalf("responses = %q / %q", first.Response, second.Response)
	}
	if requestsFor(stub, prompt.ExtractorSystem) != 0 {
		t.Fatal("modules must not run below the threshold")
	}
}

func TestProcessMessageConversationalShortcuts(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"frustration", "what the fuck is this", convo.FrustrationReply},
		{"gibberish", "asdfghjkl", convo.GibberishReply},
		{"conflicting preferences", "a budget trip with luxury resorts", "both a budget trip and a luxury experience"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := script{}.stub()
			a := newTestAssistant(stub, newKB())

			r := a.ProcessMessage(context.Background(), tt.input, "")

			if r.Type != reply.TypeClarification || r.Path != router.PathFallback {
				t.Fatalf("reply = %+v", r)
			}
			if !strings.Contains(r.Response, tt.want) {
				t.Fatalf("response = %q", r.Response)
			}
			if stub.Calls() != 0 {
				t.Fatalf("no model calls expected, got %d", stub.Calls())
			}
		})
	}
}

func TestProcessMessageMiddleware(t *testing.T) {
	t.Run("rejects empty input", func(t *testing.T) {
		stub := script{}.stub()
		a := newTestAssistant(stub, newKB())

		r := a.ProcessMessage(context.Background(), "   ", "")

		if r.Type != reply.TypeError || r.Response != reply.InvalidInputText {
			t.Fatalf("reply = %+v", r)
		}
		if stub.Calls() != 0 || a.Sessions().Len() != 0 {
			t.Fatal("rejected input must not reach the pipeline")
		}
	})

	t.Run("limits message rate", func(t *testing.T) {
		a := newTestAssistant(script{}.stub(), newKB(), WithRateLimit(1))
		ctx := context.Background()

		if r := a.ProcessMessage(ctx, "asdfghjkl", ""); r.Type != reply.TypeClarification {
			t.Fatalf("first reply = %+v", r)
		}
		r := a.ProcessMessage(ctx, "asdfghjkl", "")
		if r.Type != reply.TypeError || r.Response != reply.RateLimitedText {
			t.Fatalf("second reply = %+v", r)
		}
	})

	t.Run("default chain", func(t *testing.T) {
		a := newTestAssistant(script{}.stub(), newKB())
		want := []string{"ErrorHandler", "RequestLogger", "InputValidator", "RateLimiter", "ContextEnricher", "ResponseFilter"}
		got := a.Middlewares()
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Fatalf("middlewares = %v", got)
		}
	})
}

func TestProcessMessageRefreshesKnowledgeBase(t *testing.T) {
	kb := newKB()
	kb.AddUpdate(retrieval.Update{
		Action: retrieval.ActionAdd,
		Type:   "place",
		Data:   map[string]any{"name": "Rajmachi", "category": "trek"},
	})
	a := newTestAssistant(script{}.stub(), kb)
	ctx := context.Background()

	r := a.ProcessMessage(ctx, "asdfghjkl", "")
	sess, err := a.Sessions().Get(ctx, r.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Stats.KBRefreshes != 1 || !sess.KnowledgeBaseTimestamp.Equal(kb.Timestamp()) {
		t.Fatalf("refresh not recorded: %+v at %v", sess.Stats, sess.KnowledgeBaseTimestamp)
	}

	a.ProcessMessage(ctx, "asdfghjkl", r.SessionID)
	if sess.Stats.KBRefreshes != 1 {
		t.Fatalf("refresh without changes counted: %+v", sess.Stats)
	}
}

func TestProcessMessageGenerationFailure(t *testing.T) {
	stub := script{refine: "Tell me about Lonavala", chatErr: stderrors.New("provider down")}.stub()
	a := newTestAssistant(stub, newKB())

	r := a.ProcessMessage(context.Background(), "Tell me about visiting Lonavala", "")

	if r.Type != reply.TypeError || r.HasAnswer || r.Response != generationFailedText {
		t.Fatalf("reply = %+v", r)
	}
	if strings.Contains(r.Response, "provider down") {
		t.Fatal("internal error leaked to the user")
	}
}

// brokenChecker fails every validation, by error or by panic.
type brokenChecker struct {
	panics bool
}

func (c brokenChecker) Check(context.Context, string, retrieval.Result) (validation.Report, error) {
	if c.panics {
		panic("index out of range")
	}
	return validation.Report{}, stderrors.New("validator unavailable")
}

func TestProcessMessageValidationFailurePassesAnswerThrough(t *testing.T) {
	tests := []struct {
		name    string
		checker brokenChecker
	}{
		{"error", brokenChecker{}},
		{"panic", brokenChecker{panics: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := script{refine: "Tell me about Lonavala", chat: "Lonavala has 9999 steps."}.stub()
			a := newTestAssistant(stub, newKB(), WithValidator(tt.checker))

			r := a.ProcessMessage(context.Background(), "Tell me about visiting Lonavala", "")

			if r.Type != reply.TypeGeneralChat || r.Path != router.PathRAGOnly {
				t.Fatalf("reply = %+v", r)
			}
			if r.Response != "Lonavala has 9999 steps." {
				t.Fatalf("response = %q, want the unvalidated answer", r.Response)
			}
			if !r.HasAnswer || r.ValidationStatus != reply.StatusGrounded {
				t.Fatalf("reply = %+v", r)
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	a := newTestAssistant(script{}.stub(), newKB())
	ctx := context.Background()

	r := a.ProcessMessage(ctx, "asdfghjkl", "")
	again := a.ProcessMessage(ctx, "asdfghjkl", r.SessionID)
	if again.SessionID != r.SessionID {
		t.Fatalf("session not reused: %q vs %q", again.SessionID, r.SessionID)
	}
	tr, err := a.Session(ctx, r.SessionID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if len(tr.Messages) != 4 || tr.Stats.TotalMessages != 2 {
		t.Fatalf("transcript = %+v", tr)
	}

	if err := a.Reset(ctx, r.SessionID); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := a.Stats(ctx, r.SessionID); err == nil {
		t.Fatal("expected an error for a reset session")
	}
}
