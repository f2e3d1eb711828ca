package llm_test

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/sweetpotato0/wanderai/errors"
	"github.com/sweetpotato0/wanderai/llm"
	"github.com/sweetpotato0/wanderai/llm/llmtest"
	"github.com/sweetpotato0/wanderai/message"
	"github.com/sweetpotato0/wanderai/pkg/logging"
)

type namedStub struct {
	*llmtest.Stub
	name string
}

func (n namedStub) Name() string { return n.name }

func newService(t *testing.T, providers []llm.Provider, opts ...llm.Option) *llm.Service {
	t.Helper()
	opts = append([]llm.Option{llm.WithLogger(logging.Discard()), llm.WithRetries(0, 0)}, opts...)
	svc, err := llm.NewService(providers, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestNoProviders(t *testing.T) {
	if _, err := llm.NewService(nil); !stderrors.Is(err, errors.ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestFallbackProvider(t *testing.T) {
	primary := namedStub{llmtest.Failing(stderrors.New("boom")), "primary"}
	fallback := namedStub{llmtest.New("hello from fallback"), "fallback"}
	svc := newService(t, []llm.Provider{primary, fallback})

	text, err := svc.Generate(context.Background(), llm.Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "hello from fallback" {
		t.Fatalf("unexpected text %q", text)
	}
	if primary.Calls() != 1 || fallback.Calls() != 1 {
		t.Fatalf("unexpected call counts %d/%d", primary.Calls(), fallback.Calls())
	}
}

func TestRetries(t *testing.T) {
	stub := llmtest.New()
	stub.Push(llmtest.Reply{Err: stderrors.New("transient")}, llmtest.Reply{Text: "ok"})
	svc := newService(t, []llm.Provider{namedStub{stub, "p"}}, llm.WithRetries(2, time.Millisecond))

	text, err := svc.Generate(context.Background(), llm.Request{Prompt: "hi"})
	if err != nil || text != "ok" {
		t.Fatalf("expected retry success, got %q %v", text, err)
	}
	if stub.Calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", stub.Calls())
	}
}

func TestAllProvidersFail(t *testing.T) {
	svc := newService(t, []llm.Provider{namedStub{llmtest.Failing(stderrors.New("down")), "p"}})
	_, err := svc.Generate(context.Background(), llm.Request{Prompt: "hi"})
	if !stderrors.Is(err, errors.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestTimeout(t *testing.T) {
	slow := &llmtest.Stub{Fn: func(ctx context.Context, _ llm.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	svc := newService(t, []llm.Provider{namedStub{slow, "slow"}}, llm.WithTimeout(20*time.Millisecond))

	_, err := svc.Generate(context.Background(), llm.Request{Prompt: "hi"})
	if !stderrors.Is(err, errors.ErrTimeout) || !stderrors.Is(err, errors.ErrGeneration) {
		t.Fatalf("expected timeout generation error, got %v", err)
	}
}

func TestTimeoutCoversRetriesAndFallbacks(t *testing.T) {
	hang := func(ctx context.Context, _ llm.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	primary := namedStub{&llmtest.Stub{Fn: hang}, "primary"}
	fallback := namedStub{&llmtest.Stub{Fn: hang}, "fallback"}
	svc := newService(t, []llm.Provider{primary, fallback},
		llm.WithTimeout(100*time.Millisecond), llm.WithRetries(3, 0))

	start := time.Now()
	_, err := svc.Generate(context.Background(), llm.Request{Prompt: "hi"})
	elapsed := time.Since(start)

	if !stderrors.Is(err, errors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed > 400*time.Millisecond {
		t.Fatalf("Generate took %s, want about one timeout", elapsed)
	}
	if primary.Calls() != 1 || fallback.Calls() != 0 {
		t.Fatalf("calls after the deadline: primary %d, fallback %d", primary.Calls(), fallback.Calls())
	}
}

func TestAttemptTimeoutLeavesRoomForFallback(t *testing.T) {
	slow := namedStub{&llmtest.Stub{Fn: func(ctx context.Context, _ llm.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}, "slow"}
	fallback := namedStub{llmtest.New("from fallback"), "fallback"}
	svc := newService(t, []llm.Provider{slow, fallback},
		llm.WithTimeout(time.Second), llm.WithAttemptTimeout(20*time.Millisecond))

	text, err := svc.Generate(context.Background(), llm.Request{Prompt: "hi"})
	if err != nil || text != "from fallback" {
		t.Fatalf("expected the fallback answer, got %q %v", text, err)
	}
}

func TestEmptyCompletionIsFailure(t *testing.T) {
	svc := newService(t, []llm.Provider{namedStub{llmtest.New(""), "p"}})
	if _, err := svc.Generate(context.Background(), llm.Request{Prompt: "hi"}); err == nil {
		t.Fatalf("expected error for empty completion")
	}
}

func TestHistoryBudget(t *testing.T) {
	stub := llmtest.New("ok")
	svc := newService(t, []llm.Provider{namedStub{stub, "p"}},
		llm.WithHistoryBudget(nil, 4))

	history := []*message.Message{
		message.NewMessage(message.RoleUser, "one two three"),
		message.NewMessage(message.RoleAssistant, "four five"),
		message.NewMessage(message.RoleUser, "six seven"),
	}
	if _, err := svc.Generate(context.Background(), llm.Request{Prompt: "hi", History: history}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got := stub.Last().History
	if len(got) != 2 || got[0].Content != "four five" {
		t.Fatalf("unexpected trimmed history %+v", got)
	}
}

func TestRequestMessages(t *testing.T) {
	req := llm.Request{
		System:  "be brief",
		Prompt:  "question",
		JSON:    true,
		History: []*message.Message{message.NewMessage(message.RoleAssistant, "earlier")},
	}
	msgs := req.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != message.RoleSystem || !strings.HasSuffix(msgs[0].Content, llm.JSONInstruction) {
		t.Fatalf("unexpected system message %+v", msgs[0])
	}
	if msgs[2].Role != message.RoleUser || msgs[2].Content != "question" {
		t.Fatalf("unexpected user message %+v", msgs[2])
	}
}

func TestGenerateJSON(t *testing.T) {
	stub := llmtest.New("```json\n{\"travel_intent\": {\"budget\": 5000}}\n```", "not json")

	res := llm.GenerateObject(context.Background(), stub, llm.Request{Prompt: "x"})
	if !res.IsOk() {
		t.Fatalf("GenerateObject: %v", res.Err)
	}
	if res.Value["budget"] != 5000.0 {
		t.Fatalf("unexpected payload %v", res.Value)
	}
	if !stub.Last().JSON {
		t.Fatalf("expected JSON mode request")
	}

	res = llm.GenerateObject(context.Background(), stub, llm.Request{Prompt: "x"})
	if !stderrors.Is(res.Err, errors.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", res.Err)
	}
}
