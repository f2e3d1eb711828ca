// Package llm wraps chat-completion providers behind a single Generation
// Service with fallback, retries, timeouts and circuit breaking.
package llm

import (
	"context"
	"fmt"

	"github.com/sweetpotato0/wanderai/errors"
	"github.com/sweetpotato0/wanderai/message"
	"github.com/sweetpotato0/wanderai/pkg/jsonx"
	"github.com/sweetpotato0/wanderai/pkg/result"
)

// JSONInstruction is appended to the system prompt of JSON-mode requests.
const JSONInstruction = "Respond with valid JSON only."

// Request bundles the inputs of one generation call.
type Request struct {
	System      string
	Prompt      string
	History     []*message.Message
	MaxTokens   int
	Temperature float64
	JSON        bool
}

// Messages flattens the request into system, history and user turns.
func (r Request) Messages() []*message.Message {
	msgs := make([]*message.Message, 0, len(r.History)+2)
	if sys := r.SystemPrompt(); sys != "" {
		msgs = append(msgs, message.NewMessage(message.RoleSystem, sys))
	}
	for _, m := range r.History {
		if m != nil && m.Role != message.RoleSystem {
			msgs = append(msgs, m)
		}
	}
	return append(msgs, message.NewMessage(message.RoleUser, r.Prompt))
}

// SystemPrompt returns the system prompt, with the JSON instruction when
// JSON mode is on.
func (r Request) SystemPrompt() string {
	if !r.JSON {
		return r.System
	}
	if r.System == "" {
		return JSONInstruction
	}
	return r.System + "\n\n" + JSONInstruction
}

// Provider is a single chat-completion backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Generator produces text for a request. Service and test stubs implement it.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GenerateResult runs g and returns the outcome as a Result.
func GenerateResult(ctx context.Context, g Generator, req Request) result.Result[string] {
	return result.From(g.Generate(ctx, req))
}

// GenerateJSON runs g in JSON mode and extracts the normalised payload.
func GenerateJSON(ctx context.Context, g Generator, req Request) result.Result[any] {
	if g == nil {
		return result.Fail[any](errors.ErrNoProvider)
	}
	req.JSON = true
	text, err := g.Generate(ctx, req)
	if err != nil {
		return result.Fail[any](err)
	}
	v, err := jsonx.Extract(text)
	if err != nil {
		return result.Fail[any](fmt.Errorf("json response: %w", err))
	}
	return result.Ok(v)
}

// GenerateObject is GenerateJSON for callers that need an object.
func GenerateObject(ctx context.Context, g Generator, req Request) result.Result[map[string]any] {
	res := GenerateJSON(ctx, g, req)
	if !res.IsOk() {
		return result.Fail[map[string]any](res.Err)
	}
	obj, ok := res.Value.(map[string]any)
	if !ok {
		return result.Fail[map[string]any](fmt.Errorf("%w: expected JSON object, got %T", errors.ErrSchema, res.Value))
	}
	return result.Ok(obj)
}
