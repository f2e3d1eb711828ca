package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweetpotato0/wanderai/errors"
	"github.com/sweetpotato0/wanderai/llm"
	"github.com/sweetpotato0/wanderai/message"
	"github.com/sweetpotato0/wanderai/prompt"
)

// CriticalBudgetMarker is the tag the refiner appends when the budget
// cannot cover the requested duration.
const CriticalBudgetMarker = "[CRITICAL BUDGET CONSTRAINT"

// RefineHistoryWindow is the number of recent messages shown to the refiner.
const RefineHistoryWindow = 5

// Flags are the conditions detected while refining a query.
type Flags struct {
	CriticalBudget bool `json:"critical_budget,omitempty"`
}

// Refinement is a refined query with its flags.
type Refinement struct {
	Refined string `json:"refined"`
	Flags   Flags  `json:"flags"`
}

// Refiner rewrites conversational queries into concise travel requests.
type Refiner struct {
	gen llm.Generator
	options
}

// NewRefiner creates a Refiner.
func NewRefiner(gen llm.Generator, opts ...Option) *Refiner {
	return &Refiner{gen: gen, options: newOptions("refiner", RefinerTemperature, opts)}
}

// Refine returns the refined query string. Only the last
// RefineHistoryWindow messages of history are used to resolve follow-ups.
func (r *Refiner) Refine(ctx context.Context, query string, history []*message.Message) (string, error) {
	if r.gen == nil {
		return "", fmt.Errorf("refine query: %w", errors.ErrNoProvider)
	}
	userPrompt, err := r.prompts.Render(prompt.RefinerUser, map[string]any{
		"History": message.Transcript(message.Last(history, RefineHistoryWindow)),
		"Input":   query,
	})
	if err != nil {
		return "", err
	}
	text, err := r.gen.Generate(ctx, llm.Request{
		System:      r.prompts.MustRender(prompt.RefinerSystem, nil),
		Prompt:      userPrompt,
		Temperature: r.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("refine query: %w", err)
	}
	refined := strings.Trim(strings.TrimSpace(text), `"`)
	if refined == "" {
		refined = query
	}
	r.logger.Debug("query refined", "query", query, "refined", refined)
	return refined, nil
}

// RefineStructured refines query and reports the flags found in the
// refined text.
func (r *Refiner) RefineStructured(ctx context.Context, query string, history []*message.Message) (Refinement, error) {
	refined, err := r.Refine(ctx, query, history)
	if err != nil {
		return Refinement{}, err
	}
	return Refinement{
		Refined: refined,
		Flags:   Flags{CriticalBudget: strings.Contains(refined, CriticalBudgetMarker)},
	}, nil
}
