package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweetpotato0/wanderai/errors"
	"github.com/sweetpotato0/wanderai/llm"
	"github.com/sweetpotato0/wanderai/prompt"
	"github.com/sweetpotato0/wanderai/rag/retrieval"
)

// Describer writes short grounded descriptions of places.
type Describer struct {
	gen       llm.Generator
	retriever retrieval.Retriever
	options
}

// NewDescriber creates a Describer.
func NewDescriber(gen llm.Generator, r retrieval.Retriever, opts ...Option) *Describer {
	return &Describer{gen: gen, retriever: r, options: newOptions("describer", DescribeTemperature, opts)}
}

// Describe generates a 3-5 sentence description of place from the two
// best matching knowledge base documents.
func (d *Describer) Describe(ctx context.Context, place string) (string, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return "", fmt.Errorf("%w: place name is required", errors.ErrInvalidInput)
	}

	kbContext := retrieval.NoDocumentsFound
	if d.retriever != nil {
		text, err := d.retriever.Search(ctx, place, 2)
		if err != nil {
			d.logger.Warn("description context search failed", "place", place, "error", err)
		} else {
			kbContext = text
		}
	}
	if kbContext == retrieval.NoDocumentsFound {
		d.logger.Warn("no knowledge base data for place, describing from general knowledge", "place", place)
	}

	userPrompt, err := d.prompts.Render(prompt.DescriberUser, map[string]any{
		"Place":   place,
		"Context": kbContext,
	})
	if err != nil {
		return "", err
	}
	if d.gen == nil {
		return "", errors.ErrNoProvider
	}
	text, err := d.gen.Generate(ctx, llm.Request{
		System:      d.prompts.MustRender(prompt.DescriberSystem, nil),
		Prompt:      userPrompt,
		Temperature: d.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", place, err)
	}
	return strings.TrimSpace(text), nil
}
