// Package task implements the structured generation modules used on the
// TASK_MODULES path: query refinement, travel intent extraction,
// destination suggestions, itinerary building and place descriptions.
//
// Every module is a thin client of the Generation Service with its own
// prompt. Modules that expect JSON repair the model output (wrapper keys,
// key aliases, loose value types) before checking it against a JSON schema.
// Output that fails the strict schema is coerced leniently instead of being
// rejected.
package task

import (
	"log/slog"

	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/prompt"
)

// Default sampling temperatures per module.
const (
	RefinerTemperature   = 0.2
	ExtractorTemperature = 0.3
	SuggestTemperature   = 0.7
	ItineraryTemperature = 0.7
	DescribeTemperature  = 0.7
)

type options struct {
	logger      *slog.Logger
	prompts     *prompt.Manager
	temperature float64
}

// Option configures a task module.
type Option func(*options)

// WithLogger sets the module logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPrompts overrides the template manager.
func WithPrompts(m *prompt.Manager) Option {
	return func(o *options) {
		if m != nil {
			o.prompts = m
		}
	}
}

// WithTemperature overrides the module's sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *options) {
		if t > 0 {
			o.temperature = t
		}
	}
}

func newOptions(component string, temperature float64, opts []Option) options {
	o := options{
		logger:      logging.WithComponent(component),
		prompts:     prompt.Default(),
		temperature: temperature,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
