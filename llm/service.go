package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sweetpotato0/wanderai/errors"
	"github.com/sweetpotato0/wanderai/message"
	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/pkg/metrics"
	"github.com/sweetpotato0/wanderai/pkg/telemetry"
	"github.com/sweetpotato0/wanderai/rag/tokenizer"
)

// Config tunes the generation service.
type Config struct {
	// Timeout bounds a whole Generate call, retries and fallbacks included.
	Timeout time.Duration
	// AttemptTimeout bounds a single provider attempt; zero leaves only
	// Timeout.
	AttemptTimeout     time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	MaxTokens          int
	HistoryTokenBudget int
	Tokenizer          tokenizer.Tokenizer
	Logger             *slog.Logger
}

// Option customises the service config.
type Option func(*Config)

// WithTimeout bounds every Generate call end to end.
func WithTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		if d > 0 {
			cfg.Timeout = d
		}
	}
}

// WithAttemptTimeout bounds each provider attempt so that a hung provider
// leaves time for retries and fallbacks.
func WithAttemptTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		if d > 0 {
			cfg.AttemptTimeout = d
		}
	}
}

// WithRetries sets how many times a failing provider is retried and the
// linear backoff between attempts.
func WithRetries(n int, backoff time.Duration) Option {
	return func(cfg *Config) {
		if n >= 0 {
			cfg.MaxRetries = n
		}
		if backoff >= 0 {
			cfg.RetryBackoff = backoff
		}
	}
}

// WithMaxTokens sets the completion cap used when a request has none.
func WithMaxTokens(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxTokens = n
		}
	}
}

// WithHistoryBudget trims request history to budget tokens counted by tok.
func WithHistoryBudget(tok tokenizer.Tokenizer, budget int) Option {
	return func(cfg *Config) {
		if tok != nil {
			cfg.Tokenizer = tok
		}
		cfg.HistoryTokenBudget = budget
	}
}

// WithLogger overrides the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *Config) {
		if l != nil {
			cfg.Logger = l
		}
	}
}

type backend struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

// Service calls providers in order until one succeeds.
type Service struct {
	cfg      Config
	backends []backend
	logger   *slog.Logger
}

var _ Generator = (*Service)(nil)

// NewService creates a service over providers, tried in the given order.
// Nil providers are skipped.
func NewService(providers []Provider, opts ...Option) (*Service, error) {
	cfg := Config{
		Timeout:      30 * time.Second,
		MaxRetries:   2,
		RetryBackoff: 500 * time.Millisecond,
		MaxTokens:    1000,
		Tokenizer:    tokenizer.SimpleTokenizer{},
		Logger:       logging.WithComponent("llm"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Service{cfg: cfg, logger: cfg.Logger}
	for _, p := range providers {
		if p == nil {
			continue
		}
		s.backends = append(s.backends, backend{provider: p, breaker: newBreaker(p.Name(), cfg.Logger)})
	}
	if len(s.backends) == 0 {
		return nil, errors.ErrNoProvider
	}
	return s, nil
}

func newBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider circuit state changed", "provider", name, "from", from.String(), "to", to.String())
		},
	})
}

// Providers returns the provider names in call order.
func (s *Service) Providers() []string {
	names := make([]string, len(s.backends))
	for i, b := range s.backends {
		names[i] = b.provider.Name()
	}
	return names
}

// Generate implements Generator.
func (s *Service) Generate(ctx context.Context, req Request) (text string, err error) {
	ctx, span := telemetry.Start(ctx, "llm", "llm.Generate",
		attribute.Bool("json", req.JSON),
		attribute.Int("history", len(req.History)),
	)
	defer func() { telemetry.End(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if req.MaxTokens <= 0 {
		req.MaxTokens = s.cfg.MaxTokens
	}
	req.History = s.trimHistory(req.History)

	var lastErr error
	for _, b := range s.backends {
		text, err := s.callWithRetry(ctx, b, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		s.logger.Warn("provider failed, trying fallback", "provider", b.provider.Name(), "error", err)
	}
	return "", fmt.Errorf("%w: all providers failed: %w", errors.ErrGeneration, lastErr)
}

func (s *Service) callWithRetry(ctx context.Context, b backend, req Request) (string, error) {
	name := b.provider.Name()
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * s.cfg.RetryBackoff):
			}
		}

		start := time.Now()
		text, err := s.call(ctx, b, req)
		metrics.GenerationDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.GenerationCalls.WithLabelValues(name, "success").Inc()
			return text, nil
		}

		lastErr = err
		switch {
		case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.GenerationCalls.WithLabelValues(name, "circuit_open").Inc()
			return "", err
		case stderrors.Is(err, errors.ErrTimeout):
			metrics.GenerationCalls.WithLabelValues(name, "timeout").Inc()
		default:
			metrics.GenerationCalls.WithLabelValues(name, "error").Inc()
		}
		if ctx.Err() != nil {
			return "", lastErr
		}
		s.logger.Debug("provider attempt failed", "provider", name, "attempt", attempt+1, "error", err)
	}
	return "", lastErr
}

func (s *Service) call(ctx context.Context, b backend, req Request) (string, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		callCtx := ctx
		if s.cfg.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.cfg.AttemptTimeout)
			defer cancel()
		}
		text, err := b.provider.Generate(callCtx, req)
		if err != nil {
			if stderrors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", errors.ErrTimeout, b.provider.Name())
			}
			return nil, err
		}
		if text == "" {
			return nil, fmt.Errorf("%s returned an empty completion", b.provider.Name())
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (s *Service) trimHistory(history []*message.Message) []*message.Message {
	if len(history) == 0 || s.cfg.HistoryTokenBudget <= 0 {
		return history
	}
	texts := make([]string, len(history))
	for i, m := range history {
		if m != nil {
			texts[i] = m.Content
		}
	}
	return history[tokenizer.FitNewest(s.cfg.Tokenizer, texts, s.cfg.HistoryTokenBudget):]
}
