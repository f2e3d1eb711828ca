// Package llmtest provides scripted generators for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/sweetpotato0/wanderai/llm"
)

// ErrExhausted is returned once a Stub runs out of scripted replies.
var ErrExhausted = errors.New("llmtest: no scripted reply left")

// Stub replays scripted replies and records every request it receives.
type Stub struct {
	// Fn, when set, answers every request instead of the script.
	Fn func(ctx context.Context, req llm.Request) (string, error)

	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request
}

// Reply is one scripted response.
type Reply struct {
	Text string
	Err  error
}

// New returns a stub answering with texts in order.
func New(texts ...string) *Stub {
	s := &Stub{}
	for _, t := range texts {
		s.replies = append(s.replies, Reply{Text: t})
	}
	return s
}

// Failing returns a stub that always fails with err.
func Failing(err error) *Stub {
	return &Stub{Fn: func(context.Context, llm.Request) (string, error) { return "", err }}
}

// Push appends scripted replies.
func (s *Stub) Push(replies ...Reply) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
	return s
}

// Name implements llm.Provider.
func (s *Stub) Name() string { return "stub" }

// Generate implements llm.Generator.
func (s *Stub) Generate(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	fn := s.Fn
	var next *Reply
	if fn == nil && len(s.replies) > 0 {
		r := s.replies[0]
		s.replies = s.replies[1:]
		next = &r
	}
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if next == nil {
		return "", ErrExhausted
	}
	return next.Text, next.Err
}

// Calls returns the number of requests received.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of the received requests.
func (s *Stub) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request(nil), s.requests...)
}

// Last returns the most recent request.
func (s *Stub) Last() llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return llm.Request{}
	}
	return s.requests[len(s.requests)-1]
}
