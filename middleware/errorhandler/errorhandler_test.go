package errorhandler

import (
	"errors"
	"strings"
	"testing"

	"github.com/sweetpotato0/wanderai/middleware"
	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/reply"
)

func TestErrorHandler(t *testing.T) {
	t.Run("turns errors into replies", func(t *testing.T) {
		handler := NewErrorHandler(nil, logging.Discard())

		ctx := &middleware.Context{SessionID: "s1"}
		err := handler.Execute(ctx, func(c *middleware.Context) error {
			return errors.New("provider exploded: api key sk-123")
		})

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if ctx.Reply == nil || ctx.Reply.Response != reply.GenericErrorText {
			t.Fatalf("unexpected reply %+v", ctx.Reply)
		}
		if strings.Contains(ctx.Reply.Response, "sk-123") {
			t.Fatal("internal error text leaked into the reply")
		}
		if ctx.Reply.Type != reply.TypeError || ctx.Reply.SessionID != "s1" {
			t.Fatalf("unexpected reply fields %+v", ctx.Reply)
		}
		if ctx.Error == nil {
			t.Fatal("error should be kept on the context")
		}
	})

	t.Run("recovers panics", func(t *testing.T) {
		handler := NewErrorHandler(nil, logging.Discard())
		ctx := &middleware.Context{}
		err := handler.Execute(ctx, func(c *middleware.Context) error {
			panic("boom")
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ctx.Reply == nil || ctx.Reply.Response != reply.GenericErrorText {
			t.Fatalf("unexpected reply %+v", ctx.Reply)
		}
	})

	t.Run("maps rate limiting and invalid input", func(t *testing.T) {
		handler := NewErrorHandler(nil, logging.Discard())
		for err, want := range map[error]string{
			middleware.ErrRateLimitExceeded: reply.RateLimitedText,
			middleware.ErrInvalidInput:      reply.InvalidInputText,
		} {
			ctx := &middleware.Context{}
			_ = handler.Execute(ctx, func(c *middleware.Context) error { return err })
			if ctx.Reply.Response != want {
				t.Errorf("%v: got %q, want %q", err, ctx.Reply.Response, want)
			}
		}
	})

	t.Run("passes through non-errors", func(t *testing.T) {
		called := false
		handler := NewErrorHandler(func(err error) *reply.Reply {
			called = true
			return nil
		}, logging.Discard())

		ctx := &middleware.Context{}
		err := handler.Execute(ctx, func(c *middleware.Context) error {
			c.Reply = &reply.Reply{Response: "ok"}
			return nil
		})

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if called {
			t.Error("error handler should not be called for nil errors")
		}
		if ctx.Reply.Response != "ok" {
			t.Errorf("reply replaced: %+v", ctx.Reply)
		}
	})
}
