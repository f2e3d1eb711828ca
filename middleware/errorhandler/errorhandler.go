package errorhandler

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/sweetpotato0/wanderai/errors"
	"github.com/sweetpotato0/wanderai/middleware"
	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/reply"
)

// ErrorHandlerFunc turns an error into the reply shown to the user.
type ErrorHandlerFunc func(error) *reply.Reply

// ErrorHandler recovers panics and replaces errors from the rest of the
// chain with a reply, so the caller always gets an answer and never sees
// internal error text.
type ErrorHandler struct {
	handler ErrorHandlerFunc
	logger  *slog.Logger
}

// NewErrorHandler creates an error handling middleware. A nil handler uses
// DefaultReply.
func NewErrorHandler(handler ErrorHandlerFunc, logger *slog.Logger) *ErrorHandler {
	if handler == nil {
		handler = DefaultReply
	}
	if logger == nil {
		logger = logging.WithComponent("recovery")
	}
	return &ErrorHandler{handler: handler, logger: logger}
}

// Name returns the middleware name
func (m *ErrorHandler) Name() string {
	return "ErrorHandler"
}

// Execute handles errors and panics from downstream middlewares
func (m *ErrorHandler) Execute(ctx *middleware.Context, next middleware.Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic while handling message",
				"session_id", ctx.SessionID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: panic: %v", errors.ErrInternal, r)
		}
		if err != nil {
			ctx.Error = err
			ctx.Reply = m.handler(err)
			if ctx.Reply != nil {
				ctx.Reply.SessionID = ctx.SessionID
			}
			err = nil
		}
	}()
	return next(ctx)
}

// DefaultReply maps rate limiting and rejected input onto their own
// texts and everything else onto the generic error reply.
func DefaultReply(err error) *reply.Reply {
	switch {
	case stderrors.Is(err, errors.ErrRateLimited):
		return reply.Error(reply.RateLimitedText)
	case stderrors.Is(err, errors.ErrInvalidInput):
		return reply.Error(reply.InvalidInputText)
	default:
		return reply.Error(reply.GenericErrorText)
	}
}
