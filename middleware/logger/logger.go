package logger

import (
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/sweetpotato0/wanderai/middleware"
	"github.com/sweetpotato0/wanderai/pkg/logging"
)

// RequestLogger logs each message and the reply it produced.
type RequestLogger struct {
	logger *slog.Logger
}

// NewRequestLogger creates a request logging middleware
func NewRequestLogger(logger *slog.Logger) *RequestLogger {
	if logger == nil {
		logger = logging.WithComponent("request")
	}
	return &RequestLogger{logger: logger}
}

// Name returns the middleware name
func (m *RequestLogger) Name() string {
	return "RequestLogger"
}

// Execute logs the request and, once the chain returns, the reply.
func (m *RequestLogger) Execute(ctx *middleware.Context, next middleware.Handler) error {
	start := time.Now()
	m.logger.Info("message received",
		"session_id", ctx.SessionID,
		"input_chars", utf8.RuneCountInString(ctx.Input),
	)

	err := next(ctx)

	attrs := []any{"session_id", ctx.SessionID, "duration", time.Since(start)}
	if r := ctx.Reply; r != nil {
		if ctx.SessionID == "" {
			attrs[1] = r.SessionID
		}
		attrs = append(attrs,
			"path", r.Path,
			"type", r.Type,
			"validation_status", r.ValidationStatus,
			"has_answer", r.HasAnswer,
		)
	}
	switch {
	case err != nil:
		m.logger.Error("message failed", append(attrs, "error", err)...)
	case ctx.Error != nil:
		m.logger.Warn("message answered with error reply", append(attrs, "error", ctx.Error)...)
	default:
		m.logger.Info("message answered", attrs...)
	}
	return err
}
