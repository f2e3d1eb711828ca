package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sweetpotato0/wanderai/middleware"
	"github.com/sweetpotato0/wanderai/reply"
)

// DefaultMaxLength bounds a user message, in characters.
const DefaultMaxLength = 2000

// ValidatorFunc validates input
type ValidatorFunc func(string) error

// FilterFunc transforms or filters replies
type FilterFunc func(*reply.Reply) error

// InputValidator validates and cleans input
type InputValidator struct {
	validator ValidatorFunc
}

// NewInputValidator creates an input validation middleware
func NewInputValidator(validator ValidatorFunc) *InputValidator {
	return &InputValidator{validator: validator}
}

// Name returns the middleware name
func (m *InputValidator) Name() string {
	return "InputValidator"
}

// Execute trims the input and validates it
func (m *InputValidator) Execute(ctx *middleware.Context, next middleware.Handler) error {
	ctx.Input = strings.TrimSpace(ctx.Input)
	if m.validator != nil {
		if err := m.validator(ctx.Input); err != nil {
			return err
		}
	}
	return next(ctx)
}

var defaultBlocked = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script\b`),
	regexp.MustCompile(`(?i)ignore (all )?(the )?previous instructions`),
}

// MessageRules rejects empty messages, messages longer than maxLength
// characters and messages matching a blocked pattern. A non-positive
// maxLength uses DefaultMaxLength; nil blocked uses the built-in patterns.
func MessageRules(maxLength int, blocked []*regexp.Regexp) ValidatorFunc {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if blocked == nil {
		blocked = defaultBlocked
	}
	return func(input string) error {
		if input == "" {
			return fmt.Errorf("%w: empty message", middleware.ErrInvalidInput)
		}
		if n := utf8.RuneCountInString(input); n > maxLength {
			return fmt.Errorf("%w: message has %d characters, limit is %d", middleware.ErrInvalidInput, n, maxLength)
		}
		for _, re := range blocked {
			if re.MatchString(input) {
				return fmt.Errorf("%w: blocked content", middleware.ErrInvalidInput)
			}
		}
		return nil
	}
}

// ResponseFilter filters or transforms the reply
type ResponseFilter struct {
	filter FilterFunc
}

// NewResponseFilter creates a reply filtering middleware
func NewResponseFilter(filter FilterFunc) *ResponseFilter {
	return &ResponseFilter{filter: filter}
}

// Name returns the middleware name
func (m *ResponseFilter) Name() string {
	return "ResponseFilter"
}

// Execute filters the reply
func (m *ResponseFilter) Execute(ctx *middleware.Context, next middleware.Handler) error {
	err := next(ctx)
	if err != nil {
		return err
	}
	if ctx.Reply != nil && m.filter != nil {
		return m.filter(ctx.Reply)
	}
	return nil
}

// TidyReply trims the reply text and makes sure Sources is never nil, so
// it encodes as an empty list.
func TidyReply(r *reply.Reply) error {
	r.Response = strings.TrimSpace(r.Response)
	if r.Sources == nil {
		r.Sources = []string{}
	}
	return nil
}
