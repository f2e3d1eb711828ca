package middleware

import (
	"fmt"

	"github.com/sweetpotato0/wanderai/errors"
)

var (
	// ErrRateLimitExceeded indicates rate limit has been exceeded
	ErrRateLimitExceeded = fmt.Errorf("%w: rate limit exceeded", errors.ErrRateLimited)

	// ErrInvalidInput indicates input validation failed
	ErrInvalidInput = fmt.Errorf("%w: message rejected", errors.ErrInvalidInput)
)
