package errors

import "errors"

// Sentinel errors for common error conditions
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates that the operation is not authorized
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrGeneration indicates that the language model call failed
	ErrGeneration = errors.New("generation failed")

	// ErrTimeout indicates that an external call exceeded its deadline
	ErrTimeout = errors.New("external call timed out")

	// ErrNoProvider indicates that no language model provider is configured
	ErrNoProvider = errors.New("no llm provider configured")

	// ErrSchema indicates structured output that could not be repaired into its schema
	ErrSchema = errors.New("structured output does not match schema")

	// ErrRetrieval indicates a knowledge base lookup failure
	ErrRetrieval = errors.New("knowledge base retrieval failed")

	// ErrRateLimited indicates a caller exceeded its request budget
	ErrRateLimited = errors.New("rate limit exceeded")
)
