package entity

import (
	"errors"
	"fmt"
)

// Standard domain errors
var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded: too many requests in window")
	ErrInvalidRequest    = errors.New("invalid request: prompt is required")
	ErrNoCredentials     = errors.New("no upstream credentials configured")
	ErrUpstreamExhausted = errors.New("all upstream credentials failed")
	ErrEmptyAnswer       = errors.New("upstream returned an empty answer")
	ErrInternalServer    = errors.New("an internal error occurred")
)

// ExhaustedError is returned once every credential in the pool has failed.
// It carries the error of the last attempt.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("%s after %d attempts", ErrUpstreamExhausted, e.Attempts)
	}
	return fmt.Sprintf("%s after %d attempts: %v", ErrUpstreamExhausted, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (e *ExhaustedError) Is(target error) bool { return target == ErrUpstreamExhausted }

// UpstreamStatusError is a backend failure that carried an HTTP status.
type UpstreamStatusError struct {
	Code   int
	Status string // e.g. "RESOURCE_EXHAUSTED"
	Err    error
}

func (e *UpstreamStatusError) Error() string { return e.Err.Error() }

func (e *UpstreamStatusError) Unwrap() error { return e.Err }
