// Package domain defines core entities, ports, and domain-specific errors.
package domain

import "errors"

// Error taxonomy (sentinels) mapping each kind to its recovery behavior.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrAuthFailure       = errors.New("upstream auth failure")
	ErrConfigError       = errors.New("config error")
	ErrModelFailure      = errors.New("model failure")
	ErrUnavailable       = errors.New("unavailable")
	ErrInternal          = errors.New("internal error")
)

// RateLimitError is raised by the Reddit client on an explicit HTTP 429.
// RetryAfter is the number of seconds the upstream asked the caller to wait,
// zero when no Retry-After header was present.
type RateLimitError struct {
	RetryAfter float64
}

func (e *RateLimitError) Error() string {
	return "reddit: rate limited"
}

func (e *RateLimitError) Unwrap() error { return ErrUpstreamRateLimit }

// AlertConfigurationError marks a rule whose condition cannot be evaluated.
// The evaluator logs and skips the rule rather than aborting the run.
type AlertConfigurationError struct {
	RuleID string
	Reason string
}

func (e *AlertConfigurationError) Error() string {
	return "alert rule " + e.RuleID + ": " + e.Reason
}

func (e *AlertConfigurationError) Unwrap() error { return ErrConfigError }
