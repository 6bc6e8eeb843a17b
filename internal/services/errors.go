package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrQuotaExceeded means the provider rejected a call because the daily
	// cost budget is spent. Terminal for the current run.
	ErrQuotaExceeded = errors.New("provider quota exceeded")
	// ErrRateLimited means the provider asked us to slow down. The same
	// request should be retried after the supplied delay.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrNotFound marks a missing prerequisite, e.g. a channel without an
	// uploads playlist. The affected source is skipped, never retried.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks bad per-item data. Logged and skipped.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks an unusable configuration value.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks failures worth retrying through the queue policy.
	ErrTransient = errors.New("transient failure")
)

// RateLimitedError carries the provider-supplied retry delay.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// RetryDelay extracts the provider-supplied delay from a rate-limit error.
// The fallback is returned when err does not carry one.
func RetryDelay(err error, fallback time.Duration) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	return fallback
}

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsPerItem reports whether an error should be counted against a single video
// rather than aborting the surrounding batch.
func IsPerItem(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
