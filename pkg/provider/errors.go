package provider

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for provider operations. The lister's retry policy is
// driven entirely by these: throttling, timeouts, and provider outages are
// retried at range granularity; configuration and auth failures abort the
// owning listing task.
var (
	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrBucketNotFound indicates the bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProviderUnavailable indicates the provider service is unavailable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrThrottled indicates the request was rate limited by the provider.
	ErrThrottled = errors.New("request throttled")

	// ErrTimeout indicates a single listing call exceeded its deadline.
	ErrTimeout = errors.New("request timed out")
)

// Error wraps provider failures with the operation and bucket context.
type Error struct {
	Op     string
	Bucket string
	Prefix string
	Err    error
}

func (e *Error) Error() string {
	if e.Prefix != "" {
		return fmt.Sprintf("s3 %s: %s prefix %q: %v", e.Op, e.Bucket, e.Prefix, e.Err)
	}
	return fmt.Sprintf("s3 %s: %s: %v", e.Op, e.Bucket, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsThrottled reports whether the request was rate limited.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsAccessDenied reports whether the error indicates insufficient permissions.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsBucketNotFound reports whether the bucket does not exist.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}

// IsInvalidCredentials reports whether authentication failed.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsFatal reports whether the error is a configuration or auth failure that
// cannot succeed on retry. A fatal error aborts the owning listing task.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrBucketNotFound) ||
		errors.Is(err, ErrInvalidCredentials)
}

// IsRetryable reports whether the error is a transient remote condition
// worth retrying with backoff: throttling, timeouts, connectivity blips, or
// a provider outage. Anything not fatal is treated as transient so a flaky
// range degrades to a skipped range instead of a dead run.
func IsRetryable(err error) bool {
	if IsFatal(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
