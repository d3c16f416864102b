package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapping(t *testing.T) {
	err := &Error{Op: "ListPage", Bucket: "b", Prefix: "p/", Err: ErrThrottled}

	assert.ErrorIs(t, err, ErrThrottled)
	assert.Contains(t, err.Error(), "b")
	assert.Contains(t, err.Error(), `"p/"`)

	noPrefix := &Error{Op: "New", Bucket: "b", Err: ErrBucketNotFound}
	assert.NotContains(t, noPrefix.Error(), "prefix")
}

func TestClassifiers(t *testing.T) {
	wrap := func(sentinel error) error {
		return &Error{Op: "ListPage", Bucket: "b", Err: sentinel}
	}

	assert.True(t, IsThrottled(wrap(ErrThrottled)))
	assert.True(t, IsAccessDenied(wrap(ErrAccessDenied)))
	assert.True(t, IsBucketNotFound(wrap(ErrBucketNotFound)))
	assert.True(t, IsInvalidCredentials(wrap(ErrInvalidCredentials)))

	assert.False(t, IsThrottled(wrap(ErrTimeout)))
	assert.False(t, IsAccessDenied(nil))
}

func TestIsFatal(t *testing.T) {
	for _, sentinel := range []error{ErrAccessDenied, ErrBucketNotFound, ErrInvalidCredentials} {
		assert.True(t, IsFatal(&Error{Op: "ListPage", Bucket: "b", Err: sentinel}), "%v", sentinel)
	}
	for _, sentinel := range []error{ErrThrottled, ErrTimeout, ErrProviderUnavailable} {
		assert.False(t, IsFatal(&Error{Op: "ListPage", Bucket: "b", Err: sentinel}), "%v", sentinel)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrThrottled))
	assert.True(t, IsRetryable(ErrProviderUnavailable))
	assert.True(t, IsRetryable(errors.New("connection reset by peer")), "unknown errors are treated transient")

	assert.False(t, IsRetryable(ErrAccessDenied))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(&Error{Op: "ListPage", Bucket: "b", Err: ErrBucketNotFound}))
}
