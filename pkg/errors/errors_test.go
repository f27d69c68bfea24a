package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := New(ErrorTypeRateLimit, 432, "anti-crawler block")
	assert.Equal(t, "weibo rate_limit error (code 432): anti-crawler block", err.Error())

	err.Attempts = 4
	assert.Equal(t, "weibo rate_limit error (code 432, 4 attempts): anti-crawler block", err.Error())
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrorTypeNetwork, 0, cause, "request failed")
	assert.ErrorIs(t, err, cause)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeParsing))
	assert.False(t, IsRetryable(ErrorTypeNotFound))
}

func TestIsRetryableStatusCode(t *testing.T) {
	retryable := []int{0, 429, 432, 500, 502, 503}
	for _, code := range retryable {
		assert.True(t, IsRetryableStatusCode(code), "code %d", code)
	}

	terminal := []int{200, 400, 401, 403, 404}
	for _, code := range terminal {
		assert.False(t, IsRetryableStatusCode(code), "code %d", code)
	}
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeParsing, TypeOf(New(ErrorTypeParsing, 0, "bad json")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(fmt.Errorf("plain error")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(nil))

	wrapped := fmt.Errorf("outer: %w", New(ErrorTypeRateLimit, 432, "blocked"))
	assert.True(t, IsRateLimit(wrapped))
	assert.False(t, IsNotFound(wrapped))
}
