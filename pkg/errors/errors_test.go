package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	err := WithCode(ErrorTypeNotFound, 404, "resource not found")
	assert.Equal(t, "not_found error (code 404): resource not found", err.Error())

	wrapped := Wrap(fmt.Errorf("dial tcp: timeout"), ErrorTypeNetwork, "request failed")
	assert.Equal(t, "network error: request failed: dial tcp: timeout", wrapped.Error())
}

func TestTypeOfThroughWrapping(t *testing.T) {
	base := New(ErrorTypeRateLimit, "slow down")
	wrapped := fmt.Errorf("fast path: %w", base)

	assert.Equal(t, ErrorTypeRateLimit, TypeOf(wrapped))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
}

func TestIsType(t *testing.T) {
	inner := New(ErrorTypeNetwork, "reset")
	outer := Wrap(inner, ErrorTypeExtraction, "fast path failed")

	assert.True(t, IsType(outer, ErrorTypeExtraction))
	assert.True(t, IsType(outer, ErrorTypeNetwork))
	assert.False(t, IsType(outer, ErrorTypeDownload))
	assert.False(t, IsType(nil, ErrorTypeExtraction))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeNotFound))
	assert.False(t, IsRetryable(ErrorTypeInvalidURL))
}

func TestIsRetryableStatusCode(t *testing.T) {
	for _, code := range []int{0, 429, 500, 502, 503} {
		assert.True(t, IsRetryableStatusCode(code), "code %d", code)
	}
	for _, code := range []int{200, 401, 403, 404} {
		assert.False(t, IsRetryableStatusCode(code), "code %d", code)
	}
}

func TestIsExtractionFailure(t *testing.T) {
	assert.True(t, IsExtractionFailure(New(ErrorTypeExtraction, "no media")))
	assert.True(t, IsExtractionFailure(New(ErrorTypeNetwork, "timeout")))
	assert.True(t, IsExtractionFailure(errors.New("foreign")))
	assert.False(t, IsExtractionFailure(New(ErrorTypeInvalidURL, "bad")))
	assert.False(t, IsExtractionFailure(nil))
}

func TestClassifyStoryFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"private", errors.New("this content is private"), ErrorTypePrivateOrExpired},
		{"expired", errors.New("story expired"), ErrorTypePrivateOrExpired},
		{"login", errors.New("redirected to login page"), ErrorTypeAuthRequired},
		{"typed auth", New(ErrorTypeAuthRequired, "x"), ErrorTypeAuthRequired},
		{"unknown", errors.New("no media candidates"), ErrorTypeExtraction},
		{"nil", nil, ErrorTypeExtraction},
		{"author is not auth", New(ErrorTypeExtraction, "author unknown"), ErrorTypeExtraction},
		{"session word alone", errors.New("session cookie rejected by parser"), ErrorTypeExtraction},
		{"digits in text", errors.New("no media in 4040 bytes"), ErrorTypeExtraction},
		{"status 401", WithCode(ErrorTypeServerError, 401, "unauthorized"), ErrorTypeAuthRequired},
		{"status 404", WithCode(ErrorTypeNotFound, 404, "page not found"), ErrorTypePrivateOrExpired},
		{"closed browser", Wrap(New(ErrorTypeBrowser, "browser session is closed"), ErrorTypeBrowser, "browser render failed"), ErrorTypeBrowser},
		{"navigation", New(ErrorTypeNetwork, "navigation failed: net::ERR_CONNECTION_RESET while loading login page"), ErrorTypeNetwork},
		{"log in wording", fmt.Errorf("page says: %w", New(ErrorTypeExtraction, "Log in to see this story")), ErrorTypeAuthRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStoryFailure(tt.err))
		})
	}
}

func TestUserMessage(t *testing.T) {
	msg := UserMessage(New(ErrorTypeAuthRequired, "no media"))
	assert.Contains(t, msg, "may be private, expired, or requires login")

	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
}
