// Package errors defines the typed error taxonomy shared by the extraction
// pipeline, the media fetcher and the job runner.
package errors

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrorType discriminates pipeline failures
type ErrorType string

const (
	ErrorTypeInvalidURL       ErrorType = "invalid_url"
	ErrorTypeExtraction       ErrorType = "extraction"
	ErrorTypeAuthRequired     ErrorType = "auth_required"
	ErrorTypePrivateOrExpired ErrorType = "private_or_expired"
	ErrorTypeDownload         ErrorType = "download"
	ErrorTypeNetwork          ErrorType = "network"
	ErrorTypeRateLimit        ErrorType = "rate_limit"
	ErrorTypeServerError      ErrorType = "server_error"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeParsing          ErrorType = "parsing"
	ErrorTypeBrowser          ErrorType = "browser"
	ErrorTypeUnknown          ErrorType = "unknown"
)

// StoryUnavailableMessage is surfaced for every failed story extraction.
const StoryUnavailableMessage = "Story may be private, expired, or requires login"

// Error is a pipeline error carrying its discriminant
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	b.WriteString(" error")
	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given type
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Newf creates an error of the given type with a formatted message
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a type and message to an underlying error
func Wrap(err error, t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// WithCode creates an error carrying an HTTP status code
func WithCode(t ErrorType, code int, message string) *Error {
	return &Error{Type: t, Message: message, Code: code}
}

// TypeOf returns the discriminant of err, or ErrorTypeUnknown for foreign errors
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type anywhere in its chain
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Err
	}
	return false
}

// IsRetryable reports whether an operation failing with this type may succeed on retry
func IsRetryable(t ErrorType) bool {
	switch t {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode determines if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch {
	case statusCode == 0:
		// Network error, no response
		return true
	case statusCode == 429:
		return true
	case statusCode >= 500 && statusCode < 600:
		return true
	default:
		return false
	}
}

// IsExtractionFailure reports whether err means "this strategy found no usable
// media", which the orchestrator converts into a fallback attempt.
func IsExtractionFailure(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeInvalidURL, ErrorTypeDownload:
		return false
	default:
		return err != nil
	}
}

var (
	privateOrExpiredWords = regexp.MustCompile(`\b(private|expired|not available|isn't available|no longer available|unavailable|not found)\b`)
	loginWords            = regexp.MustCompile(`\b(login|log in|logged in|sign in|signed in)\b`)
)

// ClassifyStoryFailure maps the cause of a failed story extraction to
// private_or_expired, auth_required or extraction (unknown cause).
// Infrastructure failures (browser, network, rate limit, server) keep their
// own type. HTTP status codes take precedence over message text.
func ClassifyStoryFailure(err error) ErrorType {
	if err == nil {
		return ErrorTypeExtraction
	}

	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case 401, 403:
			return ErrorTypeAuthRequired
		case 404, 410:
			return ErrorTypePrivateOrExpired
		}
	}

	switch t := TypeOf(err); t {
	case ErrorTypeAuthRequired, ErrorTypePrivateOrExpired:
		return t
	case ErrorTypeBrowser, ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return t
	}

	msg := strings.ToLower(err.Error())
	switch {
	case privateOrExpiredWords.MatchString(msg):
		return ErrorTypePrivateOrExpired
	case loginWords.MatchString(msg):
		return ErrorTypeAuthRequired
	default:
		return ErrorTypeExtraction
	}
}

// UserMessage renders err as an actionable one-line message for job records
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch e.Type {
	case ErrorTypeInvalidURL:
		return "Invalid Instagram URL: " + e.Message
	case ErrorTypePrivateOrExpired:
		return StoryUnavailableMessage + " (content appears private or expired)"
	case ErrorTypeAuthRequired:
		return StoryUnavailableMessage + " (login required; configure a session credential)"
	case ErrorTypeDownload:
		return "Media download failed: " + e.Message
	default:
		return e.Error()
	}
}
