package tineye

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Sentinel errors wrapped by the typed errors below.
// Callers can match them with errors.Is regardless of the concrete error type.
var (
	// ErrInvalidAPIURL is returned when the base API URL is empty or not an absolute http(s) URL.
	ErrInvalidAPIURL = errors.New("invalid API URL: must be an absolute http or https URL")

	// ErrMissingAPIKey is returned when no credential is supplied at construction.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProxyAddress is returned when the SOCKS5 proxy address is not in host:port form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrEmptyImageURL is returned when SearchURL is called with a blank image URL.
	ErrEmptyImageURL = errors.New("image URL must not be empty")

	// ErrEmptyImage is returned when SearchData is called without image bytes.
	ErrEmptyImage = errors.New("image data must not be empty")

	// ErrMissingStatus is returned when a response body carries neither "code" nor "status".
	ErrMissingStatus = errors.New("response has no status field")

	// ErrBodyTooLarge is returned when a response body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body too large")
)

// ConfigurationError reports invalid client construction arguments.
// It is never retryable.
type ConfigurationError struct {
	// Field names the offending argument (e.g. "apiURL").
	Field string
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("tineye: configuration error (%s): %v", e.Field, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// RequestError reports invalid caller-supplied arguments caught before any network activity.
type RequestError struct {
	// Param names the offending parameter (e.g. "limit").
	Param string
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *RequestError) Error() string {
	return fmt.Sprintf("tineye: invalid request parameter %s: %v", e.Param, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error { return e.Err }

// APIErrorKind classifies an APIError.
type APIErrorKind int

const (
	// KindHTTP means the server answered with a non-2xx HTTP status.
	KindHTTP APIErrorKind = iota

	// KindApplication means the HTTP exchange succeeded but the body carried a failure code.
	KindApplication

	// KindTransport means no response was received (DNS, connection refused, TLS, ...).
	KindTransport

	// KindTimeout means the per-call deadline expired before a response was read.
	KindTimeout

	// KindCanceled means the caller's context was canceled.
	KindCanceled
)

// String returns a human-readable name of the kind.
func (k APIErrorKind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindApplication:
		return "application"
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// APIError reports that the remote endpoint refused the call, or that no
// response could be obtained at all.
type APIError struct {
	// Kind tells which layer failed.
	Kind APIErrorKind
	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int
	// Code is the in-body application code, zero when absent.
	Code int
	// Messages are the server supplied messages, or the raw body text when it was not JSON.
	Messages []string
	// Err is the underlying transport error, if any.
	Err error
}

// Error implements error.
func (e *APIError) Error() string {
	var sb strings.Builder
	sb.WriteString("tineye: API error (")
	sb.WriteString(e.Kind.String())
	sb.WriteString(")")
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " status=%d", e.StatusCode)
	}
	if e.Code != 0 {
		fmt.Fprintf(&sb, " code=%d", e.Code)
	}
	if msg := e.Message(); msg != "" {
		sb.WriteString(": ")
		sb.WriteString(msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying transport error.
func (e *APIError) Unwrap() error { return e.Err }

// Message joins the server messages into a single line.
func (e *APIError) Message() string {
	return strings.Join(e.Messages, "; ")
}

// Timeout reports whether the call failed because its deadline expired.
func (e *APIError) Timeout() bool { return e.Kind == KindTimeout }

// ProtocolError reports a response that could not be interpreted as the
// documented JSON shape.
type ProtocolError struct {
	// StatusCode is the HTTP status of the offending response.
	StatusCode int
	// Body is a prefix of the raw body, kept for diagnostics.
	Body string
	// Err is the decoding failure.
	Err error
}

// Error implements error.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("tineye: protocol error (status=%d): %v", e.StatusCode, e.Err)
}

// Unwrap returns the decoding failure.
func (e *ProtocolError) Unwrap() error { return e.Err }

// maxErrorBody bounds how much of a raw body is copied into errors.
const maxErrorBody = 512

func truncateBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= maxErrorBody {
		return s
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
