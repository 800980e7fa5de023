package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"
)

// ConnectionKind distinguishes the ways a connection can fail.
type ConnectionKind string

const (
	// ConnFailure is any failure to establish or use a connection that is
	// not a refusal or reset (DNS failure, unreachable network, TLS, ...).
	ConnFailure ConnectionKind = "failure"

	// ConnRefused means the remote host actively refused the connection.
	ConnRefused ConnectionKind = "refused"

	// ConnReset means an established connection was reset or cut short.
	ConnReset ConnectionKind = "reset"
)

// TimeoutError represents a request that exceeded the configured timeout,
// either waiting for the response or idling between stream frames.
type TimeoutError struct {
	// Upstream is the name of the upstream where the timeout occurred
	Upstream string

	// Timeout is the configured timeout duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream %q request timeout after %s", e.Upstream, e.Timeout)
}

// ConnectionError represents a network-level failure talking to the upstream.
type ConnectionError struct {
	// Upstream is the name of the upstream
	Upstream string

	// Kind classifies the failure
	Kind ConnectionKind

	// Cause is the underlying network error
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream %q connection %s: %v", e.Upstream, e.Kind, e.Cause)
	}
	return fmt.Sprintf("upstream %q connection %s", e.Upstream, e.Kind)
}

// Unwrap returns the underlying error for error chain support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// StatusError represents a non-2xx response from the upstream.
type StatusError struct {
	// Upstream is the name of the upstream that returned the error
	Upstream string

	// StatusCode is the HTTP status code
	StatusCode int

	// Message is the upstream error message, or the raw body when it
	// could not be decoded
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %q error (status %d): %s", e.Upstream, e.StatusCode, e.Message)
}

// ParseError represents a response body that is not a valid envelope.
type ParseError struct {
	// Upstream is the name of the upstream that returned the malformed response
	Upstream string

	// RawResponse is the raw response body that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("upstream %q response parse error: %v", e.Upstream, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// StreamError represents a failure while reading a streaming response body.
type StreamError struct {
	// Upstream is the name of the upstream where the error occurred
	Upstream string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream %q stream error: %s: %v", e.Upstream, e.Message, e.Cause)
	}
	return fmt.Sprintf("upstream %q stream error: %s", e.Upstream, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether err is a network-transient failure: a
// timeout, or a connection that failed, was refused or was reset.
// Cancellation by the caller is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return true
	}

	// context.DeadlineExceeded satisfies net.Error, so rule it out first.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classify converts an error returned by the HTTP client (or by reading a
// response body) into a typed upstream error.
func (c *Client) classify(err error, timedOut bool) error {
	if timedOut {
		return &TimeoutError{Upstream: c.config.Name, Timeout: c.config.Timeout}
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, syscall.ETIMEDOUT):
		return &TimeoutError{Upstream: c.config.Name, Timeout: c.config.Timeout}
	case errors.Is(err, syscall.ECONNREFUSED):
		return &ConnectionError{Upstream: c.config.Name, Kind: ConnRefused, Cause: err}
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE), errors.Is(err, io.ErrUnexpectedEOF):
		return &ConnectionError{Upstream: c.config.Name, Kind: ConnReset, Cause: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &TimeoutError{Upstream: c.config.Name, Timeout: c.config.Timeout}
	default:
		return &ConnectionError{Upstream: c.config.Name, Kind: ConnFailure, Cause: err}
	}
}
