package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

type fakeNetError struct{ timeout bool }

func (e fakeNetError) Error() string   { return "fake net error" }
func (e fakeNetError) Timeout() bool   { return e.timeout }
func (e fakeNetError) Temporary() bool { return false }

var _ net.Error = fakeNetError{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", &TimeoutError{Upstream: "u"}, true},
		{"refused", &ConnectionError{Upstream: "u", Kind: ConnRefused}, true},
		{"reset inside stream error", &StreamError{Upstream: "u", Cause: &ConnectionError{Kind: ConnReset}}, true},
		{"wrapped timeout", fmt.Errorf("call: %w", &TimeoutError{}), true},
		{"raw econnrefused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"raw econnreset", syscall.ECONNRESET, true},
		{"net timeout", fakeNetError{timeout: true}, true},
		{"net non-timeout", fakeNetError{timeout: false}, false},
		{"status", &StatusError{StatusCode: 500}, false},
		{"parse", &ParseError{Cause: errors.New("x")}, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"plain", errors.New("validation failed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&StatusError{Upstream: "u", StatusCode: 502, Message: "bad gateway"}, `upstream "u" error (status 502): bad gateway`},
		{&ConnectionError{Upstream: "u", Kind: ConnRefused}, `upstream "u" connection refused`},
		{&StreamError{Upstream: "u", Message: "failed"}, `upstream "u" stream error: failed`},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}
