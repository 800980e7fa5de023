package proxy

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type decodeTarget struct {
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		maxBytes    int64
		wantErr     bool
		wantMessage string
		want        decodeTarget
	}{
		{
			name: "valid body",
			body: `{"prompt":"hi","stream":true}`,
			want: decodeTarget{Prompt: "hi", Stream: true},
		},
		{
			name: "trailing whitespace",
			body: "{\"prompt\":\"hi\"}\n  ",
			want: decodeTarget{Prompt: "hi"},
		},
		{
			name: "unknown fields are ignored",
			body: `{"prompt":"hi","temperature":0.2}`,
			want: decodeTarget{Prompt: "hi"},
		},
		{
			name:        "empty body",
			body:        "",
			wantErr:     true,
			wantMessage: "request body is empty",
		},
		{
			name:        "malformed JSON",
			body:        `{"prompt":`,
			wantErr:     true,
			wantMessage: "invalid JSON",
		},
		{
			name:        "wrong type",
			body:        `{"prompt":42}`,
			wantErr:     true,
			wantMessage: "invalid JSON",
		},
		{
			name:        "trailing object",
			body:        `{"prompt":"a"}{"prompt":"b"}`,
			wantErr:     true,
			wantMessage: "single JSON object",
		},
		{
			name:        "oversized body",
			body:        `{"prompt":"` + strings.Repeat("x", 64) + `"}`,
			maxBytes:    16,
			wantErr:     true,
			wantMessage: "request body exceeds 16 bytes",
		},
		{
			name:     "body within limit",
			body:     `{"prompt":"ok"}`,
			maxBytes: 64,
			want:     decodeTarget{Prompt: "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var got decodeTarget
			err := DecodeJSON(rec, req, tt.maxBytes, &got)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("expected %+v, got %+v", tt.want, got)
				}
				return
			}

			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("expected RequestError, got %v", err)
			}
			if reqErr.Field != "body" {
				t.Errorf("expected field body, got %q", reqErr.Field)
			}
			if !strings.Contains(reqErr.Message, tt.wantMessage) {
				t.Errorf("expected message containing %q, got %q", tt.wantMessage, reqErr.Message)
			}
			if status, _ := StatusFor(err); status != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", status)
			}
		})
	}
}

func TestDecodeJSON_OversizedUnwrapsMaxBytesError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prompt":"`+strings.Repeat("y", 100)+`"}`))
	var got decodeTarget
	err := DecodeJSON(httptest.NewRecorder(), req, 10, &got)

	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		t.Fatalf("expected wrapped MaxBytesError, got %v", err)
	}
	if maxErr.Limit != 10 {
		t.Errorf("expected limit 10, got %d", maxErr.Limit)
	}
}
