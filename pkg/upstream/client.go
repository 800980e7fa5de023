package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// CompletionsPath is appended to the configured base URL.
const CompletionsPath = "/v1/chat/completions"

// maxErrorBody bounds how much of a non-2xx body is kept in a StatusError.
const maxErrorBody = 4096

// Config holds the connection settings for one upstream endpoint.
type Config struct {
	// Name labels the upstream in logs and errors.
	// Default: "upstream"
	Name string

	// BaseURL is the endpoint root without the /v1 suffix.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout bounds a blocking request and, for streams, the wait for the
	// response headers and the idle gap between two frames.
	// Default: 60s
	Timeout time.Duration

	// MaxIdleConns is the maximum number of idle connections kept in the pool.
	// Default: 100
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum number of idle connections per host.
	// Default: 10
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle pooled connection is kept.
	// Default: 90s
	IdleConnTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "upstream"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 100
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 10
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
// A Client is safe for concurrent use and should be reused.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client. The client's own Timeout
// should be zero; the upstream timeout is applied per call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client with connection pooling.
func NewClient(config Config, opts ...Option) *Client {
	config.applyDefaults()

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		ResponseHeaderTimeout: config.Timeout,
		ForceAttemptHTTP2:     true,
	}

	c := &Client{
		config: config,
		// No client-wide timeout: it would also cut long-running streams.
		client: &http.Client{Transport: transport},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the configured upstream name.
func (c *Client) Name() string {
	return c.config.Name
}

// Endpoint returns the full chat-completions URL.
func (c *Client) Endpoint() string {
	return c.config.BaseURL + CompletionsPath
}

// Complete performs one blocking chat-completions call.
func (c *Client) Complete(ctx context.Context, req *ChatRequest) (*ChatCompletion, error) {
	body := *req
	body.Stream = false

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.send(ctx, reqCtx, &body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, c.classify(err, false)
	}

	var completion ChatCompletion
	if err := json.Unmarshal(raw, &completion); err != nil {
		return nil, &ParseError{
			Upstream:    c.config.Name,
			RawResponse: truncate(string(raw), maxErrorBody),
			Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
		}
	}
	return &completion, nil
}

// Stream performs one streaming chat-completions call. onDelta is invoked
// synchronously with every non-empty content delta, in arrival order. If
// onDelta returns an error the stream is abandoned and that error returned.
//
// Stream returns nil when the upstream sends "data: [DONE]" or closes the
// body cleanly.
func (c *Client) Stream(ctx context.Context, req *ChatRequest, onDelta func(string) error) error {
	body := *req
	body.Stream = true

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var idle atomic.Bool
	watchdog := time.AfterFunc(c.config.Timeout, func() {
		idle.Store(true)
		cancel()
	})
	defer watchdog.Stop()

	resp, err := c.send(ctx, streamCtx, &body)
	if err != nil {
		if idle.Load() && ctx.Err() == nil {
			return &TimeoutError{Upstream: c.config.Name, Timeout: c.config.Timeout}
		}
		return err
	}
	defer resp.Body.Close()

	reader := newFrameReader(resp.Body, c.logger.With("upstream", c.config.Name))
	for {
		watchdog.Reset(c.config.Timeout)

		chunk, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cause := c.classify(err, idle.Load())
			if errors.Is(err, bufio.ErrTooLong) {
				cause = &ParseError{Upstream: c.config.Name, Cause: err}
			}
			return &StreamError{
				Upstream: c.config.Name,
				Message:  "failed to read stream",
				Cause:    cause,
			}
		}

		if delta := chunk.Content(); delta != "" {
			if err := onDelta(delta); err != nil {
				return err
			}
		}
	}
}

// send issues the POST on reqCtx. ctx is the caller's context; when it is
// done its error is returned unclassified.
func (c *Client) send(ctx, reqCtx context.Context, body *ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.Endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	if body.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	c.logger.DebugContext(ctx, "sending request to upstream",
		"upstream", c.config.Name,
		"model", body.Model,
		"messages", len(body.Messages),
		"stream", body.Stream,
	)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, c.classify(err, false)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Upstream:   c.config.Name,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(errorBody, resp.StatusCode),
		}
	}
	return resp, nil
}

// Close releases idle pooled connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// errorMessage extracts error.message from an OpenAI-style error body and
// falls back to the raw body.
func errorMessage(body []byte, status int) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return http.StatusText(status)
	}
	return msg
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
