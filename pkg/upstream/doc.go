// Package upstream implements the HTTP transport to an OpenAI-compatible
// chat-completions endpoint.
//
// # Overview
//
// A Client sends requests to <base_url>/v1/chat/completions with bearer
// authentication. Two call shapes are supported:
//
//   - Complete performs one blocking POST and decodes choices[0].message.
//   - Stream performs a POST with "stream": true and reads the server-sent
//     event body line by line, forwarding every non-empty
//     choices[0].delta.content to a callback until the literal
//     "data: [DONE]" frame or the end of the body.
//
// The client performs exactly one attempt per call. Retrying is the
// caller's concern (see package agent); the client instead classifies
// every failure so the caller can decide.
//
// # Errors
//
// Failures are reported as typed errors:
//
//   - *TimeoutError: the request or an idle stream read exceeded the timeout
//   - *ConnectionError: the connection failed, was refused, or was reset
//   - *StatusError: the upstream answered with a non-2xx status
//   - *ParseError: a blocking response body was not a valid envelope
//   - *StreamError: reading the stream body failed (wraps one of the above)
//
// IsTransient reports whether an error belongs to the network-transient
// class (timeouts, connection failures) that is worth retrying. Status and
// parse errors are never transient. Malformed individual stream frames are
// skipped and never surface as errors.
//
// # Basic Usage
//
//	client := upstream.NewClient(upstream.Config{
//	    BaseURL: "https://api.openai.com",
//	    APIKey:  os.Getenv("SHAREAI_API_KEY"),
//	    Timeout: 60 * time.Second,
//	})
//	defer client.Close()
//
//	resp, err := client.Complete(ctx, &upstream.ChatRequest{
//	    Model:    "gpt-4o-mini",
//	    Messages: []upstream.Message{{Role: "user", Content: "Hello!"}},
//	})
package upstream
