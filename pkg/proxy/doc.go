// Package proxy is the presentation layer of the chat relay's HTTP API.
//
// It owns the response envelope, Server-Sent Events framing, request body
// decoding, and the translation of core errors to HTTP statuses
// (StatusFor, HandleError). The route handlers live in proxy/handlers and
// the middleware chain in proxy/middleware.
//
// # Streaming
//
// SSEWriter frames every payload as "data:" lines followed by a blank
// line and flushes after each event. A chunk containing newlines is split
// across several "data:" lines so that clients reassemble it exactly:
//
//	sse := proxy.NewSSEWriter(w)
//	_ = sse.WriteData("Hello\nworld") // data: Hello\ndata: world\n\n
//	_ = sse.WriteData("[DONE]")
package proxy
