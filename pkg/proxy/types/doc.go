// Package types defines the wire types of the chat relay's HTTP API.
//
// Every JSON response is wrapped in an Envelope:
//
//	{"code": 200, "msg": "success", "data": {...}}
//
// Requests are decoded into ChatRequest (or AsyncChatRequest) and checked
// with Validate before an agent is built from them.
package types
