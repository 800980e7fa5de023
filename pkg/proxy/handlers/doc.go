// Package handlers implements the relay's HTTP endpoints.
//
// Every request gets a fresh agent from AgentFactory, built from the
// configuration current at that moment, so a hot-reloaded retry policy
// applies to the next request without touching in-flight ones.
//
//   - POST /chat/completions answers with one JSON envelope
//   - POST /chat/stream relays deltas as Server-Sent Events
//   - POST /chat/async queues a task and returns its ID
//   - GET /chat/tasks/{taskID} returns a task record
//   - GET /chat/ws relays a streaming run over a WebSocket
//
// Errors are translated to status codes by proxy.HandleError.
package handlers
