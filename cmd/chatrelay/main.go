// Chatrelay is an HTTP relay in front of an OpenAI-compatible chat
// completions API.
//
// It runs every request through a chat agent that retries transient
// upstream failures with exponential backoff, and exposes blocking,
// Server-Sent Events, WebSocket and asynchronous (task + callback)
// endpoints.
//
// Usage:
//
//	# Start the server with environment configuration only
//	chatrelay run
//
//	# Start with a configuration file
//	chatrelay run --config /etc/chatrelay/config.yaml
//
//	# One-shot chat against the configured upstream
//	chatrelay chat --stream "Explain exponential backoff"
//
//	# Delete finished tasks past their retention
//	chatrelay tasks prune
package main

import "os"

func main() {
	os.Exit(Execute())
}
