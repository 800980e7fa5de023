// Package agent implements the request-execution core of the relay: a
// stateful chat agent that owns one conversation, calls the upstream
// chat-completions endpoint with bounded exponential-backoff retry, and
// relays streamed tokens to a consumer.
//
// # Components
//
//   - WithRetry runs a fallible operation under a RetryPolicy and returns
//     a fresh RetryOutcome describing the attempts it made.
//   - Conversation is the ordered role/content history of one agent.
//   - ChatAgent drives blocking (Run, Step) and streaming (StreamRun)
//     request cycles. Failures are captured into the Result, never returned.
//   - Registry maps an agent Kind to its constructor. KindChat is
//     registered in the default registry.
//   - Relay bridges a streaming run to an external consumer through a
//     bounded channel and emits chunk, done, meta and error events.
//
// # Basic Usage
//
//	a, err := agent.Create(agent.KindChat, agent.Config{
//	    APIKey:     os.Getenv("SHAREAI_API_KEY"),
//	    BaseURL:    "https://api.openai.com",
//	    Model:      "gpt-4o-mini",
//	    MaxRetries: 3,
//	    RetryDelay: time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res := a.Run(ctx, "Hello!", "You are terse.")
//	if res.Failed() {
//	    log.Printf("run failed after %d attempts: %s", a.RetryOutcome().Attempts, res.Error)
//	}
//
// # Concurrency
//
// An agent is single-owner: Run, StreamRun and Step must not be called
// concurrently on the same instance. Getters may be called from other
// goroutines. Stop is cooperative; it is observed before each attempt and
// between stream frames. Use the context for hard cancellation.
package agent
