package agent

import (
	"context"
	"fmt"
	"log/slog"
)

// DoneMarker is the data of the terminal done event.
const DoneMarker = "[DONE]"

// DefaultRelayBuffer is the chunk queue capacity used when none is given.
const DefaultRelayBuffer = 64

// EventType identifies a relay event.
type EventType string

const (
	EventChunk EventType = "chunk"
	EventDone  EventType = "done"
	EventMeta  EventType = "meta"
	EventError EventType = "error"
)

// Event is one item delivered to a relay consumer.
type Event struct {
	Type  EventType     `json:"type"`
	Data  string        `json:"data,omitempty"`
	Retry *RetryOutcome `json:"retry_info,omitempty"`
	Error string        `json:"error,omitempty"`
}

// relayItem travels on the chunk queue. The producer sends exactly one
// item with end set, after which it sends nothing.
type relayItem struct {
	chunk  string
	end    bool
	result *Result
}

// Relay bridges a streaming run to a consumer. A run's chunks pass through
// a bounded FIFO queue: the agent's chunk callback blocks while the queue
// is full, so a slow consumer slows the upstream read.
type Relay struct {
	buffer int
	logger *slog.Logger
}

// NewRelay creates a relay with the given queue capacity.
func NewRelay(buffer int, logger *slog.Logger) *Relay {
	if buffer <= 0 {
		buffer = DefaultRelayBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{buffer: buffer, logger: logger}
}

// Run starts a.StreamRun and delivers its events to emit in order: one
// EventChunk per delta, then either EventDone followed by EventMeta
// carrying the retry outcome, or a single EventError. Exactly one terminal
// sequence is emitted.
//
// If emit fails, the run is stopped, remaining chunks are discarded and
// the emit error returned. Run returns after the producer has finished.
func (r *Relay) Run(ctx context.Context, a Agent, prompt, systemPrompt string, emit func(Event) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan relayItem, r.buffer)
	go r.produce(ctx, a, prompt, systemPrompt, queue)

	for item := range queue {
		if item.end {
			return r.terminate(a, item.result, emit)
		}
		if err := emit(Event{Type: EventChunk, Data: item.chunk}); err != nil {
			r.logger.DebugContext(ctx, "relay consumer failed, stopping run", "error", err)
			cancel()
			a.Stop()
			drain(queue)
			return err
		}
	}
	return nil
}

func (r *Relay) produce(ctx context.Context, a Agent, prompt, systemPrompt string, queue chan<- relayItem) {
	var result *Result
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "relay producer panicked", "panic", p)
			result = failedResult(fmt.Errorf("agent panicked: %v", p))
		}
		queue <- relayItem{end: true, result: result}
	}()

	result = a.StreamRun(ctx, prompt, systemPrompt, func(chunk string) {
		select {
		case queue <- relayItem{chunk: chunk}:
		case <-ctx.Done():
		}
	})
}

func (r *Relay) terminate(a Agent, result *Result, emit func(Event) error) error {
	if result == nil || result.Failed() {
		msg := "stream ended without a result"
		if result != nil {
			msg = result.Error
		}
		return emit(Event{Type: EventError, Error: msg})
	}

	if err := emit(Event{Type: EventDone, Data: DoneMarker}); err != nil {
		return err
	}
	outcome := a.RetryOutcome()
	return emit(Event{Type: EventMeta, Retry: &outcome})
}

func drain(queue <-chan relayItem) {
	for item := range queue {
		if item.end {
			return
		}
	}
}
