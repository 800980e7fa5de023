package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shareai/chatrelay/pkg/agent"
	"shareai/chatrelay/pkg/config"
	"shareai/chatrelay/pkg/proxy"
	"shareai/chatrelay/pkg/proxy/types"
	"shareai/chatrelay/pkg/tasks"
)

// TaskIDParam is the URL parameter of the task lookup route.
const TaskIDParam = "taskID"

// ChatHandler serves the chat endpoints.
type ChatHandler struct {
	factory *AgentFactory
	tasks   TaskService
	config  func() *config.Config
	logger  *slog.Logger
}

// NewChatHandler creates the chat handlers. taskSvc may be nil, in which
// case the async endpoints answer 503.
func NewChatHandler(factory *AgentFactory, taskSvc TaskService, current func() *config.Config, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{factory: factory, tasks: taskSvc, config: current, logger: logger}
}

// Completions handles POST /chat/completions: one blocking (or, with
// stream set, internally streamed) run answered as a single JSON body.
func (h *ChatHandler) Completions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req types.ChatRequest
	if !h.decode(w, r, &req, req.Validate) {
		return
	}

	a, err := prepare(h.factory, req)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	h.logger.InfoContext(ctx, "chat completion requested",
		"model", h.model(req.Model),
		"messages", len(req.Messages),
		"stream", req.Stream,
	)

	var result *agent.Result
	if req.Stream {
		result = a.StreamRun(ctx, req.Prompt, req.SystemPrompt, nil)
	} else {
		result = a.Run(ctx, req.Prompt, req.SystemPrompt)
	}

	if result.Failed() {
		h.writeError(w, r, resultError(result), types.RetryData{RetryInfo: a.RetryOutcome()})
		return
	}
	if err := proxy.WriteSuccess(w, types.NewChatResponse(a)); err != nil {
		h.logger.ErrorContext(ctx, "failed to write response", "error", err)
	}
}

// Stream handles POST /chat/stream. Deltas are relayed as SSE events,
// followed by [DONE] and the retry outcome, or by a single error event.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req types.ChatRequest
	if !h.decode(w, r, &req, req.Validate) {
		return
	}

	a, err := prepare(h.factory, req)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	h.logger.InfoContext(ctx, "chat stream requested",
		"model", h.model(req.Model),
		"messages", len(req.Messages),
	)

	sse := proxy.NewSSEWriter(w)
	chunks := 0
	start := time.Now()

	err = h.relay().Run(ctx, a, req.Prompt, req.SystemPrompt, func(ev agent.Event) error {
		switch ev.Type {
		case agent.EventChunk:
			chunks++
			return sse.WriteData(ev.Data)
		case agent.EventDone:
			return sse.WriteData(ev.Data)
		case agent.EventMeta:
			return sse.WriteJSON(map[string]interface{}{"retry_info": ev.Retry})
		case agent.EventError:
			return sse.WriteJSON(map[string]string{"error": ev.Error})
		}
		return nil
	})
	if err != nil {
		h.logger.WarnContext(ctx, "client disconnected during stream",
			"chunks_sent", chunks,
			"error", err,
		)
		return
	}

	h.logger.InfoContext(ctx, "chat stream finished",
		"chunks_sent", chunks,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

// Async handles POST /chat/async: the request is queued as a task and its
// ID returned at once.
func (h *ChatHandler) Async(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req types.AsyncChatRequest
	if !h.decode(w, r, &req, req.Validate) {
		return
	}
	if h.tasks == nil {
		h.writeError(w, r, tasks.ErrClosed, nil)
		return
	}

	task, err := h.tasks.Submit(ctx, tasks.Request{
		Messages:     req.History(),
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
		Stream:       req.Stream,
		MaxRetries:   req.MaxRetriesValue(),
		RetryDelay:   req.RetryDelayDuration(),
	}, req.CallbackURL)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	if err := proxy.WriteSuccess(w, types.AsyncChatResponse{TaskID: task.ID, Status: string(task.Status)}); err != nil {
		h.logger.ErrorContext(ctx, "failed to write response", "error", err)
	}
}

// Task handles GET /chat/tasks/{taskID}.
func (h *ChatHandler) Task(w http.ResponseWriter, r *http.Request) {
	if h.tasks == nil {
		h.writeError(w, r, tasks.ErrNotFound, nil)
		return
	}

	task, err := h.tasks.Get(r.Context(), chi.URLParam(r, TaskIDParam))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	_ = proxy.WriteSuccess(w, types.TaskResponse{
		TaskID:      task.ID,
		Status:      string(task.Status),
		Content:     task.Content,
		Error:       task.Error,
		RetryInfo:   task.Retry,
		CreatedAt:   task.CreatedAt,
		CompletedAt: task.CompletedAt,
	})
}

// decode reads and validates the body, writing a 400 on failure.
func (h *ChatHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}, validate func(types.Limits) error) bool {
	cfg := h.config()
	if err := proxy.DecodeJSON(w, r, cfg.Server.MaxBodyBytes, v); err != nil {
		h.writeError(w, r, err, nil)
		return false
	}
	if err := validate(limits(cfg)); err != nil {
		h.writeError(w, r, err, nil)
		return false
	}
	return true
}

// prepare builds an agent for req and seeds its history.
func prepare(f *AgentFactory, req types.ChatRequest) (agent.Agent, error) {
	a, err := f.New(Overrides{
		Model:      req.Model,
		MaxRetries: req.MaxRetriesValue(),
		RetryDelay: req.RetryDelayDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	for _, m := range req.History() {
		if err := a.AddMessage(m.Role, m.Content); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (h *ChatHandler) relay() *agent.Relay {
	return agent.NewRelay(h.config().Relay.BufferSize, h.logger)
}

func (h *ChatHandler) model(override string) string {
	if override != "" {
		return override
	}
	return h.config().Upstream.Model
}

func (h *ChatHandler) writeError(w http.ResponseWriter, r *http.Request, err error, data interface{}) {
	status, _ := proxy.StatusFor(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "chat request failed", "status", status, "error", err)

	if werr := proxy.HandleError(w, err, data); werr != nil {
		h.logger.ErrorContext(r.Context(), "failed to write error response", "error", werr)
	}
}

func limits(cfg *config.Config) types.Limits {
	return types.Limits{MaxRetries: cfg.Agent.MaxRetriesLimit, MaxRetryDelay: cfg.Agent.MaxRetryDelay}
}

func resultError(result *agent.Result) error {
	if err := result.Err(); err != nil {
		return err
	}
	return errors.New(result.Error)
}
