package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"shareai/chatrelay/pkg/agent"
	"shareai/chatrelay/pkg/config"
	"shareai/chatrelay/pkg/proxy/types"
)

// requestReadTimeout bounds the wait for the client's request message.
const requestReadTimeout = 30 * time.Second

// WebSocketHandler bridges a streaming run onto a WebSocket. The client
// sends one ChatRequest; every relay event is sent back as a JSON text
// message and the connection is closed after the terminal event.
type WebSocketHandler struct {
	factory *AgentFactory
	config  func() *config.Config
	logger  *slog.Logger
}

// NewWebSocketHandler creates the GET /chat/ws handler.
func NewWebSocketHandler(factory *AgentFactory, current func() *config.Config, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{factory: factory, config: current, logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.config()
	if !checkOrigin(r, cfg.Server.CORS) {
		h.logger.WarnContext(r.Context(), "websocket origin rejected", "origin", r.Header.Get("Origin"))
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to accept websocket", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(cfg.Server.MaxBodyBytes)

	ctx := r.Context()
	req, err := h.readRequest(ctx, conn, cfg)
	if err != nil {
		if websocket.CloseStatus(err) != -1 {
			h.logger.DebugContext(ctx, "websocket closed before request")
			return
		}
		h.logger.WarnContext(ctx, "invalid websocket request", "error", err)
		if werr := wsjson.Write(ctx, conn, types.WSMessage{Type: agent.EventError, Error: err.Error()}); werr != nil {
			return
		}
		conn.Close(websocket.StatusPolicyViolation, "invalid request")
		return
	}

	a, err := prepare(h.factory, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to prepare agent", "error", err)
		_ = wsjson.Write(ctx, conn, types.WSMessage{Type: agent.EventError, Error: err.Error()})
		conn.Close(websocket.StatusInternalError, "agent unavailable")
		return
	}

	// Reading stops here; CloseRead keeps control frames flowing and
	// cancels ctx when the peer goes away.
	ctx = conn.CloseRead(ctx)

	chunks := 0
	relay := agent.NewRelay(cfg.Relay.BufferSize, h.logger)
	err = relay.Run(ctx, a, req.Prompt, req.SystemPrompt, func(ev agent.Event) error {
		if ev.Type == agent.EventChunk {
			chunks++
		}
		return wsjson.Write(ctx, conn, ev)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || websocket.CloseStatus(err) != -1 {
			h.logger.DebugContext(ctx, "websocket client went away", "chunks_sent", chunks)
		} else {
			h.logger.WarnContext(ctx, "websocket write failed", "chunks_sent", chunks, "error", err)
		}
		return
	}

	h.logger.InfoContext(ctx, "websocket stream finished", "chunks_sent", chunks)
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *WebSocketHandler) readRequest(ctx context.Context, conn *websocket.Conn, cfg *config.Config) (types.ChatRequest, error) {
	readCtx, cancel := context.WithTimeout(ctx, requestReadTimeout)
	defer cancel()

	var req types.ChatRequest
	if err := wsjson.Read(readCtx, conn, &req); err != nil {
		return req, err
	}
	return req, req.Validate(limits(cfg))
}

func checkOrigin(r *http.Request, cors config.CORSConfig) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(cors.AllowedOrigins, "*") || slices.Contains(cors.AllowedOrigins, origin)
}
