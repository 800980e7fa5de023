package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"shareai/chatrelay/pkg/proxy"
	"shareai/chatrelay/pkg/proxy/types"
)

// Recovery turns a handler panic into a 500 envelope and logs the stack.
// http.ErrAbortHandler is re-panicked so the server can abort the
// connection as usual.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "panic in handler",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				_ = proxy.WriteJSON(w, http.StatusInternalServerError, types.Envelope{
					Code: http.StatusInternalServerError,
					Msg:  types.MsgInternal,
					Data: types.ErrorData{Error: types.MsgInternal},
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
