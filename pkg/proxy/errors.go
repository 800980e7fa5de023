package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"shareai/chatrelay/pkg/agent"
	"shareai/chatrelay/pkg/proxy/types"
	"shareai/chatrelay/pkg/tasks"
	"shareai/chatrelay/pkg/upstream"
)

// RequestError reports a malformed or invalid request body.
type RequestError struct {
	Field   string
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// StatusFor maps an error to its HTTP status and envelope msg:
//
//   - request validation, invalid role or config: 400
//   - unknown task: 404
//   - cancelled or stopped run: 408
//   - upstream answered non-2xx: 502
//   - upstream unreachable, task queue full or closed: 503
//   - upstream timeout: 504
//   - anything else: 500
func StatusFor(err error) (int, string) {
	var (
		reqErr     *RequestError
		valErr     *types.ValidationError
		statusErr  *upstream.StatusError
		timeoutErr *upstream.TimeoutError
		connErr    *upstream.ConnectionError
	)

	switch {
	case errors.As(err, &reqErr), errors.As(err, &valErr),
		errors.Is(err, agent.ErrInvalidRole),
		errors.Is(err, agent.ErrDuplicateSystem),
		errors.Is(err, agent.ErrInvalidConfig),
		errors.Is(err, agent.ErrUnknownKind):
		return http.StatusBadRequest, types.MsgInvalidRequest
	case errors.Is(err, tasks.ErrNotFound):
		return http.StatusNotFound, types.MsgNotFound
	case errors.Is(err, agent.ErrStopped), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, types.MsgCancelled
	case errors.As(err, &statusErr):
		return http.StatusBadGateway, types.MsgUpstreamError
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, types.MsgTimeout
	case errors.As(err, &connErr):
		return http.StatusServiceUnavailable, types.MsgUpstreamDown
	case errors.Is(err, tasks.ErrQueueFull), errors.Is(err, tasks.ErrClosed):
		return http.StatusServiceUnavailable, types.MsgBusy
	default:
		return http.StatusInternalServerError, types.MsgInternal
	}
}

// HandleError writes err as an error envelope. A nil data gets an
// ErrorData with the error text, except for 500s, whose details stay in
// the logs.
func HandleError(w http.ResponseWriter, err error, data interface{}) error {
	status, msg := StatusFor(err)
	if data == nil {
		ed := types.ErrorData{Error: err.Error()}
		if status == http.StatusInternalServerError {
			ed.Error = msg
		}
		var reqErr *RequestError
		var valErr *types.ValidationError
		if errors.As(err, &valErr) {
			ed.Field = valErr.Field
			ed.Error = valErr.Message
		} else if errors.As(err, &reqErr) {
			ed.Field = reqErr.Field
			ed.Error = reqErr.Message
		}
		data = ed
	}
	return WriteJSON(w, status, types.Envelope{Code: status, Msg: msg, Data: data})
}
