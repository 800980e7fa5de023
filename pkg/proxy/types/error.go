package types

import "fmt"

// Error messages used in envelopes.
const (
	MsgInvalidRequest = "invalid request"
	MsgNotFound       = "not found"
	MsgUpstreamError  = "upstream error"
	MsgUpstreamDown   = "upstream unavailable"
	MsgTimeout        = "upstream timeout"
	MsgCancelled      = "request cancelled"
	MsgBusy           = "server busy"
	MsgInternal       = "internal server error"
)

// ValidationError reports an invalid request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrorData is the data of an error envelope that has no richer payload.
type ErrorData struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
