package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// DecodeJSON reads a JSON request body of at most maxBytes into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v interface{}) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return &RequestError{Field: "body", Message: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit), Err: err}
		case errors.Is(err, io.EOF):
			return &RequestError{Field: "body", Message: "request body is empty", Err: err}
		default:
			return &RequestError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err), Err: err}
		}
	}
	if dec.More() {
		return &RequestError{Field: "body", Message: "request body must contain a single JSON object"}
	}
	return nil
}
