package upstream

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"

	// maxFrameSize bounds one SSE line.
	maxFrameSize = 1 << 20
)

// frameReader reads server-sent "data:" frames from a streaming response.
// Lines that are empty, not data lines, or not valid JSON are skipped.
type frameReader struct {
	scanner *bufio.Scanner
	logger  *slog.Logger
	done    bool
}

func newFrameReader(r io.Reader, logger *slog.Logger) *frameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &frameReader{scanner: scanner, logger: logger}
}

// Next returns the next decoded frame. It returns io.EOF after the
// [DONE] marker or at the end of the body.
func (f *frameReader) Next() (*StreamChunk, error) {
	if f.done {
		return nil, io.EOF
	}

	for f.scanner.Scan() {
		line := f.scanner.Text()
		if line == "" || !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if data == doneMarker {
			f.done = true
			return nil, io.EOF
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			f.logger.Debug("stream frame skipped", "error", err, "frame", truncate(data, 256))
			continue
		}
		return &chunk, nil
	}

	if err := f.scanner.Err(); err != nil {
		return nil, err
	}
	f.done = true
	return nil, io.EOF
}
