package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/efebarandurmaz/ragrelay/internal/llm"
)

// sseSink streams relay output to the client as Server-Sent Events.
// Content deltas go out as plain data frames, the end of a successful
// stream as "data: [DONE]", and failures as a distinguishable error
// event so clients can tell a truncated answer from a finished one.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSESink(w http.ResponseWriter) (*sseSink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseSink{w: w, flusher: flusher}, nil
}

func (s *sseSink) SendDelta(delta string) error {
	// A newline inside the payload would end the frame early, so each
	// line gets its own data: field within the one event.
	for _, line := range strings.Split(delta, "\n") {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(s.w, "\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) SendDone() error {
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) SendError(err error) error {
	payload, merr := json.Marshal(errorDetail{
		Kind:    string(llm.Classify(err)),
		Message: err.Error(),
	})
	if merr != nil {
		payload = []byte(`{"kind":"upstream_unavailable","message":"stream failed"}`)
	}
	if _, werr := fmt.Fprintf(s.w, "event: error\ndata: %s\n\n", payload); werr != nil {
		return werr
	}
	s.flusher.Flush()
	return nil
}
