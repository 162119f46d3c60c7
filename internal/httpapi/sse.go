package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

const sseWriteTimeout = 3 * time.Second

// sseStream manages a Server-Sent Events connection, adapted from the
// REST server's streaming helper for the catalog's long-running
// operations (archive initialize, index rebuild).
type sseStream struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	f.Flush()
	return &sseStream{w: w, f: f}, nil
}

func (s *sseStream) send(event, data string) bool {
	rc := http.NewResponseController(s.w)
	_ = rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))
	defer func() { _ = rc.SetWriteDeadline(time.Time{}) }()

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		log.Printf("httpapi: SSE write error for %q: %v", event, err)
		return false
	}
	s.f.Flush()
	return true
}

func (s *sseStream) sendJSON(event string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("httpapi: SSE marshal error for %q: %v", event, err)
		return false
	}
	return s.send(event, string(data))
}
