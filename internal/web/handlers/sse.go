package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/smart-attendance/internal/constants"
)

// EventStream is a source of session events that SSE clients subscribe to.
type EventStream interface {
	AddListener() chan SessionEvent
	RemoveListener(ch chan SessionEvent)
}

// sseWriter frames events as text/event-stream and flushes each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &sseWriter{w: w, flusher: flusher}, true
}

func (s *sseWriter) event(name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// comment writes an SSE comment line, which clients ignore. Proxies see traffic and keep
// the connection open.
func (s *sseWriter) comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// streamSSEEvents subscribes to the stream named by the {id} URL parameter and relays its
// events until the client goes away or the stream closes. The first event is a "status"
// event carrying initial(stream).
func streamSSEEvents(w http.ResponseWriter, r *http.Request, lookup func(string) EventStream, initial func(EventStream) any) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing session ID")
		return
	}
	stream := lookup(id)
	if stream == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	sse, ok := newSSEWriter(w)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events := stream.AddListener()
	defer stream.RemoveListener(events)

	if err := sse.event("status", initial(stream)); err != nil {
		return
	}

	keepalive := time.NewTicker(constants.StreamKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if err := sse.comment("keepalive"); err != nil {
				return
			}
		case ev, open := <-events:
			if !open {
				return
			}
			if err := sse.event(ev.Type, ev); err != nil {
				logger.Debug("sse write failed", "session", id, "error", err)
				return
			}
		}
	}
}
