package handlers

import (
	"bytes"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/kozaktomas/fuzzysearch/internal/state"
)

// setupSSEConnection sets up SSE headers. On failure, writes an error
// response and returns false.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return flusher, true
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

// streamStateEvents streams every state change of bus until the client
// disconnects. The first event is the state at connection time. A client
// that falls more than constants.WatchBuffer states behind loses the oldest
// queued ones but always receives the newest.
func streamStateEvents(w http.ResponseWriter, r *http.Request, bus *state.Bus) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	for st := range state.Watch(r.Context(), bus) {
		sendSSEEvent(w, flusher, "state", st)
	}
}
