package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kozaktomas/attendance/internal/kiosk"
)

// sseKeepAlive is how often a comment line is written to idle streams.
const sseKeepAlive = 15 * time.Second

// setupSSEConnection sets the event stream headers.
// Returns the flusher and true on success. On failure, writes an error response and returns false.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
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

// streamEvents sends the initial status and then every broadcast event until
// the client disconnects or the listener is closed.
func streamEvents(w http.ResponseWriter, r *http.Request, events *kiosk.Broadcaster, initial kiosk.Status) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	eventCh := events.AddListener()
	defer events.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, kiosk.EventStatus, kiosk.Event{
		Type:    kiosk.EventStatus,
		Message: initial.Message,
		Data:    initial,
	})

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			flusher.Flush()
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
		}
	}
}
