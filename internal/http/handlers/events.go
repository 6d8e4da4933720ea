package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/iago/ai-webhook-back/internal/domain"
)

// Events opens a long-lived server-sent event stream. The subscription
// replays the buffered history first, then forwards every published event
// in order until the client goes away. Disconnects are a normal lifecycle
// step, not an error.
func (api *API) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeMessage(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	subscriber := api.broadcaster.Subscribe()
	defer api.broadcaster.Unsubscribe(subscriber)
	api.logf("stream client connected id=%s", subscriber.ID)

	ticker := time.NewTicker(api.keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			api.logf("stream client disconnected id=%s", subscriber.ID)
			return
		case event, open := <-subscriber.C:
			if !open {
				// The broadcaster dropped us as unresponsive.
				return
			}
			if err := writeSSE(w, flusher, event); err != nil {
				api.logf("stream write failed id=%s err=%v", subscriber.ID, err)
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event domain.ResultEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
