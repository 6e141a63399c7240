package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EventSource fans out relayed game messages, see relay.Hub.
type EventSource interface {
	Subscribe() chan []byte
	Unsubscribe(ch chan []byte)
}

// handleEvents streams the same messages the websocket relay carries as
// Server-Sent Events, named by their "type" field.
func handleEvents(events EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		ch := events.Subscribe()
		defer events.Unsubscribe(ch)

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-ch:
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName(data), data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}

func eventName(data []byte) string {
	var m struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(data, &m) != nil || m.Type == "" {
		return "message"
	}
	return m.Type
}
