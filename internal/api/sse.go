package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leafwise/budtender/internal/session"
)

// handleEvents streams status events for a session as server-sent events.
// The stream closes once a terminal event (complete or error) is sent, or
// when the client disconnects.
func handleEvents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		if sessionID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "session id is required")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}

		events, cancel := deps.Sessions.Subscribe(sessionID)
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev := <-events:
				payload, err := json.Marshal(ev)
				if err != nil {
					slog.Error("marshaling status event", "error", err)
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				flusher.Flush()

				if ev.State != session.StatePending {
					return
				}
			}
		}
	}
}
