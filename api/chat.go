package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	responderx "github.com/tanpawarit/habit-elevate/agent/agents/responder"
)

type chatRequest struct {
	Message    string `json:"message"`
	UserID     string `json:"user_id"`
	HabitFocus string `json:"habit_focus"`
}

// handleChat streams the exchange as server-sent events, one "data: <json>" frame per event.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := s.deps.Chat.Stream(r.Context(), responderx.Request{
		Message:    req.Message,
		UserID:     strings.TrimSpace(req.UserID),
		HabitFocus: strings.TrimSpace(req.HabitFocus),
	})
	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Msg("marshal stream event failed")
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			log.Debug().Err(err).Msg("client went away while streaming")
			return
		}
		flusher.Flush()
	}
}
