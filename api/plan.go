package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	coachx "github.com/tanpawarit/habit-elevate/agent/agents/coach"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

type planResponse struct {
	Success bool         `json:"success"`
	Plan    *coachx.Plan `json:"plan"`
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	if s.deps.Planner == nil {
		writeError(w, http.StatusServiceUnavailable, "Goal planning is not configured")
		return
	}

	var req coachx.PlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	plan, err := s.deps.Planner.Generate(r.Context(), req)
	if errors.Is(err, contractx.ErrValidation) {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("generate goal plan failed")
		writeError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, planResponse{Success: true, Plan: &plan})
}
