package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
	vapix "github.com/tanpawarit/habit-elevate/pkg/vapi"
)

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := s.deps.Webhook.Handle(r.Context(), payload)
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type registerUserRequest struct {
	UserID string `json:"user_id"`
	Phone  string `json:"phone"`
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	phone := vapix.NormalizePhone(req.Phone, s.cfg.DefaultCountryCode)
	userID := strings.TrimSpace(req.UserID)
	if err := s.deps.Owners.Register(r.Context(), userID, phone); err != nil {
		status := statusFor(err, http.StatusInternalServerError)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("user_id", userID).Msg("register user failed")
			writeError(w, status, "Failed to register user")
			return
		}
		writeError(w, status, err.Error())
		return
	}
	writeSuccess(w, map[string]string{"user_id": userID, "phone": phone}, "User registered successfully")
}

type scheduleCallRequest struct {
	PhoneNumber  string       `json:"phone_number"`
	ScheduleTime scheduleTime `json:"schedule_time"`
	UserID       string       `json:"user_id"`
}

// scheduleTime accepts RFC 3339 timestamps and zone-less "2006-01-02T15:04:05" values, which
// are read in the server's local zone.
type scheduleTime struct {
	time.Time
}

var scheduleLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

func (t *scheduleTime) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range scheduleLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid schedule_time %q", raw)
}

func (s *Server) handleScheduleCall(w http.ResponseWriter, r *http.Request) {
	var req scheduleCallRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	userID := strings.TrimSpace(req.UserID)
	if phone == "" || userID == "" || req.ScheduleTime.IsZero() {
		writeError(w, http.StatusBadRequest, "phone_number, schedule_time and user_id are required")
		return
	}

	calls := s.deps.Calls
	jobID, err := s.deps.Scheduler.Schedule("call:"+userID, req.ScheduleTime.Time, func(ctx context.Context) error {
		_, err := calls.Dispatch(ctx, phone, userID)
		return err
	})
	if errors.Is(err, contractx.ErrScheduling) {
		writeError(w, http.StatusBadRequest, "Scheduled time must be in the future.")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to schedule call: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Call scheduled for %s at %s", phone, req.ScheduleTime.Format(time.RFC3339)),
		"job_id":  jobID,
	})
}
