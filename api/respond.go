package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

const maxBodyBytes = 1 << 20

type successBody struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("write json response failed")
	}
}

func writeSuccess(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, successBody{Status: "success", Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writeEnvelopeError maps a failed store envelope to a status: ErrValidation is 400,
// ErrNotFound is 404, anything else uses fallback.
func writeEnvelopeError[T any](w http.ResponseWriter, env contractx.Envelope[T], fallback int) {
	writeError(w, statusFor(env.Err, fallback), env.Message)
}

func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, contractx.ErrValidation), errors.Is(err, contractx.ErrScheduling):
		return http.StatusBadRequest
	case errors.Is(err, contractx.ErrNotFound):
		return http.StatusNotFound
	default:
		return fallback
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		return errors.Join(contractx.ErrValidation, err)
	}
	return nil
}
