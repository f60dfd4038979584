package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/notifyhub/pushsched/internal/domain"
)

// envelope is the uniform response shape every endpoint returns.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, envelope{Success: true, Data: data})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondErrorMsg(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, envelope{Success: false, Message: msg})
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrScheduleNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNotFound):
		respondErrorMsg(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidOperation),
		errors.Is(err, domain.ErrScheduleExpired):
		respondErrorMsg(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidTimezone),
		errors.Is(err, domain.ErrInvalidLocalTime),
		errors.Is(err, domain.ErrInvalidFireAt),
		errors.Is(err, domain.ErrInvalidAudience),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrInvalidAgeRange),
		errors.Is(err, domain.ErrInvalidToken):
		respondErrorMsg(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondErrorMsg(w, http.StatusInternalServerError, "internal server error")
	}
}
