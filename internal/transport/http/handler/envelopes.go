package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/auth-otp-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// UserEnvelope wraps current-session responses. Only safe fields leave the
// boundary; the password hash never does.
type UserEnvelope struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone,omitempty"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Status    string  `json:"status"`
}

func toUserEnvelope(u *domain.User) UserEnvelope {
	return UserEnvelope{
		ID:        u.UUID,
		Email:     u.Email,
		Phone:     u.Phone,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Status:    string(u.Status),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorKind: kind})
}

// writeDomainError maps a service error onto a status code and a
// machine-readable kind. Store failures are reported opaquely; the wrapped
// diagnostics stay in the server logs.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error(), "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error(), "conflict")
	case errors.Is(err, domain.ErrDatabase):
		writeError(w, http.StatusInternalServerError, "database error", "database_error")
	default:
		writeError(w, http.StatusInternalServerError, "internal error", "internal")
	}
}
