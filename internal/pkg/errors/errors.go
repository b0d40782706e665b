// Package errors writes the JSON error envelope used by the management API.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"leadhook/internal/pkg/validator"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeValidation        = "VALIDATION_FAILED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	WriteJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// WriteValidation answers 422 with per-field messages when err came from
// the validator, and 400 otherwise.
func WriteValidation(w http.ResponseWriter, err error) {
	var verr *validator.ValidationError
	if stderrors.As(err, &verr) {
		WriteError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "Validation failed", verr.Fields)
		return
	}
	WriteError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
