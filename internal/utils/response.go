package utils

import (
	"encoding/json"
	"net/http"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/models"
)

// WriteJSON writes v with the given status. Encoding errors are returned so
// the caller can log them; the status line is already sent by then.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes the {"error": message} body every endpoint uses.
func WriteError(w http.ResponseWriter, status int, message string) error {
	return WriteJSON(w, status, models.ErrorResponse{Error: message})
}

// HTTPStatus maps an error kind to a status for endpoints without a fixed
// failure status of their own.
func HTTPStatus(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindValidation, apperror.KindVerification:
		return http.StatusBadRequest
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicError hides the detail of unclassified errors from clients.
func PublicError(err error) string {
	if apperror.KindOf(err) == apperror.KindUnknown {
		return "Internal server error"
	}
	return apperror.PublicMessage(err)
}
