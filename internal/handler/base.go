// Package handler provides HTTP handlers for the application.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/lososs/callagent/internal/middleware"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// JSON writes a JSON response with the appropriate headers.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// APIError writes an API error response in a consistent format.
func APIError(w http.ResponseWriter, r *http.Request, status int, message string) {
	JSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}
