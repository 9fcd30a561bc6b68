package config

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the standard error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse is the standard success body
type SuccessResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// RespondJSON sends a JSON response with the given status code
func RespondJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// RespondSuccess sends a standard success response
func RespondSuccess(w http.ResponseWriter, statusCode int, message string, data map[string]any) {
	RespondJSON(w, statusCode, SuccessResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RespondCreated is a helper for 201 responses
func RespondCreated(w http.ResponseWriter, message string, data map[string]any) {
	RespondSuccess(w, http.StatusCreated, message, data)
}

// RespondBadRequest is a helper for 400 errors
func RespondBadRequest(w http.ResponseWriter, message string, details string) {
	RespondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "Bad Request",
		Message: message,
		Details: details,
	})
}

// RespondNotFound is a helper for 404 errors
func RespondNotFound(w http.ResponseWriter, message string) {
	RespondJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   "Not Found",
		Message: message,
	})
}

// RespondUnauthorized is a helper for 401 errors
func RespondUnauthorized(w http.ResponseWriter, message string) {
	RespondJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:   "Unauthorized",
		Message: message,
	})
}

// RespondConflict is a helper for 409 errors
func RespondConflict(w http.ResponseWriter, message string, details string) {
	RespondJSON(w, http.StatusConflict, ErrorResponse{
		Error:   "Conflict",
		Message: message,
		Details: details,
	})
}

// RespondUnprocessable is a helper for 422 validation failures
func RespondUnprocessable(w http.ResponseWriter, message string, details string) {
	RespondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "Unprocessable Entity",
		Message: message,
		Details: details,
	})
}

// RespondInternalError sends a generic 500 response. The underlying
// error is logged, never exposed to the client.
func RespondInternalError(w http.ResponseWriter, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Error("internal server error", "error", err)
	}
	RespondJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "Internal Server Error",
		Message: "An unexpected error occurred",
	})
}

// RespondNoContent is a helper for 204 responses (no body)
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
