package response

import (
	"encoding/json"
	"net/http"

	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/logger"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// SendJSON encodes and sends a JSON response
func SendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// ErrorResponse sends an error response with given status code and error message
func ErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string) {
	SendJSON(w, statusCode, ErrorBody{Error: errorMsg})
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.Invalid, errors.Admission, errors.NotFound, errors.Conflict:
		return http.StatusBadRequest
	case errors.Unauthorized:
		// A payment signature mismatch is a bad request, a bad token is not.
		if errors.CodeOf(err) == "signature_mismatch" {
			return http.StatusBadRequest
		}
		return http.StatusUnauthorized
	case errors.Forbidden:
		return http.StatusForbidden
	case errors.RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// FromError logs err and writes its terse client message. Unclassified errors never leak their text.
func FromError(w http.ResponseWriter, log *logger.Logger, err error) {
	status := StatusFor(err)

	msg := "Internal server error"
	var e *errors.Error
	if errors.As(err, &e) && e.Message != "" && errors.KindOf(err) != errors.Other {
		msg = e.Message
	}

	if status >= http.StatusInternalServerError {
		log.Error("Request failed: %v", err)
	} else {
		log.Warn("Request rejected (%d): %v", status, err)
	}
	SendJSON(w, status, ErrorBody{Error: msg, Code: errors.CodeOf(err)})
}
