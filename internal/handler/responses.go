package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/linking"
	"github.com/osse101/adlink/internal/logger"
)

// Standard response types for consistent API responses

// SuccessResponse represents a simple successful operation message
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondJSON sends a JSON response with the given status code and payload
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	buf := getBuffer()
	defer putBuffer(buf)

	// Encode before writing headers so an encoding failure can still become a 500
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		slog.Error(LogMsgEncodeFailed, "error", err)
		http.Error(w, ErrMsgGenericServerError, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error(LogMsgWriteFailed, "error", err)
	}
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondServiceError logs err and maps it to a status and user message
func respondServiceError(w http.ResponseWriter, r *http.Request, opName string, err error) {
	status, msg := mapServiceErrorToUserMessage(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error(LogMsgRequestFailed, "operation", opName, "error", err)
	} else {
		log.Warn(LogMsgRequestFailed, "operation", opName, "error", err)
	}
	respondError(w, status, msg)
}

// User-facing error messages for service errors
const (
	ErrMsgGenericServerError = "Something went wrong"
	ErrMsgUnknownError       = "Unknown error"
	ErrMsgUnavailableError   = "The linking backend is temporarily unavailable. Please try again later."

	ErrMsgDialogNotFoundError      = "Connect dialog not found. Please reopen it."
	ErrMsgIntegrationNotFoundError = "Integration not found"
	ErrMsgUnknownProviderError     = "Unsupported ad platform"
	ErrMsgInvalidTransitionError   = "That action is not available at this step"
	ErrMsgTargetNotOfferedError    = "That account was not offered for this login"
	ErrMsgManualUnsupportedError   = "Manual setup is not available for this platform"
	ErrMsgUntrustedOriginError     = "Message origin is not trusted"
	ErrMsgInvalidStateError        = "Authorization link is invalid or has expired"
)

// mapServiceErrorToUserMessage maps domain errors to user-friendly HTTP responses
func mapServiceErrorToUserMessage(err error) (int, string) {
	if err == nil {
		return http.StatusInternalServerError, ErrMsgUnknownError
	}

	switch {
	case errors.Is(err, domain.ErrMissingContext):
		return http.StatusBadRequest, linking.MsgMissingContext
	case errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusBadRequest, ErrMsgUnknownProviderError
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest, ErrMsgInvalidStateError
	case errors.Is(err, domain.ErrUntrustedOrigin):
		return http.StatusForbidden, ErrMsgUntrustedOriginError
	case errors.Is(err, domain.ErrDialogNotFound):
		return http.StatusNotFound, ErrMsgDialogNotFoundError
	case errors.Is(err, domain.ErrIntegrationNotFound):
		return http.StatusNotFound, ErrMsgIntegrationNotFoundError
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, ErrMsgInvalidTransitionError
	case errors.Is(err, domain.ErrTargetNotOffered):
		return http.StatusConflict, ErrMsgTargetNotOfferedError
	case errors.Is(err, domain.ErrManualFallbackUnsupported):
		return http.StatusConflict, ErrMsgManualUnsupportedError
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, ErrMsgUnavailableError
	case errors.Is(err, domain.ErrDatabaseError):
		return http.StatusInternalServerError, ErrMsgGenericServerError
	}

	return http.StatusInternalServerError, ErrMsgGenericServerError
}
