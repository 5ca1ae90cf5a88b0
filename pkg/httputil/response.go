package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
	"github.com/utafrali/catalog-sync/pkg/logger"
	"github.com/utafrali/catalog-sync/pkg/validator"
)

// Response is the standard JSON response envelope for endpoints that do not
// define their own body shape.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Hint      string            `json:"hint,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// Logger returns the request-scoped logger when the RequestLogger middleware
// has stored one, otherwise fallback.
func Logger(r *http.Request, fallback *slog.Logger) *slog.Logger {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		return fallback
	}
	return l
}

// ErrorDetails classifies err into a status code and an ErrorResponse.
// Internal errors get a generic message so that causes do not leak. A
// validator.ValidationError anywhere in the chain fills Fields.
func ErrorDetails(err error) (int, *ErrorResponse) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Status, &ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Hint:    appErr.Hint,
			Fields:  fieldErrors(err),
		}
	}

	status := apperrors.HTTPStatus(err)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return status, &ErrorResponse{Code: "NOT_FOUND", Message: "resource not found"}
	case errors.Is(err, apperrors.ErrConflict):
		return status, &ErrorResponse{Code: "CONFLICT", Message: err.Error()}
	case errors.Is(err, apperrors.ErrInvalidInput):
		return status, &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, apperrors.ErrSourceUnavailable):
		return status, &ErrorResponse{Code: "SOURCE_UNAVAILABLE", Message: err.Error()}
	case errors.Is(err, apperrors.ErrConfigurationMissing):
		return status, &ErrorResponse{Code: "CONFIGURATION_MISSING", Message: err.Error()}
	}
	return http.StatusInternalServerError, &ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
}

// WriteError writes a standardized error response based on the error type
// and logs 5xx errors with the request-scoped logger.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	status, body := ErrorDetails(err)
	body.RequestID = logger.CorrelationIDFromContext(r.Context())

	if status >= http.StatusInternalServerError {
		Logger(r, fallback).ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: body})
}

func fieldErrors(err error) map[string]string {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return valErr.Fields()
	}
	return nil
}
