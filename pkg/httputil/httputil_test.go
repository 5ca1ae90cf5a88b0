package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
	"github.com/utafrali/catalog-sync/pkg/logger"
	"github.com/utafrali/catalog-sync/pkg/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// --- WriteJSON ---

func TestWriteJSON_SetsContentTypeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusAccepted, map[string]any{"ok": true})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

// --- WriteError ---

func TestWriteError_Classification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"app error", apperrors.NotFound("product", "p1"), http.StatusNotFound, "NOT_FOUND"},
		{"configuration", apperrors.ConfigurationMissing("event bus", "set EVENT_BUS"), http.StatusBadRequest, "CONFIGURATION_MISSING"},
		{"source", apperrors.SourceUnavailable(errors.New("down")), http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE"},
		{"conflict sentinel", fmt.Errorf("run: %w", apperrors.ErrConflict), http.StatusConflict, "CONFLICT"},
		{"invalid sentinel", apperrors.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/admin/reindex", nil)

			WriteError(rec, req, tt.err, testLogger())

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestWriteError_InternalHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(rec, req, errors.New("password=hunter2"), testLogger())

	resp := decodeResponse(t, rec)
	assert.Equal(t, "an internal error occurred", resp.Error.Message)
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestWriteError_IncludesHintAndRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.WithCorrelationID(context.Background(), "corr-1"))

	WriteError(rec, req, apperrors.ConfigurationMissing("search engine", "set SEARCH_ENGINE"), testLogger())

	resp := decodeResponse(t, rec)
	assert.Equal(t, "set SEARCH_ENGINE", resp.Error.Hint)
	assert.Equal(t, "corr-1", resp.Error.RequestID)
}

// --- ErrorDetails ---

func TestErrorDetails_FieldErrors(t *testing.T) {
	type opts struct {
		Limit int `json:"limit" validate:"omitempty,min=1"`
	}
	verr := validator.Validate(opts{Limit: -1})
	require.Error(t, verr)

	status, body := ErrorDetails(fmt.Errorf("%w: %w", apperrors.InvalidInput(verr.Error()), verr))

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", body.Code)
	assert.Contains(t, body.Fields, "Limit")
}

func TestErrorDetails_NoFieldsForPlainErrors(t *testing.T) {
	_, body := ErrorDetails(apperrors.InvalidInput("limit must be a positive integer"))
	assert.Nil(t, body.Fields)
}

// --- Logger ---

func TestLogger_PrefersRequestScoped(t *testing.T) {
	scoped := testLogger()
	fallback := testLogger()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Same(t, fallback, Logger(req, fallback))

	req = req.WithContext(logger.NewContext(req.Context(), scoped))
	assert.Same(t, scoped, Logger(req, fallback))
}
