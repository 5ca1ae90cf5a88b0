package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Sentinel error identity ---

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrConflict, ErrInternal,
		ErrServiceUnavail, ErrSourceUnavailable, ErrConfigurationMissing,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

// --- AppError behavior ---

func TestAppError_ErrorString_WithWrappedError(t *testing.T) {
	inner := fmt.Errorf("db connection lost")
	appErr := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Contains(t, appErr.Error(), "INTERNAL_ERROR")
	assert.Contains(t, appErr.Error(), "something broke")
	assert.Contains(t, appErr.Error(), "db connection lost")
}

func TestAppError_ErrorString_WithoutWrappedError(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "product not found"}
	assert.Equal(t, "NOT_FOUND: product not found", appErr.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "nope", Err: ErrNotFound}
	assert.True(t, errors.Is(appErr, ErrNotFound))
}

// --- Constructor functions ---

func TestNotFound(t *testing.T) {
	err := NotFound("route", "/store/reindex")
	require.NotNil(t, err)
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.Equal(t, "route /store/reindex not found", err.Message)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestConflict(t *testing.T) {
	err := Conflict("reindex already in progress")
	assert.Equal(t, "CONFLICT", err.Code)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestSourceUnavailable_KeepsCause(t *testing.T) {
	cause := errors.New("dial tcp 127.0.0.1:5432: connection refused")
	err := SourceUnavailable(cause)

	assert.Equal(t, "SOURCE_UNAVAILABLE", err.Code)
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
	assert.Contains(t, err.Message, "connection refused")
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "SOURCE_UNAVAILABLE: catalog source unavailable: "+cause.Error(), err.Error())
}

func TestSourceUnavailable_NilCause(t *testing.T) {
	err := SourceUnavailable(nil)
	assert.Equal(t, "catalog source unavailable", err.Message)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
}

func TestConfigurationMissing(t *testing.T) {
	err := ConfigurationMissing("search engine", "set SEARCH_ENGINE and MEILISEARCH_HOST")
	assert.Equal(t, "CONFIGURATION_MISSING", err.Code)
	assert.Equal(t, "search engine not configured", err.Message)
	assert.Equal(t, "set SEARCH_ENGINE and MEILISEARCH_HOST", err.Hint)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.True(t, errors.Is(err, ErrConfigurationMissing))
}

// --- HTTPStatus ---

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", InvalidInput("bad"), http.StatusBadRequest},
		{"wrapped app error", fmt.Errorf("run: %w", SourceUnavailable(errors.New("down"))), http.StatusServiceUnavailable},
		{"not found sentinel", ErrNotFound, http.StatusNotFound},
		{"conflict sentinel", fmt.Errorf("x: %w", ErrConflict), http.StatusConflict},
		{"configuration sentinel", ErrConfigurationMissing, http.StatusBadRequest},
		{"source sentinel", ErrSourceUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
