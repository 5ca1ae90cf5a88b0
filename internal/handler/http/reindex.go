package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/service"
	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
	"github.com/utafrali/catalog-sync/pkg/httputil"
	"github.com/utafrali/catalog-sync/pkg/validator"
)

const storeErrorMessage = "Error reindexing products"

// Reindexer runs a sync and reports on it.
type Reindexer interface {
	Reindex(ctx context.Context, mode domain.Mode, req service.Request) (domain.SyncReport, error)
	DefaultMode() domain.Mode
}

// ReindexHandler serves the admin and storefront reindex routes.
type ReindexHandler struct {
	service Reindexer
	logger  *slog.Logger
}

// NewReindexHandler creates a new reindex HTTP handler.
func NewReindexHandler(svc Reindexer, logger *slog.Logger) *ReindexHandler {
	return &ReindexHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// reindexQuery holds the optional query parameters of both routes.
type reindexQuery struct {
	Limit int    `validate:"omitempty,min=1,max=100000"`
	Mode  string `validate:"omitempty,oneof=direct event"`
}

// adminReindexRequest is the optional JSON body of POST /admin/reindex.
// A limit in the body wins over the query parameter.
type adminReindexRequest struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=100000"`
}

func parseQuery(r *http.Request) (reindexQuery, error) {
	var q reindexQuery
	values := r.URL.Query()
	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return q, apperrors.InvalidInput(fmt.Sprintf("limit must be a positive integer, got %q", v))
		}
		q.Limit = n
	}
	q.Mode = values.Get("mode")
	if err := validator.Validate(&q); err != nil {
		return q, invalidInput(err)
	}
	return q, nil
}

// invalidInput turns err into a 400 and keeps it in the chain so that field
// details reach the response.
func invalidInput(err error) error {
	return fmt.Errorf("%w: %w", apperrors.InvalidInput(err.Error()), err)
}

// --- Response DTOs ---

// AdminReindexResponse is the body of a successful POST /admin/reindex.
type AdminReindexResponse struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	TaskUID       *int64   `json:"taskUid"`
	TotalProducts int      `json:"total_products"`
	IndexedCount  int      `json:"indexed_count"`
	FailedIDs     []string `json:"failed_ids"`
}

// AdminErrorResponse is the body of a failed POST /admin/reindex.
type AdminErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Hint    string            `json:"hint,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// StoreReindexResponse is the body of a successful GET /store/reindex-products.
// IndexedIDs is always present for direct runs and absent for event runs,
// which set Note instead.
type StoreReindexResponse struct {
	Message       string    `json:"message"`
	TotalProducts int       `json:"total_products"`
	IndexedCount  int       `json:"indexed_count"`
	IndexedIDs    *[]string `json:"indexed_ids,omitempty"`
	Note          string    `json:"note,omitempty"`
	FailedIDs     []string  `json:"failed_ids"`
	RunID         string    `json:"run_id"`
}

// StoreErrorResponse is the body of a failed GET /store/reindex-products.
type StoreErrorResponse struct {
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Hint    string            `json:"hint,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// --- Handlers ---

// AdminReindex handles POST /admin/reindex. It always pushes directly to the
// search engine and covers published and draft products.
func (h *ReindexHandler) AdminReindex(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		h.writeAdminError(w, r, err)
		return
	}
	var body adminReindexRequest
	if err := validator.DecodeAndValidate(r, &body); err != nil {
		h.writeAdminError(w, r, invalidInput(err))
		return
	}
	if body.Limit > 0 {
		q.Limit = body.Limit
	}

	rep, err := h.service.Reindex(r.Context(), domain.ModeDirect, service.Request{
		Filter: domain.Filter{Statuses: service.AdminStatuses},
		Limit:  q.Limit,
	})
	if err != nil {
		h.writeAdminError(w, r, err)
		return
	}

	msg := rep.Message
	if rep.Status == domain.RunCompleted {
		msg = fmt.Sprintf("Reindexed %d products", rep.Total)
	}
	httputil.WriteJSON(w, http.StatusOK, AdminReindexResponse{
		Success:       rep.Status == domain.RunCompleted || rep.Status == domain.RunPartial,
		Message:       msg,
		TaskUID:       rep.LastTaskUID(),
		TotalProducts: rep.Total,
		IndexedCount:  len(rep.Succeeded),
		FailedIDs:     rep.FailedIDs(),
	})
}

// StoreReindex handles GET /store/reindex-products in the configured mode.
// A mode query parameter overrides it.
func (h *ReindexHandler) StoreReindex(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	rep, err := h.service.Reindex(r.Context(), domain.Mode(q.Mode), service.Request{Limit: q.Limit})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	resp := StoreReindexResponse{
		Message:       rep.Message,
		TotalProducts: rep.Total,
		IndexedCount:  len(rep.Succeeded),
		FailedIDs:     rep.FailedIDs(),
		RunID:         rep.RunID,
	}
	if rep.Mode == domain.ModeEvent {
		resp.Note = rep.Note
	} else {
		ids := rep.Succeeded
		if ids == nil {
			ids = []string{}
		}
		resp.IndexedIDs = &ids
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *ReindexHandler) writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := httputil.ErrorDetails(err)
	h.logFailure(r, err, status)
	httputil.WriteJSON(w, status, AdminErrorResponse{
		Success: false,
		Error:   body.Message,
		Code:    body.Code,
		Hint:    body.Hint,
		Fields:  body.Fields,
	})
}

func (h *ReindexHandler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := httputil.ErrorDetails(err)
	h.logFailure(r, err, status)
	httputil.WriteJSON(w, status, StoreErrorResponse{
		Message: storeErrorMessage,
		Error:   body.Message,
		Hint:    body.Hint,
		Fields:  body.Fields,
	})
}

func (h *ReindexHandler) logFailure(r *http.Request, err error, status int) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		level = slog.LevelError
	}
	httputil.Logger(r, h.logger).Log(r.Context(), level, "reindex request failed",
		slog.String("error", err.Error()),
		slog.Int("status", status),
		slog.String("path", r.URL.Path),
	)
}
