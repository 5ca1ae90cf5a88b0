// Package remote reads catalog snapshots from the product service's HTTP
// listing API.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/utafrali/catalog-sync/internal/catalog"
	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/pkg/httpclient"
	"github.com/utafrali/catalog-sync/pkg/pagination"
)

const serviceName = "product-service"

// Config holds the product service connection settings.
type Config struct {
	BaseURL  string
	PageSize int
	Timeout  time.Duration
	// RetryMax bounds retries of a single page request.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Reader pages through GET /api/v1/products with relations embedded.
// Page requests are idempotent, so transport errors and 5xx answers are
// retried.
type Reader struct {
	base     string
	pageSize int
	client   *retryablehttp.Client
}

var _ catalog.Reader = (*Reader)(nil)

// NewReader creates a remote reader.
func NewReader(cfg Config, logger *slog.Logger) (*Reader, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("remote catalog: invalid base url %q", cfg.BaseURL)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 15 * time.Second
	if cfg.RetryMax > 0 {
		rc.RetryMax = cfg.RetryMax
	}
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}
	rc.Logger = nil
	if logger != nil {
		rc.Logger = logger
	}
	// Hand the final response back instead of a generic "giving up" error
	// so the body can be decoded.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Reader{
		base:     base,
		pageSize: pagination.NewParams(1, cfg.PageSize).PerPage,
		client:   rc,
	}, nil
}

func (r *Reader) Name() string { return "remote" }

// Fetch reads pages until limit products are collected or the last page is
// reached. Total is the product service's total_count.
func (r *Reader) Fetch(ctx context.Context, filter domain.Filter, limit int) (domain.Snapshot, error) {
	if limit <= 0 {
		limit = catalog.DefaultLimit
	}

	snap := domain.Snapshot{Products: []domain.Product{}}
	page := pagination.NewParams(1, min(r.pageSize, limit))

	for {
		res, err := r.fetchPage(ctx, filter, page)
		if err != nil {
			return domain.Snapshot{}, err
		}
		snap.Total = res.TotalCount
		if cap(snap.Products) == 0 {
			snap.Products = make([]domain.Product, 0, min(max(res.TotalCount, len(res.Data)), limit))
		}

		remaining := limit - len(snap.Products)
		if len(res.Data) > remaining {
			res.Data = res.Data[:remaining]
		}
		snap.Products = append(snap.Products, res.Data...)

		if len(snap.Products) >= limit || !res.HasNext || len(res.Data) == 0 {
			return snap, nil
		}
		page = page.Next()
	}
}

func (r *Reader) fetchPage(ctx context.Context, filter domain.Filter, page pagination.Params) (pagination.Result[domain.Product], error) {
	var out pagination.Result[domain.Product]

	q := url.Values{}
	page.Encode(q)
	q.Set("expand", "variants,images,categories")
	for _, s := range filter.Statuses {
		q.Add("status", s)
	}
	for _, id := range filter.IDs {
		q.Add("id", id)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, r.base+"/api/v1/products?"+q.Encode(), nil)
	if err != nil {
		return out, fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return out, fmt.Errorf("fetch page %d: %w", page.Page, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("fetch page %d: %w", page.Page, httpclient.ParseResponseError(resp, serviceName))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode page %d: %w", page.Page, err)
	}
	return out, nil
}

// Ping calls the product service liveness endpoint once, without retries.
func (r *Reader) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+"/health/live", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := r.client.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("product service ping: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("product service ping: status %d", resp.StatusCode)
	}
	return nil
}
