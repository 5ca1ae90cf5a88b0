package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/utafrali/catalog-sync/internal/domain"
)

type fakeReader struct {
	mu       sync.Mutex
	products []domain.Product
	total    int
	err      error
	calls    int
	gotLimit int
	gotFilt  domain.Filter
	// block, when set, is waited on before returning.
	block chan struct{}
}

func (r *fakeReader) Name() string { return "fake" }

func (r *fakeReader) Fetch(ctx context.Context, filter domain.Filter, limit int) (domain.Snapshot, error) {
	r.mu.Lock()
	r.calls++
	r.gotLimit = limit
	r.gotFilt = filter
	block := r.block
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.Snapshot{}, ctx.Err()
		}
	}
	if r.err != nil {
		return domain.Snapshot{}, r.err
	}
	products := r.products
	if len(products) > limit {
		products = products[:limit]
	}
	total := r.total
	if total == 0 {
		total = len(r.products)
	}
	return domain.Snapshot{Products: products, Total: total}, nil
}

func (r *fakeReader) Ping(context.Context) error { return nil }

func products(n int) []domain.Product {
	out := make([]domain.Product, n)
	for i := range out {
		sku := fmt.Sprintf("SKU-%d", i)
		out[i] = domain.Product{
			ID:       fmt.Sprintf("prod_%03d", i),
			Title:    fmt.Sprintf("Product %d", i),
			Handle:   fmt.Sprintf("product-%d", i),
			Status:   domain.StatusPublished,
			Variants: []domain.Variant{{ID: "v", SKU: &sku}},
		}
	}
	return out
}
