// Package postgres reads catalog snapshots straight from the catalog
// database.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/utafrali/catalog-sync/internal/catalog"
	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/pkg/database"
)

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Reader loads products and their relations with a single query. Relations
// are aggregated with correlated json_agg sub-selects so a snapshot is one
// round trip regardless of size.
type Reader struct {
	db     database.DBTX
	tracer database.QueryTracer
}

var _ catalog.Reader = (*Reader)(nil)

// NewReader creates a reader on db.
func NewReader(db database.DBTX) *Reader {
	return &Reader{db: db}
}

// WithQueryTracer replaces the tracer used for snapshot queries.
func (r *Reader) WithQueryTracer(t database.QueryTracer) *Reader {
	r.tracer = t
	return r
}

func (r *Reader) Name() string { return "postgres" }

const selectProducts = `
	SELECT p.id, p.title, p.description, p.handle, p.status, p.thumbnail,
		COALESCE((
			SELECT json_agg(json_build_object('id', v.id, 'sku', v.sku, 'title', v.title) ORDER BY v.variant_rank, v.id)
			FROM product_variant v
			WHERE v.product_id = p.id AND v.deleted_at IS NULL
		), '[]'::json) AS variants,
		COALESCE((
			SELECT json_agg(json_build_object('id', i.id, 'url', i.url, 'rank', i.rank) ORDER BY i.rank, i.id)
			FROM image i
			WHERE i.product_id = p.id AND i.deleted_at IS NULL
		), '[]'::json) AS images,
		COALESCE((
			SELECT json_agg(json_build_object('id', c.id, 'name', c.name, 'handle', c.handle) ORDER BY c.rank, c.id)
			FROM product_category c
			JOIN product_category_product pcp ON pcp.product_category_id = c.id
			WHERE pcp.product_id = p.id AND c.deleted_at IS NULL
		), '[]'::json) AS categories,
		COUNT(*) OVER () AS total_count
	FROM product p
	%s
	ORDER BY p.created_at, p.id
	LIMIT $%d`

// Fetch returns at most limit products matching filter. Total comes from a
// window count over the unlimited result.
func (r *Reader) Fetch(ctx context.Context, filter domain.Filter, limit int) (snap domain.Snapshot, err error) {
	if limit <= 0 {
		limit = catalog.DefaultLimit
	}

	conditions := []string{"p.deleted_at IS NULL"}
	var args []any
	if len(filter.Statuses) > 0 {
		args = append(args, filter.Statuses)
		conditions = append(conditions, fmt.Sprintf("p.status = ANY($%d)", len(args)))
	}
	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		conditions = append(conditions, fmt.Sprintf("p.id = ANY($%d)", len(args)))
	}
	args = append(args, limit)

	query := fmt.Sprintf(selectProducts, "WHERE "+strings.Join(conditions, " AND "), len(args))

	ctx, end := r.tracer.Start(ctx, "FetchCatalogSnapshot", query)
	defer func() { end(len(snap.Products), err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	snap.Products = []domain.Product{}
	for rows.Next() {
		var (
			p                            domain.Product
			variants, images, categories []byte
			total                        int64
		)
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Description, &p.Handle, &p.Status, &p.Thumbnail,
			&variants, &images, &categories, &total,
		); err != nil {
			return domain.Snapshot{}, fmt.Errorf("scan product: %w", err)
		}
		if err := decodeRelations(&p, variants, images, categories); err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode relations of %s: %w", p.ID, err)
		}
		if len(snap.Products) == 0 {
			snap.Total = int(total)
			snap.Products = make([]domain.Product, 0, min(snap.Total, limit))
		}
		snap.Products = append(snap.Products, p)
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("iterate products: %w", err)
	}
	return snap, nil
}

func decodeRelations(p *domain.Product, variants, images, categories []byte) error {
	for _, rel := range []struct {
		raw  []byte
		into any
	}{
		{variants, &p.Variants},
		{images, &p.Images},
		{categories, &p.Categories},
	} {
		if len(rel.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(rel.raw, rel.into); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks the database when the underlying handle supports it.
func (r *Reader) Ping(ctx context.Context) error {
	if p, ok := r.db.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
