// Package projector maps catalog products to search documents.
package projector

import (
	"strings"

	"github.com/utafrali/catalog-sync/internal/domain"
)

// Project converts a product into its search document. It never fails:
// absent optional fields project to empty values.
func Project(p domain.Product) domain.SearchDocument {
	doc := domain.SearchDocument{
		ID:          p.ID,
		Title:       p.Title,
		Description: domain.StringValue(p.Description),
		Handle:      p.Handle,
		Status:      p.Status,
		VariantSKU:  variantSKU(p.Variants),
		Thumbnail:   thumbnail(p),
	}
	for _, c := range p.Categories {
		if c.Name != "" {
			doc.Categories = append(doc.Categories, c.Name)
		}
		if c.Handle != "" {
			doc.CategoryHandles = append(doc.CategoryHandles, c.Handle)
		}
	}
	return doc
}

// ProjectAll projects products keeping their order.
func ProjectAll(products []domain.Product) []domain.SearchDocument {
	docs := make([]domain.SearchDocument, len(products))
	for i := range products {
		docs[i] = Project(products[i])
	}
	return docs
}

func variantSKU(variants []domain.Variant) string {
	skus := make([]string, 0, len(variants))
	for _, v := range variants {
		if sku := domain.StringValue(v.SKU); sku != "" {
			skus = append(skus, sku)
		}
	}
	return strings.Join(skus, " ")
}

// thumbnail falls back to the first image in reader order.
func thumbnail(p domain.Product) string {
	if t := domain.StringValue(p.Thumbnail); t != "" {
		return t
	}
	if len(p.Images) > 0 {
		return p.Images[0].URL
	}
	return ""
}
