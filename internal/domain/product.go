package domain

// Product statuses as stored by the catalog.
const (
	StatusDraft     = "draft"
	StatusProposed  = "proposed"
	StatusPublished = "published"
	StatusRejected  = "rejected"
)

// Product is a read-only snapshot of a catalog product with its relations
// expanded. Nullable columns are pointers.
type Product struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Handle      string     `json:"handle"`
	Status      string     `json:"status"`
	Thumbnail   *string    `json:"thumbnail,omitempty"`
	Variants    []Variant  `json:"variants,omitempty"`
	Images      []Image    `json:"images,omitempty"`
	Categories  []Category `json:"categories,omitempty"`
}

// Variant is a purchasable variant of a product.
type Variant struct {
	ID    string  `json:"id"`
	SKU   *string `json:"sku,omitempty"`
	Title string  `json:"title"`
}

// Image is a product image. Lower rank sorts first.
type Image struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Rank int    `json:"rank"`
}

// Category is a product category the product belongs to.
type Category struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
}

// Filter restricts which products a catalog snapshot contains. Empty
// fields do not restrict.
type Filter struct {
	Statuses []string
	IDs      []string
}

// Snapshot is the result of one catalog read. Total is the number of
// matching products reported by the source, which can exceed len(Products)
// when a limit applied.
type Snapshot struct {
	Products []Product
	Total    int
}

// StringValue dereferences a nullable string.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
