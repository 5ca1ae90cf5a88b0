package domain

// SearchDocument is the flattened form of a Product stored in the search
// index. ID is the upsert key.
type SearchDocument struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Handle          string   `json:"handle"`
	Status          string   `json:"status"`
	VariantSKU      string   `json:"variant_sku"`
	Thumbnail       string   `json:"thumbnail"`
	Categories      []string `json:"categories,omitempty"`
	CategoryHandles []string `json:"category_handles,omitempty"`
}
