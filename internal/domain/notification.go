package domain

// DefaultChangeEvent is the notification name used when none is configured.
const DefaultChangeEvent = "ecommerce.product.updated"

// ChangeNotification tells downstream consumers that a product must be
// reindexed. Data always carries the product id.
type ChangeNotification struct {
	Name string     `json:"name"`
	Data ChangeData `json:"data"`
}

// ChangeData is the notification payload. Product is set only when full
// payloads are enabled.
type ChangeData struct {
	ID      string   `json:"id"`
	Product *Product `json:"product,omitempty"`
}
