package catalog

// Category groups catalog items. Its metadata may carry an exclude flag that
// removes every item in the category from supplier sync.
type Category struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Item is a single catalog part.
type Item struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	IPN         string    `json:"ipn,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Purchasable bool      `json:"purchasable"`
	Active      bool      `json:"active"`
	Metadata    Metadata  `json:"metadata,omitempty"`
}
