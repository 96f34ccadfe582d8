package domain

// Product is a product entity as returned by the VTEX catalog API.
type Product struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	CategoryID  int64  `json:"category_id"`
	BrandID     int64  `json:"brand_id"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
	IsVisible   bool   `json:"is_visible"`
}

// Sku is a SKU entity as returned by the VTEX catalog API.
type Sku struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	EAN       string `json:"ean"`
	RefID     string `json:"ref_id"`
	IsActive  bool   `json:"is_active"`
}

// Warehouse is a logistics warehouse in the VTEX account.
type Warehouse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ImageFile is the payload associated with a SKU through the file endpoint.
type ImageFile struct {
	URL      string `json:"url"`
	FileName string `json:"name"`
	IsMain   bool   `json:"is_main"`
	Label    string `json:"label"`
}
