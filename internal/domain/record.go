package domain

// ProductRecord is the structured output of the extraction stage for a
// single product page. It is the only input the catalog-construction
// engine consumes.
type ProductRecord struct {
	URL            string                `json:"url"`
	Categories     []CategoryPathSegment `json:"categories"`
	Brand          BrandInfo             `json:"brand"`
	Product        ProductInfo           `json:"product"`
	Skus           []SkuRecord           `json:"skus"`
	Images         []string              `json:"images"`
	Specifications []Specification       `json:"specifications"`
}

type BrandInfo struct {
	Name string `json:"name"`
}

type ProductInfo struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	ShortDescription string `json:"short_description,omitempty"`
	// ProductID is the identifier scraped from the source page, when
	// discoverable. Forwarded to VTEX so ids stay stable across runs.
	ProductID string `json:"product_id,omitempty"`
}

type SkuRecord struct {
	Name      string  `json:"name"`
	EAN       string  `json:"ean"`
	RefID     string  `json:"ref_id,omitempty"`
	SkuID     string  `json:"sku_id,omitempty"`
	Price     float64 `json:"price"`
	ListPrice float64 `json:"list_price,omitempty"`
}

type Specification struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
