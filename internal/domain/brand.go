package domain

// Brand is a brand entity as returned by the VTEX catalog API.
type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BrandEntry tracks a resolved brand. Matching is case-insensitive on the
// normalized name; display case is preserved.
type BrandEntry struct {
	ID             int64  `json:"id"`
	NormalizedName string `json:"normalized_name"`
	CreatedLocally bool   `json:"created_locally"`
}
