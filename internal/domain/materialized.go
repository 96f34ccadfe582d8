package domain

// MaterializedProduct tracks a product that exists in VTEX, keyed by its
// source URL. The URL is the stable external key for idempotent re-runs
// since the remote numeric id may not be known ahead of creation.
type MaterializedProduct struct {
	RemoteID            int64             `json:"remote_id"`
	Name                string            `json:"name"`
	URL                 string            `json:"url"`
	CategoryID          int64             `json:"category_id"`
	BrandID             int64             `json:"brand_id"`
	ExternalIDPreserved bool              `json:"external_id_preserved"`
	Skus                []MaterializedSku `json:"skus"`
}

// MaterializedSku tracks a SKU that exists in VTEX. SKUs are created
// inactive; activation is deferred until at least one image has been
// associated:
//
//	Created(inactive) --images associated--> ReadyToActivate --activate--> Active
type MaterializedSku struct {
	RemoteID            int64  `json:"remote_id"`
	Name                string `json:"name"`
	RefID               string `json:"ref_id"`
	ExternalIDPreserved bool   `json:"external_id_preserved"`
	ImagesAssociated    int    `json:"images_associated"`
	Activated           bool   `json:"activated"`
}

// ImageStatus is the terminal per-image outcome of the enrichment stage.
type ImageStatus string

const (
	ImageAssociated ImageStatus = "associated"
	ImageFailed     ImageStatus = "failed"
)

// ImageAssociation records the outcome of re-hosting and associating one
// image with a SKU. Failures are recorded, never silently dropped.
type ImageAssociation struct {
	SkuID         int64       `json:"sku_id"`
	Sequence      int         `json:"sequence"`
	RemoteURL     string      `json:"remote_url,omitempty"`
	LocalFileName string      `json:"local_file_name"`
	IsMain        bool        `json:"is_main"`
	Status        ImageStatus `json:"status"`
	Error         string      `json:"error,omitempty"`
}

// SkuImageReport aggregates the enrichment outcome for one SKU.
type SkuImageReport struct {
	SkuID           int64              `json:"sku_id"`
	SkuName         string             `json:"sku_name"`
	Images          []ImageAssociation `json:"images"`
	TotalProcessed  int                `json:"total_processed"`
	TotalAssociated int                `json:"total_associated"`
	TotalFailed     int                `json:"total_failed"`
}

// RunSummary is the per-run execution report persisted at the end of the
// pipeline.
type RunSummary struct {
	RunID              string `json:"run_id"`
	DepartmentsCreated int    `json:"departments_created"`
	CategoriesCreated  int    `json:"categories_created"`
	BrandsCreated      int    `json:"brands_created"`
	ProductsCreated    int    `json:"products_created"`
	SkusCreated        int    `json:"skus_created"`
	ImagesAssociated   int    `json:"images_associated"`
	ImagesFailed       int    `json:"images_failed"`
	ProductsSkipped    int    `json:"products_skipped"`
}
