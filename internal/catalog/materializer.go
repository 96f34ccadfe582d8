package catalog

import (
	"context"
	"errors"
	"fmt"

	"vtex/migrator/internal/client"
	"vtex/migrator/internal/domain"
	"vtex/migrator/internal/state"

	log "github.com/sirupsen/logrus"
)

const productsCheckpoint = "products_skus"

// ErrUnrecoverableConflict marks a create that conflicted without an
// externally-preserved identifier to fetch the existing entity by. The
// operation cannot recover locally; the caller skips the unit of work.
var ErrUnrecoverableConflict = errors.New("conflict without preserved identifier")

// ErrSkuNotReady marks an activation attempted before any image was
// associated. The remote platform rejects such SKUs, so the gate is
// enforced client-side.
var ErrSkuNotReady = errors.New("sku has no associated images")

// Materializer creates (or recovers from conflict) products and SKUs in
// the remote system. All mutations follow the create-or-reuse protocol:
// a Conflict response is absorbed by fetching the pre-existing entity.
type Materializer struct {
	gateway     client.CatalogGateway
	checkpoints state.Manager
	specs       SpecificationWriter

	products map[string]*domain.MaterializedProduct // keyed by source URL

	warehouses         []domain.Warehouse
	warehousesLoaded   bool
	defaultWarehouseID string
	inventoryQuantity  int

	productsCreated int
	skusCreated     int
}

func NewMaterializer(gateway client.CatalogGateway, checkpoints state.Manager, specs SpecificationWriter, inventoryQuantity int, defaultWarehouseID string) *Materializer {
	return &Materializer{
		gateway:            gateway,
		checkpoints:        checkpoints,
		specs:              specs,
		products:           make(map[string]*domain.MaterializedProduct),
		defaultWarehouseID: defaultWarehouseID,
		inventoryQuantity:  inventoryQuantity,
	}
}

func (m *Materializer) Restore(ctx context.Context) error {
	var products map[string]*domain.MaterializedProduct
	found, err := m.checkpoints.Load(ctx, productsCheckpoint, &products)
	if err != nil {
		return fmt.Errorf("load products checkpoint: %w", err)
	}
	if found {
		m.products = products
		log.Infof("Restored products checkpoint: %d products", len(products))
	}
	return nil
}

// Lookup returns the materialized product for a source URL, if this or a
// previous run already created it.
func (m *Materializer) Lookup(url string) (*domain.MaterializedProduct, bool) {
	p, ok := m.products[url]
	return p, ok
}

// MaterializeProduct creates the product or reuses the conflicting one
// when an externally-preserved id is available. On success the product's
// active and visible flags are forced true; display on site is a hard
// requirement of the pipeline.
func (m *Materializer) MaterializeProduct(ctx context.Context, rec *domain.ProductRecord, categoryID, brandID int64) (*domain.MaterializedProduct, error) {
	if existing, ok := m.products[rec.URL]; ok {
		return existing, nil
	}

	externalID := extractNumericID(rec.Product.ProductID)
	spec := client.ProductSpec{
		Name:             rec.Product.Name,
		CategoryID:       categoryID,
		BrandID:          brandID,
		Description:      rec.Product.Description,
		ShortDescription: rec.Product.ShortDescription,
		ExternalID:       externalID,
	}

	product, err := m.gateway.CreateProduct(ctx, spec)
	switch {
	case err == nil:
		m.productsCreated++
	case client.IsConflict(err) && externalID != nil:
		product, err = m.gateway.GetProduct(ctx, *externalID)
		if err != nil {
			return nil, fmt.Errorf("fetch conflicting product %d: %w", *externalID, err)
		}
		log.Infof("Product %q already exists, reusing id %d", rec.Product.Name, product.ID)
	case client.IsConflict(err):
		return nil, fmt.Errorf("product %q: %w", rec.Product.Name, ErrUnrecoverableConflict)
	default:
		return nil, fmt.Errorf("create product %q: %w", rec.Product.Name, err)
	}

	if !product.IsActive || !product.IsVisible {
		if err := m.gateway.UpdateProductFlags(ctx, product.ID, true, true); err != nil {
			log.Warnf("Failed to force active/visible flags on product %d: %v", product.ID, err)
		}
	}

	if len(rec.Specifications) > 0 {
		if err := m.specs.Write(ctx, product.ID, categoryID, rec.Specifications); err != nil {
			log.Warnf("Failed to write specifications for product %d: %v", product.ID, err)
		}
	}

	materialized := &domain.MaterializedProduct{
		RemoteID:            product.ID,
		Name:                rec.Product.Name,
		URL:                 rec.URL,
		CategoryID:          categoryID,
		BrandID:             brandID,
		ExternalIDPreserved: externalID != nil,
	}
	m.products[rec.URL] = materialized
	m.persist(ctx)
	return materialized, nil
}

// MaterializeSku creates one SKU under an existing product. SKUs are
// always created inactive with placeholder physical dimensions;
// activation is deferred until after image association.
func (m *Materializer) MaterializeSku(ctx context.Context, product *domain.MaterializedProduct, rec domain.SkuRecord) (*domain.MaterializedSku, error) {
	name := rec.Name
	if name == "" {
		name = "Default"
	}
	for i := range product.Skus {
		if product.Skus[i].Name == name {
			return &product.Skus[i], nil
		}
	}

	externalID := extractNumericID(rec.SkuID)
	refID := rec.RefID
	if refID == "" {
		refID = rec.SkuID
	}
	ean := rec.EAN
	if ean == "" {
		ean = fmt.Sprintf("EAN%d", product.RemoteID)
	}

	spec := client.SkuSpec{
		ProductID:  product.RemoteID,
		Name:       name,
		EAN:        ean,
		RefID:      refID,
		ExternalID: externalID,
		Dimensions: client.PlaceholderDimensions,
	}

	sku, err := m.gateway.CreateSku(ctx, spec)
	switch {
	case err == nil:
		m.skusCreated++
	case client.IsConflict(err) && externalID != nil:
		sku, err = m.gateway.GetSku(ctx, *externalID)
		if err != nil {
			return nil, fmt.Errorf("fetch conflicting sku %d: %w", *externalID, err)
		}
		log.Infof("SKU %q already exists, reusing id %d", name, sku.ID)
	case client.IsConflict(err):
		return nil, fmt.Errorf("sku %q: %w", name, ErrUnrecoverableConflict)
	default:
		return nil, fmt.Errorf("create sku %q: %w", name, err)
	}

	product.Skus = append(product.Skus, domain.MaterializedSku{
		RemoteID:            sku.ID,
		Name:                name,
		RefID:               refID,
		ExternalIDPreserved: externalID != nil,
	})
	m.persist(ctx)
	return &product.Skus[len(product.Skus)-1], nil
}

// NoteImagesAssociated moves the SKU state machine forward after the
// enrichment stage and records the count for the activation gate.
func (m *Materializer) NoteImagesAssociated(ctx context.Context, sku *domain.MaterializedSku, count int) {
	sku.ImagesAssociated += count
	m.persist(ctx)
}

// ActivateSku performs the explicit activation step. It refuses to call
// the remote when no image was associated: the platform requires at least
// one file before a SKU may be active, and failing early keeps the error
// attributable.
func (m *Materializer) ActivateSku(ctx context.Context, sku *domain.MaterializedSku) error {
	if sku.Activated {
		return nil
	}
	if sku.ImagesAssociated == 0 {
		return fmt.Errorf("sku %d: %w", sku.RemoteID, ErrSkuNotReady)
	}
	if err := m.gateway.ActivateSku(ctx, sku.RemoteID); err != nil {
		return fmt.Errorf("activate sku %d: %w", sku.RemoteID, err)
	}
	sku.Activated = true
	m.persist(ctx)
	return nil
}

// ApplyPrice writes the observed source price verbatim. Zero markup: the
// remote's computed sale price must equal the observed price exactly.
func (m *Materializer) ApplyPrice(ctx context.Context, skuID int64, rec domain.SkuRecord) error {
	listPrice := rec.ListPrice
	if listPrice == 0 {
		listPrice = rec.Price
	}
	if err := m.gateway.SetPrice(ctx, skuID, rec.Price, listPrice); err != nil {
		return fmt.Errorf("set price for sku %d: %w", skuID, err)
	}
	return nil
}

// ApplyInventory sets the fixed stock quantity in every warehouse of the
// account. The legacy site's stock signal is not reliable enough to
// propagate per-location.
func (m *Materializer) ApplyInventory(ctx context.Context, skuID int64) error {
	warehouses := m.loadWarehouses(ctx)
	if len(warehouses) == 0 {
		warehouses = []domain.Warehouse{{ID: m.defaultWarehouseID, Name: m.defaultWarehouseID}}
	}

	var lastErr error
	applied := 0
	for _, warehouse := range warehouses {
		if err := m.gateway.SetInventory(ctx, skuID, warehouse.ID, m.inventoryQuantity); err != nil {
			log.Warnf("Failed to set inventory for sku %d in warehouse %s: %v", skuID, warehouse.ID, err)
			lastErr = err
			continue
		}
		applied++
	}
	if applied == 0 && lastErr != nil {
		return fmt.Errorf("set inventory for sku %d: %w", skuID, lastErr)
	}
	return nil
}

func (m *Materializer) loadWarehouses(ctx context.Context) []domain.Warehouse {
	if m.warehousesLoaded {
		return m.warehouses
	}
	warehouses, err := m.gateway.ListWarehouses(ctx)
	if err != nil {
		log.Warnf("Failed to list warehouses, falling back to default %s: %v", m.defaultWarehouseID, err)
		return nil
	}
	m.warehouses = warehouses
	m.warehousesLoaded = true
	return warehouses
}

func (m *Materializer) persist(ctx context.Context) {
	if err := m.checkpoints.Save(ctx, productsCheckpoint, m.products); err != nil {
		log.Warnf("Failed to persist products checkpoint: %v", err)
	}
}

// CreatedCounts reports how many products and SKUs this run created.
func (m *Materializer) CreatedCounts() (products, skus int) {
	return m.productsCreated, m.skusCreated
}
