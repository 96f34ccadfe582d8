package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"vtex/migrator/internal/client"
	"vtex/migrator/internal/domain"
)

// fakeGateway implements client.CatalogGateway in memory with the same
// uniqueness semantics the real catalog enforces: creating an entity that
// already exists under its identity key yields a conflict error.
type fakeGateway struct {
	nextID int64

	categories map[int64]domain.Category
	brands     []domain.Brand
	products   map[int64]*domain.Product
	skus       map[int64]*domain.Sku

	specifications map[int64][]domain.Specification

	prices       map[int64][2]float64
	inventory    map[string]int
	warehouses   []domain.Warehouse
	associations map[int64][]domain.ImageFile

	// listFailures makes the next N ListCategories/ListBrands calls fail,
	// to simulate a temporarily unreachable remote.
	listFailures int

	// associateFailOnce fails the next association of the named file.
	associateFailOnce map[string]error
	// associateConflict makes associations of the named file conflict.
	associateConflict map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		categories:        make(map[int64]domain.Category),
		products:          make(map[int64]*domain.Product),
		skus:              make(map[int64]*domain.Sku),
		specifications:    make(map[int64][]domain.Specification),
		prices:            make(map[int64][2]float64),
		inventory:         make(map[string]int),
		associations:      make(map[int64][]domain.ImageFile),
		associateFailOnce: make(map[string]error),
		associateConflict: make(map[string]bool),
	}
}

func conflictErr() error {
	return fmt.Errorf("status 409: %w", client.ErrConflict)
}

func (f *fakeGateway) id() int64 {
	f.nextID++
	return f.nextID
}

// seedCategory inserts a remote category directly, bypassing conflict
// checks, as if it existed before the run.
func (f *fakeGateway) seedCategory(id int64, name string, parentID *int64) {
	f.categories[id] = domain.Category{ID: id, Name: name, ParentID: parentID}
	if id > f.nextID {
		f.nextID = id
	}
}

func (f *fakeGateway) findCategory(name string, parentID *int64) (domain.Category, bool) {
	for _, c := range f.categories {
		if !strings.EqualFold(c.Name, name) {
			continue
		}
		switch {
		case c.ParentID == nil && parentID == nil:
			return c, true
		case c.ParentID != nil && parentID != nil && *c.ParentID == *parentID:
			return c, true
		}
	}
	return domain.Category{}, false
}

func (f *fakeGateway) CreateDepartment(_ context.Context, name string) (*domain.Category, error) {
	if _, exists := f.findCategory(name, nil); exists {
		return nil, conflictErr()
	}
	c := domain.Category{ID: f.id(), Name: name}
	f.categories[c.ID] = c
	return &c, nil
}

func (f *fakeGateway) CreateCategory(_ context.Context, name string, parentID int64) (*domain.Category, error) {
	if _, exists := f.findCategory(name, &parentID); exists {
		return nil, conflictErr()
	}
	parent := parentID
	c := domain.Category{ID: f.id(), Name: name, ParentID: &parent}
	f.categories[c.ID] = c
	return &c, nil
}

func (f *fakeGateway) ListCategories(_ context.Context) ([]domain.Category, error) {
	if f.listFailures > 0 {
		f.listFailures--
		return nil, fmt.Errorf("listing unavailable")
	}
	out := make([]domain.Category, 0, len(f.categories))
	for _, c := range f.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeGateway) UpdateCategoryVisibility(_ context.Context, id int64, active, showInStorefront bool) error {
	if _, ok := f.categories[id]; !ok {
		return client.ErrNotFound
	}
	return nil
}

func (f *fakeGateway) CreateBrand(_ context.Context, name string) (*domain.Brand, error) {
	for _, b := range f.brands {
		if strings.EqualFold(b.Name, name) {
			return nil, conflictErr()
		}
	}
	b := domain.Brand{ID: f.id(), Name: name}
	f.brands = append(f.brands, b)
	return &b, nil
}

func (f *fakeGateway) ListBrands(_ context.Context) ([]domain.Brand, error) {
	if f.listFailures > 0 {
		f.listFailures--
		return nil, fmt.Errorf("listing unavailable")
	}
	return append([]domain.Brand(nil), f.brands...), nil
}

func (f *fakeGateway) CreateProduct(_ context.Context, spec client.ProductSpec) (*domain.Product, error) {
	for _, p := range f.products {
		if strings.EqualFold(p.Name, spec.Name) && p.CategoryID == spec.CategoryID {
			return nil, conflictErr()
		}
	}
	id := f.id()
	if spec.ExternalID != nil {
		if _, taken := f.products[*spec.ExternalID]; taken {
			return nil, conflictErr()
		}
		id = *spec.ExternalID
	}
	p := &domain.Product{
		ID:          id,
		Name:        spec.Name,
		CategoryID:  spec.CategoryID,
		BrandID:     spec.BrandID,
		Description: spec.Description,
		IsActive:    true,
		IsVisible:   true,
	}
	f.products[id] = p
	return p, nil
}

func (f *fakeGateway) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, client.ErrNotFound
	}
	return p, nil
}

func (f *fakeGateway) UpdateProductFlags(_ context.Context, id int64, active, visible bool) error {
	p, ok := f.products[id]
	if !ok {
		return client.ErrNotFound
	}
	p.IsActive = active
	p.IsVisible = visible
	return nil
}

func (f *fakeGateway) SetProductSpecifications(_ context.Context, productID int64, specs []domain.Specification) error {
	if _, ok := f.products[productID]; !ok {
		return client.ErrNotFound
	}
	f.specifications[productID] = append(f.specifications[productID], specs...)
	return nil
}

func (f *fakeGateway) CreateSku(_ context.Context, spec client.SkuSpec) (*domain.Sku, error) {
	for _, s := range f.skus {
		if s.ProductID == spec.ProductID && strings.EqualFold(s.Name, spec.Name) {
			return nil, conflictErr()
		}
	}
	id := f.id()
	if spec.ExternalID != nil {
		if _, taken := f.skus[*spec.ExternalID]; taken {
			return nil, conflictErr()
		}
		id = *spec.ExternalID
	}
	s := &domain.Sku{
		ID:        id,
		ProductID: spec.ProductID,
		Name:      spec.Name,
		EAN:       spec.EAN,
		RefID:     spec.RefID,
		IsActive:  false,
	}
	f.skus[id] = s
	return s, nil
}

func (f *fakeGateway) GetSku(_ context.Context, id int64) (*domain.Sku, error) {
	s, ok := f.skus[id]
	if !ok {
		return nil, client.ErrNotFound
	}
	return s, nil
}

func (f *fakeGateway) ActivateSku(_ context.Context, id int64) error {
	s, ok := f.skus[id]
	if !ok {
		return client.ErrNotFound
	}
	s.IsActive = true
	return nil
}

func (f *fakeGateway) SetPrice(_ context.Context, skuID int64, basePrice, listPrice float64) error {
	f.prices[skuID] = [2]float64{basePrice, listPrice}
	return nil
}

func (f *fakeGateway) ListWarehouses(_ context.Context) ([]domain.Warehouse, error) {
	return append([]domain.Warehouse(nil), f.warehouses...), nil
}

func (f *fakeGateway) SetInventory(_ context.Context, skuID int64, warehouseID string, quantity int) error {
	f.inventory[fmt.Sprintf("%d:%s", skuID, warehouseID)] = quantity
	return nil
}

func (f *fakeGateway) AssociateImage(_ context.Context, skuID int64, file domain.ImageFile) error {
	if err, ok := f.associateFailOnce[file.FileName]; ok {
		delete(f.associateFailOnce, file.FileName)
		return err
	}
	if f.associateConflict[file.FileName] {
		return conflictErr()
	}
	f.associations[skuID] = append(f.associations[skuID], file)
	return nil
}

// categoryCount reports how many remote categories exist, for
// idempotency assertions.
func (f *fakeGateway) categoryCount() int {
	return len(f.categories)
}

func seg(names ...string) []domain.CategoryPathSegment {
	out := make([]domain.CategoryPathSegment, 0, len(names))
	for i, name := range names {
		out = append(out, domain.CategoryPathSegment{Name: name, Level: i})
	}
	return out
}

func int64ptr(v int64) *int64 {
	return &v
}
