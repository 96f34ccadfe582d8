package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vtex/migrator/internal/config"
	"vtex/migrator/internal/domain"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// CatalogGateway is the request/response wrapper around the VTEX catalog,
// pricing and logistics APIs. One instance per run, constructed from
// externally supplied credentials; no hidden global state.
type CatalogGateway interface {
	CreateDepartment(ctx context.Context, name string) (*domain.Category, error)
	CreateCategory(ctx context.Context, name string, parentID int64) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	UpdateCategoryVisibility(ctx context.Context, id int64, active, showInStorefront bool) error

	CreateBrand(ctx context.Context, name string) (*domain.Brand, error)
	ListBrands(ctx context.Context) ([]domain.Brand, error)

	CreateProduct(ctx context.Context, spec ProductSpec) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	UpdateProductFlags(ctx context.Context, id int64, active, visible bool) error
	SetProductSpecifications(ctx context.Context, productID int64, specs []domain.Specification) error

	CreateSku(ctx context.Context, spec SkuSpec) (*domain.Sku, error)
	GetSku(ctx context.Context, id int64) (*domain.Sku, error)
	ActivateSku(ctx context.Context, id int64) error

	SetPrice(ctx context.Context, skuID int64, basePrice, listPrice float64) error
	ListWarehouses(ctx context.Context) ([]domain.Warehouse, error)
	SetInventory(ctx context.Context, skuID int64, warehouseID string, quantity int) error

	AssociateImage(ctx context.Context, skuID int64, file domain.ImageFile) error
}

// Dimensions are the packaged and unpackaged physical dimensions sent on
// SKU creation. The pipeline does not model real packaging, so all axes
// carry the same placeholder value.
type Dimensions struct {
	Height float64
	Width  float64
	Length float64
	Weight float64
}

// PlaceholderDimensions is the fixed 1x1x1x1 box used for every SKU.
var PlaceholderDimensions = Dimensions{Height: 1, Width: 1, Length: 1, Weight: 1}

type ProductSpec struct {
	Name             string
	CategoryID       int64
	BrandID          int64
	Description      string
	ShortDescription string
	// ExternalID, when set, is forwarded as the desired remote id so the
	// product keeps the identifier scraped from the source site.
	ExternalID *int64
}

type SkuSpec struct {
	ProductID  int64
	Name       string
	EAN        string
	RefID      string
	ExternalID *int64
	Dimensions Dimensions
}

type vtexGateway struct {
	rl         ratelimit.Limiter
	cfg        config.VTEXConfig
	catalog    *resty.Client
	pricing    *resty.Client
	logistics  *resty.Client
	accountURL string
}

// NewVTEXGateway builds a gateway client for one VTEX account. A single
// token bucket paces requests across all three API surfaces.
func NewVTEXGateway(cfg config.VTEXConfig) CatalogGateway {
	base := fmt.Sprintf("https://%s.%s.com.br", cfg.AccountName, cfg.Environment)

	newClient := func(baseURL string) *resty.Client {
		return resty.New().
			SetBaseURL(baseURL).
			SetTimeout(time.Duration(cfg.Timeout)*time.Second).
			SetRetryCount(cfg.MaxRetries).
			SetRetryWaitTime(2*time.Second).
			SetRetryMaxWaitTime(30*time.Second).
			AddRetryConditions(func(resp *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return resp.StatusCode() == 429 || resp.StatusCode() >= 500
			}).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetHeader("X-VTEX-API-AppKey", cfg.AppKey).
			SetHeader("X-VTEX-API-AppToken", cfg.AppToken)
	}

	return &vtexGateway{
		rl:         ratelimit.New(cfg.MaxRequestsPerSecond),
		cfg:        cfg,
		catalog:    newClient(base + "/api/catalog"),
		pricing:    newClient(fmt.Sprintf("https://api.vtex.com/%s/pricing", cfg.AccountName)),
		logistics:  newClient(base + "/api/logistics"),
		accountURL: base,
	}
}

// Wire payloads use VTEX's PascalCase field names.

type categoryPayload struct {
	ID               *int64  `json:"Id,omitempty"`
	Name             string  `json:"Name"`
	FatherCategoryID *int64  `json:"FatherCategoryId"`
	Title            string  `json:"Title"`
	Description      *string `json:"Description"`
	Keywords         *string `json:"Keywords"`
	Active           bool    `json:"Active"`
	MenuHome         bool    `json:"MenuHome,omitempty"`
}

type categoryResponse struct {
	ID               int64  `json:"Id"`
	Name             string `json:"Name"`
	FatherCategoryID *int64 `json:"FatherCategoryId"`
}

type brandPayload struct {
	Name      string  `json:"Name"`
	Active    bool    `json:"Active"`
	Text      *string `json:"Text"`
	Keywords  *string `json:"Keywords"`
	SiteTitle string  `json:"SiteTitle"`
}

type brandResponse struct {
	ID   int64  `json:"Id"`
	Name string `json:"Name"`
}

type productPayload struct {
	ID               *int64 `json:"Id,omitempty"`
	Name             string `json:"Name"`
	CategoryID       int64  `json:"CategoryId"`
	BrandID          int64  `json:"BrandId"`
	Description      string `json:"Description"`
	ShortDescription string `json:"ShortDescription"`
	Title            string `json:"Title"`
	IsVisible        bool   `json:"IsVisible"`
	IsActive         bool   `json:"IsActive"`
	ShowWithoutStock bool   `json:"ShowWithoutStock"`
}

type productResponse struct {
	ID          int64  `json:"Id"`
	Name        string `json:"Name"`
	CategoryID  int64  `json:"CategoryId"`
	BrandID     int64  `json:"BrandId"`
	Description string `json:"Description"`
	IsActive    bool   `json:"IsActive"`
	IsVisible   bool   `json:"IsVisible"`
}

type skuPayload struct {
	ID              *int64  `json:"Id,omitempty"`
	ProductID       int64   `json:"ProductId"`
	Name            string  `json:"Name"`
	EAN             string  `json:"Ean"`
	RefID           string  `json:"RefId,omitempty"`
	IsActive        bool    `json:"IsActive"`
	PackagedHeight  float64 `json:"PackagedHeight"`
	PackagedWidth   float64 `json:"PackagedWidth"`
	PackagedLength  float64 `json:"PackagedLength"`
	PackagedWeight  float64 `json:"PackagedWeightKg"`
	Height          float64 `json:"Height"`
	Width           float64 `json:"Width"`
	Length          float64 `json:"Length"`
	Weight          float64 `json:"WeightKg"`
}

type skuResponse struct {
	ID        int64  `json:"Id"`
	ProductID int64  `json:"ProductId"`
	Name      string `json:"Name"`
	EAN       string `json:"Ean"`
	RefID     string `json:"RefId"`
	IsActive  bool   `json:"IsActive"`
}

func (g *vtexGateway) do(ctx context.Context, c *resty.Client, method, url string, body, out any) error {
	g.rl.Take()

	req := c.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return fmt.Errorf("vtex request %s %s: %w", method, url, err)
	}
	if resp.IsError() {
		return statusToError(resp.StatusCode(), resp.String())
	}
	if out != nil && len(resp.Bytes()) > 0 {
		if err := json.Unmarshal(resp.Bytes(), out); err != nil {
			return fmt.Errorf("vtex decode %s %s: %w", method, url, err)
		}
	}
	return nil
}

func (g *vtexGateway) CreateDepartment(ctx context.Context, name string) (*domain.Category, error) {
	payload := categoryPayload{
		Name:     name,
		Title:    name,
		Active:   true,
		MenuHome: true,
	}
	var resp categoryResponse
	if err := g.do(ctx, g.catalog, "POST", "/pvt/category", payload, &resp); err != nil {
		return nil, err
	}
	log.Debugf("Created department %q (id %d)", name, resp.ID)
	return &domain.Category{ID: resp.ID, Name: resp.Name, ParentID: resp.FatherCategoryID}, nil
}

func (g *vtexGateway) CreateCategory(ctx context.Context, name string, parentID int64) (*domain.Category, error) {
	payload := categoryPayload{
		Name:             name,
		FatherCategoryID: &parentID,
		Title:            name,
		Active:           true,
	}
	var resp categoryResponse
	if err := g.do(ctx, g.catalog, "POST", "/pvt/category", payload, &resp); err != nil {
		return nil, err
	}
	log.Debugf("Created category %q (id %d, parent %d)", name, resp.ID, parentID)
	return &domain.Category{ID: resp.ID, Name: resp.Name, ParentID: resp.FatherCategoryID}, nil
}

func (g *vtexGateway) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var resp []categoryResponse
	if err := g.do(ctx, g.catalog, "GET", "/pvt/category", nil, &resp); err != nil {
		return nil, err
	}
	categories := make([]domain.Category, 0, len(resp))
	for _, c := range resp {
		categories = append(categories, domain.Category{ID: c.ID, Name: c.Name, ParentID: c.FatherCategoryID})
	}
	return categories, nil
}

// UpdateCategoryVisibility reads the full category payload and writes it
// back with the visibility flags set. VTEX's PUT replaces the entity, so a
// partial body would blank the other fields.
func (g *vtexGateway) UpdateCategoryVisibility(ctx context.Context, id int64, active, showInStorefront bool) error {
	var current map[string]any
	if err := g.do(ctx, g.catalog, "GET", fmt.Sprintf("/pvt/category/%d", id), nil, &current); err != nil {
		return fmt.Errorf("load category %d: %w", id, err)
	}
	current["Active"] = active
	current["ShowInStoreFront"] = showInStorefront
	if err := g.do(ctx, g.catalog, "PUT", fmt.Sprintf("/pvt/category/%d", id), current, nil); err != nil {
		return fmt.Errorf("update category %d: %w", id, err)
	}
	return nil
}

func (g *vtexGateway) CreateBrand(ctx context.Context, name string) (*domain.Brand, error) {
	payload := brandPayload{Name: name, Active: true, SiteTitle: name}
	var resp brandResponse
	if err := g.do(ctx, g.catalog, "POST", "/pvt/brand", payload, &resp); err != nil {
		return nil, err
	}
	log.Debugf("Created brand %q (id %d)", name, resp.ID)
	return &domain.Brand{ID: resp.ID, Name: resp.Name}, nil
}

func (g *vtexGateway) ListBrands(ctx context.Context) ([]domain.Brand, error) {
	var resp []brandResponse
	if err := g.do(ctx, g.catalog, "GET", "/pvt/brand", nil, &resp); err != nil {
		return nil, err
	}
	brands := make([]domain.Brand, 0, len(resp))
	for _, b := range resp {
		brands = append(brands, domain.Brand{ID: b.ID, Name: b.Name})
	}
	return brands, nil
}

func (g *vtexGateway) CreateProduct(ctx context.Context, spec ProductSpec) (*domain.Product, error) {
	short := spec.ShortDescription
	if short == "" && len(spec.Description) > 200 {
		short = spec.Description[:200]
	} else if short == "" {
		short = spec.Description
	}
	payload := productPayload{
		ID:               spec.ExternalID,
		Name:             spec.Name,
		CategoryID:       spec.CategoryID,
		BrandID:          spec.BrandID,
		Description:      spec.Description,
		ShortDescription: short,
		Title:            spec.Name,
		IsVisible:        true,
		IsActive:         true,
		ShowWithoutStock: true,
	}
	var resp productResponse
	if err := g.do(ctx, g.catalog, "POST", "/pvt/product", payload, &resp); err != nil {
		return nil, err
	}
	return productFromResponse(resp), nil
}

func (g *vtexGateway) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var resp productResponse
	if err := g.do(ctx, g.catalog, "GET", fmt.Sprintf("/pvt/product/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return productFromResponse(resp), nil
}

func (g *vtexGateway) UpdateProductFlags(ctx context.Context, id int64, active, visible bool) error {
	var current map[string]any
	if err := g.do(ctx, g.catalog, "GET", fmt.Sprintf("/pvt/product/%d", id), nil, &current); err != nil {
		return fmt.Errorf("load product %d: %w", id, err)
	}
	current["IsActive"] = active
	current["IsVisible"] = visible
	if err := g.do(ctx, g.catalog, "PUT", fmt.Sprintf("/pvt/product/%d", id), current, nil); err != nil {
		return fmt.Errorf("update product %d: %w", id, err)
	}
	return nil
}

type specificationPayload struct {
	FieldName   string   `json:"FieldName"`
	FieldValues []string `json:"FieldValues"`
}

func (g *vtexGateway) SetProductSpecifications(ctx context.Context, productID int64, specs []domain.Specification) error {
	payload := make([]specificationPayload, 0, len(specs))
	for _, s := range specs {
		payload = append(payload, specificationPayload{FieldName: s.Name, FieldValues: []string{s.Value}})
	}
	url := fmt.Sprintf("/pvt/product/%d/specification", productID)
	return g.do(ctx, g.catalog, "POST", url, payload, nil)
}

func (g *vtexGateway) CreateSku(ctx context.Context, spec SkuSpec) (*domain.Sku, error) {
	payload := skuPayload{
		ID:        spec.ExternalID,
		ProductID: spec.ProductID,
		Name:      spec.Name,
		EAN:       spec.EAN,
		RefID:     spec.RefID,
		// VTEX requires at least one associated file before a SKU may be
		// active, so every SKU starts inactive.
		IsActive:       false,
		PackagedHeight: spec.Dimensions.Height,
		PackagedWidth:  spec.Dimensions.Width,
		PackagedLength: spec.Dimensions.Length,
		PackagedWeight: spec.Dimensions.Weight,
		Height:         spec.Dimensions.Height,
		Width:          spec.Dimensions.Width,
		Length:         spec.Dimensions.Length,
		Weight:         spec.Dimensions.Weight,
	}
	var resp skuResponse
	if err := g.do(ctx, g.catalog, "POST", "/pvt/stockkeepingunit", payload, &resp); err != nil {
		return nil, err
	}
	return skuFromResponse(resp), nil
}

func (g *vtexGateway) GetSku(ctx context.Context, id int64) (*domain.Sku, error) {
	var resp skuResponse
	if err := g.do(ctx, g.catalog, "GET", fmt.Sprintf("/pvt/stockkeepingunit/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return skuFromResponse(resp), nil
}

// ActivateSku follows the read-modify-write cycle the SKU endpoint
// requires: fetch the full payload, flip IsActive, write it back.
func (g *vtexGateway) ActivateSku(ctx context.Context, id int64) error {
	var current map[string]any
	if err := g.do(ctx, g.catalog, "GET", fmt.Sprintf("/pvt/stockkeepingunit/%d", id), nil, &current); err != nil {
		return fmt.Errorf("load sku %d: %w", id, err)
	}
	current["IsActive"] = true
	if err := g.do(ctx, g.catalog, "PUT", fmt.Sprintf("/pvt/stockkeepingunit/%d", id), current, nil); err != nil {
		return fmt.Errorf("activate sku %d: %w", id, err)
	}
	return nil
}

// SetPrice writes the observed source price with markup zero so the
// computed sale price equals the observed price exactly.
func (g *vtexGateway) SetPrice(ctx context.Context, skuID int64, basePrice, listPrice float64) error {
	payload := map[string]any{
		"markup":    0,
		"costPrice": basePrice,
	}
	if listPrice > 0 {
		payload["listPrice"] = listPrice
	}
	return g.do(ctx, g.pricing, "PUT", fmt.Sprintf("/prices/%d", skuID), payload, nil)
}

func (g *vtexGateway) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	var resp []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := g.do(ctx, g.logistics, "GET", "/pvt/configuration/warehouses", nil, &resp); err != nil {
		return nil, err
	}
	warehouses := make([]domain.Warehouse, 0, len(resp))
	for _, w := range resp {
		warehouses = append(warehouses, domain.Warehouse{ID: w.ID, Name: w.Name})
	}
	return warehouses, nil
}

func (g *vtexGateway) SetInventory(ctx context.Context, skuID int64, warehouseID string, quantity int) error {
	payload := map[string]any{
		"quantity":          quantity,
		"unlimitedQuantity": false,
	}
	url := fmt.Sprintf("/pvt/inventory/skus/%d/warehouses/%s", skuID, warehouseID)
	return g.do(ctx, g.logistics, "PUT", url, payload, nil)
}

func (g *vtexGateway) AssociateImage(ctx context.Context, skuID int64, file domain.ImageFile) error {
	payload := map[string]any{
		"url":    file.URL,
		"name":   file.FileName,
		"isMain": file.IsMain,
		"label":  file.Label,
	}
	url := fmt.Sprintf("/pvt/stockkeepingunit/%d/file", skuID)
	return g.do(ctx, g.catalog, "POST", url, payload, nil)
}

func productFromResponse(r productResponse) *domain.Product {
	return &domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		CategoryID:  r.CategoryID,
		BrandID:     r.BrandID,
		Description: r.Description,
		IsActive:    r.IsActive,
		IsVisible:   r.IsVisible,
	}
}

func skuFromResponse(r skuResponse) *domain.Sku {
	return &domain.Sku{
		ID:        r.ID,
		ProductID: r.ProductID,
		Name:      r.Name,
		EAN:       r.EAN,
		RefID:     r.RefID,
		IsActive:  r.IsActive,
	}
}
