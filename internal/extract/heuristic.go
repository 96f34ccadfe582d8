package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"vtex/migrator/internal/domain"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// HeuristicExtractor reads product data straight out of the page markup:
// JSON-LD first, then microdata/meta tags and common storefront DOM
// patterns. It needs no external services, so it doubles as the fallback
// behind the LLM extractor.
type HeuristicExtractor struct{}

func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

func (e *HeuristicExtractor) Extract(_ context.Context, html, pageURL string) (*domain.ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %s: %w", pageURL, err)
	}

	record := &domain.ProductRecord{URL: pageURL}

	e.fromJSONLD(doc, record)
	e.fromMarkup(doc, record)

	if len(record.Skus) == 0 && record.Product.Name != "" {
		// Single-variant page. The catalog layer fills in EAN and ref
		// defaults; the price may legitimately be zero.
		record.Skus = append(record.Skus, domain.SkuRecord{
			Name:  record.Product.Name,
			Price: firstPrice(doc),
		})
	}

	if err := ValidateRecord(record); err != nil {
		return nil, err
	}
	return record, nil
}

// jsonLDProduct mirrors the schema.org Product shape loosely; fields we
// do not read stay unmapped.
type jsonLDProduct struct {
	Type        any             `json:"@type"`
	Graph       []jsonLDProduct `json:"@graph"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	SKU         string          `json:"sku"`
	GTIN13      string          `json:"gtin13"`
	GTIN        string          `json:"gtin"`
	ProductID   string          `json:"productID"`
	Image       any             `json:"image"`
	Brand       any             `json:"brand"`
	Offers      any             `json:"offers"`

	ItemListElement []struct {
		Name string `json:"name"`
		Item any    `json:"item"`
	} `json:"itemListElement"`
}

func (e *HeuristicExtractor) fromJSONLD(doc *goquery.Document, record *domain.ProductRecord) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var blocks []jsonLDProduct
		if strings.HasPrefix(raw, "[") {
			if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
				return
			}
		} else {
			var one jsonLDProduct
			if err := json.Unmarshal([]byte(raw), &one); err != nil {
				return
			}
			blocks = append([]jsonLDProduct{one}, one.Graph...)
		}

		for _, block := range blocks {
			switch typeName(block.Type) {
			case "Product":
				e.applyProduct(block, record)
			case "BreadcrumbList":
				e.applyBreadcrumbs(block, record)
			}
		}
	})
}

func (e *HeuristicExtractor) applyProduct(block jsonLDProduct, record *domain.ProductRecord) {
	if record.Product.Name == "" {
		record.Product.Name = strings.TrimSpace(block.Name)
	}
	if record.Product.Description == "" {
		record.Product.Description = strings.TrimSpace(block.Description)
	}
	if record.Product.ProductID == "" {
		record.Product.ProductID = strings.TrimSpace(block.ProductID)
	}
	if record.Brand.Name == "" {
		record.Brand.Name = nameOf(block.Brand)
	}
	for _, img := range stringsOf(block.Image) {
		record.Images = appendUnique(record.Images, img)
	}

	if len(record.Skus) == 0 {
		price, listPrice := pricesOf(block.Offers)
		ean := block.GTIN13
		if ean == "" {
			ean = block.GTIN
		}
		sku := domain.SkuRecord{
			Name:      strings.TrimSpace(block.Name),
			EAN:       strings.TrimSpace(ean),
			SkuID:     strings.TrimSpace(block.SKU),
			Price:     price,
			ListPrice: listPrice,
		}
		if sku.Name != "" || sku.Price > 0 {
			record.Skus = append(record.Skus, sku)
		}
	}
}

func (e *HeuristicExtractor) applyBreadcrumbs(block jsonLDProduct, record *domain.ProductRecord) {
	if len(record.Categories) > 0 {
		return
	}
	for i, el := range block.ItemListElement {
		name := strings.TrimSpace(el.Name)
		if name == "" {
			name = nameOf(el.Item)
		}
		if name == "" {
			continue
		}
		// The last breadcrumb is usually the product itself, not a
		// category.
		if i == len(block.ItemListElement)-1 && len(block.ItemListElement) > 1 {
			continue
		}
		record.Categories = append(record.Categories, domain.CategoryPathSegment{
			Name:  name,
			Level: len(record.Categories),
		})
	}
}

// fromMarkup fills whatever JSON-LD left empty using meta tags and the
// DOM patterns the common Brazilian storefront themes share.
func (e *HeuristicExtractor) fromMarkup(doc *goquery.Document, record *domain.ProductRecord) {
	if record.Product.Name == "" {
		record.Product.Name = firstText(doc,
			`[itemprop="name"]`,
			"h1.product-name", "h1.product-title", ".product h1", "h1")
	}
	if record.Product.Name == "" {
		if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
			record.Product.Name = strings.TrimSpace(og)
		}
	}

	if record.Product.Description == "" {
		record.Product.Description = firstText(doc,
			`[itemprop="description"]`,
			".product-description", "#description", ".descricao")
	}
	if record.Product.ShortDescription == "" {
		if meta, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			record.Product.ShortDescription = strings.TrimSpace(meta)
		}
	}

	if record.Brand.Name == "" {
		record.Brand.Name = firstText(doc, `[itemprop="brand"]`, ".product-brand", ".marca")
	}

	if len(record.Categories) == 0 {
		doc.Find(".breadcrumb a, nav.breadcrumb a, .breadcrumbs a, ul.breadcrumb li a").Each(func(_ int, s *goquery.Selection) {
			name := strings.TrimSpace(s.Text())
			if name == "" {
				return
			}
			record.Categories = append(record.Categories, domain.CategoryPathSegment{
				Name:  name,
				Level: len(record.Categories),
			})
		})
	}

	if len(record.Images) == 0 {
		doc.Find(`meta[property="og:image"]`).Each(func(_ int, s *goquery.Selection) {
			if src, ok := s.Attr("content"); ok {
				record.Images = appendUnique(record.Images, src)
			}
		})
		doc.Find(".product-images img, .product-gallery img, #gallery img").Each(func(_ int, s *goquery.Selection) {
			src, ok := s.Attr("data-src")
			if !ok {
				src, ok = s.Attr("src")
			}
			if ok {
				record.Images = appendUnique(record.Images, src)
			}
		})
	}

	doc.Find(".specifications tr, table.product-specs tr").Each(func(_ int, s *goquery.Selection) {
		cells := s.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		name := strings.TrimSpace(cells.Eq(0).Text())
		value := strings.TrimSpace(cells.Eq(1).Text())
		if name != "" && value != "" {
			record.Specifications = append(record.Specifications, domain.Specification{Name: name, Value: value})
		}
	})
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstPrice(doc *goquery.Document) float64 {
	if content, ok := doc.Find(`[itemprop="price"]`).First().Attr("content"); ok {
		if price := parsePrice(content); price > 0 {
			return price
		}
	}
	if content, ok := doc.Find(`meta[property="product:price:amount"]`).Attr("content"); ok {
		if price := parsePrice(content); price > 0 {
			return price
		}
	}
	return parsePrice(firstText(doc, ".price", ".product-price", ".preco"))
}

var priceDigits = regexp.MustCompile(`[\d.,]+`)

// parsePrice accepts both "1234.56" and the Brazilian "1.234,56".
func parsePrice(raw string) float64 {
	match := priceDigits.FindString(raw)
	if match == "" {
		return 0
	}
	if strings.Contains(match, ",") {
		match = strings.ReplaceAll(match, ".", "")
		match = strings.ReplaceAll(match, ",", ".")
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		log.Debugf("Unparseable price %q", raw)
		return 0
	}
	return value
}

func typeName(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				return s
			}
		}
	}
	return ""
}

// nameOf reads a schema.org value that may be a plain string or an
// object with a "name" field.
func nameOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if name, ok := t["name"].(string); ok {
			return strings.TrimSpace(name)
		}
	}
	return ""
}

func stringsOf(v any) []string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return []string{t}
		}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		if u, ok := t["url"].(string); ok && u != "" {
			return []string{u}
		}
	}
	return nil
}

func pricesOf(v any) (price, listPrice float64) {
	offer, ok := firstOffer(v)
	if !ok {
		return 0, 0
	}
	price = numberOf(offer["price"])
	if price == 0 {
		price = numberOf(offer["lowPrice"])
	}
	listPrice = numberOf(offer["highPrice"])
	return price, listPrice
}

func firstOffer(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				return m, true
			}
		}
	}
	return nil, false
}

func numberOf(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		return parsePrice(t)
	}
	return 0
}

func appendUnique(list []string, item string) []string {
	item = strings.TrimSpace(item)
	if item == "" {
		return list
	}
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
