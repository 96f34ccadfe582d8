package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vtex/migrator/internal/domain"

	log "github.com/sirupsen/logrus"
)

// Extractor turns one legacy product page into a structured record.
type Extractor interface {
	Extract(ctx context.Context, html, pageURL string) (*domain.ProductRecord, error)
}

// ErrIncompleteRecord marks pages that lack the minimum fields to build
// a product. The pipeline skips these with a warning rather than failing
// the run.
var ErrIncompleteRecord = errors.New("extracted record is incomplete")

// ValidateRecord checks the minimum a record needs before it crosses into
// catalog construction. SKUs, brand, categories and images may all be
// empty; downstream stages have explicit behavior for each of those.
func ValidateRecord(record *domain.ProductRecord) error {
	if record == nil {
		return fmt.Errorf("%w: no record", ErrIncompleteRecord)
	}
	if strings.TrimSpace(record.URL) == "" {
		return fmt.Errorf("%w: missing source url", ErrIncompleteRecord)
	}
	if strings.TrimSpace(record.Product.Name) == "" {
		return fmt.Errorf("%w: missing product name (%s)", ErrIncompleteRecord, record.URL)
	}
	return nil
}

type fallbackExtractor struct {
	primary  Extractor
	fallback Extractor
}

// NewFallbackExtractor tries primary and falls back when it errors or
// returns an incomplete record.
func NewFallbackExtractor(primary, fallback Extractor) Extractor {
	return &fallbackExtractor{primary: primary, fallback: fallback}
}

func (e *fallbackExtractor) Extract(ctx context.Context, html, pageURL string) (*domain.ProductRecord, error) {
	record, err := e.primary.Extract(ctx, html, pageURL)
	if err == nil {
		if err = ValidateRecord(record); err == nil {
			return record, nil
		}
	}
	log.Warnf("Primary extractor failed for %s (%v), falling back", pageURL, err)
	return e.fallback.Extract(ctx, html, pageURL)
}
