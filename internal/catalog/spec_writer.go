package catalog

import (
	"context"
	"fmt"

	"vtex/migrator/internal/client"
	"vtex/migrator/internal/domain"

	log "github.com/sirupsen/logrus"
)

// SpecificationWriter applies extracted specification fields to a created
// product. The configuration flag pipeline.specifications_enabled picks
// the implementation; dynamic field creation stays off by default.
type SpecificationWriter interface {
	Write(ctx context.Context, productID, categoryID int64, specs []domain.Specification) error
}

type noopSpecificationWriter struct{}

// NewNoopSpecificationWriter returns the disabled implementation.
func NewNoopSpecificationWriter() SpecificationWriter {
	return noopSpecificationWriter{}
}

func (noopSpecificationWriter) Write(_ context.Context, productID, _ int64, specs []domain.Specification) error {
	log.Debugf("Specifications disabled; dropping %d fields for product %d", len(specs), productID)
	return nil
}

type gatewaySpecificationWriter struct {
	gateway client.CatalogGateway
}

// NewGatewaySpecificationWriter writes specification fields through the
// catalog API, one batch per product.
func NewGatewaySpecificationWriter(gateway client.CatalogGateway) SpecificationWriter {
	return gatewaySpecificationWriter{gateway: gateway}
}

func (w gatewaySpecificationWriter) Write(ctx context.Context, productID, _ int64, specs []domain.Specification) error {
	if len(specs) == 0 {
		return nil
	}
	if err := w.gateway.SetProductSpecifications(ctx, productID, specs); err != nil {
		return fmt.Errorf("write specifications for product %d: %w", productID, err)
	}
	log.Debugf("Wrote %d specification fields for product %d", len(specs), productID)
	return nil
}
