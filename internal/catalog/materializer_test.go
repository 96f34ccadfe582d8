package catalog

import (
	"context"
	"errors"
	"testing"

	"vtex/migrator/internal/domain"
	"vtex/migrator/internal/state"
)

func newTestMaterializer(gateway *fakeGateway) *Materializer {
	return NewMaterializer(gateway, state.NewMemoryManager(), NewNoopSpecificationWriter(), 100, "1_1")
}

func record(url, name, productID string) *domain.ProductRecord {
	return &domain.ProductRecord{
		URL: url,
		Product: domain.ProductInfo{
			Name:      name,
			ProductID: productID,
		},
	}
}

func TestMaterializeProductCreates(t *testing.T) {
	gateway := newFakeGateway()
	m := newTestMaterializer(gateway)

	product, err := m.MaterializeProduct(context.Background(), record("https://legacy/p/1", "Cadeira Gamer", ""), 10, 20)
	if err != nil {
		t.Fatalf("MaterializeProduct: %v", err)
	}

	remote := gateway.products[product.RemoteID]
	if remote == nil {
		t.Fatal("product not created remotely")
	}
	if !remote.IsActive || !remote.IsVisible {
		t.Fatalf("product flags = active %v visible %v, want both true", remote.IsActive, remote.IsVisible)
	}
	if products, _ := m.CreatedCounts(); products != 1 {
		t.Fatalf("CreatedCounts products = %d, want 1", products)
	}
}

func TestMaterializeProductWritesSpecificationsWhenEnabled(t *testing.T) {
	gateway := newFakeGateway()
	m := NewMaterializer(gateway, state.NewMemoryManager(), NewGatewaySpecificationWriter(gateway), 100, "1_1")

	rec := record("https://legacy/p/espec", "Poltrona Reclinável", "")
	rec.Specifications = []domain.Specification{
		{Name: "Cor", Value: "Azul"},
		{Name: "Material", Value: "Veludo"},
	}

	product, err := m.MaterializeProduct(context.Background(), rec, 10, 20)
	if err != nil {
		t.Fatalf("MaterializeProduct: %v", err)
	}

	written := gateway.specifications[product.RemoteID]
	if len(written) != 2 {
		t.Fatalf("wrote %d specification fields, want 2", len(written))
	}
	if written[0].Name != "Cor" || written[0].Value != "Azul" {
		t.Fatalf("first field = %+v, want Cor=Azul", written[0])
	}
}

func TestMaterializeProductDropsSpecificationsWhenDisabled(t *testing.T) {
	gateway := newFakeGateway()
	m := newTestMaterializer(gateway)

	rec := record("https://legacy/p/espec", "Poltrona Reclinável", "")
	rec.Specifications = []domain.Specification{{Name: "Cor", Value: "Azul"}}

	if _, err := m.MaterializeProduct(context.Background(), rec, 10, 20); err != nil {
		t.Fatalf("MaterializeProduct: %v", err)
	}
	if len(gateway.specifications) != 0 {
		t.Fatalf("disabled writer reached the gateway: %v", gateway.specifications)
	}
}

func TestMaterializeProductConflictReusesByExternalID(t *testing.T) {
	gateway := newFakeGateway()
	ctx := context.Background()
	m := newTestMaterializer(gateway)

	// A previous run already created the product under its preserved id.
	if _, err := m.MaterializeProduct(ctx, record("https://legacy/p/old", "Mesa de Jantar", "PROD-77"), 10, 20); err != nil {
		t.Fatalf("seed MaterializeProduct: %v", err)
	}

	// Same remote entity, different URL key and fresh local state.
	fresh := newTestMaterializer(gateway)
	product, err := fresh.MaterializeProduct(ctx, record("https://legacy/p/new", "Mesa de Jantar", "PROD-77"), 10, 20)
	if err != nil {
		t.Fatalf("MaterializeProduct after conflict: %v", err)
	}
	if product.RemoteID != 77 {
		t.Fatalf("RemoteID = %d, want reused 77", product.RemoteID)
	}
	if products, _ := fresh.CreatedCounts(); products != 0 {
		t.Fatalf("conflict reuse counted %d created products, want 0", products)
	}
}

func TestMaterializeProductConflictWithoutIDIsUnrecoverable(t *testing.T) {
	gateway := newFakeGateway()
	ctx := context.Background()
	m := newTestMaterializer(gateway)

	if _, err := m.MaterializeProduct(ctx, record("https://legacy/p/a", "Sofá Retrátil", ""), 10, 20); err != nil {
		t.Fatalf("seed MaterializeProduct: %v", err)
	}

	fresh := newTestMaterializer(gateway)
	_, err := fresh.MaterializeProduct(ctx, record("https://legacy/p/b", "Sofá Retrátil", ""), 10, 20)
	if !errors.Is(err, ErrUnrecoverableConflict) {
		t.Fatalf("MaterializeProduct = %v, want ErrUnrecoverableConflict", err)
	}
}

func TestSkuStartsInactiveAndActivationIsGated(t *testing.T) {
	gateway := newFakeGateway()
	ctx := context.Background()
	m := newTestMaterializer(gateway)

	product, err := m.MaterializeProduct(ctx, record("https://legacy/p/1", "Tênis de Corrida", ""), 10, 20)
	if err != nil {
		t.Fatalf("MaterializeProduct: %v", err)
	}
	sku, err := m.MaterializeSku(ctx, product, domain.SkuRecord{Name: "42", Price: 199.9})
	if err != nil {
		t.Fatalf("MaterializeSku: %v", err)
	}

	if gateway.skus[sku.RemoteID].IsActive {
		t.Fatal("SKU was created active, want inactive")
	}

	if err := m.ActivateSku(ctx, sku); !errors.Is(err, ErrSkuNotReady) {
		t.Fatalf("ActivateSku before images = %v, want ErrSkuNotReady", err)
	}
	if gateway.skus[sku.RemoteID].IsActive {
		t.Fatal("gated activation still reached the remote")
	}

	m.NoteImagesAssociated(ctx, sku, 2)
	if err := m.ActivateSku(ctx, sku); err != nil {
		t.Fatalf("ActivateSku after images: %v", err)
	}
	if !gateway.skus[sku.RemoteID].IsActive {
		t.Fatal("SKU not active after activation")
	}
}

func TestMaterializeSkuAppliesDefaults(t *testing.T) {
	gateway := newFakeGateway()
	ctx := context.Background()
	m := newTestMaterializer(gateway)

	product, err := m.MaterializeProduct(ctx, record("https://legacy/p/1", "Luminária", ""), 10, 20)
	if err != nil {
		t.Fatalf("MaterializeProduct: %v", err)
	}
	sku, err := m.MaterializeSku(ctx, product, domain.SkuRecord{})
	if err != nil {
		t.Fatalf("MaterializeSku: %v", err)
	}

	remote := gateway.skus[sku.RemoteID]
	if remote.Name != "Default" {
		t.Fatalf("SKU name = %q, want Default", remote.Name)
	}
	if remote.EAN == "" {
		t.Fatal("SKU created without EAN fallback")
	}
}

func TestApplyPriceZeroMarkup(t *testing.T) {
	gateway := newFakeGateway()
	m := newTestMaterializer(gateway)

	if err := m.ApplyPrice(context.Background(), 5, domain.SkuRecord{Price: 149.9}); err != nil {
		t.Fatalf("ApplyPrice: %v", err)
	}

	got := gateway.prices[5]
	if got[0] != 149.9 || got[1] != 149.9 {
		t.Fatalf("price = (%v, %v), want observed price verbatim on both", got[0], got[1])
	}
}

func TestApplyInventoryAllWarehouses(t *testing.T) {
	gateway := newFakeGateway()
	gateway.warehouses = []domain.Warehouse{{ID: "w1"}, {ID: "w2"}}
	m := newTestMaterializer(gateway)

	if err := m.ApplyInventory(context.Background(), 5); err != nil {
		t.Fatalf("ApplyInventory: %v", err)
	}

	for _, key := range []string{"5:w1", "5:w2"} {
		if gateway.inventory[key] != 100 {
			t.Fatalf("inventory[%s] = %d, want 100", key, gateway.inventory[key])
		}
	}
}

func TestApplyInventoryFallsBackToDefaultWarehouse(t *testing.T) {
	gateway := newFakeGateway()
	m := newTestMaterializer(gateway)

	if err := m.ApplyInventory(context.Background(), 5); err != nil {
		t.Fatalf("ApplyInventory: %v", err)
	}
	if gateway.inventory["5:1_1"] != 100 {
		t.Fatalf("inventory[5:1_1] = %d, want 100", gateway.inventory["5:1_1"])
	}
}
