package catalog

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/storefronthq/order-engine/internal/apperr"
	"github.com/storefronthq/order-engine/internal/dynamotest"
)

func newCatalogFake(t *testing.T, products ...Product) *dynamotest.Fake {
	t.Helper()
	fake := dynamotest.New(map[string]dynamotest.TableSpec{
		"products":      {PK: "product_id"},
		"price_history": {PK: "product_id", SK: "changed_at"},
	})
	for _, p := range products {
		item, err := attributevalue.MarshalMap(p)
		if err != nil {
			t.Fatalf("marshal product: %v", err)
		}
		fake.Seed("products", item)
	}
	return fake
}

func testReader(fake *dynamotest.Fake) *SnapshotReader {
	return NewSnapshotReader(NewStore(fake, "products", "price_history"), 4)
}

func TestResolve_ServerPricesWin(t *testing.T) {
	fake := newCatalogFake(t,
		Product{ProductID: "p-1", StoreID: "s-1", Name: "Mug", Status: StatusActive, PriceCents: 1500},
		Product{ProductID: "p-2", StoreID: "s-1", Name: "Shirt", Status: StatusActive, PriceCents: 2000,
			Variants: []Variant{{VariantID: "v-l", Name: "Large", PriceCents: 2500}}},
	)

	lines, err := testReader(fake).Resolve(context.Background(), "s-1", []RequestItem{
		{ProductID: "p-1", Quantity: 2},
		{ProductID: "p-2", VariantID: "v-l", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	// order of the input is preserved
	if lines[0].ProductID != "p-1" || lines[0].UnitPriceCents != 1500 || lines[0].Name != "Mug" {
		t.Fatalf("line 0 = %+v", lines[0])
	}
	if lines[1].UnitPriceCents != 2500 || lines[1].Name != "Shirt - Large" || lines[1].VariantID != "v-l" {
		t.Fatalf("variant line = %+v", lines[1])
	}
	if got := SubtotalCents(lines); got != 5500 {
		t.Fatalf("subtotal = %d, want 5500", got)
	}
}

func TestResolve_Unavailable(t *testing.T) {
	fake := newCatalogFake(t,
		Product{ProductID: "p-archived", StoreID: "s-1", Status: StatusArchived, PriceCents: 900},
		Product{ProductID: "p-deleted", StoreID: "s-1", Status: StatusActive, Deleted: true, PriceCents: 900},
		Product{ProductID: "p-elsewhere", StoreID: "s-2", Status: StatusActive, PriceCents: 900},
	)
	reader := testReader(fake)

	for _, productID := range []string{"p-archived", "p-deleted", "p-elsewhere", "p-missing"} {
		_, err := reader.Resolve(context.Background(), "s-1", []RequestItem{{ProductID: productID, Quantity: 1}})
		if apperr.CodeOf(err) != apperr.CodeProductUnavailable {
			t.Errorf("product %s: expected PRODUCT_UNAVAILABLE, got %v", productID, err)
		}
	}
}

func TestResolve_VariantNotFound(t *testing.T) {
	fake := newCatalogFake(t,
		Product{ProductID: "p-1", StoreID: "s-1", Name: "Shirt", Status: StatusActive, PriceCents: 2000,
			Variants: []Variant{{VariantID: "v-l", Name: "Large", PriceCents: 2500}}},
	)

	_, err := testReader(fake).Resolve(context.Background(), "s-1", []RequestItem{
		{ProductID: "p-1", VariantID: "v-xxl", Quantity: 1},
	})
	if apperr.CodeOf(err) != apperr.CodeVariantNotFound {
		t.Fatalf("expected VARIANT_NOT_FOUND, got %v", err)
	}
}

func TestResolve_RejectsNonPositiveQuantity(t *testing.T) {
	fake := newCatalogFake(t,
		Product{ProductID: "p-1", StoreID: "s-1", Name: "Mug", Status: StatusActive, PriceCents: 1500},
	)

	_, err := testReader(fake).Resolve(context.Background(), "s-1", []RequestItem{
		{ProductID: "p-1", Quantity: 0},
	})
	if apperr.CodeOf(err) != apperr.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestResolve_NoPartialResult(t *testing.T) {
	fake := newCatalogFake(t,
		Product{ProductID: "p-1", StoreID: "s-1", Name: "Mug", Status: StatusActive, PriceCents: 1500},
	)

	lines, err := testReader(fake).Resolve(context.Background(), "s-1", []RequestItem{
		{ProductID: "p-1", Quantity: 1},
		{ProductID: "p-missing", Quantity: 1},
	})
	if err == nil {
		t.Fatal("expected error for the mixed request")
	}
	if lines != nil {
		t.Fatalf("got partial lines %+v", lines)
	}
}
