package stores

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/storefronthq/order-engine/internal/dynamotest"
)

func TestShippingCents(t *testing.T) {
	s := &Store{ShippingFlatCents: 500}
	if got := s.ShippingCents("standard"); got != 500 {
		t.Fatalf("standard shipping = %d, want 500", got)
	}
	if got := s.ShippingCents(""); got != 500 {
		t.Fatalf("default shipping = %d, want 500", got)
	}
	if got := s.ShippingCents("local_pickup"); got != 0 {
		t.Fatalf("local pickup = %d, want 0", got)
	}
}

func TestReaderGet(t *testing.T) {
	fake := dynamotest.New(map[string]dynamotest.TableSpec{
		"stores": {PK: "store_id"},
	})
	item, err := attributevalue.MarshalMap(Store{
		StoreID:     "s-1",
		Name:        "Acme",
		OrderPrefix: "ACME",
		Currency:    "USD",
		FeePercent:  10,
	})
	if err != nil {
		t.Fatalf("marshal store: %v", err)
	}
	fake.Seed("stores", item)

	reader := NewReader(fake, "stores")
	store, err := reader.Get(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if store == nil || store.Name != "Acme" || store.FeePercent != 10 {
		t.Fatalf("unexpected store %+v", store)
	}

	missing, err := reader.Get(context.Background(), "s-2")
	if err != nil || missing != nil {
		t.Fatalf("missing store should be (nil, nil), got (%v, %v)", missing, err)
	}
}
