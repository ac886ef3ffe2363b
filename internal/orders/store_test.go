package orders

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/storefronthq/order-engine/internal/apperr"
	"github.com/storefronthq/order-engine/internal/inventory"
)

func TestCreateWithInventoryTransaction(t *testing.T) {
	fake := newTestFake()
	seed(t, fake, "inventory", inventory.Record{SKUKey: "p-1", ProductID: "p-1", Quantity: 5})
	seed(t, fake, "inventory", inventory.Record{SKUKey: "p-2#v-1", ProductID: "p-2", VariantID: "v-1", Quantity: 2})

	store := NewStore(fake, "orders")
	ledger := inventory.NewLedger(fake, "inventory")
	items := []inventory.Item{
		{ProductID: "p-1", Quantity: 2},
		{ProductID: "p-2", VariantID: "v-1", Quantity: 1},
	}

	err := store.CreateWithInventoryTransaction(context.Background(), testOrder(StatusPending), ledger.DeductItems(items), items)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if fake.Item("orders", "o-1") == nil {
		t.Fatal("order row not written")
	}
	if qty := itemNumber(t, fake.Item("inventory", "p-1"), "quantity"); qty != 3 {
		t.Fatalf("p-1 quantity = %d, want 3", qty)
	}
	if qty := itemNumber(t, fake.Item("inventory", "p-2#v-1"), "quantity"); qty != 1 {
		t.Fatalf("p-2#v-1 quantity = %d, want 1", qty)
	}
}

func TestCreateWithInventoryTransaction_InsufficientStock(t *testing.T) {
	fake := newTestFake()
	seed(t, fake, "inventory", inventory.Record{SKUKey: "p-1", ProductID: "p-1", Quantity: 5})
	seed(t, fake, "inventory", inventory.Record{SKUKey: "p-2#v-1", ProductID: "p-2", VariantID: "v-1", Quantity: 1})

	store := NewStore(fake, "orders")
	ledger := inventory.NewLedger(fake, "inventory")
	items := []inventory.Item{
		{ProductID: "p-1", Quantity: 2},
		{ProductID: "p-2", VariantID: "v-1", Quantity: 4},
	}

	err := store.CreateWithInventoryTransaction(context.Background(), testOrder(StatusPending), ledger.DeductItems(items), items)
	if apperr.CodeOf(err) != apperr.CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}
	if msg := apperr.MessageOf(err); !regexp.MustCompile(`p-2#v-1`).MatchString(msg) {
		t.Fatalf("error should name the short SKU, got %q", msg)
	}
	// nothing committed: no order row, no partial decrement
	if fake.Item("orders", "o-1") != nil {
		t.Fatal("order row written despite canceled transaction")
	}
	if qty := itemNumber(t, fake.Item("inventory", "p-1"), "quantity"); qty != 5 {
		t.Fatalf("p-1 quantity = %d after canceled transaction, want 5", qty)
	}
}

func TestCreateWithInventoryTransaction_DuplicateOrderID(t *testing.T) {
	fake := newTestFake()
	seed(t, fake, "orders", testOrder(StatusPending))
	seed(t, fake, "inventory", inventory.Record{SKUKey: "p-1", ProductID: "p-1", Quantity: 5})

	store := NewStore(fake, "orders")
	ledger := inventory.NewLedger(fake, "inventory")
	items := []inventory.Item{{ProductID: "p-1", Quantity: 1}}

	err := store.CreateWithInventoryTransaction(context.Background(), testOrder(StatusPending), ledger.DeductItems(items), items)
	if apperr.CodeOf(err) != apperr.CodeCheckoutFailed {
		t.Fatalf("expected CHECKOUT_FAILED on duplicate order id, got %v", err)
	}
	if qty := itemNumber(t, fake.Item("inventory", "p-1"), "quantity"); qty != 5 {
		t.Fatalf("stock deducted for a rejected duplicate: %d", qty)
	}
}

func TestUpdateStatus_Conditional(t *testing.T) {
	fake := newTestFake()
	seed(t, fake, "orders", testOrder(StatusConfirmed))
	store := NewStore(fake, "orders")

	if err := store.UpdateStatus(context.Background(), "o-1", StatusConfirmed, StatusProcessing); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got := itemString(fake.Item("orders", "o-1"), "status"); got != StatusProcessing {
		t.Fatalf("status = %s, want PROCESSING", got)
	}

	err := store.UpdateStatus(context.Background(), "o-1", StatusConfirmed, StatusProcessing)
	if err != ErrStatusMismatch {
		t.Fatalf("expected ErrStatusMismatch on stale expected status, got %v", err)
	}
}

func TestUpdateShippingFields(t *testing.T) {
	fake := newTestFake()
	seed(t, fake, "orders", testOrder(StatusShipped))
	store := NewStore(fake, "orders")

	err := store.UpdateShippingFields(context.Background(), "o-1", ShippingFields{
		TrackingNumber: "TRK-42",
		ShippingMethod: "courier",
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	item := fake.Item("orders", "o-1")
	if got := itemString(item, "tracking_number"); got != "TRK-42" {
		t.Fatalf("tracking_number = %q", got)
	}
	if got := itemString(item, "shipping_method"); got != "courier" {
		t.Fatalf("shipping_method = %q", got)
	}
	if _, ok := item["estimated_delivery"]; ok {
		t.Fatal("estimated_delivery written although empty")
	}

	// all fields empty is a no-op, no call issued
	calls := fake.UpdateCalls
	if err := store.UpdateShippingFields(context.Background(), "o-1", ShippingFields{}); err != nil {
		t.Fatalf("empty update failed: %v", err)
	}
	if fake.UpdateCalls != calls {
		t.Fatal("empty shipping update still hit the table")
	}
}

func TestSetPaymentStatus(t *testing.T) {
	fake := newTestFake()
	seed(t, fake, "orders", testOrder(StatusPending))
	store := NewStore(fake, "orders")

	if err := store.SetPaymentStatus(context.Background(), "o-1", PaymentPaid); err != nil {
		t.Fatalf("set payment status failed: %v", err)
	}
	if got := itemString(fake.Item("orders", "o-1"), "payment_status"); got != PaymentPaid {
		t.Fatalf("payment_status = %q", got)
	}
}

func TestSetPaymentStatus_UnknownOrder(t *testing.T) {
	fake := newTestFake()
	store := NewStore(fake, "orders")

	err := store.SetPaymentStatus(context.Background(), "o-ghost", PaymentPaid)
	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for unknown order, got %v", err)
	}
	if fake.Item("orders", "o-ghost") != nil {
		t.Fatal("payment-status write upserted a row for a nonexistent order")
	}
}

func TestSetPaymentRef(t *testing.T) {
	fake := newTestFake()
	seed(t, fake, "orders", testOrder(StatusPending))
	store := NewStore(fake, "orders")

	if err := store.SetPaymentRef(context.Background(), "o-1", "pi_123"); err != nil {
		t.Fatalf("set payment ref failed: %v", err)
	}
	if got := itemString(fake.Item("orders", "o-1"), "payment_ref"); got != "pi_123" {
		t.Fatalf("payment_ref = %q", got)
	}
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2026, 3, 9, 15, 4, 5, 0, time.UTC)

	got := NewOrderNumber("acme", now)
	if !regexp.MustCompile(`^ACME-20260309-[0-9A-F]{6}$`).MatchString(got) {
		t.Fatalf("order number %q does not match PREFIX-YYYYMMDD-XXXXXX", got)
	}

	got = NewOrderNumber("  ", now)
	if !regexp.MustCompile(`^ORD-20260309-[0-9A-F]{6}$`).MatchString(got) {
		t.Fatalf("blank prefix should fall back to ORD, got %q", got)
	}

	if NewOrderNumber("acme", now) == NewOrderNumber("acme", now) {
		t.Fatal("two order numbers collided")
	}
}
