// Package checkout orchestrates the path from a submitted cart to a created
// order: server-side re-pricing, stock validation, the atomic order+inventory
// transaction, the fee split, and the payment rail.
package checkout

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/storefronthq/order-engine/internal/apperr"
	"github.com/storefronthq/order-engine/internal/catalog"
	"github.com/storefronthq/order-engine/internal/fees"
	"github.com/storefronthq/order-engine/internal/inventory"
	"github.com/storefronthq/order-engine/internal/orders"
	"github.com/storefronthq/order-engine/internal/payments"
	"github.com/storefronthq/order-engine/internal/sideeffects"
	"github.com/storefronthq/order-engine/internal/stores"
	"github.com/storefronthq/order-engine/internal/validation"
)

// TaxCalculator is a stub boundary: tax computation is out of scope, but the
// total math keeps an explicit tax component.
type TaxCalculator interface {
	TaxCents(ctx context.Context, storeID string, subtotalCents int64) int64
}

// ZeroTax is the default TaxCalculator.
type ZeroTax struct{}

func (ZeroTax) TaxCents(ctx context.Context, storeID string, subtotalCents int64) int64 { return 0 }

// Result is the success response of a checkout.
type Result struct {
	OrderID      string `json:"orderId"`
	OrderNumber  string `json:"orderNumber"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// Service wires the checkout collaborators.
type Service struct {
	Catalog    *catalog.SnapshotReader
	Inventory  *inventory.Ledger
	Orders     *orders.Store
	Stores     *stores.Reader
	Payments   *payments.Registry
	Dispatcher *sideeffects.Dispatcher
	Tax        TaxCalculator

	nowFunc func() time.Time
}

// NewService builds a checkout Service with the default tax stub.
func NewService(snap *catalog.SnapshotReader, ledger *inventory.Ledger, ordersStore *orders.Store, storesReader *stores.Reader, registry *payments.Registry, dispatcher *sideeffects.Dispatcher) *Service {
	return &Service{
		Catalog:    snap,
		Inventory:  ledger,
		Orders:     ordersStore,
		Stores:     storesReader,
		Payments:   registry,
		Dispatcher: dispatcher,
		Tax:        ZeroTax{},
		nowFunc:    time.Now,
	}
}

// Checkout runs the full flow. Every validation and business-rule failure
// happens before the order transaction and leaves no side effects; once the
// transaction commits, downstream failures surface through the order's
// payment status, never by rolling the order back.
func (s *Service) Checkout(ctx context.Context, storeID string, req validation.CheckoutRequest) (*Result, error) {
	store, err := s.Stores.Get(ctx, storeID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to load store %s", storeID)
	}
	if store == nil {
		return nil, apperr.New(apperr.CodeNotFound, "store %s not found", storeID)
	}

	reqItems := make([]catalog.RequestItem, 0, len(req.Items))
	for _, it := range req.Items {
		reqItems = append(reqItems, catalog.RequestItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		})
	}

	// authoritative prices; whatever the client claimed is never read
	lines, err := s.Catalog.Resolve(ctx, storeID, reqItems)
	if err != nil {
		return nil, err
	}

	invItems := make([]inventory.Item, 0, len(lines))
	for _, l := range lines {
		invItems = append(invItems, inventory.Item{ProductID: l.ProductID, VariantID: l.VariantID, Quantity: l.Quantity})
	}
	// advisory pass so shortages come back aggregated; the transaction below
	// re-checks each decrement under its own condition
	if err := s.Inventory.Validate(ctx, invItems); err != nil {
		return nil, err
	}

	now := s.nowFunc()
	subtotal := catalog.SubtotalCents(lines)
	shipping := store.ShippingCents(req.ShippingMethod)
	tax := s.Tax.TaxCents(ctx, storeID, subtotal)
	total := subtotal + shipping + tax

	order := orders.Order{
		OrderID:       uuid.NewString(),
		OrderNumber:   orders.NewOrderNumber(store.OrderPrefix, now),
		StoreID:       storeID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		ShippingAddress: orders.Address{
			Street:  req.ShippingAddress.Street,
			City:    req.ShippingAddress.City,
			State:   req.ShippingAddress.State,
			Zip:     req.ShippingAddress.Zip,
			Country: req.ShippingAddress.Country,
		},
		Items:          lineItems(lines),
		SubtotalCents:  subtotal,
		ShippingCents:  shipping,
		TaxCents:       tax,
		TotalCents:     total,
		Currency:       store.Currency,
		PaymentMethod:  req.PaymentMethod,
		Status:         orders.StatusPending,
		PaymentStatus:  orders.PaymentPending,
		ShippingMethod: req.ShippingMethod,
		Attribution:    attribution(req),
		CreatedAt:      now,
	}

	// the one transaction in the core: order put + conditional decrements
	deducts := s.Inventory.DeductItems(invItems)
	if err := s.Orders.CreateWithInventoryTransaction(ctx, order, deducts, invItems); err != nil {
		return nil, err
	}

	adapter, err := s.Payments.ForMethod(req.PaymentMethod)
	if err != nil {
		// unreachable with a validated method; treat as config error
		s.failPayment(ctx, order.OrderID)
		return nil, apperr.Wrap(apperr.CodeCheckoutFailed, err, "payment rail unavailable")
	}

	charge, err := adapter.Charge(ctx, payments.ChargeRequest{
		OrderID:            order.OrderID,
		TotalCents:         total,
		Currency:           store.Currency,
		Breakdown:          fees.Split(total, store.FeePercent),
		DestinationAccount: store.PayoutAccount,
	})
	if err != nil {
		// the order transaction has committed; compensate by parking the
		// order in an explicit failed-payment state instead of leaving it
		// silently pending
		s.failPayment(ctx, order.OrderID)
		return nil, apperr.Wrap(apperr.CodeCheckoutFailed, err, "payment could not be initiated")
	}

	if charge.PaymentRef != "" {
		if err := s.Orders.SetPaymentRef(ctx, order.OrderID, charge.PaymentRef); err != nil {
			s.failPayment(ctx, order.OrderID)
			return nil, apperr.Wrap(apperr.CodeCheckoutFailed, err, "payment reference could not be stored")
		}
	}

	s.Dispatcher.Dispatch(ctx, sideeffects.Task{
		Type:          sideeffects.TaskNotification,
		OrderID:       order.OrderID,
		StoreID:       storeID,
		Event:         orders.StatusPending,
		CustomerEmail: order.CustomerEmail,
	})

	return &Result{
		OrderID:      order.OrderID,
		OrderNumber:  order.OrderNumber,
		ClientSecret: charge.ClientSecret,
	}, nil
}

func (s *Service) failPayment(ctx context.Context, orderID string) {
	if err := s.Orders.SetPaymentStatus(ctx, orderID, orders.PaymentFailed); err != nil {
		log.Printf("checkout: could not mark order %s payment failed: %v", orderID, err)
	}
}

func lineItems(lines []catalog.Line) []orders.LineItem {
	items := make([]orders.LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, orders.LineItem{
			ProductID:      l.ProductID,
			VariantID:      l.VariantID,
			Name:           l.Name,
			UnitPriceCents: l.UnitPriceCents,
			Quantity:       l.Quantity,
		})
	}
	return items
}

func attribution(req validation.CheckoutRequest) *orders.Attribution {
	if req.UTMSource == "" && req.UTMMedium == "" && req.UTMCampaign == "" && req.UTMContent == "" && req.Referrer == "" {
		return nil
	}
	return &orders.Attribution{
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
		UTMContent:  req.UTMContent,
		Referrer:    req.Referrer,
	}
}
