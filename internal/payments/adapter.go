// Package payments holds one adapter per payment rail. Only the card rail
// talks to the external processor; the offline rails leave the order pending
// for out-of-band confirmation by the merchant.
package payments

import (
	"context"
	"fmt"

	"github.com/storefronthq/order-engine/internal/fees"
	"github.com/storefronthq/order-engine/internal/orders"
)

// SplitIntentParams describes a split payment: the customer is charged the
// full amount, the platform keeps the application fee, the remainder settles
// to the merchant's connected payout account.
type SplitIntentParams struct {
	AmountCents         int64
	ApplicationFeeCents int64
	Currency            string
	DestinationAccount  string
	OrderID             string
}

// Intent is the processor's handle for a created payment.
type Intent struct {
	Reference    string
	ClientSecret string
}

// ProcessorClient is the external payment processor boundary. Out of scope
// internals; injected so deployments can swap implementations.
type ProcessorClient interface {
	CreateSplitIntent(ctx context.Context, params SplitIntentParams) (*Intent, error)
}

// ChargeRequest carries everything an adapter needs for one payment attempt.
type ChargeRequest struct {
	OrderID            string
	TotalCents         int64
	Currency           string
	Breakdown          fees.Breakdown
	DestinationAccount string
}

// ChargeResult is what the adapter hands back to checkout.
type ChargeResult struct {
	PaymentRef    string
	ClientSecret  string
	PaymentStatus string
}

// Adapter is one payment rail.
type Adapter interface {
	Method() string
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// CardAdapter creates a split payment intent against the processor.
type CardAdapter struct {
	processor ProcessorClient
}

// NewCardAdapter wraps a processor client.
func NewCardAdapter(processor ProcessorClient) *CardAdapter {
	return &CardAdapter{processor: processor}
}

func (a *CardAdapter) Method() string { return orders.MethodCard }

func (a *CardAdapter) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	intent, err := a.processor.CreateSplitIntent(ctx, SplitIntentParams{
		AmountCents:         req.TotalCents,
		ApplicationFeeCents: req.Breakdown.PlatformFeeCents,
		Currency:            req.Currency,
		DestinationAccount:  req.DestinationAccount,
		OrderID:             req.OrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("create split intent: %w", err)
	}
	return &ChargeResult{
		PaymentRef:    intent.Reference,
		ClientSecret:  intent.ClientSecret,
		PaymentStatus: orders.PaymentPending,
	}, nil
}

// OfflineAdapter covers cod, mobile money and bank transfer: no external call,
// no payment reference, payment confirmed out-of-band.
type OfflineAdapter struct {
	method string
}

// NewOfflineAdapter returns the adapter for an offline rail.
func NewOfflineAdapter(method string) *OfflineAdapter {
	return &OfflineAdapter{method: method}
}

func (a *OfflineAdapter) Method() string { return a.method }

func (a *OfflineAdapter) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	return &ChargeResult{PaymentStatus: orders.PaymentPending}, nil
}

// Registry resolves adapters by payment method.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds the default rail set around a processor client.
func NewRegistry(processor ProcessorClient) *Registry {
	r := &Registry{adapters: map[string]Adapter{}}
	r.Register(NewCardAdapter(processor))
	r.Register(NewOfflineAdapter(orders.MethodCOD))
	r.Register(NewOfflineAdapter(orders.MethodMobileMoney))
	r.Register(NewOfflineAdapter(orders.MethodBankTransfer))
	return r
}

// Register adds or replaces a rail.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Method()] = a
}

// ForMethod resolves a rail; unknown methods are a caller bug surfaced as an
// error rather than a panic.
func (r *Registry) ForMethod(method string) (Adapter, error) {
	a, ok := r.adapters[method]
	if !ok {
		return nil, fmt.Errorf("no payment adapter for method %q", method)
	}
	return a, nil
}
