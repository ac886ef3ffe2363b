// Package sideeffects submits fire-and-forget tasks after a transaction has
// committed. A failed submission is logged and dropped: notification delivery
// is intentionally lossy, the transactional core never is.
package sideeffects

import (
	"context"
	"encoding/json"
	"log"

	"github.com/storefronthq/order-engine/internal/awsx"
)

// Task types executed by the worker.
const (
	TaskNotification = "notification"
	TaskAttribution  = "attribution"
	TaskReprice      = "reprice"
)

// Task is the envelope sent through SQS to the worker.
type Task struct {
	Type          string `json:"type"`
	OrderID       string `json:"order_id"`
	StoreID       string `json:"store_id,omitempty"`
	Event         string `json:"event,omitempty"` // order status that triggered the task
	CustomerEmail string `json:"customer_email,omitempty"`
	Campaign      string `json:"campaign,omitempty"`
	RevenueCents  int64  `json:"revenue_cents,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type correlationKey struct{}

// WithCorrelationID stamps the request's correlation id onto ctx so every
// task dispatched downstream of the request carries it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id stamped by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Dispatcher publishes tasks to the side-effect queue.
type Dispatcher struct {
	pub *awsx.Publisher
}

// NewDispatcher wraps an SQS publisher. A nil publisher yields a no-op
// dispatcher, which keeps local setups and tests simple.
func NewDispatcher(pub *awsx.Publisher) *Dispatcher {
	return &Dispatcher{pub: pub}
}

// Dispatch submits a task. Never returns an error: the caller's transaction
// has already committed and must not observe downstream failures.
func (d *Dispatcher) Dispatch(ctx context.Context, t Task) {
	if d == nil || d.pub == nil {
		return
	}
	if t.CorrelationID == "" {
		t.CorrelationID = CorrelationID(ctx)
	}
	body, err := json.Marshal(t)
	if err != nil {
		log.Printf("sideeffects: marshal task %s for order %s: %v", t.Type, t.OrderID, err)
		return
	}
	attrs := map[string]string{
		"task_type": t.Type,
		"order_id":  t.OrderID,
	}
	if err := d.pub.Send(ctx, string(body), attrs); err != nil {
		log.Printf("sideeffects: dispatch %s for order %s failed: %v", t.Type, t.OrderID, err)
	}
}
