package orders

import (
	"context"
	"errors"
	"log"
	"strings"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/storefronthq/order-engine/internal/apperr"
	"github.com/storefronthq/order-engine/internal/awsx"
	"github.com/storefronthq/order-engine/internal/catalog"
	"github.com/storefronthq/order-engine/internal/inventory"
	"github.com/storefronthq/order-engine/internal/sideeffects"
	"github.com/storefronthq/order-engine/internal/stores"
)

// StateMachine owns every status move of an order. Each transition is a
// conditional write guarded on the loaded status, and the side effects that
// must be exact-once (store counters, restock) ride in the same transaction
// as the guard.
type StateMachine struct {
	client     awsx.DynamoDBAPI
	orders     *Store
	inventory  *inventory.Ledger
	stores     *stores.Reader
	catalog    *catalog.Store
	dispatcher *sideeffects.Dispatcher
}

// NewStateMachine wires the transition engine.
func NewStateMachine(client awsx.DynamoDBAPI, ordersStore *Store, ledger *inventory.Ledger, storesReader *stores.Reader, catalogStore *catalog.Store, dispatcher *sideeffects.Dispatcher) *StateMachine {
	return &StateMachine{
		client:     client,
		orders:     ordersStore,
		inventory:  ledger,
		stores:     storesReader,
		catalog:    catalogStore,
		dispatcher: dispatcher,
	}
}

// Transition moves an order to target if the lifecycle table allows it.
// Returns the updated order. A move not in the table, or lost to a concurrent
// transition, fails with INVALID_TRANSITION and leaves everything unchanged.
func (m *StateMachine) Transition(ctx context.Context, orderID, target, cancelReason string) (*Order, error) {
	order, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to load order %s", orderID)
	}
	if order == nil {
		return nil, apperr.New(apperr.CodeNotFound, "order %s not found", orderID)
	}
	if !CanTransition(order.Status, target) {
		return nil, apperr.New(apperr.CodeInvalidTransition, "cannot transition order from %s to %s", order.Status, target)
	}

	switch target {
	case StatusCancelled:
		if strings.TrimSpace(cancelReason) == "" {
			return nil, apperr.New(apperr.CodeCancelReasonRequired, "a cancellation reason is required")
		}
		err = m.transact(ctx,
			m.orders.StatusItem(orderID, order.Status, target, cancelReason),
			m.inventory.RestoreItems(inventoryItems(order))...,
		)
		order.CancelReason = cancelReason

	case StatusConfirmed:
		// First confirmation bumps the store's order count and revenue.
		// Binding the counters to the PENDING -> CONFIRMED guard is what
		// prevents double-counting on replays.
		err = m.transact(ctx,
			m.orders.StatusItem(orderID, order.Status, target, ""),
			m.stores.ConfirmCounterItem(order.StoreID, order.TotalCents),
		)

	default:
		if uerr := m.orders.UpdateStatus(ctx, orderID, order.Status, target); uerr != nil {
			if errors.Is(uerr, ErrStatusMismatch) {
				err = apperr.New(apperr.CodeInvalidTransition, "order %s moved concurrently away from %s", orderID, order.Status)
			} else {
				err = apperr.Wrap(apperr.CodeInternal, uerr, "failed to update order %s", orderID)
			}
		}
	}
	if err != nil {
		return nil, err
	}
	order.Status = target

	m.afterTransition(ctx, order, target)
	return order, nil
}

// transact runs the guard item plus its bound side effects atomically. A
// cancellation is reported as INVALID_TRANSITION because the only condition
// in these transactions is the status guard.
func (m *StateMachine) transact(ctx context.Context, guard types.TransactWriteItem, rest ...types.TransactWriteItem) error {
	items := append([]types.TransactWriteItem{guard}, rest...)
	_, err := m.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return apperr.New(apperr.CodeInvalidTransition, "order moved concurrently; transition not applied")
		}
		return apperr.Wrap(apperr.CodeInternal, err, "transition transaction failed")
	}
	return nil
}

// afterTransition runs the effects that are allowed to be lossy or per-item
// tolerant. The transition itself has already committed.
func (m *StateMachine) afterTransition(ctx context.Context, order *Order, target string) {
	switch target {
	case StatusDelivered:
		for _, it := range order.Items {
			revenue := it.UnitPriceCents * int64(it.Quantity)
			if err := m.catalog.RollupDelivered(ctx, it.ProductID, revenue); err != nil {
				if errors.Is(err, catalog.ErrProductGone) {
					log.Printf("orders: delivered rollup skipped, product %s gone (order %s)", it.ProductID, order.OrderID)
					continue
				}
				log.Printf("orders: delivered rollup failed for product %s (order %s): %v", it.ProductID, order.OrderID, err)
			}
		}
		m.notify(ctx, order, target)

	case StatusProcessing, StatusShipped:
		m.notify(ctx, order, target)

	case StatusConfirmed:
		if order.Attribution != nil && order.Attribution.UTMCampaign != "" {
			m.dispatcher.Dispatch(ctx, sideeffects.Task{
				Type:         sideeffects.TaskAttribution,
				OrderID:      order.OrderID,
				StoreID:      order.StoreID,
				Campaign:     order.Attribution.UTMCampaign,
				RevenueCents: order.TotalCents,
			})
		}
	}
}

func (m *StateMachine) notify(ctx context.Context, order *Order, event string) {
	m.dispatcher.Dispatch(ctx, sideeffects.Task{
		Type:          sideeffects.TaskNotification,
		OrderID:       order.OrderID,
		StoreID:       order.StoreID,
		Event:         event,
		CustomerEmail: order.CustomerEmail,
	})
}

func inventoryItems(o *Order) []inventory.Item {
	items := make([]inventory.Item, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, inventory.Item{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		})
	}
	return items
}
