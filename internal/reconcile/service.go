// Package reconcile applies payment confirmations idempotently. The same
// external reference may arrive any number of times, from the inline client
// confirmation and from the processor callback, in either order; the
// financial effect applies at most once.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/storefronthq/order-engine/internal/apperr"
	"github.com/storefronthq/order-engine/internal/awsx"
	"github.com/storefronthq/order-engine/internal/orders"
)

// Confirmation sources
const (
	SourceInline   = "inline"   // client's synchronous confirmation call
	SourceCallback = "callback" // asynchronous processor webhook
)

// Payment results carried by a confirmation event.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
)

// LedgerEntry is the at-most-once marker persisted per external payment
// reference. Its conditional put is the idempotency guard.
type LedgerEntry struct {
	PaymentRef  string    `dynamodbav:"payment_ref"` // PK
	OrderID     string    `dynamodbav:"order_id,omitempty"`
	Result      string    `dynamodbav:"result"`
	Source      string    `dynamodbav:"source"`
	AmountCents int64     `dynamodbav:"amount_cents,omitempty"`
	CreatedAt   time.Time `dynamodbav:"created_at"`
}

// Service encapsulates the reconciliation ledger.
type Service struct {
	client      awsx.DynamoDBAPI
	ledgerTable string
	orders      *orders.Store
	machine     *orders.StateMachine
	nowFunc     func() time.Time
}

// NewService wires the reconciliation service.
func NewService(client awsx.DynamoDBAPI, ledgerTable string, ordersStore *orders.Store, machine *orders.StateMachine) *Service {
	return &Service{
		client:      client,
		ledgerTable: ledgerTable,
		orders:      ordersStore,
		machine:     machine,
		nowFunc:     time.Now,
	}
}

// Apply writes the ledger entry and the financial effects in one transaction.
// The entry's attribute_not_exists(payment_ref) condition closes the race
// between concurrent inline and callback deliveries: exactly one of them
// commits, the other observes (applied=false, nil) and no-ops. The same call
// serves non-order flows (credit packs, subscription activation) by passing
// their own effect writes.
func (s *Service) Apply(ctx context.Context, entry LedgerEntry, effects []types.TransactWriteItem) (bool, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.nowFunc()
	}
	entryMap, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return false, fmt.Errorf("marshal ledger entry: %w", err)
	}

	items := make([]types.TransactWriteItem, 0, len(effects)+1)
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &s.ledgerTable,
			Item:                entryMap,
			ConditionExpression: awsString("attribute_not_exists(payment_ref)"),
		},
	})
	items = append(items, effects...)

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && ledgerConditionFailed(tce) {
			// already applied; duplicates are absorbed, not errors
			return false, nil
		}
		return false, fmt.Errorf("reconcile transact: %w", err)
	}
	return true, nil
}

func ledgerConditionFailed(tce *types.TransactionCanceledException) bool {
	if len(tce.CancellationReasons) == 0 {
		// SDK did not include reasons; assume the ledger guard tripped
		return true
	}
	// The entry put is always item 0; a condition failure on any later
	// effect item is a real error, not a duplicate.
	r := tce.CancellationReasons[0]
	return r.Code != nil && *r.Code == "ConditionalCheckFailed"
}

// ConfirmOrderPayment handles a confirmation event for an order payment from
// either source. Duplicate deliveries return (nil error) without any effect.
func (s *Service) ConfirmOrderPayment(ctx context.Context, orderID, paymentRef, result, source string) error {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "failed to load order %s", orderID)
	}
	if order == nil {
		return apperr.New(apperr.CodeNotFound, "order %s not found", orderID)
	}
	if order.PaymentRef == "" || order.PaymentRef != paymentRef {
		return apperr.New(apperr.CodeValidation, "payment reference does not match order %s", orderID)
	}

	newStatus := orders.PaymentFailed
	if result == ResultSucceeded {
		newStatus = orders.PaymentPaid
	}

	applied, err := s.Apply(ctx, LedgerEntry{
		PaymentRef:  paymentRef,
		OrderID:     orderID,
		Result:      result,
		Source:      source,
		AmountCents: order.TotalCents,
	}, []types.TransactWriteItem{
		s.orders.PaymentStatusItem(orderID, newStatus),
	})
	if err != nil {
		return err
	}
	if !applied {
		log.Printf("reconcile: duplicate confirmation for ref %s (source %s)", paymentRef, source)
		// A crash between the ledger commit and the confirm transition
		// leaves the order paid but still pending. The redelivery is the
		// retry channel, so finish the move here instead of dropping it.
		if order.Status == orders.StatusPending && order.PaymentStatus == orders.PaymentPaid {
			return s.confirmPending(ctx, orderID)
		}
		return nil
	}

	if result == ResultSucceeded && order.Status == orders.StatusPending {
		return s.confirmPending(ctx, orderID)
	}
	return nil
}

func (s *Service) confirmPending(ctx context.Context, orderID string) error {
	// Revenue counters ride inside the transition's own guard, so a
	// concurrent manual confirmation cannot double-count.
	if _, err := s.machine.Transition(ctx, orderID, orders.StatusConfirmed, ""); err != nil {
		if apperr.CodeOf(err) == apperr.CodeInvalidTransition {
			log.Printf("reconcile: order %s already confirmed elsewhere", orderID)
			return nil
		}
		return err
	}
	return nil
}

func awsString(s string) *string { return &s }
