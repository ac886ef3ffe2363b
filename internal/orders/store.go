package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/storefronthq/order-engine/internal/apperr"
	"github.com/storefronthq/order-engine/internal/awsx"
	"github.com/storefronthq/order-engine/internal/inventory"
)

// ErrStatusMismatch signals a conditional status update that found a different
// current status than expected.
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// Store encapsulates operations on the orders table.
type Store struct {
	client    awsx.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client awsx.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// CreateWithInventoryTransaction atomically persists the new order and applies
// the ledger's conditional stock decrements in one TransactWriteItems call.
// An order is never written without its inventory having been reserved, and
// vice versa. A decrement whose quantity >= :q condition fails cancels the
// whole transaction and surfaces as INSUFFICIENT_STOCK naming the SKU.
func (s *Store) CreateWithInventoryTransaction(ctx context.Context, order Order, deducts []types.TransactWriteItem, items []inventory.Item) error {
	now := s.nowFunc()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	transactItems := make([]types.TransactWriteItem, 0, len(deducts)+1)
	transactItems = append(transactItems, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &s.tableName,
			Item:                orderMap,
			ConditionExpression: awsString("attribute_not_exists(order_id)"),
		},
	})
	transactItems = append(transactItems, deducts...)

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			// Deducts are one transact item per merged SKU; align the
			// reason index with the same merge.
			if short := shortSKUs(tce, inventory.MergeItems(items)); len(short) > 0 {
				return apperr.New(apperr.CodeInsufficientStock, "insufficient stock for %s", strings.Join(short, ", "))
			}
			return apperr.Wrap(apperr.CodeCheckoutFailed, err, "order transaction canceled")
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// shortSKUs maps conditional-check failures back to the deduct items that
// caused them. Item 0 is the order put; deducts follow in request order.
func shortSKUs(tce *types.TransactionCanceledException, items []inventory.Item) []string {
	var short []string
	for i, reason := range tce.CancellationReasons {
		if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
			continue
		}
		if i >= 1 && i-1 < len(items) {
			it := items[i-1]
			short = append(short, inventory.SKUKey(it.ProductID, it.VariantID))
		}
	}
	return short
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// UpdateStatus conditionally updates the order status from expected -> newStatus.
// Returns ErrStatusMismatch if the condition failed.
func (s *Store) UpdateStatus(ctx context.Context, orderID, expectedStatus, newStatus string) error {
	item := s.StatusItem(orderID, expectedStatus, newStatus, "")
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 item.Update.TableName,
		Key:                       item.Update.Key,
		UpdateExpression:          item.Update.UpdateExpression,
		ConditionExpression:       item.Update.ConditionExpression,
		ExpressionAttributeNames:  item.Update.ExpressionAttributeNames,
		ExpressionAttributeValues: item.Update.ExpressionAttributeValues,
	})
	if err != nil {
		if awsx.IsConditionalCheckFailed(err) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// StatusItem builds the conditional status move as a transactional write so
// callers can bind per-transition side effects into the same transaction.
// The #s = :expected condition is what makes every transition fire-once: a
// replay or a concurrent move sees ConditionalCheckFailed instead.
func (s *Store) StatusItem(orderID, expectedStatus, newStatus, cancelReason string) types.TransactWriteItem {
	now := s.nowFunc()
	updateExpr := "SET #s = :new, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: newStatus},
		":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		":expected": &types.AttributeValueMemberS{Value: expectedStatus},
	}
	if cancelReason != "" {
		updateExpr = "SET #s = :new, cancel_reason = :cr, updated_at = :ua"
		values[":cr"] = &types.AttributeValueMemberS{Value: cancelReason}
	}
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName: &s.tableName,
			Key: map[string]types.AttributeValue{
				"order_id": &types.AttributeValueMemberS{Value: orderID},
			},
			UpdateExpression:          &updateExpr,
			ConditionExpression:       awsString("#s = :expected"),
			ExpressionAttributeNames:  map[string]string{"#s": "status"},
			ExpressionAttributeValues: values,
		},
	}
}

// SetPaymentRef stores the external payment reference once a payment attempt
// is created, so later callbacks can be matched to the order.
func (s *Store) SetPaymentRef(ctx context.Context, orderID, paymentRef string) error {
	now := s.nowFunc()
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression: awsString("SET payment_ref = :ref, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ref": &types.AttributeValueMemberS{Value: paymentRef},
			":ua":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("set payment ref: %w", err)
	}
	return nil
}

// SetPaymentStatus updates the payment lifecycle field directly, e.g. to mark
// a post-commit payment-intent failure as an explicit recoverable state.
// Guarded on the order existing: orders are only ever created by checkout,
// never upserted through a status write.
func (s *Store) SetPaymentStatus(ctx context.Context, orderID, paymentStatus string) error {
	item := s.PaymentStatusItem(orderID, paymentStatus)
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 item.Update.TableName,
		Key:                       item.Update.Key,
		UpdateExpression:          item.Update.UpdateExpression,
		ConditionExpression:       item.Update.ConditionExpression,
		ExpressionAttributeValues: item.Update.ExpressionAttributeValues,
	})
	if err != nil {
		if awsx.IsConditionalCheckFailed(err) {
			return apperr.New(apperr.CodeNotFound, "order %s not found", orderID)
		}
		return fmt.Errorf("set payment status: %w", err)
	}
	return nil
}

// PaymentStatusItem builds the payment-status write as a transactional item so
// reconciliation can bind it to the ledger-entry put.
func (s *Store) PaymentStatusItem(orderID, paymentStatus string) types.TransactWriteItem {
	now := s.nowFunc()
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName: &s.tableName,
			Key: map[string]types.AttributeValue{
				"order_id": &types.AttributeValueMemberS{Value: orderID},
			},
			UpdateExpression:    awsString("SET payment_status = :ps, updated_at = :ua"),
			ConditionExpression: awsString("attribute_exists(order_id)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":ps": &types.AttributeValueMemberS{Value: paymentStatus},
				":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			},
		},
	}
}

// ShippingFields is the typed update payload for merchant order edits that do
// not move the status.
type ShippingFields struct {
	TrackingNumber    string
	ShippingMethod    string
	EstimatedDelivery string
	Notes             string
}

// UpdateShippingFields writes only the provided (non-empty) fields.
func (s *Store) UpdateShippingFields(ctx context.Context, orderID string, f ShippingFields) error {
	now := s.nowFunc()
	sets := []string{"updated_at = :ua"}
	values := map[string]types.AttributeValue{
		":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
	}
	if f.TrackingNumber != "" {
		sets = append(sets, "tracking_number = :tn")
		values[":tn"] = &types.AttributeValueMemberS{Value: f.TrackingNumber}
	}
	if f.ShippingMethod != "" {
		sets = append(sets, "shipping_method = :sm")
		values[":sm"] = &types.AttributeValueMemberS{Value: f.ShippingMethod}
	}
	if f.EstimatedDelivery != "" {
		sets = append(sets, "estimated_delivery = :ed")
		values[":ed"] = &types.AttributeValueMemberS{Value: f.EstimatedDelivery}
	}
	if f.Notes != "" {
		sets = append(sets, "notes = :no")
		values[":no"] = &types.AttributeValueMemberS{Value: f.Notes}
	}
	if len(sets) == 1 {
		return nil
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:          awsString("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       awsString("attribute_exists(order_id)"),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("update shipping fields: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
