// Package stores holds the merchant store read model: fee configuration,
// payout routing, shipping flat rates, and the aggregate order counters bumped
// on first confirmation.
package stores

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/storefronthq/order-engine/internal/awsx"
)

// Store is one merchant storefront's settings and counters.
type Store struct {
	StoreID           string    `dynamodbav:"store_id"` // PK
	Name              string    `dynamodbav:"name"`
	OrderPrefix       string    `dynamodbav:"order_prefix"`
	Currency          string    `dynamodbav:"currency"`
	FeePercent        int64     `dynamodbav:"fee_percent"` // 0-100 inclusive
	PayoutAccount     string    `dynamodbav:"payout_account,omitempty"`
	ShippingFlatCents int64     `dynamodbav:"shipping_flat_cents,omitempty"`
	OrderCount        int64     `dynamodbav:"order_count,omitempty"`
	RevenueCents      int64     `dynamodbav:"revenue_cents,omitempty"`
	CreatedAt         time.Time `dynamodbav:"created_at"`
	UpdatedAt         time.Time `dynamodbav:"updated_at"`
}

// ShippingCents resolves the flat shipping amount for a method.
func (s *Store) ShippingCents(method string) int64 {
	if method == "local_pickup" {
		return 0
	}
	return s.ShippingFlatCents
}

// Reader encapsulates operations on the stores table.
type Reader struct {
	client    awsx.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewReader creates a stores Reader.
func NewReader(client awsx.DynamoDBAPI, tableName string) *Reader {
	return &Reader{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get fetches a store by id. Returns (nil, nil) if not found.
func (r *Reader) Get(ctx context.Context, storeID string) (*Store, error) {
	out, err := r.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &r.tableName,
		Key: map[string]types.AttributeValue{
			"store_id": &types.AttributeValueMemberS{Value: storeID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get store: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var s Store
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, fmt.Errorf("unmarshal store: %w", err)
	}
	return &s, nil
}

// ConfirmCounterItem builds the transactional write that bumps the store's
// order count and revenue accumulator. It rides in the same transaction as the
// PENDING -> CONFIRMED status move, so it can only ever apply once per order.
func (r *Reader) ConfirmCounterItem(storeID string, orderTotalCents int64) types.TransactWriteItem {
	now := r.nowFunc()
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName: &r.tableName,
			Key: map[string]types.AttributeValue{
				"store_id": &types.AttributeValueMemberS{Value: storeID},
			},
			UpdateExpression: awsString("ADD order_count :one, revenue_cents :rev SET updated_at = :ua"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":one": &types.AttributeValueMemberN{Value: "1"},
				":rev": &types.AttributeValueMemberN{Value: strconv.FormatInt(orderTotalCents, 10)},
				":ua":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			},
		},
	}
}

func awsString(s string) *string { return &s }
