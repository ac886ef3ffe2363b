package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/storefronthq/order-engine/internal/awsx"
)

// ErrProductGone signals that a product referenced by an order no longer
// exists; delivered-order rollups skip it rather than fail.
var ErrProductGone = errors.New("product no longer exists")

// Store encapsulates operations on the products and price-history tables.
type Store struct {
	client       awsx.DynamoDBAPI
	tableName    string
	historyTable string
	nowFunc      func() time.Time
}

// NewStore creates a catalog Store.
func NewStore(client awsx.DynamoDBAPI, tableName, historyTable string) *Store {
	return &Store{
		client:       client,
		tableName:    tableName,
		historyTable: historyTable,
		nowFunc:      time.Now,
	}
}

// GetProduct fetches a product by id. Returns (nil, nil) if not found.
func (s *Store) GetProduct(ctx context.Context, productID string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: productID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// ListByStore scans the products table and keeps the given store's products.
// Scan is acceptable here: the only caller is the batch repricer.
func (s *Store) ListByStore(ctx context.Context, storeID string) ([]Product, error) {
	out, err := s.client.Scan(ctx, &dyn.ScanInput{TableName: &s.tableName})
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	var products []Product
	for _, item := range out.Items {
		var p Product
		if err := attributevalue.UnmarshalMap(item, &p); err != nil {
			return nil, fmt.Errorf("unmarshal product: %w", err)
		}
		if p.StoreID == storeID {
			products = append(products, p)
		}
	}
	return products, nil
}

// RollupDelivered adds a delivered order's contribution to the product's
// lifetime counters. Returns ErrProductGone if the product was deleted in the
// meantime; callers skip rather than fail the whole update.
func (s *Store) RollupDelivered(ctx context.Context, productID string, revenueCents int64) error {
	now := s.nowFunc()
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: productID},
		},
		UpdateExpression:    awsString("ADD lifetime_orders :one, lifetime_revenue_cents :rev SET updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(product_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":rev": &types.AttributeValueMemberN{Value: strconv.FormatInt(revenueCents, 10)},
			":ua":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	})
	if err != nil {
		if awsx.IsConditionalCheckFailed(err) {
			return ErrProductGone
		}
		return fmt.Errorf("rollup delivered: %w", err)
	}
	return nil
}

// SetPrice writes the repriced value and appends an immutable history entry.
// The price write is conditional on the product still existing.
func (s *Store) SetPrice(ctx context.Context, productID string, oldCents, newCents int64, source, reason string) error {
	now := s.nowFunc()
	change := PriceChange{
		ProductID:     productID,
		ChangedAt:     now.Format(time.RFC3339Nano),
		OldPriceCents: oldCents,
		NewPriceCents: newCents,
		Source:        source,
		Reason:        reason,
		CreatedAt:     now,
	}
	changeItem, err := attributevalue.MarshalMap(change)
	if err != nil {
		return fmt.Errorf("marshal price change: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: &s.tableName,
					Key: map[string]types.AttributeValue{
						"product_id": &types.AttributeValueMemberS{Value: productID},
					},
					UpdateExpression:    awsString("SET price_cents = :p, updated_at = :ua"),
					ConditionExpression: awsString("attribute_exists(product_id)"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":p":  &types.AttributeValueMemberN{Value: strconv.FormatInt(newCents, 10)},
						":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
					},
				},
			},
			{
				Put: &types.Put{
					TableName: &s.historyTable,
					Item:      changeItem,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("set price: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
