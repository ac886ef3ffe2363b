// Package inventory owns the per-SKU available-quantity counters. All writes
// go through conditional expressions so the non-negative invariant holds under
// concurrent checkouts; a plain read-then-write is never issued.
package inventory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/storefronthq/order-engine/internal/apperr"
	"github.com/storefronthq/order-engine/internal/awsx"
)

// Item identifies a SKU and a quantity to deduct or restore.
type Item struct {
	ProductID string
	VariantID string
	Quantity  int
}

// SKUKey builds the inventory table key for a (product, variant?) pair.
func SKUKey(productID, variantID string) string {
	if variantID == "" {
		return productID
	}
	return productID + "#" + variantID
}

// MergeItems collapses duplicate SKUs into one item carrying the combined
// quantity, preserving first-seen order. DynamoDB rejects a transaction that
// touches the same item twice, so every transactional write set must be built
// from a merged list.
func MergeItems(items []Item) []Item {
	index := make(map[string]int, len(items))
	merged := make([]Item, 0, len(items))
	for _, it := range items {
		key := SKUKey(it.ProductID, it.VariantID)
		if i, ok := index[key]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[key] = len(merged)
		merged = append(merged, it)
	}
	return merged
}

// Record is the persisted shape of one SKU counter.
type Record struct {
	SKUKey    string    `dynamodbav:"sku_key"` // PK
	ProductID string    `dynamodbav:"product_id"`
	VariantID string    `dynamodbav:"variant_id,omitempty"`
	Quantity  int64     `dynamodbav:"quantity"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// Ledger encapsulates operations on the inventory table.
type Ledger struct {
	client    awsx.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewLedger creates an inventory Ledger.
func NewLedger(client awsx.DynamoDBAPI, tableName string) *Ledger {
	return &Ledger{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get reads a single SKU record. Returns (nil, nil) if not found.
func (l *Ledger) Get(ctx context.Context, productID, variantID string) (*Record, error) {
	out, err := l.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &l.tableName,
		Key: map[string]types.AttributeValue{
			"sku_key": &types.AttributeValueMemberS{Value: SKUKey(productID, variantID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get inventory: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal inventory: %w", err)
	}
	return &rec, nil
}

// Validate performs the advisory availability check before the checkout
// transaction. It aggregates every shortage into a single error so the buyer
// sees all offending products at once. The transactional deduct re-checks:
// this read can go stale under concurrency and is not trusted on its own.
func (l *Ledger) Validate(ctx context.Context, items []Item) error {
	var short []string
	for _, it := range MergeItems(items) {
		rec, err := l.Get(ctx, it.ProductID, it.VariantID)
		if err != nil {
			return err
		}
		var available int64
		if rec != nil {
			available = rec.Quantity
		}
		if int64(it.Quantity) > available {
			short = append(short, fmt.Sprintf("%s (requested %d, available %d)", SKUKey(it.ProductID, it.VariantID), it.Quantity, available))
		}
	}
	if len(short) > 0 {
		return apperr.New(apperr.CodeInsufficientStock, "insufficient stock for %s", strings.Join(short, ", "))
	}
	return nil
}

// DeductItems returns the conditional decrement writes for the caller's
// TransactWriteItems call. Each decrement carries a quantity >= :q condition,
// so the whole transaction aborts rather than ever driving a counter negative.
func (l *Ledger) DeductItems(items []Item) []types.TransactWriteItem {
	items = MergeItems(items)
	now := l.nowFunc()
	writes := make([]types.TransactWriteItem, 0, len(items))
	for _, it := range items {
		qty := strconv.Itoa(it.Quantity)
		writes = append(writes, types.TransactWriteItem{
			Update: &types.Update{
				TableName: &l.tableName,
				Key: map[string]types.AttributeValue{
					"sku_key": &types.AttributeValueMemberS{Value: SKUKey(it.ProductID, it.VariantID)},
				},
				UpdateExpression:    awsString("SET quantity = quantity - :q, updated_at = :ua"),
				ConditionExpression: awsString("quantity >= :q"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":q":  &types.AttributeValueMemberN{Value: qty},
					":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
				},
			},
		})
	}
	return writes
}

// RestoreItems returns the increment writes that put a cancelled order's
// quantities back. Unconditional: the cancel transition is only reachable
// once, so restore cannot double-apply.
func (l *Ledger) RestoreItems(items []Item) []types.TransactWriteItem {
	items = MergeItems(items)
	now := l.nowFunc()
	writes := make([]types.TransactWriteItem, 0, len(items))
	for _, it := range items {
		writes = append(writes, types.TransactWriteItem{
			Update: &types.Update{
				TableName: &l.tableName,
				Key: map[string]types.AttributeValue{
					"sku_key": &types.AttributeValueMemberS{Value: SKUKey(it.ProductID, it.VariantID)},
				},
				UpdateExpression: awsString("ADD quantity :q SET updated_at = :ua"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":q":  &types.AttributeValueMemberN{Value: strconv.Itoa(it.Quantity)},
					":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
				},
			},
		})
	}
	return writes
}

func awsString(s string) *string { return &s }
