package main

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/storefronthq/order-engine/internal/awsx"
	"github.com/storefronthq/order-engine/internal/catalog"
	"github.com/storefronthq/order-engine/internal/dynamotest"
)

func newTestProcessor(campaignsTable string) (*Processor, *dynamotest.Fake) {
	fake := dynamotest.New(map[string]dynamotest.TableSpec{
		"campaigns":     {PK: "campaign_id"},
		"products":      {PK: "product_id"},
		"price_history": {PK: "product_id", SK: "changed_at"},
	})
	p := &Processor{
		dynamo:   fake,
		emitter:  awsx.NewMetricEmitter(nil, "Test"),
		repricer: catalog.NewRepricer(catalog.NewStore(fake, "products", "price_history")),
		cfg:      ProcessorConfig{CampaignsTable: campaignsTable, ProductsTable: "products", PriceHistoryTable: "price_history"},
		nowFunc:  time.Now,
	}
	return p, fake
}

func campaignCounter(t *testing.T, fake *dynamotest.Fake, campaignID, attr string) int64 {
	t.Helper()
	item := fake.Item("campaigns", campaignID)
	if item == nil {
		t.Fatalf("no campaign row %s", campaignID)
	}
	n, ok := item[attr].(*types.AttributeValueMemberN)
	if !ok {
		t.Fatalf("campaign %s has no numeric %s", campaignID, attr)
	}
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		t.Fatalf("parse %s: %v", attr, err)
	}
	return v
}

func sqsEvent(bodies ...string) events.SQSEvent {
	ev := events.SQSEvent{}
	for _, b := range bodies {
		ev.Records = append(ev.Records, events.SQSMessage{Body: b})
	}
	return ev
}

func TestHandle_AttributionCreditsCampaign(t *testing.T) {
	p, fake := newTestProcessor("campaigns")
	body := `{"type":"attribution","order_id":"o-1","store_id":"s-1","campaign":"spring-sale","revenue_cents":6000}`

	if err := p.Handle(context.Background(), sqsEvent(body)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if got := campaignCounter(t, fake, "s-1#spring-sale", "attributed_orders"); got != 1 {
		t.Fatalf("attributed_orders = %d, want 1", got)
	}
	if got := campaignCounter(t, fake, "s-1#spring-sale", "attributed_revenue_cents"); got != 6000 {
		t.Fatalf("attributed_revenue_cents = %d, want 6000", got)
	}

	// a second confirmed order for the same campaign accumulates
	body2 := `{"type":"attribution","order_id":"o-2","store_id":"s-1","campaign":"spring-sale","revenue_cents":2500}`
	if err := p.Handle(context.Background(), sqsEvent(body2)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if got := campaignCounter(t, fake, "s-1#spring-sale", "attributed_orders"); got != 2 {
		t.Fatalf("attributed_orders = %d, want 2", got)
	}
	if got := campaignCounter(t, fake, "s-1#spring-sale", "attributed_revenue_cents"); got != 8500 {
		t.Fatalf("attributed_revenue_cents = %d, want 8500", got)
	}
}

func TestHandle_NotificationDoesNotTouchTables(t *testing.T) {
	p, fake := newTestProcessor("campaigns")
	body := `{"type":"notification","order_id":"o-1","event":"SHIPPED","customer_email":"ada@example.com"}`

	if err := p.Handle(context.Background(), sqsEvent(body)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if fake.Len("campaigns") != 0 {
		t.Fatal("notification task wrote to the campaigns table")
	}
}

func TestHandle_SwallowsBadMessages(t *testing.T) {
	p, fake := newTestProcessor("campaigns")
	good := `{"type":"attribution","order_id":"o-1","store_id":"s-1","campaign":"c","revenue_cents":100}`

	err := p.Handle(context.Background(), sqsEvent(
		"not json at all",
		`{"type":"teleport","order_id":"o-9"}`,
		good,
	))
	// dropped tasks never fail the batch; the valid message still lands
	if err != nil {
		t.Fatalf("handle returned %v, want nil", err)
	}
	if got := campaignCounter(t, fake, "s-1#c", "attributed_orders"); got != 1 {
		t.Fatalf("good message not processed, attributed_orders = %d", got)
	}
}

func TestHandle_RepriceTask(t *testing.T) {
	p, fake := newTestProcessor("campaigns")
	product := catalog.Product{
		ProductID:     "p-1",
		StoreID:       "s-1",
		Status:        catalog.StatusActive,
		PriceCents:    900,
		UnitCostCents: 600,
		Pricing:       &catalog.PricingRule{Strategy: catalog.StrategyMargin, TargetMarginBps: 4000},
	}
	item, err := attributevalue.MarshalMap(product)
	if err != nil {
		t.Fatalf("marshal product: %v", err)
	}
	fake.Seed("products", item)

	body := `{"type":"reprice","store_id":"s-1"}`
	if err := p.Handle(context.Background(), sqsEvent(body)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	priced, ok := fake.Item("products", "p-1")["price_cents"].(*types.AttributeValueMemberN)
	if !ok || priced.Value != "1000" {
		t.Fatalf("price_cents = %v, want 1000", fake.Item("products", "p-1")["price_cents"])
	}
	if fake.Len("price_history") != 1 {
		t.Fatalf("price_history rows = %d, want 1", fake.Len("price_history"))
	}
}

func TestCreditCampaign_SkippedWithoutTableOrCampaign(t *testing.T) {
	p, fake := newTestProcessor("")
	body := `{"type":"attribution","order_id":"o-1","store_id":"s-1","campaign":"c","revenue_cents":100}`
	if err := p.Handle(context.Background(), sqsEvent(body)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if fake.Len("campaigns") != 0 {
		t.Fatal("write issued with no campaigns table configured")
	}

	p, fake = newTestProcessor("campaigns")
	noCampaign := `{"type":"attribution","order_id":"o-1","store_id":"s-1","revenue_cents":100}`
	if err := p.Handle(context.Background(), sqsEvent(noCampaign)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if fake.Len("campaigns") != 0 {
		t.Fatal("write issued for a task without campaign")
	}
}
