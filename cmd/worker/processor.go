package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/storefronthq/order-engine/internal/awsx"
	"github.com/storefronthq/order-engine/internal/catalog"
	"github.com/storefronthq/order-engine/internal/sideeffects"
)

// ProcessorConfig holds the worker's table and metric settings.
type ProcessorConfig struct {
	CampaignsTable    string
	ProductsTable     string
	PriceHistoryTable string
	MetricNamespace   string
}

// Processor executes the fire-and-forget side-effect tasks. Per the engine's
// delivery contract a failed task is logged and dropped, never retried and
// never surfaced to the order flow, so Handle swallows per-message errors
// instead of returning them to the Lambda runtime.
type Processor struct {
	dynamo   awsx.DynamoDBAPI
	emitter  *awsx.MetricEmitter
	repricer *catalog.Repricer
	cfg      ProcessorConfig
	nowFunc  func() time.Time
}

// NewProcessor creates a worker processor with AWS clients injected.
func NewProcessor(clients *awsx.AWSClients, cfg ProcessorConfig) *Processor {
	return &Processor{
		dynamo:   clients.DynamoDB,
		emitter:  awsx.NewMetricEmitter(clients.CloudWatch, cfg.MetricNamespace),
		repricer: catalog.NewRepricer(catalog.NewStore(clients.DynamoDB, cfg.ProductsTable, cfg.PriceHistoryTable)),
		cfg:      cfg,
		nowFunc:  time.Now,
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			log.Printf("worker: dropping task: %v", err)
			p.emitter.Emit(ctx, "SideEffectDropped", 1, nil)
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var task sideeffects.Task
	if err := json.Unmarshal([]byte(rec.Body), &task); err != nil {
		return fmt.Errorf("invalid task body: %w", err)
	}
	log.Printf("[worker] task=%s order=%s correlation_id=%s", task.Type, task.OrderID, task.CorrelationID)

	switch task.Type {
	case sideeffects.TaskNotification:
		return p.sendNotification(ctx, task)
	case sideeffects.TaskAttribution:
		return p.creditCampaign(ctx, task)
	case sideeffects.TaskReprice:
		return p.repriceStore(ctx, task)
	default:
		return fmt.Errorf("unknown task type %q (order %s)", task.Type, task.OrderID)
	}
}

// sendNotification hands the event to the messaging subsystem. Message
// content and delivery live outside this engine; here we record that the
// order event happened and was handed off.
func (p *Processor) sendNotification(ctx context.Context, task sideeffects.Task) error {
	log.Printf("[worker] notify %s: order=%s event=%s", task.CustomerEmail, task.OrderID, task.Event)
	p.emitter.Emit(ctx, "OrderNotification", 1, map[string]string{"Event": task.Event})
	return nil
}

// creditCampaign attributes a confirmed order to the ad campaign that
// produced it.
func (p *Processor) creditCampaign(ctx context.Context, task sideeffects.Task) error {
	if p.cfg.CampaignsTable == "" || task.Campaign == "" {
		return nil
	}
	now := p.nowFunc()
	campaignID := task.StoreID + "#" + task.Campaign
	_, err := p.dynamo.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &p.cfg.CampaignsTable,
		Key: map[string]types.AttributeValue{
			"campaign_id": &types.AttributeValueMemberS{Value: campaignID},
		},
		UpdateExpression: awsString("ADD attributed_orders :one, attributed_revenue_cents :rev SET updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":rev": &types.AttributeValueMemberN{Value: strconv.FormatInt(task.RevenueCents, 10)},
			":ua":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("credit campaign %s: %w", campaignID, err)
	}
	log.Printf("[worker] credited campaign %s with order %s (%d cents)", campaignID, task.OrderID, task.RevenueCents)
	return nil
}

// repriceStore runs the batch pricing pass for one store. Scheduled pushes
// (cron rules forwarding to the queue) and merchant tooling both submit this
// task type.
func (p *Processor) repriceStore(ctx context.Context, task sideeffects.Task) error {
	if task.StoreID == "" {
		return fmt.Errorf("reprice task without store")
	}
	changed, err := p.repricer.Run(ctx, task.StoreID)
	if err != nil {
		return fmt.Errorf("reprice store %s: %w", task.StoreID, err)
	}
	log.Printf("[worker] repriced store %s: %d products changed", task.StoreID, changed)
	p.emitter.Emit(ctx, "ProductsRepriced", float64(changed), map[string]string{"StoreID": task.StoreID})
	return nil
}

func awsString(s string) *string { return &s }
