package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/storefronthq/order-engine/internal/awsx"
)

func main() {
	ctx := context.Background()
	clients, err := awsx.NewAWSClients(ctx)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	p := NewProcessor(clients, ProcessorConfig{
		CampaignsTable:    os.Getenv("CAMPAIGNS_TABLE"),
		ProductsTable:     os.Getenv("PRODUCTS_TABLE"),
		PriceHistoryTable: os.Getenv("PRICE_HISTORY_TABLE"),
		MetricNamespace:   "Storefront/OrderEngine",
	})

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"type":"notification","order_id":"local-order-1","event":"SHIPPED","customer_email":"dev@example.com"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{
					Body: testBody,
				},
			},
		}
		if err := p.Handle(context.Background(), event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(p.Handle)
}
