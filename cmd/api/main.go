package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/storefronthq/order-engine/internal/awsx"
	"github.com/storefronthq/order-engine/internal/handlers"
	"github.com/storefronthq/order-engine/internal/metrics"
	"github.com/storefronthq/order-engine/internal/payments"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterStorefrontRoutes(r, cfg)

	return r
}

func main() {
	clients, err := awsx.NewAWSClients(context.Background())

	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	cfg := handlers.HandlerConfig{
		DynamoDBClient:    clients.DynamoDB,
		SQSClient:         clients.SQS,
		ProductsTable:     os.Getenv("PRODUCTS_TABLE"),
		PriceHistoryTable: os.Getenv("PRICE_HISTORY_TABLE"),
		InventoryTable:    os.Getenv("INVENTORY_TABLE"),
		OrdersTable:       os.Getenv("ORDERS_TABLE"),
		StoresTable:       os.Getenv("STORES_TABLE"),
		PaymentLedger:     os.Getenv("PAYMENT_LEDGER_TABLE"),
		QueueURL:          os.Getenv("SIDE_EFFECTS_QUEUE_URL"),
		Processor:         payments.NewHTTPProcessor(os.Getenv("PROCESSOR_BASE_URL"), os.Getenv("PROCESSOR_SECRET_KEY")),
		Metrics:           metrics.New("api"),
		Emitter:           awsx.NewMetricEmitter(clients.CloudWatch, "Storefront/OrderEngine"),
	}

	r := setupRouter(cfg)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
		addr := ":8080"
		log.Printf("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		// the adapter handles proxying; use adapter.ProxyWithContext for proper context propagation
		return adapter.ProxyWithContext(ctx, req)
	})
}
