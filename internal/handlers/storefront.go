// Package handlers registers the storefront HTTP surface: checkout, order
// reads and merchant updates, and the two payment-confirmation entry points.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/storefronthq/order-engine/internal/apperr"
	"github.com/storefronthq/order-engine/internal/awsx"
	"github.com/storefronthq/order-engine/internal/catalog"
	"github.com/storefronthq/order-engine/internal/checkout"
	"github.com/storefronthq/order-engine/internal/inventory"
	"github.com/storefronthq/order-engine/internal/metrics"
	"github.com/storefronthq/order-engine/internal/orders"
	"github.com/storefronthq/order-engine/internal/payments"
	"github.com/storefronthq/order-engine/internal/reconcile"
	"github.com/storefronthq/order-engine/internal/sideeffects"
	"github.com/storefronthq/order-engine/internal/stores"
	"github.com/storefronthq/order-engine/internal/validation"
)

// HandlerConfig groups dependencies for the storefront routes.
type HandlerConfig struct {
	DynamoDBClient    awsx.DynamoDBAPI
	SQSClient         awsx.SQSAPI
	ProductsTable     string
	PriceHistoryTable string
	InventoryTable    string
	OrdersTable       string
	StoresTable       string
	PaymentLedger     string
	QueueURL          string
	Processor         payments.ProcessorClient
	Metrics           *metrics.Engine
	Emitter           *awsx.MetricEmitter
}

// RegisterStorefrontRoutes wires the engine and mounts the routes.
func RegisterStorefrontRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	catalogStore := catalog.NewStore(cfg.DynamoDBClient, cfg.ProductsTable, cfg.PriceHistoryTable)
	snap := catalog.NewSnapshotReader(catalogStore, 10)
	ledger := inventory.NewLedger(cfg.DynamoDBClient, cfg.InventoryTable)
	ordersStore := orders.NewStore(cfg.DynamoDBClient, cfg.OrdersTable)
	storesReader := stores.NewReader(cfg.DynamoDBClient, cfg.StoresTable)
	dispatcher := sideeffects.NewDispatcher(awsx.NewPublisher(cfg.SQSClient, cfg.QueueURL))
	machine := orders.NewStateMachine(cfg.DynamoDBClient, ordersStore, ledger, storesReader, catalogStore, dispatcher)
	reconciler := reconcile.NewService(cfg.DynamoDBClient, cfg.PaymentLedger, ordersStore, machine)
	registry := payments.NewRegistry(cfg.Processor)
	svc := checkout.NewService(snap, ledger, ordersStore, storesReader, registry, dispatcher)

	r.POST("/stores/:storeID/checkout", func(c *gin.Context) {
		ctx := requestContext(c)
		started := time.Now()

		var req validation.CheckoutRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			cfg.count("checkout", apperr.CodeValidation)
			return
		}

		res, err := svc.Checkout(ctx, c.Param("storeID"), req)
		if err != nil {
			cfg.count("checkout", apperr.CodeOf(err))
			cfg.emit(ctx, "CheckoutFailed", map[string]string{"Code": apperr.CodeOf(err)})
			writeError(c, err)
			return
		}

		cfg.count("checkout", "ok")
		cfg.emit(ctx, "CheckoutSucceeded", nil)
		if cfg.Metrics != nil {
			cfg.Metrics.CheckoutLatency.WithLabelValues(req.PaymentMethod).
				Observe(float64(time.Since(started).Milliseconds()))
		}
		c.JSON(http.StatusCreated, res)
	})

	// merchant tooling / scheduler entry point; the batch itself runs in the
	// worker so a large catalog cannot stall the API
	r.POST("/stores/:storeID/reprice", func(c *gin.Context) {
		dispatcher.Dispatch(requestContext(c), sideeffects.Task{
			Type:    sideeffects.TaskReprice,
			StoreID: c.Param("storeID"),
		})
		c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
	})

	r.GET("/orders/:id", func(c *gin.Context) {
		order, err := ordersStore.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, apperr.Wrap(apperr.CodeInternal, err, "failed to load order"))
			return
		}
		if order == nil {
			writeError(c, apperr.New(apperr.CodeNotFound, "order %s not found", c.Param("id")))
			return
		}
		c.JSON(http.StatusOK, order)
	})

	r.PATCH("/orders/:id", func(c *gin.Context) {
		ctx := requestContext(c)
		orderID := c.Param("id")

		var req validation.OrderUpdateRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		if req.TrackingNumber != "" || req.ShippingMethod != "" || req.EstimatedDelivery != "" || req.Notes != "" {
			err := ordersStore.UpdateShippingFields(ctx, orderID, orders.ShippingFields{
				TrackingNumber:    req.TrackingNumber,
				ShippingMethod:    req.ShippingMethod,
				EstimatedDelivery: req.EstimatedDelivery,
				Notes:             req.Notes,
			})
			if err != nil {
				writeError(c, apperr.Wrap(apperr.CodeInternal, err, "failed to update order"))
				return
			}
		}

		if req.PaymentStatus != "" {
			if err := ordersStore.SetPaymentStatus(ctx, orderID, req.PaymentStatus); err != nil {
				writeError(c, err)
				return
			}
		}

		if req.Status != "" {
			if _, err := machine.Transition(ctx, orderID, req.Status, req.CancelReason); err != nil {
				writeError(c, err)
				return
			}
		}

		order, err := ordersStore.Get(ctx, orderID)
		if err != nil || order == nil {
			writeError(c, apperr.New(apperr.CodeNotFound, "order %s not found", orderID))
			return
		}
		c.JSON(http.StatusOK, order)
	})

	// inline confirmation made by the client right after the payment UI
	r.POST("/orders/:id/payment-confirmation", func(c *gin.Context) {
		ctx := requestContext(c)

		var req validation.PaymentConfirmRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		err := reconciler.ConfirmOrderPayment(ctx, c.Param("id"), req.PaymentRef, req.Result, reconcile.SourceInline)
		if err != nil {
			cfg.count("reconcile", apperr.CodeOf(err))
			writeError(c, err)
			return
		}
		cfg.count("reconcile", "applied")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// asynchronous processor callback; may race or duplicate the inline call
	r.POST("/webhooks/payment", func(c *gin.Context) {
		ctx := requestContext(c)

		var event validation.WebhookEvent
		if err := validation.BindAndValidate(c, &event, v); err != nil {
			return
		}

		err := reconciler.ConfirmOrderPayment(ctx, event.Data.OrderID, event.Data.Reference, event.Data.Result, reconcile.SourceCallback)
		if err != nil {
			cfg.count("reconcile", apperr.CodeOf(err))
			writeError(c, err)
			return
		}
		cfg.count("reconcile", "applied")
		c.JSON(http.StatusOK, gin.H{"received": true})
	})
}

// requestContext stamps the caller's X-Request-Id onto the request context so
// tasks dispatched downstream carry it through the queue.
func requestContext(c *gin.Context) context.Context {
	return sideeffects.WithCorrelationID(c.Request.Context(), c.GetHeader("X-Request-Id"))
}

func (cfg HandlerConfig) count(kind, outcome string) {
	if cfg.Metrics == nil {
		return
	}
	switch kind {
	case "checkout":
		cfg.Metrics.Checkouts.WithLabelValues(outcome).Inc()
	case "reconcile":
		cfg.Metrics.Reconciliations.WithLabelValues(outcome).Inc()
	}
}

func (cfg HandlerConfig) emit(ctx context.Context, name string, dims map[string]string) {
	if cfg.Emitter != nil {
		cfg.Emitter.Emit(ctx, name, 1, dims)
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{
		"error": gin.H{
			"code":    apperr.CodeOf(err),
			"message": apperr.MessageOf(err),
		},
	})
}
