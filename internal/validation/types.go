package validation

// CheckoutItem is one requested line. Quantity is the only number we accept
// from the client; prices are always resolved server-side.
type CheckoutItem struct {
	ProductID string `json:"productId" validate:"required"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// CheckoutAddress is the structured shipping destination.
type CheckoutAddress struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Zip     string `json:"zip" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// CheckoutRequest is the payload for POST /stores/:storeID/checkout.
type CheckoutRequest struct {
	CustomerName    string          `json:"customerName" validate:"required"`
	CustomerEmail   string          `json:"customerEmail" validate:"required,email"`
	CustomerPhone   string          `json:"customerPhone,omitempty"`
	ShippingAddress CheckoutAddress `json:"shippingAddress" validate:"required"`
	Items           []CheckoutItem  `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   string          `json:"paymentMethod" validate:"required,oneof=card cod mobile_money bank_transfer"`
	ShippingMethod  string          `json:"shippingMethod,omitempty" validate:"omitempty,oneof=standard local_pickup"`

	// attribution only; never priced or validated beyond being strings
	UTMSource   string `json:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty"`
	UTMContent  string `json:"utmContent,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
}

// OrderUpdateRequest is the merchant-facing PATCH /orders/:id payload.
type OrderUpdateRequest struct {
	Status            string `json:"status,omitempty" validate:"omitempty,oneof=PENDING CONFIRMED PROCESSING SHIPPED DELIVERED CANCELLED"`
	TrackingNumber    string `json:"trackingNumber,omitempty"`
	ShippingMethod    string `json:"shippingMethod,omitempty" validate:"omitempty,oneof=standard local_pickup"`
	EstimatedDelivery string `json:"estimatedDelivery,omitempty"`
	Notes             string `json:"notes,omitempty"`
	PaymentStatus     string `json:"paymentStatus,omitempty" validate:"omitempty,oneof=pending paid failed refunded"`
	CancelReason      string `json:"cancelReason,omitempty"`
}

// PaymentConfirmRequest is the inline client confirmation payload.
type PaymentConfirmRequest struct {
	PaymentRef string `json:"paymentRef" validate:"required"`
	Result     string `json:"result" validate:"required,oneof=succeeded failed"`
}

// WebhookEvent is the processor callback payload we care about.
type WebhookEvent struct {
	Type string `json:"type" validate:"required"`
	Data struct {
		Reference string `json:"reference" validate:"required"`
		OrderID   string `json:"order_id" validate:"required"`
		Result    string `json:"result" validate:"required,oneof=succeeded failed"`
	} `json:"data" validate:"required"`
}
