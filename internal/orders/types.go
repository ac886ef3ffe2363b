package orders

import "time"

// Order statuses
const (
	StatusPending    = "PENDING"
	StatusConfirmed  = "CONFIRMED"
	StatusProcessing = "PROCESSING"
	StatusShipped    = "SHIPPED"
	StatusDelivered  = "DELIVERED"
	StatusCancelled  = "CANCELLED"
)

// Payment statuses (a separate lifecycle from the order status)
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

// Payment methods
const (
	MethodCard         = "card"
	MethodCOD          = "cod"
	MethodMobileMoney  = "mobile_money"
	MethodBankTransfer = "bank_transfer"
)

// transitions is the fixed lifecycle graph. DELIVERED and CANCELLED are
// terminal; CANCELLED is reachable from every non-terminal state.
var transitions = map[string][]string{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// CanTransition reports whether from -> to is in the allowed table.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}

// Address is the structured shipping destination. Stored as a nested value,
// never as a serialized blob.
type Address struct {
	Street  string `dynamodbav:"street" json:"street"`
	City    string `dynamodbav:"city" json:"city"`
	State   string `dynamodbav:"state" json:"state"`
	Zip     string `dynamodbav:"zip" json:"zip"`
	Country string `dynamodbav:"country" json:"country"`
}

// LineItem is an immutable snapshot of what was bought at the price it was
// bought for. Later catalog repricing never touches it.
type LineItem struct {
	ProductID      string `dynamodbav:"product_id" json:"product_id"`
	VariantID      string `dynamodbav:"variant_id,omitempty" json:"variant_id,omitempty"`
	Name           string `dynamodbav:"name" json:"name"`
	UnitPriceCents int64  `dynamodbav:"unit_price_cents" json:"unit_price_cents"`
	Quantity       int    `dynamodbav:"quantity" json:"quantity"`
}

// Attribution carries the optional campaign markers from the checkout request.
type Attribution struct {
	UTMSource   string `dynamodbav:"utm_source,omitempty" json:"utm_source,omitempty"`
	UTMMedium   string `dynamodbav:"utm_medium,omitempty" json:"utm_medium,omitempty"`
	UTMCampaign string `dynamodbav:"utm_campaign,omitempty" json:"utm_campaign,omitempty"`
	UTMContent  string `dynamodbav:"utm_content,omitempty" json:"utm_content,omitempty"`
	Referrer    string `dynamodbav:"referrer,omitempty" json:"referrer,omitempty"`
}

// Order represents the item stored in the orders table. Created once per
// checkout inside the same transaction as the inventory deduction; mutated
// only through the state machine; never deleted.
type Order struct {
	OrderID           string       `dynamodbav:"order_id"` // PK
	OrderNumber       string       `dynamodbav:"order_number"`
	StoreID           string       `dynamodbav:"store_id"`
	CustomerName      string       `dynamodbav:"customer_name"`
	CustomerEmail     string       `dynamodbav:"customer_email"`
	CustomerPhone     string       `dynamodbav:"customer_phone,omitempty"`
	ShippingAddress   Address      `dynamodbav:"shipping_address"`
	Items             []LineItem   `dynamodbav:"items"`
	SubtotalCents     int64        `dynamodbav:"subtotal_cents"`
	ShippingCents     int64        `dynamodbav:"shipping_cents"`
	TaxCents          int64        `dynamodbav:"tax_cents"`
	TotalCents        int64        `dynamodbav:"total_cents"`
	Currency          string       `dynamodbav:"currency"`
	PaymentMethod     string       `dynamodbav:"payment_method"`
	PaymentRef        string       `dynamodbav:"payment_ref,omitempty"`
	Status            string       `dynamodbav:"status"`
	PaymentStatus     string       `dynamodbav:"payment_status"`
	CancelReason      string       `dynamodbav:"cancel_reason,omitempty"`
	ShippingMethod    string       `dynamodbav:"shipping_method,omitempty"`
	TrackingNumber    string       `dynamodbav:"tracking_number,omitempty"`
	EstimatedDelivery string       `dynamodbav:"estimated_delivery,omitempty"`
	Notes             string       `dynamodbav:"notes,omitempty"`
	Attribution       *Attribution `dynamodbav:"attribution,omitempty"`
	CreatedAt         time.Time    `dynamodbav:"created_at"`
	UpdatedAt         time.Time    `dynamodbav:"updated_at"`
}
