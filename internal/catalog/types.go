package catalog

import "time"

// Product statuses
const (
	StatusActive   = "ACTIVE"
	StatusArchived = "ARCHIVED"
)

// Pricing strategies applied by the repricer batch pass.
const (
	StrategyMargin = "margin" // derive price from unit cost and target margin
	StrategyRound  = "round"  // snap the current price to the rounding increment
)

// Variant is a purchasable variation of a product with its own price.
type Variant struct {
	VariantID  string `dynamodbav:"variant_id" json:"variant_id"`
	Name       string `dynamodbav:"name" json:"name"`
	PriceCents int64  `dynamodbav:"price_cents" json:"price_cents"`
}

// PricingRule drives the batch repricer. Bounds clamp whatever the strategy
// computes; a zero bound is ignored.
type PricingRule struct {
	Strategy        string `dynamodbav:"strategy" json:"strategy"`
	MinPriceCents   int64  `dynamodbav:"min_price_cents,omitempty" json:"min_price_cents,omitempty"`
	MaxPriceCents   int64  `dynamodbav:"max_price_cents,omitempty" json:"max_price_cents,omitempty"`
	TargetMarginBps int64  `dynamodbav:"target_margin_bps,omitempty" json:"target_margin_bps,omitempty"`
	RoundToCents    int64  `dynamodbav:"round_to_cents,omitempty" json:"round_to_cents,omitempty"`
}

// Product is the catalog read model. Mutated by merchant tooling out of this
// engine's scope; the checkout path only ever reads it.
type Product struct {
	ProductID            string       `dynamodbav:"product_id"` // PK
	StoreID              string       `dynamodbav:"store_id"`
	Name                 string       `dynamodbav:"name"`
	Status               string       `dynamodbav:"status"` // ACTIVE | ARCHIVED
	Deleted              bool         `dynamodbav:"deleted,omitempty"`
	PriceCents           int64        `dynamodbav:"price_cents"`
	UnitCostCents        int64        `dynamodbav:"unit_cost_cents,omitempty"`
	Variants             []Variant    `dynamodbav:"variants,omitempty"`
	Pricing              *PricingRule `dynamodbav:"pricing,omitempty"`
	LifetimeOrders       int64        `dynamodbav:"lifetime_orders,omitempty"`
	LifetimeRevenueCents int64        `dynamodbav:"lifetime_revenue_cents,omitempty"`
	CreatedAt            time.Time    `dynamodbav:"created_at"`
	UpdatedAt            time.Time    `dynamodbav:"updated_at"`
}

// Sellable reports whether the product may appear in a checkout.
func (p *Product) Sellable() bool {
	return p != nil && !p.Deleted && p.Status == StatusActive
}

// VariantByID returns the matching variant or nil.
func (p *Product) VariantByID(variantID string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].VariantID == variantID {
			return &p.Variants[i]
		}
	}
	return nil
}

// PriceChange is one immutable entry in the repricing history trail.
type PriceChange struct {
	ProductID     string    `dynamodbav:"product_id"` // PK
	ChangedAt     string    `dynamodbav:"changed_at"` // SK, RFC3339Nano
	OldPriceCents int64     `dynamodbav:"old_price_cents"`
	NewPriceCents int64     `dynamodbav:"new_price_cents"`
	Source        string    `dynamodbav:"source"`
	Reason        string    `dynamodbav:"reason,omitempty"`
	CreatedAt     time.Time `dynamodbav:"created_at"`
}
