package catalog

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
)

// Repricer is the batch pass that applies per-product pricing rules. It shares
// the catalog read model with checkout but never runs on the checkout path,
// and price changes never touch already-created orders (their line items are
// immutable snapshots).
type Repricer struct {
	store *Store
}

// NewRepricer wraps a catalog store.
func NewRepricer(store *Store) *Repricer {
	return &Repricer{store: store}
}

// Run reprices every rule-bearing product of a store. Returns the number of
// products whose price changed. A product that fails to reprice is logged and
// skipped so one bad rule cannot stall the batch.
func (r *Repricer) Run(ctx context.Context, storeID string) (int, error) {
	products, err := r.store.ListByStore(ctx, storeID)
	if err != nil {
		return 0, fmt.Errorf("repricer list: %w", err)
	}

	changed := 0
	for i := range products {
		p := &products[i]
		if p.Pricing == nil || !p.Sellable() {
			continue
		}
		target, ok := targetPrice(p)
		if !ok || target == p.PriceCents {
			continue
		}
		if err := r.store.SetPrice(ctx, p.ProductID, p.PriceCents, target, "repricer", p.Pricing.Strategy); err != nil {
			log.Printf("repricer: product %s: %v", p.ProductID, err)
			continue
		}
		changed++
	}
	return changed, nil
}

// targetPrice computes the rule's target, clamped to bounds and snapped to the
// rounding increment. Decimal math keeps the margin division exact.
func targetPrice(p *Product) (int64, bool) {
	rule := p.Pricing
	var price decimal.Decimal

	switch rule.Strategy {
	case StrategyMargin:
		// price = cost / (1 - margin); a margin of 100% or more is a bad rule
		if p.UnitCostCents <= 0 || rule.TargetMarginBps <= 0 || rule.TargetMarginBps >= 10000 {
			return 0, false
		}
		margin := decimal.NewFromInt(rule.TargetMarginBps).Div(decimal.NewFromInt(10000))
		price = decimal.NewFromInt(p.UnitCostCents).Div(decimal.NewFromInt(1).Sub(margin))
	case StrategyRound:
		price = decimal.NewFromInt(p.PriceCents)
	default:
		return 0, false
	}

	if rule.RoundToCents > 1 {
		inc := decimal.NewFromInt(rule.RoundToCents)
		price = price.Div(inc).Ceil().Mul(inc)
	} else {
		price = price.Ceil()
	}

	target := price.IntPart()
	if rule.MinPriceCents > 0 && target < rule.MinPriceCents {
		target = rule.MinPriceCents
	}
	if rule.MaxPriceCents > 0 && target > rule.MaxPriceCents {
		target = rule.MaxPriceCents
	}
	if target <= 0 {
		return 0, false
	}
	return target, true
}
