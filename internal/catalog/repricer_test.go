package catalog

import (
	"context"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/storefronthq/order-engine/internal/dynamotest"
)

func priceOf(t *testing.T, fake *dynamotest.Fake, productID string) int64 {
	t.Helper()
	n, ok := fake.Item("products", productID)["price_cents"].(*types.AttributeValueMemberN)
	if !ok {
		t.Fatalf("product %s has no numeric price", productID)
	}
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		t.Fatalf("parse price: %v", err)
	}
	return v
}

func TestTargetPrice(t *testing.T) {
	cases := []struct {
		name    string
		product Product
		want    int64
		ok      bool
	}{
		{
			name: "margin exact",
			product: Product{UnitCostCents: 600, PriceCents: 900,
				Pricing: &PricingRule{Strategy: StrategyMargin, TargetMarginBps: 4000}},
			want: 1000, ok: true, // 600 / 0.6
		},
		{
			name: "margin fractional rounds up",
			product: Product{UnitCostCents: 700, PriceCents: 900,
				Pricing: &PricingRule{Strategy: StrategyMargin, TargetMarginBps: 2500}},
			want: 934, ok: true, // ceil(700 / 0.75)
		},
		{
			name: "margin snapped to increment",
			product: Product{UnitCostCents: 700, PriceCents: 900,
				Pricing: &PricingRule{Strategy: StrategyMargin, TargetMarginBps: 2500, RoundToCents: 50}},
			want: 950, ok: true,
		},
		{
			name: "max bound clamps",
			product: Product{UnitCostCents: 700, PriceCents: 900,
				Pricing: &PricingRule{Strategy: StrategyMargin, TargetMarginBps: 2500, MaxPriceCents: 900}},
			want: 900, ok: true,
		},
		{
			name: "min bound lifts",
			product: Product{UnitCostCents: 100, PriceCents: 900,
				Pricing: &PricingRule{Strategy: StrategyMargin, TargetMarginBps: 2000, MinPriceCents: 500}},
			want: 500, ok: true, // 125 lifted to the floor
		},
		{
			name: "round strategy snaps current price",
			product: Product{PriceCents: 999,
				Pricing: &PricingRule{Strategy: StrategyRound, RoundToCents: 100}},
			want: 1000, ok: true,
		},
		{
			name: "full margin is a bad rule",
			product: Product{UnitCostCents: 600, PriceCents: 900,
				Pricing: &PricingRule{Strategy: StrategyMargin, TargetMarginBps: 10000}},
			ok: false,
		},
		{
			name: "margin without cost",
			product: Product{PriceCents: 900,
				Pricing: &PricingRule{Strategy: StrategyMargin, TargetMarginBps: 4000}},
			ok: false,
		},
		{
			name:    "unknown strategy",
			product: Product{PriceCents: 900, Pricing: &PricingRule{Strategy: "auction"}},
			ok:      false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := targetPrice(&tc.product)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("target = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRepricerRun(t *testing.T) {
	fake := newCatalogFake(t,
		Product{ProductID: "p-margin", StoreID: "s-1", Status: StatusActive, PriceCents: 900, UnitCostCents: 600,
			Pricing: &PricingRule{Strategy: StrategyMargin, TargetMarginBps: 4000}},
		Product{ProductID: "p-at-target", StoreID: "s-1", Status: StatusActive, PriceCents: 1000, UnitCostCents: 600,
			Pricing: &PricingRule{Strategy: StrategyMargin, TargetMarginBps: 4000}},
		Product{ProductID: "p-no-rule", StoreID: "s-1", Status: StatusActive, PriceCents: 700},
		Product{ProductID: "p-archived", StoreID: "s-1", Status: StatusArchived, PriceCents: 700,
			Pricing: &PricingRule{Strategy: StrategyRound, RoundToCents: 100}},
		Product{ProductID: "p-elsewhere", StoreID: "s-2", Status: StatusActive, PriceCents: 333,
			Pricing: &PricingRule{Strategy: StrategyRound, RoundToCents: 100}},
	)
	repricer := NewRepricer(NewStore(fake, "products", "price_history"))

	changed, err := repricer.Run(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if changed != 1 {
		t.Fatalf("changed = %d, want 1", changed)
	}
	if got := priceOf(t, fake, "p-margin"); got != 1000 {
		t.Fatalf("p-margin price = %d, want 1000", got)
	}
	for _, untouched := range []struct {
		id   string
		want int64
	}{
		{"p-at-target", 1000},
		{"p-no-rule", 700},
		{"p-archived", 700},
		{"p-elsewhere", 333},
	} {
		if got := priceOf(t, fake, untouched.id); got != untouched.want {
			t.Errorf("%s price = %d, want %d untouched", untouched.id, got, untouched.want)
		}
	}
	if fake.Len("price_history") != 1 {
		t.Fatalf("price_history rows = %d, want 1", fake.Len("price_history"))
	}
}
