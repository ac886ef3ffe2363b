package fees

import "testing"

func TestSplit_Exact(t *testing.T) {
	b := Split(10000, 15)
	if b.PlatformFeeCents != 1500 {
		t.Fatalf("expected platform fee 1500, got %d", b.PlatformFeeCents)
	}
	if b.MerchantCents != 8500 {
		t.Fatalf("expected merchant amount 8500, got %d", b.MerchantCents)
	}
}

func TestSplit_ZeroFee(t *testing.T) {
	b := Split(9999, 0)
	if b.PlatformFeeCents != 0 || b.MerchantCents != 9999 {
		t.Fatalf("zero fee should route everything to merchant, got %+v", b)
	}
}

func TestSplit_FullFee(t *testing.T) {
	b := Split(777, 100)
	if b.PlatformFeeCents != 777 || b.MerchantCents != 0 {
		t.Fatalf("100%% fee should route everything to platform, got %+v", b)
	}
}

func TestSplit_RoundingGoesToPlatform(t *testing.T) {
	// 101 * 15% = 15.15 cents -> platform gets 16
	b := Split(101, 15)
	if b.PlatformFeeCents != 16 {
		t.Fatalf("expected fractional cent rounded to platform, got %d", b.PlatformFeeCents)
	}
	if b.PlatformFeeCents+b.MerchantCents != 101 {
		t.Fatalf("split must sum to total, got %+v", b)
	}
}

func TestSplit_SumInvariant(t *testing.T) {
	totals := []int64{0, 1, 99, 100, 101, 12345, 999999, 1}
	for _, total := range totals {
		for pct := int64(0); pct <= 100; pct++ {
			b := Split(total, pct)
			if b.PlatformFeeCents+b.MerchantCents != total {
				t.Fatalf("total=%d pct=%d: %d + %d != %d",
					total, pct, b.PlatformFeeCents, b.MerchantCents, total)
			}
			if b.PlatformFeeCents < 0 || b.MerchantCents < 0 {
				t.Fatalf("total=%d pct=%d: negative component %+v", total, pct, b)
			}
		}
	}
}
