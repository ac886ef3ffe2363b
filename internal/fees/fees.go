// Package fees computes the platform/merchant revenue split for an order total.
package fees

// Breakdown is the result of splitting an order total between the platform
// and the merchant. PlatformFeeCents + MerchantCents always equals the input
// total; a fractional cent rounds toward the platform fee.
type Breakdown struct {
	PlatformFeeCents int64
	MerchantCents    int64
}

// Split divides totalCents by the store's fee percentage (0-100 inclusive).
// feePercent of 0 is valid and routes everything to the merchant.
func Split(totalCents, feePercent int64) Breakdown {
	if totalCents <= 0 || feePercent <= 0 {
		return Breakdown{PlatformFeeCents: 0, MerchantCents: maxInt64(totalCents, 0)}
	}
	if feePercent > 100 {
		feePercent = 100
	}
	// ceil division so the remainder cent lands on the platform side
	platform := (totalCents*feePercent + 99) / 100
	return Breakdown{
		PlatformFeeCents: platform,
		MerchantCents:    totalCents - platform,
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
