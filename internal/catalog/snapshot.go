package catalog

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/storefronthq/order-engine/internal/apperr"
)

// RequestItem is one untrusted (productId, variantId?, quantity) triple from a
// checkout request. Any price the client claimed never reaches this layer.
type RequestItem struct {
	ProductID string
	VariantID string
	Quantity  int
}

// Line is a validated line item with the server-authoritative unit price.
type Line struct {
	ProductID      string
	VariantID      string
	Name           string
	UnitPriceCents int64
	Quantity       int
}

// SubtotalCents sums unit price x quantity across lines.
func SubtotalCents(lines []Line) int64 {
	var total int64
	for _, l := range lines {
		total += l.UnitPriceCents * int64(l.Quantity)
	}
	return total
}

// SnapshotReader resolves authoritative price and availability at checkout
// time. Reads fan out concurrently with a bounded group.
type SnapshotReader struct {
	store         *Store
	maxConcurrent int
}

// NewSnapshotReader wraps a catalog store.
func NewSnapshotReader(store *Store, maxConcurrent int) *SnapshotReader {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &SnapshotReader{store: store, maxConcurrent: maxConcurrent}
}

// Resolve validates every requested item against the catalog and returns the
// re-priced line list. The whole request is rejected on the first unsellable
// product or unknown variant; no partial result is ever returned.
func (r *SnapshotReader) Resolve(ctx context.Context, storeID string, items []RequestItem) ([]Line, error) {
	lines := make([]Line, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrent)

	for idx := range items {
		idx := idx
		g.Go(func() error {
			it := items[idx]
			if it.Quantity <= 0 {
				return apperr.New(apperr.CodeValidation, "quantity must be positive for product %s", it.ProductID)
			}

			product, err := r.store.GetProduct(ctx, it.ProductID)
			if err != nil {
				return apperr.Wrap(apperr.CodeInternal, err, "failed to load product %s", it.ProductID)
			}
			if product == nil || product.StoreID != storeID || !product.Sellable() {
				return apperr.New(apperr.CodeProductUnavailable, "product %s is not available", it.ProductID)
			}

			line := Line{
				ProductID:      it.ProductID,
				Name:           product.Name,
				UnitPriceCents: product.PriceCents,
				Quantity:       it.Quantity,
			}
			if it.VariantID != "" {
				variant := product.VariantByID(it.VariantID)
				if variant == nil {
					return apperr.New(apperr.CodeVariantNotFound, "variant %s not found on product %s", it.VariantID, it.ProductID)
				}
				line.VariantID = variant.VariantID
				line.Name = product.Name + " - " + variant.Name
				line.UnitPriceCents = variant.PriceCents
			}
			lines[idx] = line
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lines, nil
}
