package pricing

import (
	"github.com/google/uuid"

	"github.com/noah-isme/bundle-pricing/internal/bundle"
)

// PriceRange is the displayable min/max price of a bundle, derived from its
// configured quantity bounds with the full discount cascade applied.
type PriceRange struct {
	Min Money `json:"min"`
	Max Money `json:"max"`
}

// PriceOf resolves a product's current unit price. Unresolvable products
// report false and are excluded from the range, mirroring how deleted catalog
// products are skipped rather than treated as fatal.
type PriceOf func(productID uuid.UUID) (Money, bool)

// DefinitionRange prices the definition at its minimum and maximum
// quantities. A line with unlimited MaxQty contributes its minimum quantity
// to the maximum price as well; an unbounded maximum would be meaningless on
// a product page.
func DefinitionRange(d bundle.Definition, priceOf PriceOf) PriceRange {
	minLines := make([]Line, 0, len(d.Lines))
	maxLines := make([]Line, 0, len(d.Lines))
	for _, lc := range d.Lines {
		price, ok := priceOf(lc.ProductID)
		if !ok {
			continue
		}
		maxQty := lc.MaxQty
		if maxQty == 0 {
			maxQty = lc.MinQty
		}
		minLines = append(minLines, Line{ProductID: lc.ProductID, UnitPrice: price, Qty: lc.MinQty, Tiers: lc.Tiers})
		maxLines = append(maxLines, Line{ProductID: lc.ProductID, UnitPrice: price, Qty: maxQty, Tiers: lc.Tiers})
	}
	return PriceRange{
		Min: ComputeBundle(minLines, d.DiscountBps).Total,
		Max: ComputeBundle(maxLines, d.DiscountBps).Total,
	}
}
