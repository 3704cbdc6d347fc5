package pricing

import (
	"github.com/google/uuid"

	"github.com/noah-isme/bundle-pricing/internal/bundle"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// bpsDenominator converts basis points to a fraction (10000 = 100%).
const bpsDenominator = 10000

// TierResult is the discount resolved for a quantity: basis points for
// percentage tiers, minor units per unit for fixed tiers.
type TierResult struct {
	Kind  bundle.DiscountKind `json:"kind"`
	Value int64               `json:"value"`
}

// ResolveTier walks tiers in storage order and keeps overwriting the result
// with every tier whose threshold is met, so the last qualifying tier wins.
// Tiers must already be sorted ascending by MinQty; the resolver does not
// sort. Equal thresholds resolve to the later one in storage order.
func ResolveTier(tiers []bundle.VolumeTier, qty int) TierResult {
	result := TierResult{Kind: bundle.DiscountPercent}
	if len(tiers) == 0 || qty <= 0 {
		return result
	}
	for _, tier := range tiers {
		if qty >= tier.MinQty {
			result.Kind = tier.Kind
			result.Value = tier.Value
		}
	}
	return result
}

// Line is one bundled product as priced: trusted unit price, chosen quantity
// and the volume tiers configured for it.
type Line struct {
	ProductID uuid.UUID
	UnitPrice Money
	Qty       int
	Tiers     []bundle.VolumeTier
}

// LineResult carries the computed amounts for a single line.
type LineResult struct {
	ProductID uuid.UUID  `json:"productId"`
	Qty       int        `json:"qty"`
	UnitPrice Money      `json:"unitPrice"`
	Subtotal  Money      `json:"subtotal"`
	Discount  Money      `json:"discount"`
	Total     Money      `json:"total"`
	Applied   TierResult `json:"applied"`
}

// ComputeLine prices one line. Fixed tiers discount per unit, percentage
// tiers discount the pre-discount subtotal. The discount is clamped to the
// subtotal so a fixed discount larger than the unit price can never drive a
// line total negative.
func ComputeLine(productID uuid.UUID, unitPrice Money, qty int, tiers []bundle.VolumeTier) LineResult {
	if qty < 0 {
		qty = 0
	}
	subtotal := unitPrice * Money(qty)
	applied := ResolveTier(tiers, qty)

	var discount Money
	switch applied.Kind {
	case bundle.DiscountFixed:
		discount = applied.Value * Money(qty)
	default:
		discount = subtotal * applied.Value / bpsDenominator
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return LineResult{
		ProductID: productID,
		Qty:       qty,
		UnitPrice: unitPrice,
		Subtotal:  subtotal,
		Discount:  discount,
		Total:     subtotal - discount,
		Applied:   applied,
	}
}

// Summary aggregates the bundle's pricing components. The discount order is
// load-bearing: volume discounts first, the bundle percentage strictly after.
type Summary struct {
	SubtotalBeforeVolume Money        `json:"subtotalBeforeVolume"`
	SubtotalAfterVolume  Money        `json:"subtotalAfterVolume"`
	VolumeSavings        Money        `json:"volumeSavings"`
	BundleDiscount       Money        `json:"bundleDiscount"`
	Total                Money        `json:"total"`
	Lines                []LineResult `json:"lines"`
}

// ComputeBundle prices every line, then applies the bundle-wide percentage to
// the post-volume subtotal. It is pure: the storefront mirror re-runs it on
// every quantity change and the server runs it once per add-to-cart, and both
// must agree given the same inputs.
func ComputeBundle(lines []Line, bundleBps int32) Summary {
	s := Summary{Lines: make([]LineResult, 0, len(lines))}
	for _, line := range lines {
		res := ComputeLine(line.ProductID, line.UnitPrice, line.Qty, line.Tiers)
		s.SubtotalBeforeVolume += res.Subtotal
		s.SubtotalAfterVolume += res.Total
		s.VolumeSavings += res.Discount
		s.Lines = append(s.Lines, res)
	}
	if bundleBps < 0 {
		bundleBps = 0
	}
	if bundleBps > bpsDenominator {
		bundleBps = bpsDenominator
	}
	s.BundleDiscount = s.SubtotalAfterVolume * Money(bundleBps) / bpsDenominator
	s.Total = s.SubtotalAfterVolume - s.BundleDiscount
	return s
}
