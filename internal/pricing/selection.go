package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/bundle-pricing/internal/bundle"
)

// SelectionLine is a frozen copy of one priced line: the quantity the buyer
// chose, the unit price that was trusted at add-to-cart time and the tiers
// needed to re-derive the discount cascade later (tax allocation, replay).
type SelectionLine struct {
	ProductID   uuid.UUID           `json:"productId"`
	ProductName string              `json:"productName"`
	UnitPrice   Money               `json:"unitPrice"`
	Qty         int                 `json:"qty"`
	Tiers       []bundle.VolumeTier `json:"volumeTiers,omitempty"`
	Discount    Money               `json:"discount"`
	Applied     TierResult          `json:"applied"`
	Subtotal    Money               `json:"subtotal"`
	Total       Money               `json:"total"`
}

// Selection is the immutable snapshot created at add-to-cart time. It is
// copied verbatim onto the order line at checkout and never recomputed from
// live catalog prices afterwards; Totals re-derives identical numbers from
// the frozen configuration alone.
type Selection struct {
	ID            uuid.UUID       `json:"id"`
	BundleID      uuid.UUID       `json:"bundleId"`
	BundleQty     int             `json:"bundleQty"`
	DiscountBps   int32           `json:"discountBps"`
	Lines         []SelectionLine `json:"lines"`
	UnitPrice     Money           `json:"unitPrice"` // one bundle, after all discounts
	VolumeSavings Money           `json:"volumeSavings"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NamedLine pairs a pricing line with its display name for snapshotting.
type NamedLine struct {
	Line
	ProductName string
}

// NewSelection freezes the outcome of an authoritative pricing pass.
// bundleQty is the cart-level quantity of the whole bundle; it multiplies the
// selection at tax time, not the per-line math here.
func NewSelection(bundleID uuid.UUID, lines []NamedLine, discountBps int32, bundleQty int, now time.Time) Selection {
	if bundleQty < 1 {
		bundleQty = 1
	}
	plain := make([]Line, 0, len(lines))
	for _, l := range lines {
		plain = append(plain, l.Line)
	}
	summary := ComputeBundle(plain, discountBps)

	sel := Selection{
		ID:            uuid.New(),
		BundleID:      bundleID,
		BundleQty:     bundleQty,
		DiscountBps:   discountBps,
		Lines:         make([]SelectionLine, 0, len(lines)),
		UnitPrice:     summary.Total,
		VolumeSavings: summary.VolumeSavings,
		CreatedAt:     now.UTC(),
	}
	for i, l := range lines {
		res := summary.Lines[i]
		sel.Lines = append(sel.Lines, SelectionLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice,
			Qty:         l.Qty,
			Tiers:       l.Tiers,
			Discount:    res.Discount,
			Applied:     res.Applied,
			Subtotal:    res.Subtotal,
			Total:       res.Total,
		})
	}
	return sel
}

// Totals recomputes the bundle summary from the frozen lines. Running it any
// number of times over an unchanged selection yields identical results, which
// keeps repeated total-calculation hooks safe.
func (s Selection) Totals() Summary {
	lines := make([]Line, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, Line{
			ProductID: l.ProductID,
			UnitPrice: l.UnitPrice,
			Qty:       l.Qty,
			Tiers:     l.Tiers,
		})
	}
	return ComputeBundle(lines, s.DiscountBps)
}

// GrandTotal is the selection's price times the cart-level bundle quantity.
func (s Selection) GrandTotal() Money {
	qty := s.BundleQty
	if qty < 1 {
		qty = 1
	}
	return s.UnitPrice * Money(qty)
}

// DisplaySummary renders the "Name × qty" list attached to cart and order
// lines for receipts.
func (s Selection) DisplaySummary() string {
	parts := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		if l.Qty <= 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s × %d", l.ProductName, l.Qty))
	}
	return strings.Join(parts, ", ")
}
