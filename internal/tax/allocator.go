package tax

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bundle-pricing/internal/pricing"
)

const bpsDenominator = 10000

// Allocator distributes a bundle's tax across the tax classes of its bundled
// products. Taxing the bundle as one blended line is wrong whenever the
// bundle mixes classes (food at a reduced rate next to general merchandise),
// so the allocator re-derives the per-line discount cascade from the frozen
// selection and taxes each product's share at its own rates.
type Allocator struct {
	Classes ClassLookup
	Rates   RateLookup
	Logger  zerolog.Logger
}

// Allocate taxes one cart line (a frozen selection) into the pass. The
// taxable amount per product is the line's post-volume total with the bundle
// discount applied, times the cart-level bundle quantity — the identical
// cascade the pricing engine ran, re-derived from stored configuration
// rather than read back from the aggregate.
//
// Products with no applicable rates are omitted from the breakdown entirely;
// they are not rendered as zero-amount entries.
func (a Allocator) Allocate(ctx context.Context, pass *Pass, cartLineID uuid.UUID, sel pricing.Selection, addr Address) error {
	if pass == nil {
		return fmt.Errorf("allocate tax: nil pass")
	}
	if pass.Processed(cartLineID) {
		pass.skipped++
		a.Logger.Debug().
			Str("cart_line_id", cartLineID.String()).
			Msg("tax allocation replay skipped")
		return nil
	}

	bundleQty := sel.BundleQty
	if bundleQty < 1 {
		bundleQty = 1
	}
	discountBps := sel.DiscountBps
	if discountBps < 0 {
		discountBps = 0
	}
	if discountBps > bpsDenominator {
		discountBps = bpsDenominator
	}

	for _, line := range sel.Lines {
		if line.Qty <= 0 {
			continue
		}
		res := pricing.ComputeLine(line.ProductID, line.UnitPrice, line.Qty, line.Tiers)
		taxable := res.Total
		taxable -= taxable * pricing.Money(discountBps) / bpsDenominator
		taxable *= pricing.Money(bundleQty)
		if taxable <= 0 {
			continue
		}

		class, ok, err := a.Classes.TaxClass(ctx, line.ProductID)
		if err != nil {
			return fmt.Errorf("lookup tax class for %s: %w", line.ProductID, err)
		}
		if !ok {
			a.Logger.Warn().
				Str("product_id", line.ProductID.String()).
				Msg("bundled product unresolvable, excluded from tax")
			continue
		}
		rates, err := a.Rates.RatesFor(ctx, class, addr)
		if err != nil {
			return fmt.Errorf("lookup rates for class %q: %w", class, err)
		}
		if len(rates) == 0 {
			continue
		}

		var lineTax pricing.Money
		var combinedBps int32
		for _, rate := range rates {
			if rate.Bps <= 0 {
				continue
			}
			amount := taxable * pricing.Money(rate.Bps) / bpsDenominator
			pass.addRate(rate.ID, amount)
			lineTax += amount
			combinedBps += rate.Bps
		}
		if combinedBps == 0 {
			continue
		}
		pass.addProduct(BreakdownEntry{
			ProductID:       line.ProductID,
			ProductName:     line.ProductName,
			TaxableSubtotal: taxable,
			TaxAmount:       lineTax,
			RateBps:         combinedBps,
		})
	}

	pass.mark(cartLineID)
	return nil
}
