package tax

import (
	"sort"

	"github.com/google/uuid"

	"github.com/noah-isme/bundle-pricing/internal/pricing"
)

// Pass accumulates tax for one end-to-end pricing pass. The surrounding cart
// subsystem's total-calculation hook can fire more than once per request, so
// the pass remembers which cart lines it has already allocated and refuses to
// count them twice. A fresh Pass is created at the start of every pricing
// pass; nothing is shared across requests.
type Pass struct {
	seen      map[uuid.UUID]struct{}
	byRate    map[string]pricing.Money
	byProduct map[uuid.UUID]BreakdownEntry
	skipped   int
}

// NewPass starts an empty pricing pass.
func NewPass() *Pass {
	return &Pass{
		seen:      make(map[uuid.UUID]struct{}),
		byRate:    make(map[string]pricing.Money),
		byProduct: make(map[uuid.UUID]BreakdownEntry),
	}
}

// Processed reports whether the cart line was already allocated in this pass.
func (p *Pass) Processed(cartLineID uuid.UUID) bool {
	_, ok := p.seen[cartLineID]
	return ok
}

func (p *Pass) mark(cartLineID uuid.UUID) {
	p.seen[cartLineID] = struct{}{}
}

func (p *Pass) addRate(rateID string, amount pricing.Money) {
	p.byRate[rateID] += amount
}

func (p *Pass) addProduct(entry BreakdownEntry) {
	existing, ok := p.byProduct[entry.ProductID]
	if !ok {
		p.byProduct[entry.ProductID] = entry
		return
	}
	existing.TaxableSubtotal += entry.TaxableSubtotal
	existing.TaxAmount += entry.TaxAmount
	p.byProduct[entry.ProductID] = existing
}

// TotalsByRate is the authoritative tax to charge, keyed by rate id.
func (p *Pass) TotalsByRate() map[string]pricing.Money {
	out := make(map[string]pricing.Money, len(p.byRate))
	for id, amount := range p.byRate {
		out[id] = amount
	}
	return out
}

// Breakdown returns the per-product display entries, sorted by product name
// for stable rendering, then by id when names collide.
func (p *Pass) Breakdown() []BreakdownEntry {
	out := make([]BreakdownEntry, 0, len(p.byProduct))
	for _, entry := range p.byProduct {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductName != out[j].ProductName {
			return out[i].ProductName < out[j].ProductName
		}
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out
}

// TotalTax sums every allocated amount.
func (p *Pass) TotalTax() pricing.Money {
	var total pricing.Money
	for _, amount := range p.byRate {
		total += amount
	}
	return total
}

// SkippedReplays counts Allocate calls ignored by the re-entrancy guard.
func (p *Pass) SkippedReplays() int {
	return p.skipped
}
