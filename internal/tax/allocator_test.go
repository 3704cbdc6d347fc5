package tax

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bundle-pricing/internal/bundle"
	"github.com/noah-isme/bundle-pricing/internal/pricing"
)

type staticClasses map[uuid.UUID]Class

func (s staticClasses) TaxClass(_ context.Context, productID uuid.UUID) (Class, bool, error) {
	c, ok := s[productID]
	return c, ok, nil
}

type staticRates map[Class][]Rate

func (s staticRates) RatesFor(_ context.Context, class Class, _ Address) ([]Rate, error) {
	return s[class], nil
}

func testSelection(food, gear uuid.UUID) pricing.Selection {
	lines := []pricing.NamedLine{
		{
			Line: pricing.Line{ProductID: food, UnitPrice: 1000, Qty: 5, Tiers: []bundle.VolumeTier{
				{MinQty: 5, Kind: bundle.DiscountPercent, Value: 1000},
			}},
			ProductName: "Beans",
		},
		{
			Line:        pricing.Line{ProductID: gear, UnitPrice: 2000, Qty: 1},
			ProductName: "Grinder",
		},
	}
	return pricing.NewSelection(uuid.New(), lines, 1000, 1, time.Now())
}

func testAllocator(classes ClassLookup, rates RateLookup) Allocator {
	return Allocator{Classes: classes, Rates: rates, Logger: zerolog.Nop()}
}

func TestAllocateSplitsByTaxClass(t *testing.T) {
	food := uuid.New()
	gear := uuid.New()
	sel := testSelection(food, gear)

	classes := staticClasses{food: "reduced", gear: "standard"}
	rates := staticRates{
		"reduced":  {{ID: "nl-9", Bps: 900, Label: "BTW 9%"}},
		"standard": {{ID: "nl-21", Bps: 2100, Label: "BTW 21%"}},
	}

	pass := NewPass()
	a := testAllocator(classes, rates)
	require.NoError(t, a.Allocate(context.Background(), pass, uuid.New(), sel, Address{Country: "NL"}))

	// Beans: 5×10.00 → 45.00 after tier, ×0.9 bundle → 40.50 taxable, 9% → 3.645→3.64
	// Grinder: 20.00 ×0.9 → 18.00 taxable, 21% → 3.78
	byRate := pass.TotalsByRate()
	assert.Equal(t, pricing.Money(364), byRate["nl-9"])
	assert.Equal(t, pricing.Money(378), byRate["nl-21"])

	breakdown := pass.Breakdown()
	require.Len(t, breakdown, 2)
	assert.Equal(t, "Beans", breakdown[0].ProductName)
	assert.Equal(t, pricing.Money(4050), breakdown[0].TaxableSubtotal)
	assert.Equal(t, pricing.Money(364), breakdown[0].TaxAmount)
	assert.Equal(t, int32(900), breakdown[0].RateBps)
	assert.Equal(t, pricing.Money(742), pass.TotalTax())
}

func TestAllocateReentrancyGuard(t *testing.T) {
	food := uuid.New()
	gear := uuid.New()
	sel := testSelection(food, gear)
	classes := staticClasses{food: "reduced", gear: "standard"}
	rates := staticRates{
		"reduced":  {{ID: "nl-9", Bps: 900}},
		"standard": {{ID: "nl-21", Bps: 2100}},
	}

	pass := NewPass()
	a := testAllocator(classes, rates)
	lineID := uuid.New()
	ctx := context.Background()
	require.NoError(t, a.Allocate(ctx, pass, lineID, sel, Address{Country: "NL"}))
	first := pass.TotalTax()

	// The totals hook fires again within the same pass; nothing may double.
	require.NoError(t, a.Allocate(ctx, pass, lineID, sel, Address{Country: "NL"}))
	assert.Equal(t, first, pass.TotalTax())
	assert.Equal(t, 1, pass.SkippedReplays())

	// A fresh pass recounts from zero.
	fresh := NewPass()
	require.NoError(t, a.Allocate(ctx, fresh, lineID, sel, Address{Country: "NL"}))
	assert.Equal(t, first, fresh.TotalTax())
}

func TestAllocateAggregatesSameProductAcrossCartLines(t *testing.T) {
	food := uuid.New()
	gear := uuid.New()
	sel := testSelection(food, gear)
	classes := staticClasses{food: "reduced", gear: "standard"}
	rates := staticRates{
		"reduced":  {{ID: "nl-9", Bps: 900}},
		"standard": {{ID: "nl-21", Bps: 2100}},
	}

	pass := NewPass()
	a := testAllocator(classes, rates)
	ctx := context.Background()
	require.NoError(t, a.Allocate(ctx, pass, uuid.New(), sel, Address{Country: "NL"}))
	require.NoError(t, a.Allocate(ctx, pass, uuid.New(), sel, Address{Country: "NL"}))

	breakdown := pass.Breakdown()
	require.Len(t, breakdown, 2, "same products across cart lines collapse into one entry each")
	assert.Equal(t, pricing.Money(8100), breakdown[0].TaxableSubtotal)
	assert.Equal(t, pricing.Money(728), breakdown[0].TaxAmount)
}

func TestAllocateOmitsRatelessProducts(t *testing.T) {
	food := uuid.New()
	gear := uuid.New()
	sel := testSelection(food, gear)
	classes := staticClasses{food: "zero", gear: "standard"}
	rates := staticRates{
		"standard": {{ID: "nl-21", Bps: 2100}},
	}

	pass := NewPass()
	a := testAllocator(classes, rates)
	require.NoError(t, a.Allocate(context.Background(), pass, uuid.New(), sel, Address{Country: "NL"}))

	breakdown := pass.Breakdown()
	require.Len(t, breakdown, 1, "rateless product is omitted, not a zero entry")
	assert.Equal(t, "Grinder", breakdown[0].ProductName)
}

func TestAllocateSkipsUnresolvableProducts(t *testing.T) {
	food := uuid.New()
	gear := uuid.New()
	sel := testSelection(food, gear)
	classes := staticClasses{gear: "standard"} // food deleted from catalog
	rates := staticRates{"standard": {{ID: "nl-21", Bps: 2100}}}

	pass := NewPass()
	a := testAllocator(classes, rates)
	require.NoError(t, a.Allocate(context.Background(), pass, uuid.New(), sel, Address{Country: "NL"}))
	require.Len(t, pass.Breakdown(), 1)
}

func TestAllocateBundleQtyMultiplies(t *testing.T) {
	food := uuid.New()
	gear := uuid.New()
	sel := testSelection(food, gear)
	sel.BundleQty = 3
	classes := staticClasses{food: "reduced", gear: "standard"}
	rates := staticRates{
		"reduced":  {{ID: "nl-9", Bps: 900}},
		"standard": {{ID: "nl-21", Bps: 2100}},
	}

	pass := NewPass()
	a := testAllocator(classes, rates)
	require.NoError(t, a.Allocate(context.Background(), pass, uuid.New(), sel, Address{Country: "NL"}))

	breakdown := pass.Breakdown()
	assert.Equal(t, pricing.Money(12150), breakdown[0].TaxableSubtotal)
}

func TestAllocateMultipleRatesPerClass(t *testing.T) {
	gear := uuid.New()
	sel := pricing.NewSelection(uuid.New(), []pricing.NamedLine{
		{Line: pricing.Line{ProductID: gear, UnitPrice: 10000, Qty: 1}, ProductName: "Kit"},
	}, 0, 1, time.Now())
	classes := staticClasses{gear: "standard"}
	rates := staticRates{"standard": {
		{ID: "state", Bps: 650},
		{ID: "city", Bps: 250},
	}}

	pass := NewPass()
	a := testAllocator(classes, rates)
	require.NoError(t, a.Allocate(context.Background(), pass, uuid.New(), sel, Address{Country: "US"}))

	byRate := pass.TotalsByRate()
	assert.Equal(t, pricing.Money(650), byRate["state"])
	assert.Equal(t, pricing.Money(250), byRate["city"])
	breakdown := pass.Breakdown()
	assert.Equal(t, int32(900), breakdown[0].RateBps)
	assert.Equal(t, pricing.Money(900), breakdown[0].TaxAmount)
}
