package tax

import (
	"context"

	"github.com/google/uuid"

	"github.com/noah-isme/bundle-pricing/internal/pricing"
)

// Class categorizes a product for tax purposes and determines which rates
// apply ("standard", "reduced", "zero", ...).
type Class string

// Address locates the buyer for rate lookup.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

// Rate is one applicable tax rate. Bps is the rate in basis points
// (10000 = 100%).
type Rate struct {
	ID    string `json:"id"`
	Bps   int32  `json:"bps"`
	Label string `json:"label,omitempty"`
}

// ClassLookup resolves a product's tax class. Missing products report false
// and contribute no tax.
type ClassLookup interface {
	TaxClass(ctx context.Context, productID uuid.UUID) (Class, bool, error)
}

// RateLookup resolves the rates applying to a class at an address.
type RateLookup interface {
	RatesFor(ctx context.Context, class Class, addr Address) ([]Rate, error)
}

// BreakdownEntry is the user-facing tax line for one distinct bundled
// product, summed across every cart line containing it.
type BreakdownEntry struct {
	ProductID       uuid.UUID     `json:"productId"`
	ProductName     string        `json:"productName"`
	TaxableSubtotal pricing.Money `json:"taxableSubtotal"`
	TaxAmount       pricing.Money `json:"taxAmount"`
	RateBps         int32         `json:"rateBps"`
}

// ClassLookupFunc adapts a function to the ClassLookup interface.
type ClassLookupFunc func(ctx context.Context, productID uuid.UUID) (Class, bool, error)

// TaxClass implements ClassLookup.
func (f ClassLookupFunc) TaxClass(ctx context.Context, productID uuid.UUID) (Class, bool, error) {
	return f(ctx, productID)
}

// RateLookupFunc adapts a function to the RateLookup interface.
type RateLookupFunc func(ctx context.Context, class Class, addr Address) ([]Rate, error)

// RatesFor implements RateLookup.
func (f RateLookupFunc) RatesFor(ctx context.Context, class Class, addr Address) ([]Rate, error) {
	return f(ctx, class, addr)
}
