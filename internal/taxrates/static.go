package taxrates

import (
	"context"

	"github.com/noah-isme/bundle-pricing/internal/tax"
)

// Static serves rates from an in-memory table keyed by tax class. Classes
// missing from the table fall back to Default; an empty Default means the
// class is untaxed.
//
// The table is address-blind. Deployments selling into one jurisdiction load
// it straight from configuration and skip the rate service entirely.
type Static struct {
	Table   map[tax.Class][]tax.Rate
	Default []tax.Rate
}

// RatesFor implements tax.RateLookup.
func (s Static) RatesFor(_ context.Context, class tax.Class, _ tax.Address) ([]tax.Rate, error) {
	if rates, ok := s.Table[class]; ok {
		return rates, nil
	}
	return s.Default, nil
}
