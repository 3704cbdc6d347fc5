package bundle

import (
	"github.com/google/uuid"
)

// DiscountKind distinguishes how a volume tier's value is interpreted.
type DiscountKind string

const (
	// DiscountPercent applies the tier value as basis points of the line subtotal.
	DiscountPercent DiscountKind = "percentage"
	// DiscountFixed applies the tier value as minor units off per unit.
	DiscountFixed DiscountKind = "fixed"
)

// VolumeTier is a quantity threshold unlocking a discount for a single line.
// Value is basis points (10000 = 100%) for percentage tiers and minor units
// per unit for fixed tiers. Tiers are stored sorted ascending by MinQty.
type VolumeTier struct {
	MinQty int          `json:"minQty"`
	Kind   DiscountKind `json:"kind"`
	Value  int64        `json:"value"`
}

// LineConfig describes one bundled product and its quantity rules.
// MaxQty of zero means unlimited; it is never a cap of zero.
type LineConfig struct {
	ProductID  uuid.UUID    `json:"productId"`
	MinQty     int          `json:"minQty"`
	MaxQty     int          `json:"maxQty"`
	DefaultQty int          `json:"defaultQty"`
	Tiers      []VolumeTier `json:"volumeTiers,omitempty"`
}

// Definition is the stored configuration of a bundle product. It is created by
// an administrator, persisted as the bundle's metadata document and read on
// every price computation and add-to-cart submission.
type Definition struct {
	BundleID    uuid.UUID    `json:"bundleId"`
	Lines       []LineConfig `json:"lines"`
	DiscountBps int32        `json:"discountBps"`
	// Display flags carried through to the storefront.
	EnableBundleQty bool `json:"enableBundleQty"`
	ShowSavings     bool `json:"showSavings"`
}

// Line returns the config for the given product, if present.
func (d Definition) Line(productID uuid.UUID) (LineConfig, bool) {
	for _, l := range d.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return LineConfig{}, false
}

// ClampQty forces qty into the line's allowed range. The storefront mirror
// applies the same clamping on every stepper interaction.
func (l LineConfig) ClampQty(qty int) int {
	if qty < l.MinQty {
		qty = l.MinQty
	}
	if l.MaxQty > 0 && qty > l.MaxQty {
		qty = l.MaxQty
	}
	return qty
}
