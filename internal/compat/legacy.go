// Package compat translates bundle configurations to and from the legacy
// storefront format, a loosely typed JSON document where every number is a
// string. Imports apply parse-or-default semantics: malformed values become
// zero (or the field default) instead of failing the document.
package compat

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/bundle-pricing/internal/bundle"
	"github.com/noah-isme/bundle-pricing/internal/pricing"
)

// LegacyTier is one quantity discount row in the legacy document.
type LegacyTier struct {
	MinQuantity  string `json:"min_quantity"`
	DiscountType string `json:"discount_type"` // "percentage" or "fixed"
	Amount       string `json:"amount"`        // percent ("10") or money ("1.50")
}

// LegacyItem is one bundled product in the legacy document.
type LegacyItem struct {
	BundledItemID   int          `json:"bundled_item_id"`
	ProductID       string       `json:"product_id"`
	QuantityMin     string       `json:"quantity_min"`
	QuantityMax     string       `json:"quantity_max"` // empty or "0" means unlimited
	QuantityDefault string       `json:"quantity_default"`
	Tiers           []LegacyTier `json:"quantity_discounts,omitempty"`
}

// LegacyBundle is the legacy representation of a bundle's configuration.
type LegacyBundle struct {
	BundleID        string       `json:"bundle_id"`
	BundledItems    []LegacyItem `json:"bundled_items"`
	Discount        string       `json:"discount"` // bundle-wide percent
	EnableBundleQty string       `json:"enable_bundle_quantity"`
	ShowSavings     string       `json:"show_savings"`
}

// FromDefinition renders a definition in the legacy shape.
func FromDefinition(d bundle.Definition) LegacyBundle {
	out := LegacyBundle{
		BundleID:        d.BundleID.String(),
		BundledItems:    make([]LegacyItem, 0, len(d.Lines)),
		Discount:        bpsToPercent(int64(d.DiscountBps)),
		EnableBundleQty: yesNo(d.EnableBundleQty),
		ShowSavings:     yesNo(d.ShowSavings),
	}
	for i, line := range d.Lines {
		item := LegacyItem{
			BundledItemID:   i + 1,
			ProductID:       line.ProductID.String(),
			QuantityMin:     strconv.Itoa(line.MinQty),
			QuantityMax:     strconv.Itoa(line.MaxQty),
			QuantityDefault: strconv.Itoa(line.DefaultQty),
		}
		for _, tier := range line.Tiers {
			lt := LegacyTier{
				MinQuantity:  strconv.Itoa(tier.MinQty),
				DiscountType: string(tier.Kind),
			}
			if tier.Kind == bundle.DiscountFixed {
				lt.Amount = minorToDecimal(tier.Value)
			} else {
				lt.Amount = bpsToPercent(tier.Value)
			}
			item.Tiers = append(item.Tiers, lt)
		}
		out.BundledItems = append(out.BundledItems, item)
	}
	return out
}

// ToDefinition parses a legacy document into a normalized definition.
// Unparseable product ids drop the item; every other malformed field falls
// back to its zero default.
func ToDefinition(l LegacyBundle) bundle.Definition {
	def := bundle.Definition{
		Lines:           make([]bundle.LineConfig, 0, len(l.BundledItems)),
		DiscountBps:     int32(percentToBps(l.Discount)),
		EnableBundleQty: isYes(l.EnableBundleQty),
		ShowSavings:     isYes(l.ShowSavings),
	}
	if id, err := uuid.Parse(strings.TrimSpace(l.BundleID)); err == nil {
		def.BundleID = id
	}
	for _, item := range l.BundledItems {
		productID, err := uuid.Parse(strings.TrimSpace(item.ProductID))
		if err != nil {
			continue
		}
		line := bundle.LineConfig{
			ProductID:  productID,
			MinQty:     atoiDefault(item.QuantityMin),
			MaxQty:     atoiDefault(item.QuantityMax),
			DefaultQty: atoiDefault(item.QuantityDefault),
		}
		for _, lt := range item.Tiers {
			tier := bundle.VolumeTier{MinQty: atoiDefault(lt.MinQuantity)}
			if strings.EqualFold(strings.TrimSpace(lt.DiscountType), string(bundle.DiscountFixed)) {
				tier.Kind = bundle.DiscountFixed
				tier.Value = decimalToMinor(lt.Amount)
			} else {
				tier.Kind = bundle.DiscountPercent
				tier.Value = percentToBps(lt.Amount)
			}
			line.Tiers = append(line.Tiers, tier)
		}
		def.Lines = append(def.Lines, line)
	}
	return bundle.Normalize(def)
}

// LegacyStampItem is one bundled product as stamped onto a legacy cart item.
type LegacyStampItem struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	Discount  string `json:"discount"`
	Subtotal  string `json:"subtotal"`
	Total     string `json:"total"`
}

// LegacyStamp is the legacy cart-item rendering of a frozen selection.
type LegacyStamp struct {
	SelectionID  string            `json:"selection_id"`
	BundleID     string            `json:"bundle_id"`
	Quantity     int               `json:"quantity"`
	BundlePrice  string            `json:"bundle_price"`
	BundledItems []LegacyStampItem `json:"bundled_items"`
}

// FromSelection renders a frozen selection as a legacy cart-item stamp.
func FromSelection(sel pricing.Selection) LegacyStamp {
	stamp := LegacyStamp{
		SelectionID:  sel.ID.String(),
		BundleID:     sel.BundleID.String(),
		Quantity:     sel.BundleQty,
		BundlePrice:  minorToDecimal(sel.UnitPrice),
		BundledItems: make([]LegacyStampItem, 0, len(sel.Lines)),
	}
	for _, line := range sel.Lines {
		stamp.BundledItems = append(stamp.BundledItems, LegacyStampItem{
			ProductID: line.ProductID.String(),
			Title:     line.ProductName,
			Quantity:  line.Qty,
			Discount:  minorToDecimal(line.Discount),
			Subtotal:  minorToDecimal(line.Subtotal),
			Total:     minorToDecimal(line.Total),
		})
	}
	return stamp
}

func atoiDefault(value string) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return parsed
}

// percentToBps parses "10" or "7.5" into basis points.
func percentToBps(value string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}

func bpsToPercent(bps int64) string {
	return strconv.FormatFloat(float64(bps)/100, 'f', -1, 64)
}

// decimalToMinor parses "1.50" into 150 minor units.
func decimalToMinor(value string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}

func minorToDecimal(minor int64) string {
	return strconv.FormatFloat(float64(minor)/100, 'f', 2, 64)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func isYes(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "1":
		return true
	}
	return false
}
