package compat

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bundle-pricing/internal/bundle"
)

func TestToDefinitionParsesLegacyDocument(t *testing.T) {
	productID := uuid.New()
	legacy := LegacyBundle{
		BundleID: uuid.NewString(),
		Discount: "5",
		BundledItems: []LegacyItem{{
			BundledItemID:   1,
			ProductID:       productID.String(),
			QuantityMin:     "2",
			QuantityMax:     "10",
			QuantityDefault: "4",
			Tiers: []LegacyTier{
				{MinQuantity: "4", DiscountType: "percentage", Amount: "10"},
				{MinQuantity: "8", DiscountType: "fixed", Amount: "1.50"},
			},
		}},
		EnableBundleQty: "yes",
		ShowSavings:     "no",
	}

	def := ToDefinition(legacy)
	require.Len(t, def.Lines, 1)
	line := def.Lines[0]
	assert.Equal(t, productID, line.ProductID)
	assert.Equal(t, 2, line.MinQty)
	assert.Equal(t, 10, line.MaxQty)
	assert.Equal(t, 4, line.DefaultQty)
	assert.Equal(t, int32(500), def.DiscountBps)
	assert.True(t, def.EnableBundleQty)
	assert.False(t, def.ShowSavings)

	require.Len(t, line.Tiers, 2)
	assert.Equal(t, bundle.DiscountPercent, line.Tiers[0].Kind)
	assert.Equal(t, int64(1000), line.Tiers[0].Value)
	assert.Equal(t, bundle.DiscountFixed, line.Tiers[1].Kind)
	assert.Equal(t, int64(150), line.Tiers[1].Value)
}

func TestToDefinitionParseOrDefault(t *testing.T) {
	productID := uuid.New()
	legacy := LegacyBundle{
		BundleID: "not-a-uuid",
		Discount: "lots",
		BundledItems: []LegacyItem{
			{ProductID: productID.String(), QuantityMin: "abc", QuantityMax: "", QuantityDefault: "2"},
			{ProductID: "garbage"},
		},
	}

	def := ToDefinition(legacy)
	assert.Equal(t, uuid.Nil, def.BundleID)
	assert.Equal(t, int32(0), def.DiscountBps)
	require.Len(t, def.Lines, 1, "item with unparseable product id is dropped")
	assert.Equal(t, 0, def.Lines[0].MinQty)
	assert.Equal(t, 0, def.Lines[0].MaxQty)
	assert.Equal(t, 2, def.Lines[0].DefaultQty)
}

func TestFromDefinitionRoundTrips(t *testing.T) {
	def := bundle.Normalize(bundle.Definition{
		BundleID:    uuid.New(),
		DiscountBps: 750,
		Lines: []bundle.LineConfig{{
			ProductID:  uuid.New(),
			MinQty:     1,
			MaxQty:     5,
			DefaultQty: 2,
			Tiers: []bundle.VolumeTier{
				{MinQty: 3, Kind: bundle.DiscountPercent, Value: 1250},
				{MinQty: 5, Kind: bundle.DiscountFixed, Value: 200},
			},
		}},
		EnableBundleQty: true,
	})

	legacy := FromDefinition(def)
	assert.Equal(t, "7.5", legacy.Discount)
	require.Len(t, legacy.BundledItems, 1)
	assert.Equal(t, "12.5", legacy.BundledItems[0].Tiers[0].Amount)
	assert.Equal(t, "2.00", legacy.BundledItems[0].Tiers[1].Amount)

	back := ToDefinition(legacy)
	assert.Equal(t, def, back)
}
