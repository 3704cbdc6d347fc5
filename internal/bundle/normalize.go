package bundle

import "sort"

const maxBps = 10000

// Normalize returns a copy of the definition with persistence-time invariants
// enforced: tiers without a positive threshold and value are dropped, tier
// values are clamped, tiers are stable-sorted ascending by MinQty (tiers with
// equal thresholds keep their stored order), quantity bounds are repaired and
// the default quantity is clamped into [min, max or +inf).
func Normalize(d Definition) Definition {
	out := d
	if out.DiscountBps < 0 {
		out.DiscountBps = 0
	}
	if out.DiscountBps > maxBps {
		out.DiscountBps = maxBps
	}
	out.Lines = make([]LineConfig, 0, len(d.Lines))
	for _, line := range d.Lines {
		out.Lines = append(out.Lines, normalizeLine(line))
	}
	return out
}

func normalizeLine(l LineConfig) LineConfig {
	if l.MinQty < 0 {
		l.MinQty = 0
	}
	if l.MaxQty < 0 {
		l.MaxQty = 0
	}
	if l.MaxQty > 0 && l.MaxQty < l.MinQty {
		l.MaxQty = l.MinQty
	}
	l.DefaultQty = l.ClampQty(l.DefaultQty)

	tiers := make([]VolumeTier, 0, len(l.Tiers))
	for _, t := range l.Tiers {
		if t.MinQty <= 0 || t.Value <= 0 {
			continue
		}
		if t.Kind != DiscountFixed {
			t.Kind = DiscountPercent
		}
		if t.Kind == DiscountPercent && t.Value > maxBps {
			t.Value = maxBps
		}
		tiers = append(tiers, t)
	}
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinQty < tiers[j].MinQty })
	l.Tiers = tiers
	return l
}
