package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bundle-pricing/internal/bundle"
	"github.com/noah-isme/bundle-pricing/internal/catalog"
	"github.com/noah-isme/bundle-pricing/internal/obs"
	"github.com/noah-isme/bundle-pricing/internal/pricing"
	"github.com/noah-isme/bundle-pricing/internal/tax"
)

// ErrOutOfStock is returned when a selected product cannot currently be sold.
var ErrOutOfStock = errors.New("quote: bundled product out of stock")

// DefinitionSource loads bundle configurations.
type DefinitionSource interface {
	Get(ctx context.Context, bundleID uuid.UUID) (bundle.Definition, error)
}

// SelectionStore persists and reloads frozen selections.
type SelectionStore interface {
	Save(ctx context.Context, sel pricing.Selection) error
	Get(ctx context.Context, id uuid.UUID) (pricing.Selection, error)
}

// ProductSource resolves catalog products in bulk.
type ProductSource interface {
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error)
}

// Service orchestrates the bundle pricing flows: storefront view, live quote,
// add-to-cart freeze, and tax allocation over frozen selections.
type Service struct {
	Definitions DefinitionSource
	Selections  SelectionStore
	Products    ProductSource
	Allocator   tax.Allocator
	Logger      zerolog.Logger
	NowFn       func() time.Time
}

func (s *Service) now() time.Time {
	if s.NowFn != nil {
		return s.NowFn()
	}
	return time.Now()
}

// LineView is one bundled product as the storefront renders it.
type LineView struct {
	ProductID  uuid.UUID           `json:"productId"`
	Name       string              `json:"name"`
	Price      pricing.Money       `json:"price"`
	MinQty     int                 `json:"minQty"`
	MaxQty     int                 `json:"maxQty"`
	DefaultQty int                 `json:"defaultQty"`
	Tiers      []bundle.VolumeTier `json:"volumeTiers,omitempty"`
	InStock    bool                `json:"inStock"`
}

// BundleView is the GET payload for a configured bundle.
type BundleView struct {
	BundleID        uuid.UUID          `json:"bundleId"`
	Lines           []LineView         `json:"lines"`
	DiscountBps     int32              `json:"discountBps"`
	EnableBundleQty bool               `json:"enableBundleQty"`
	ShowSavings     bool               `json:"showSavings"`
	PriceRange      pricing.PriceRange `json:"priceRange"`
}

// QuoteResult is the response to a live quantity submission.
type QuoteResult struct {
	BundleID    uuid.UUID       `json:"bundleId"`
	Summary     pricing.Summary `json:"summary"`
	BundleQty   int             `json:"bundleQty"`
	GrandTotal  pricing.Money   `json:"grandTotal"`
	ShowSavings bool            `json:"showSavings"`
}

// View assembles the storefront representation of a bundle. Products missing
// from the catalog are logged and left out, matching the pricing behaviour.
func (s *Service) View(ctx context.Context, bundleID uuid.UUID) (BundleView, error) {
	def, err := s.Definitions.Get(ctx, bundleID)
	if err != nil {
		return BundleView{}, err
	}

	ids := make([]uuid.UUID, 0, len(def.Lines))
	for _, l := range def.Lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.Products.GetMany(ctx, ids)
	if err != nil {
		return BundleView{}, fmt.Errorf("resolve bundle products: %w", err)
	}

	view := BundleView{
		BundleID:        def.BundleID,
		Lines:           make([]LineView, 0, len(def.Lines)),
		DiscountBps:     def.DiscountBps,
		EnableBundleQty: def.EnableBundleQty,
		ShowSavings:     def.ShowSavings,
	}
	for _, l := range def.Lines {
		product, ok := products[l.ProductID]
		if !ok {
			s.warnUnresolvable(bundleID, l.ProductID)
			continue
		}
		view.Lines = append(view.Lines, LineView{
			ProductID:  l.ProductID,
			Name:       product.Name,
			Price:      product.Price,
			MinQty:     l.MinQty,
			MaxQty:     l.MaxQty,
			DefaultQty: l.DefaultQty,
			Tiers:      l.Tiers,
			InStock:    product.InStock,
		})
	}
	view.PriceRange = pricing.DefinitionRange(def, func(id uuid.UUID) (pricing.Money, bool) {
		p, ok := products[id]
		return p.Price, ok
	})
	return view, nil
}

// Quote validates a quantity submission and prices it without persisting
// anything. Products with quantity zero contribute no line; products the
// catalog no longer knows are excluded from totals.
func (s *Service) Quote(ctx context.Context, bundleID uuid.UUID, qtys map[uuid.UUID]int, bundleQty int) (QuoteResult, error) {
	def, err := s.Definitions.Get(ctx, bundleID)
	if err != nil {
		return QuoteResult{}, err
	}
	if err := bundle.ValidateQuantities(def, qtys); err != nil {
		s.countRejection(err)
		return QuoteResult{}, err
	}

	lines, err := s.resolveLines(ctx, def, qtys, false)
	if err != nil {
		if obs.PricingPassTotal != nil {
			obs.PricingPassTotal.WithLabelValues("error").Inc()
		}
		return QuoteResult{}, err
	}

	plain := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		plain = append(plain, l.Line)
	}
	summary := pricing.ComputeBundle(plain, def.DiscountBps)
	if bundleQty < 1 {
		bundleQty = 1
	}
	if !def.EnableBundleQty {
		bundleQty = 1
	}
	if obs.PricingPassTotal != nil {
		obs.PricingPassTotal.WithLabelValues("ok").Inc()
	}
	return QuoteResult{
		BundleID:    def.BundleID,
		Summary:     summary,
		BundleQty:   bundleQty,
		GrandTotal:  summary.Total * pricing.Money(bundleQty),
		ShowSavings: def.ShowSavings,
	}, nil
}

// CreateSelection runs the authoritative pricing pass and freezes the result.
// Unlike Quote it refuses out-of-stock products: a quote is a preview, a
// selection is a commitment.
func (s *Service) CreateSelection(ctx context.Context, bundleID uuid.UUID, qtys map[uuid.UUID]int, bundleQty int) (pricing.Selection, error) {
	def, err := s.Definitions.Get(ctx, bundleID)
	if err != nil {
		return pricing.Selection{}, err
	}
	if err := bundle.ValidateQuantities(def, qtys); err != nil {
		s.countRejection(err)
		return pricing.Selection{}, err
	}

	lines, err := s.resolveLines(ctx, def, qtys, true)
	if err != nil {
		return pricing.Selection{}, err
	}
	if !def.EnableBundleQty {
		bundleQty = 1
	}

	sel := pricing.NewSelection(def.BundleID, lines, def.DiscountBps, bundleQty, s.now())
	if err := s.Selections.Save(ctx, sel); err != nil {
		return pricing.Selection{}, err
	}
	if obs.SelectionsCreatedTotal != nil {
		obs.SelectionsCreatedTotal.Inc()
	}
	s.Logger.Info().
		Str("bundle_id", def.BundleID.String()).
		Str("selection_id", sel.ID.String()).
		Int64("unit_price", int64(sel.UnitPrice)).
		Msg("bundle selection frozen")
	return sel, nil
}

// Selection reloads a frozen selection.
func (s *Service) Selection(ctx context.Context, id uuid.UUID) (pricing.Selection, error) {
	return s.Selections.Get(ctx, id)
}

// TaxForSelection allocates tax for one selection in isolation, before the
// selection is attached to a cart line. The selection id stands in as the
// cart line id.
func (s *Service) TaxForSelection(ctx context.Context, sel pricing.Selection, addr tax.Address) (TaxResult, error) {
	pass := tax.NewPass()
	if err := s.Allocator.Allocate(ctx, pass, sel.ID, sel, addr); err != nil {
		if obs.TaxAllocationTotal != nil {
			obs.TaxAllocationTotal.WithLabelValues("error").Inc()
		}
		return TaxResult{}, err
	}
	if obs.TaxAllocationTotal != nil {
		obs.TaxAllocationTotal.WithLabelValues("ok").Inc()
	}
	return TaxResult{
		TotalsByRate: pass.TotalsByRate(),
		Breakdown:    pass.Breakdown(),
		TotalTax:     pass.TotalTax(),
	}, nil
}

// CartLine pairs a cart line id with the selection frozen onto it.
type CartLine struct {
	CartLineID  uuid.UUID
	SelectionID uuid.UUID
}

// TaxResult is the outcome of allocating tax over a set of cart lines.
type TaxResult struct {
	TotalsByRate   map[string]pricing.Money `json:"totalsByRate"`
	Breakdown      []tax.BreakdownEntry     `json:"breakdown"`
	TotalTax       pricing.Money            `json:"totalTax"`
	SkippedReplays int                      `json:"skippedReplays"`
}

// AllocateTax runs one tax pass over the given cart lines. Duplicate cart
// line ids within the request are counted once; the pass-level guard absorbs
// the rest.
func (s *Service) AllocateTax(ctx context.Context, lines []CartLine, addr tax.Address) (TaxResult, error) {
	pass := tax.NewPass()
	for _, line := range lines {
		sel, err := s.Selections.Get(ctx, line.SelectionID)
		if err != nil {
			if obs.TaxAllocationTotal != nil {
				obs.TaxAllocationTotal.WithLabelValues("error").Inc()
			}
			return TaxResult{}, err
		}
		if err := s.Allocator.Allocate(ctx, pass, line.CartLineID, sel, addr); err != nil {
			if obs.TaxAllocationTotal != nil {
				obs.TaxAllocationTotal.WithLabelValues("error").Inc()
			}
			return TaxResult{}, err
		}
	}
	if obs.TaxAllocationTotal != nil {
		obs.TaxAllocationTotal.WithLabelValues("ok").Inc()
	}
	if skipped := pass.SkippedReplays(); skipped > 0 && obs.TaxReplaySkippedTotal != nil {
		obs.TaxReplaySkippedTotal.Add(float64(skipped))
	}
	return TaxResult{
		TotalsByRate:   pass.TotalsByRate(),
		Breakdown:      pass.Breakdown(),
		TotalTax:       pass.TotalTax(),
		SkippedReplays: pass.SkippedReplays(),
	}, nil
}

func (s *Service) resolveLines(ctx context.Context, def bundle.Definition, qtys map[uuid.UUID]int, enforceStock bool) ([]pricing.NamedLine, error) {
	ids := make([]uuid.UUID, 0, len(def.Lines))
	for _, l := range def.Lines {
		if qtys[l.ProductID] > 0 {
			ids = append(ids, l.ProductID)
		}
	}
	products, err := s.Products.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve bundle products: %w", err)
	}

	lines := make([]pricing.NamedLine, 0, len(ids))
	for _, l := range def.Lines {
		qty := qtys[l.ProductID]
		if qty <= 0 {
			continue
		}
		product, ok := products[l.ProductID]
		if !ok {
			s.warnUnresolvable(def.BundleID, l.ProductID)
			continue
		}
		if enforceStock && !product.InStock {
			return nil, fmt.Errorf("%w: %s", ErrOutOfStock, product.Name)
		}
		lines = append(lines, pricing.NamedLine{
			Line: pricing.Line{
				ProductID: product.ID,
				UnitPrice: product.Price,
				Qty:       qty,
				Tiers:     l.Tiers,
			},
			ProductName: product.Name,
		})
	}
	return lines, nil
}

func (s *Service) warnUnresolvable(bundleID, productID uuid.UUID) {
	s.Logger.Warn().
		Str("bundle_id", bundleID.String()).
		Str("product_id", productID.String()).
		Msg("bundled product unresolvable, excluded from pricing")
}

func (s *Service) countRejection(err error) {
	if obs.ValidationRejectionsTotal == nil {
		return
	}
	var verr *bundle.ValidationError
	if errors.As(err, &verr) {
		for _, v := range verr.Violations {
			obs.ValidationRejectionsTotal.WithLabelValues(string(v.Kind)).Inc()
		}
	}
}
