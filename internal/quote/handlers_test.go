package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bundle-pricing/internal/bundle"
	"github.com/noah-isme/bundle-pricing/internal/catalog"
	"github.com/noah-isme/bundle-pricing/internal/common"
	"github.com/noah-isme/bundle-pricing/internal/pricing"
	"github.com/noah-isme/bundle-pricing/internal/store"
	"github.com/noah-isme/bundle-pricing/internal/tax"
	"github.com/noah-isme/bundle-pricing/internal/taxrates"
)

type fakeDefinitions map[uuid.UUID]bundle.Definition

func (f fakeDefinitions) Get(_ context.Context, bundleID uuid.UUID) (bundle.Definition, error) {
	def, ok := f[bundleID]
	if !ok {
		return bundle.Definition{}, store.ErrDefinitionNotFound
	}
	return def, nil
}

type fakeSelections struct {
	saved map[uuid.UUID]pricing.Selection
}

func (f *fakeSelections) Save(_ context.Context, sel pricing.Selection) error {
	if f.saved == nil {
		f.saved = make(map[uuid.UUID]pricing.Selection)
	}
	f.saved[sel.ID] = sel
	return nil
}

func (f *fakeSelections) Get(_ context.Context, id uuid.UUID) (pricing.Selection, error) {
	sel, ok := f.saved[id]
	if !ok {
		return pricing.Selection{}, store.ErrSelectionNotFound
	}
	return sel, nil
}

type fakeProducts map[uuid.UUID]catalog.Product

func (f fakeProducts) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	out := make(map[uuid.UUID]catalog.Product, len(ids))
	for _, id := range ids {
		if p, ok := f[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fixture struct {
	handler    *Handler
	router     *chi.Mux
	bundleID   uuid.UUID
	beans      uuid.UUID
	press      uuid.UUID
	selections *fakeSelections
	products   fakeProducts
}

// Two products: beans 12.50 with a 10% tier at qty>=4, press 30.00, 5%
// bundle discount on top.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bundleID:   uuid.New(),
		beans:      uuid.New(),
		press:      uuid.New(),
		selections: &fakeSelections{},
	}
	f.products = fakeProducts{
		f.beans: {ID: f.beans, Name: "House Blend", Price: 1250, TaxClass: "reduced", InStock: true},
		f.press: {ID: f.press, Name: "French Press", Price: 3000, TaxClass: "standard", InStock: true},
	}
	defs := fakeDefinitions{
		f.bundleID: {
			BundleID:    f.bundleID,
			DiscountBps: 500,
			Lines: []bundle.LineConfig{
				{ProductID: f.beans, MinQty: 1, MaxQty: 10, DefaultQty: 4, Tiers: []bundle.VolumeTier{
					{MinQty: 4, Kind: bundle.DiscountPercent, Value: 1000},
				}},
				{ProductID: f.press, MinQty: 0, MaxQty: 2, DefaultQty: 1},
			},
			EnableBundleQty: true,
			ShowSavings:     true,
		},
	}
	svc := &Service{
		Definitions: defs,
		Selections:  f.selections,
		Products:    f.products,
		Allocator: tax.Allocator{
			Classes: tax.ClassLookupFunc(func(_ context.Context, id uuid.UUID) (tax.Class, bool, error) {
				p, ok := f.products[id]
				return tax.Class(p.TaxClass), ok, nil
			}),
			Rates: taxrates.Static{
				Table: map[tax.Class][]tax.Rate{
					"reduced": {{ID: "nl-9", Bps: 900}},
				},
				Default: []tax.Rate{{ID: "nl-21", Bps: 2100}},
			},
			Logger: zerolog.Nop(),
		},
		Logger: zerolog.Nop(),
		NowFn:  func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) },
	}
	f.handler = &Handler{Svc: svc, Validate: validator.New()}
	f.router = chi.NewRouter()
	f.router.Get("/api/v1/bundles/{id}", f.handler.GetBundle)
	f.router.Post("/api/v1/bundles/{id}/quote", f.handler.Quote)
	f.router.Post("/api/v1/bundles/{id}/selections", f.handler.CreateSelection)
	f.router.Get("/api/v1/selections/{id}", f.handler.GetSelection)
	f.router.Post("/api/v1/tax", f.handler.AllocateTax)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data, _ := envelope["data"].(map[string]any)
	return data
}

func TestGetBundleView(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/bundles/"+f.bundleID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	lines, _ := data["lines"].([]any)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	// Minimums 1 and 0: 12.50 with a 0.62 bundle discount → 11.88.
	priceRange, _ := data["priceRange"].(map[string]any)
	if priceRange["min"].(float64) != 1188 {
		t.Fatalf("expected min 1188, got %v", priceRange["min"])
	}
}

func TestGetBundleNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/bundles/"+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestQuoteHappyPath(t *testing.T) {
	f := newFixture(t)
	body := fmt.Sprintf(`{"quantities":{%q:4,%q:1},"bundleQty":2}`, f.beans, f.press)
	rec := f.do(t, http.MethodPost, "/api/v1/bundles/"+f.bundleID.String()+"/quote", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	summary, _ := data["summary"].(map[string]any)
	if summary["total"].(float64) != 7125 {
		t.Fatalf("expected total 7125, got %v", summary["total"])
	}
	if summary["volumeSavings"].(float64) != 500 {
		t.Fatalf("expected volume savings 500, got %v", summary["volumeSavings"])
	}
	if data["grandTotal"].(float64) != 14250 {
		t.Fatalf("expected grand total 14250, got %v", data["grandTotal"])
	}
}

func TestQuoteLenientQuantities(t *testing.T) {
	f := newFixture(t)
	// String and garbage values parse leniently; garbage becomes zero, which
	// here violates the beans minimum.
	body := fmt.Sprintf(`{"quantities":{%q:"banana",%q:"1"}}`, f.beans, f.press)
	rec := f.do(t, http.MethodPost, "/api/v1/bundles/"+f.bundleID.String()+"/quote", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestQuoteRejectsViolationsWithDetails(t *testing.T) {
	f := newFixture(t)
	body := fmt.Sprintf(`{"quantities":{%q:0,%q:5}}`, f.beans, f.press)
	rec := f.do(t, http.MethodPost, "/api/v1/bundles/"+f.bundleID.String()+"/quote", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Violations []bundle.Violation `json:"violations"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if envelope.Error.Code != "INVALID_QUANTITIES" {
		t.Fatalf("expected INVALID_QUANTITIES, got %s", envelope.Error.Code)
	}
	if len(envelope.Error.Details.Violations) != 2 {
		t.Fatalf("expected both violations reported, got %d", len(envelope.Error.Details.Violations))
	}
}

func TestQuoteMissingQuantities(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/bundles/"+f.bundleID.String()+"/quote", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateSelectionFreezesAndStores(t *testing.T) {
	f := newFixture(t)
	body := fmt.Sprintf(`{"quantities":{%q:4,%q:1},"bundleQty":2}`, f.beans, f.press)
	rec := f.do(t, http.MethodPost, "/api/v1/bundles/"+f.bundleID.String()+"/selections", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.selections.saved) != 1 {
		t.Fatalf("expected 1 stored selection, got %d", len(f.selections.saved))
	}
	for _, sel := range f.selections.saved {
		if sel.UnitPrice != 7125 {
			t.Fatalf("expected frozen unit price 7125, got %d", sel.UnitPrice)
		}
		if sel.BundleQty != 2 {
			t.Fatalf("expected bundle qty 2, got %d", sel.BundleQty)
		}
	}
	data := decodeData(t, rec)
	if data["summary"].(string) != "House Blend × 4, French Press × 1" {
		t.Fatalf("unexpected display summary %v", data["summary"])
	}
}

func TestCreateSelectionOutOfStock(t *testing.T) {
	f := newFixture(t)
	p := f.products[f.press]
	p.InStock = false
	f.products[f.press] = p

	body := fmt.Sprintf(`{"quantities":{%q:4,%q:1}}`, f.beans, f.press)
	rec := f.do(t, http.MethodPost, "/api/v1/bundles/"+f.bundleID.String()+"/selections", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetSelectionReplaysTotals(t *testing.T) {
	f := newFixture(t)
	body := fmt.Sprintf(`{"quantities":{%q:4,%q:1},"bundleQty":2}`, f.beans, f.press)
	f.do(t, http.MethodPost, "/api/v1/bundles/"+f.bundleID.String()+"/selections", body)

	var selID uuid.UUID
	for id := range f.selections.saved {
		selID = id
	}
	// Catalog prices change after freezing; the stored snapshot must not care.
	p := f.products[f.beans]
	p.Price = 99999
	f.products[f.beans] = p

	rec := f.do(t, http.MethodGet, "/api/v1/selections/"+selID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	totals, _ := data["totals"].(map[string]any)
	if totals["total"].(float64) != 7125 {
		t.Fatalf("expected replayed total 7125, got %v", totals["total"])
	}
	if data["grandTotal"].(float64) != 14250 {
		t.Fatalf("expected grand total 14250, got %v", data["grandTotal"])
	}
}

func TestAllocateTaxDeduplicatesCartLines(t *testing.T) {
	f := newFixture(t)
	body := fmt.Sprintf(`{"quantities":{%q:4,%q:1}}`, f.beans, f.press)
	f.do(t, http.MethodPost, "/api/v1/bundles/"+f.bundleID.String()+"/selections", body)
	var selID uuid.UUID
	for id := range f.selections.saved {
		selID = id
	}

	cartLineID := uuid.New()
	taxBody := fmt.Sprintf(`{
		"lines": [
			{"cartLineId": %q, "selectionId": %q},
			{"cartLineId": %q, "selectionId": %q}
		],
		"address": {"country": "NL"}
	}`, cartLineID, selID, cartLineID, selID)
	rec := f.do(t, http.MethodPost, "/api/v1/tax", taxBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	if data["skippedReplays"].(float64) != 1 {
		t.Fatalf("expected 1 skipped replay, got %v", data["skippedReplays"])
	}
	// Beans taxable: 45.00 ×0.95 = 42.75 at 9% → 3.84. Press: 28.50 at 21% → 5.98.
	byRate, _ := data["totalsByRate"].(map[string]any)
	if byRate["nl-9"].(float64) != 384 {
		t.Fatalf("expected 384 at reduced rate, got %v", byRate["nl-9"])
	}
	if byRate["nl-21"].(float64) != 598 {
		t.Fatalf("expected 598 at standard rate, got %v", byRate["nl-21"])
	}
	if data["totalTax"].(float64) != 982 {
		t.Fatalf("expected total tax 982, got %v", data["totalTax"])
	}
}

type archivedDefinitions struct{}

func (archivedDefinitions) Get(context.Context, uuid.UUID) (bundle.Definition, error) {
	return bundle.Definition{}, common.NewAppError("BUNDLE_ARCHIVED", "bundle no longer for sale", http.StatusGone, nil)
}

func TestWriteErrorMapsAppError(t *testing.T) {
	f := newFixture(t)
	f.handler.Svc.Definitions = archivedDefinitions{}

	rec := f.do(t, http.MethodGet, "/api/v1/bundles/"+uuid.NewString(), "")
	if rec.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if envelope.Error.Code != "BUNDLE_ARCHIVED" {
		t.Fatalf("expected BUNDLE_ARCHIVED, got %s", envelope.Error.Code)
	}
}

func TestAllocateTaxUnknownSelection(t *testing.T) {
	f := newFixture(t)
	body := fmt.Sprintf(`{
		"lines": [{"cartLineId": %q, "selectionId": %q}],
		"address": {"country": "NL"}
	}`, uuid.New(), uuid.New())
	rec := f.do(t, http.MethodPost, "/api/v1/tax", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}
