package quote

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/bundle-pricing/internal/bundle"
	"github.com/noah-isme/bundle-pricing/internal/common"
	"github.com/noah-isme/bundle-pricing/internal/store"
	"github.com/noah-isme/bundle-pricing/internal/tax"
)

// Handler wires the quote service to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type submissionPayload struct {
	Quantities map[string]common.LenientInt `json:"quantities" validate:"required"`
	BundleQty  common.LenientInt            `json:"bundleQty"`
}

type taxPayload struct {
	Lines []struct {
		CartLineID  string `json:"cartLineId" validate:"required,uuid4"`
		SelectionID string `json:"selectionId" validate:"required,uuid4"`
	} `json:"lines" validate:"required,min=1,dive"`
	Address tax.Address `json:"address"`
}

// GetBundle returns the storefront view of a configured bundle.
func (h *Handler) GetBundle(w http.ResponseWriter, r *http.Request) {
	bundleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid bundle id", nil)
		return
	}
	view, err := h.Svc.View(r.Context(), bundleID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Quote prices a quantity submission without persisting anything.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	bundleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid bundle id", nil)
		return
	}
	qtys, bundleQty, ok := h.decodeSubmission(w, r)
	if !ok {
		return
	}
	result, err := h.Svc.Quote(r.Context(), bundleID, qtys, bundleQty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// CreateSelection freezes a priced selection for add-to-cart.
func (h *Handler) CreateSelection(w http.ResponseWriter, r *http.Request) {
	bundleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid bundle id", nil)
		return
	}
	qtys, bundleQty, ok := h.decodeSubmission(w, r)
	if !ok {
		return
	}
	sel, err := h.Svc.CreateSelection(r.Context(), bundleID, qtys, bundleQty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	taxes, err := h.Svc.TaxForSelection(r.Context(), sel, addressFromQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"selection": sel,
		"summary":   sel.DisplaySummary(),
		"tax":       taxes,
	}})
}

// GetSelectionTax returns the tax breakdown for a frozen selection. The buyer
// address comes from query parameters; absent values fall back to the default
// rate table.
func (h *Handler) GetSelectionTax(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid selection id", nil)
		return
	}
	sel, err := h.Svc.Selection(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	taxes, err := h.Svc.TaxForSelection(r.Context(), sel, addressFromQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": taxes})
}

func addressFromQuery(r *http.Request) tax.Address {
	q := r.URL.Query()
	return tax.Address{
		Country:    q.Get("country"),
		Province:   q.Get("province"),
		City:       q.Get("city"),
		PostalCode: q.Get("postcode"),
	}
}

// GetSelection reloads a frozen selection with replayed totals.
func (h *Handler) GetSelection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid selection id", nil)
		return
	}
	sel, err := h.Svc.Selection(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"selection":  sel,
		"totals":     sel.Totals(),
		"grandTotal": sel.GrandTotal(),
		"summary":    sel.DisplaySummary(),
	}})
}

// AllocateTax runs one tax pass over a set of cart lines.
func (h *Handler) AllocateTax(w http.ResponseWriter, r *http.Request) {
	var payload taxPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", err.Error())
			return
		}
	}
	lines := make([]CartLine, 0, len(payload.Lines))
	for _, l := range payload.Lines {
		cartLineID, err := uuid.Parse(l.CartLineID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart line id", nil)
			return
		}
		selectionID, err := uuid.Parse(l.SelectionID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid selection id", nil)
			return
		}
		lines = append(lines, CartLine{CartLineID: cartLineID, SelectionID: selectionID})
	}
	result, err := h.Svc.AllocateTax(r.Context(), lines, payload.Address)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func (h *Handler) decodeSubmission(w http.ResponseWriter, r *http.Request) (map[uuid.UUID]int, int, bool) {
	var payload submissionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return nil, 0, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "quantities are required", nil)
			return nil, 0, false
		}
	}
	qtys := make(map[uuid.UUID]int, len(payload.Quantities))
	for key, qty := range payload.Quantities {
		id, err := uuid.Parse(key)
		if err != nil {
			continue
		}
		qtys[id] = int(qty)
	}
	return qtys, int(payload.BundleQty), true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *bundle.ValidationError
	var aerr *common.AppError
	switch {
	case errors.As(err, &aerr):
		common.JSONError(w, aerr.HTTPStatus, aerr.Code, aerr.Message, aerr.Details)
	case errors.As(err, &verr):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_QUANTITIES", verr.Error(), map[string]any{
			"violations": verr.Violations,
		})
	case errors.Is(err, bundle.ErrMissingConfiguration):
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_CONFIGURED", err.Error(), nil)
	case errors.Is(err, bundle.ErrInvalidSubmission):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, store.ErrDefinitionNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "bundle not found", nil)
	case errors.Is(err, store.ErrSelectionNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "selection not found", nil)
	case errors.Is(err, ErrOutOfStock):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to price bundle", nil)
	}
}
