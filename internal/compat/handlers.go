package compat

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/bundle-pricing/internal/bundle"
	"github.com/noah-isme/bundle-pricing/internal/common"
	"github.com/noah-isme/bundle-pricing/internal/pricing"
	"github.com/noah-isme/bundle-pricing/internal/store"
)

// DefinitionSource loads bundle configurations.
type DefinitionSource interface {
	Get(ctx context.Context, bundleID uuid.UUID) (bundle.Definition, error)
}

// SelectionSource loads frozen selections.
type SelectionSource interface {
	Get(ctx context.Context, id uuid.UUID) (pricing.Selection, error)
}

// Handler serves bundle configurations and selections in the legacy document
// shape for storefronts that have not migrated yet.
type Handler struct {
	Definitions DefinitionSource
	Selections  SelectionSource
}

// GetBundle returns the legacy rendering of a bundle's configuration.
func (h *Handler) GetBundle(w http.ResponseWriter, r *http.Request) {
	bundleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid bundle id", nil)
		return
	}
	def, err := h.Definitions.Get(r.Context(), bundleID)
	if err != nil {
		if errors.Is(err, store.ErrDefinitionNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "bundle not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load bundle", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": FromDefinition(def)})
}

// GetSelection returns the legacy cart-item stamp for a frozen selection.
func (h *Handler) GetSelection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid selection id", nil)
		return
	}
	sel, err := h.Selections.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrSelectionNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "selection not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load selection", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": FromSelection(sel)})
}
