package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/bundle-pricing/internal/pricing"
)

// ErrSelectionNotFound is returned when a selection id does not exist.
var ErrSelectionNotFound = errors.New("store: selection not found")

// SelectionStore persists frozen cart selections. A selection is written once
// at add-to-cart and only ever read back; totals recomputation never mutates
// the stored document.
type SelectionStore struct {
	pool *pgxpool.Pool
}

// NewSelectionStore constructs the store.
func NewSelectionStore(pool *pgxpool.Pool) *SelectionStore {
	return &SelectionStore{pool: pool}
}

const insertSelectionSQL = `
INSERT INTO bundle_selections (id, bundle_id, snapshot, created_at)
VALUES ($1, $2, $3, $4)`

const getSelectionSQL = `
SELECT snapshot
FROM bundle_selections
WHERE id = $1`

// Save writes a frozen selection.
func (s *SelectionStore) Save(ctx context.Context, sel pricing.Selection) error {
	raw, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("encode selection %s: %w", sel.ID, err)
	}
	_, err = s.pool.Exec(ctx, insertSelectionSQL,
		sel.ID.String(), sel.BundleID.String(), raw, sel.CreatedAt)
	if err != nil {
		return fmt.Errorf("save selection %s: %w", sel.ID, err)
	}
	return nil
}

// Get loads a frozen selection by id.
func (s *SelectionStore) Get(ctx context.Context, id uuid.UUID) (pricing.Selection, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, getSelectionSQL, id.String()).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Selection{}, ErrSelectionNotFound
		}
		return pricing.Selection{}, fmt.Errorf("get selection %s: %w", id, err)
	}
	var sel pricing.Selection
	if err := json.Unmarshal(raw, &sel); err != nil {
		return pricing.Selection{}, fmt.Errorf("decode selection %s: %w", id, err)
	}
	return sel, nil
}
