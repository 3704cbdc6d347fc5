package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/bundle-pricing/internal/bundle"
	"github.com/noah-isme/bundle-pricing/internal/catalog"
)

// ErrDefinitionNotFound is returned when a bundle has no stored configuration.
var ErrDefinitionNotFound = errors.New("store: bundle definition not found")

// DefinitionStore persists bundle configurations as JSONB documents, the same
// shape the admin API accepts. Reads go through Redis; every write normalises
// the document first so the stored form is always the repaired one.
type DefinitionStore struct {
	pool  *pgxpool.Pool
	cache *catalog.Cache
}

// NewDefinitionStore constructs the store. cache may be nil.
func NewDefinitionStore(pool *pgxpool.Pool, cache *catalog.Cache) *DefinitionStore {
	return &DefinitionStore{pool: pool, cache: cache}
}

const getDefinitionSQL = `
SELECT config
FROM bundle_definitions
WHERE bundle_id = $1`

const upsertDefinitionSQL = `
INSERT INTO bundle_definitions (bundle_id, config, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (bundle_id)
DO UPDATE SET config = EXCLUDED.config, updated_at = now()`

// Get loads a bundle's definition.
func (s *DefinitionStore) Get(ctx context.Context, bundleID uuid.UUID) (bundle.Definition, error) {
	key := definitionCacheKey(bundleID)
	if s.cache != nil {
		var cached bundle.Definition
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return cached, nil
		}
	}

	var raw []byte
	err := s.pool.QueryRow(ctx, getDefinitionSQL, bundleID.String()).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bundle.Definition{}, ErrDefinitionNotFound
		}
		return bundle.Definition{}, fmt.Errorf("get definition %s: %w", bundleID, err)
	}
	var def bundle.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return bundle.Definition{}, fmt.Errorf("decode definition %s: %w", bundleID, err)
	}
	// Older rows may predate a normalisation rule; repair on the way out too.
	def = bundle.Normalize(def)

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, def)
	}
	return def, nil
}

// Save normalises and upserts a definition, returning the stored form.
func (s *DefinitionStore) Save(ctx context.Context, def bundle.Definition) (bundle.Definition, error) {
	if def.BundleID == uuid.Nil {
		return bundle.Definition{}, errors.New("store: definition requires a bundle id")
	}
	def = bundle.Normalize(def)
	raw, err := json.Marshal(def)
	if err != nil {
		return bundle.Definition{}, fmt.Errorf("encode definition %s: %w", def.BundleID, err)
	}
	if _, err := s.pool.Exec(ctx, upsertDefinitionSQL, def.BundleID.String(), raw); err != nil {
		return bundle.Definition{}, fmt.Errorf("save definition %s: %w", def.BundleID, err)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, definitionCacheKey(def.BundleID))
	}
	return def, nil
}

func definitionCacheKey(bundleID uuid.UUID) string {
	return "bundle:definition:" + bundleID.String()
}
