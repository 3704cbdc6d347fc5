package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/bundle-pricing/internal/pricing"
	"github.com/noah-isme/bundle-pricing/internal/tax"
)

// ErrNotFound is returned when a product id does not exist.
var ErrNotFound = errors.New("catalog: product not found")

// Product is the slice of the catalog the pricing engine needs: a display
// name, a unit price in minor units, the product's tax class, and whether it
// can currently be sold.
type Product struct {
	ID       uuid.UUID     `json:"id"`
	Name     string        `json:"name"`
	Price    pricing.Money `json:"price"`
	TaxClass string        `json:"tax_class"`
	InStock  bool          `json:"in_stock"`
}

// Service resolves products from Postgres with a Redis read-through cache.
type Service struct {
	pool  *pgxpool.Pool
	cache *Cache
}

// NewService constructs a product resolver. cache may be nil.
func NewService(pool *pgxpool.Pool, cache *Cache) *Service {
	return &Service{pool: pool, cache: cache}
}

const getProductSQL = `
SELECT id, name, price, tax_class, in_stock
FROM products
WHERE id = $1`

const getProductsSQL = `
SELECT id, name, price, tax_class, in_stock
FROM products
WHERE id = ANY($1)`

// Get returns one product by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	key := productCacheKey(id)
	if s.cache != nil {
		var cached Product
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return cached, nil
		}
	}

	pid, err := toUUID(id)
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	row := s.pool.QueryRow(ctx, getProductSQL, pid)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product %s: %w", id, err)
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, product)
	}
	return product, nil
}

// GetMany resolves a set of product ids in one round trip. Ids that do not
// exist are simply absent from the result; callers decide whether a gap is an
// error or a product to skip.
func (s *Service) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	out := make(map[uuid.UUID]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pending := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		if s.cache != nil {
			var cached Product
			ok, err := s.cache.GetJSON(ctx, productCacheKey(id), &cached)
			if err == nil && ok {
				out[id] = cached
				continue
			}
		}
		pid, err := toUUID(id)
		if err != nil {
			return nil, fmt.Errorf("get products: %w", err)
		}
		pending = append(pending, pid)
	}
	if len(pending) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, getProductsSQL, pending)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("get products: %w", err)
		}
		out[product.ID] = product
		if s.cache != nil {
			_ = s.cache.SetJSON(ctx, productCacheKey(product.ID), product)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return out, nil
}

// TaxClass implements tax.ClassLookup on top of the cached product read.
func (s *Service) TaxClass(ctx context.Context, productID uuid.UUID) (tax.Class, bool, error) {
	product, err := s.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return tax.Class(product.TaxClass), true, nil
}

// Invalidate drops the cached copy of a product after a write.
func (s *Service) Invalidate(ctx context.Context, id uuid.UUID) error {
	return s.cache.Delete(ctx, productCacheKey(id))
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		id       pgtype.UUID
		product  Product
		price    int64
		taxClass pgtype.Text
	)
	if err := row.Scan(&id, &product.Name, &price, &taxClass, &product.InStock); err != nil {
		return Product{}, err
	}
	product.ID = uuidValue(id)
	product.Price = pricing.Money(price)
	if taxClass.Valid {
		product.TaxClass = taxClass.String
	}
	return product, nil
}

func productCacheKey(id uuid.UUID) string {
	return "bundle:product:" + id.String()
}

func toUUID(id uuid.UUID) (pgtype.UUID, error) {
	var out pgtype.UUID
	if err := out.Scan(id.String()); err != nil {
		return pgtype.UUID{}, err
	}
	return out, nil
}

func uuidValue(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	u, err := uuid.FromBytes(id.Bytes[:])
	if err != nil {
		return uuid.Nil
	}
	return u
}
